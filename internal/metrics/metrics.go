package metrics

import (
	"sync/atomic"
	"time"
)

type Counter struct {
	value uint64
}

func (c *Counter) Inc() {
	atomic.AddUint64(&c.value, 1)
}

func (c *Counter) Add(n uint64) {
	atomic.AddUint64(&c.value, n)
}

func (c *Counter) Load() uint64 {
	return atomic.LoadUint64(&c.value)
}

type Timer struct {
	start time.Time
}

func StartTimer() *Timer {
	return &Timer{start: time.Now()}
}

func (t *Timer) Duration() time.Duration {
	return time.Since(t.start)
}

// Reconciliation tracks gateway callback outcomes. Tampered and duplicate
// counts are the ones worth alerting on.
type Reconciliation struct {
	Processed Counter
	Paid      Counter
	Failed    Counter
	Duplicate Counter
	Tampered  Counter
	RefundDue Counter
}

func (r *Reconciliation) Snapshot() map[string]uint64 {
	return map[string]uint64{
		"callbacks_processed": r.Processed.Load(),
		"payments_paid":       r.Paid.Load(),
		"payments_failed":     r.Failed.Load(),
		"duplicates_absorbed": r.Duplicate.Load(),
		"tampered_rejected":   r.Tampered.Load(),
		"refunds_due":         r.RefundDue.Load(),
	}
}
