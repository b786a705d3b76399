package order

import "fmt"

// transitions is the full fulfillment lifecycle. Forward-only on the happy
// path; cancellation is legal only before the order leaves the store.
// DELIVERED and CANCELED are terminal.
var transitions = map[OrderStatus][]OrderStatus{
	StatusReceived: {StatusPacking, StatusCanceled},
	StatusPacking:  {StatusOnTheWay, StatusCanceled},
	StatusOnTheWay: {StatusDelivered},
}

func ValidStatus(s OrderStatus) bool {
	switch s {
	case StatusReceived, StatusPacking, StatusOnTheWay, StatusDelivered, StatusCanceled:
		return true
	}
	return false
}

func IsTerminal(s OrderStatus) bool {
	return s == StatusDelivered || s == StatusCanceled
}

func CanTransition(from, to OrderStatus) bool {
	for _, next := range transitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// ValidateTransition returns ErrInvalidTransition for any request outside the
// table. State is never coerced to a "nearest legal" value.
func ValidateTransition(from, to OrderStatus) error {
	if !CanTransition(from, to) {
		return fmt.Errorf("%s -> %s: %w", from, to, ErrInvalidTransition)
	}
	return nil
}
