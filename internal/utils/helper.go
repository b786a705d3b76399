package utils

import (
	"strconv"
)

func StrPtr(s string) *string {
	return &s
}

func PtrString(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

func ToUint(id string) (uint, error) {
	n, err := strconv.ParseUint(id, 10, 64)
	return uint(n), err
}

// FormatPaise renders an amount held in paise as rupees. Integral amounts
// carry no decimals, fractional ones exactly two. The payment gateway hashes
// the exact string we send, so this formatting is load-bearing.
func FormatPaise(paise int64) string {
	if paise%100 == 0 {
		return strconv.FormatInt(paise/100, 10)
	}
	sign := ""
	if paise < 0 {
		sign = "-"
		paise = -paise
	}
	return sign + strconv.FormatInt(paise/100, 10) + "." + pad2(paise%100)
}

func pad2(n int64) string {
	if n < 10 {
		return "0" + strconv.FormatInt(n, 10)
	}
	return strconv.FormatInt(n, 10)
}
