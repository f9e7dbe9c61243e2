package utils

import (
	"crypto/rand"
	"fmt"
	"math/big"
	"strings"
)

const passwordAlphabet = "abcdefghijklmnopqrstuvwxyz0123456789"

// RandomInt returns a uniform integer in [0, n).
func RandomInt(n int64) (int64, error) {
	v, err := rand.Int(rand.Reader, big.NewInt(n))
	if err != nil {
		return 0, err
	}
	return v.Int64(), nil
}

// RandomCode returns a 6-digit numeric code in [100000, 999999].
func RandomCode() (string, error) {
	n, err := RandomInt(900000)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%d", 100000+n), nil
}

// RandomPassword returns a throwaway lowercase alphanumeric password.
func RandomPassword(length int) (string, error) {
	var b strings.Builder
	for i := 0; i < length; i++ {
		n, err := RandomInt(int64(len(passwordAlphabet)))
		if err != nil {
			return "", err
		}
		b.WriteByte(passwordAlphabet[n])
	}
	return b.String(), nil
}

// RandomDigits returns length random decimal digits (leading zeros allowed).
func RandomDigits(length int) (string, error) {
	var b strings.Builder
	for i := 0; i < length; i++ {
		n, err := RandomInt(10)
		if err != nil {
			return "", err
		}
		b.WriteByte(byte('0' + n))
	}
	return b.String(), nil
}
