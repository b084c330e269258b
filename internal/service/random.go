package service

import (
	"crypto/rand"
	"errors"
	"fmt"
	"math/big"
	"regexp"
)

const (
	couponCodeLength   = 8
	couponCodeAlphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"
	maxCodeRetries     = 3
)

// couponCodeRegex matches an issued redemption code.
var couponCodeRegex = regexp.MustCompile(`^[A-Z0-9]{8}$`)

// errCodeRetriesExhausted is returned when every generated code collided.
var errCodeRetriesExhausted = errors.New("failed to generate unique coupon code after retries")

// RandomSource supplies uniformly distributed integers in [0, n).
// Tests substitute a deterministic source.
type RandomSource interface {
	IntN(n int) (int, error)
}

// CryptoRandom draws from crypto/rand.
type CryptoRandom struct{}

// IntN returns a cryptographically secure random integer in [0, n).
func (CryptoRandom) IntN(n int) (int, error) {
	if n <= 0 {
		return 0, fmt.Errorf("invalid random bound %d", n)
	}
	v, err := rand.Int(rand.Reader, big.NewInt(int64(n)))
	if err != nil {
		return 0, err
	}
	return int(v.Int64()), nil
}

// GenerateCouponCode returns an 8-character uppercase alphanumeric code.
func GenerateCouponCode(r RandomSource) (string, error) {
	b := make([]byte, couponCodeLength)
	for i := range b {
		idx, err := r.IntN(len(couponCodeAlphabet))
		if err != nil {
			return "", fmt.Errorf("generate coupon code: %w", err)
		}
		b[i] = couponCodeAlphabet[idx]
	}
	return string(b), nil
}

// ValidateCouponCode reports whether code has the redemption code format.
func ValidateCouponCode(code string) bool {
	return couponCodeRegex.MatchString(code)
}

// pick returns a uniformly chosen element of items.
func pick(r RandomSource, items []string) (string, error) {
	idx, err := r.IntN(len(items))
	if err != nil {
		return "", err
	}
	return items[idx], nil
}

// intBetween returns a uniformly chosen integer in [lo, hi].
func intBetween(r RandomSource, lo, hi int) (int, error) {
	n, err := r.IntN(hi - lo + 1)
	if err != nil {
		return 0, err
	}
	return lo + n, nil
}
