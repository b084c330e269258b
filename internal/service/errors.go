// Package service provides business logic for the application.
package service

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
)

// Service errors.
var (
	ErrEmailExists            = errors.New("email already registered")
	ErrInvalidCredentials     = errors.New("invalid credentials")
	ErrUserNotFound           = errors.New("user not found")
	ErrCouponNotFound         = errors.New("coupon not found")
	ErrCouponAlreadyActivated = errors.New("coupon already activated")
	ErrInsufficientBalance    = errors.New("insufficient oil balance")
	ErrInvalidLiters          = errors.New("invalid oil_liters")
)

// InsufficientBalanceError reports the gap between a coupon threshold and the balance.
type InsufficientBalanceError struct {
	Required decimal.Decimal
	Current  decimal.Decimal
}

func (e *InsufficientBalanceError) Error() string {
	return fmt.Sprintf("insufficient oil balance: required %s liters, have %s", e.Required, e.Current)
}

// Is lets errors.Is match ErrInsufficientBalance.
func (e *InsufficientBalanceError) Is(target error) bool {
	return target == ErrInsufficientBalance
}

// ValidationError is a field-level input error. Err, when set, is the
// sentinel the failure belongs to.
type ValidationError struct {
	Field   string
	Message string
	Err     error
}

func (e *ValidationError) Error() string {
	return e.Field + ": " + e.Message
}

func (e *ValidationError) Unwrap() error {
	return e.Err
}

func invalidLiters(message string) error {
	return &ValidationError{Field: "oil_liters", Message: message, Err: ErrInvalidLiters}
}
