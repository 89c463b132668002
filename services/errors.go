package services

import "errors"

var (
	ErrNotFound            = errors.New("resource not found")
	ErrInvalidInput        = errors.New("invalid input provided")
	ErrForbidden           = errors.New("admin access required")
	ErrUserBlocked         = errors.New("user account is blocked")
	ErrBelowMinimum        = errors.New("amount is below the minimum withdrawal")
	ErrNoMaturedInvestment = errors.New("no fully matured investment found")
	ErrInsufficientFunds   = errors.New("insufficient funds")
	ErrInvalidTransition   = errors.New("status transition not allowed")
	ErrConflict            = errors.New("record was modified concurrently")
	ErrEmailTaken          = errors.New("email already exists")
	ErrInvalidCredentials  = errors.New("invalid email or password")
	ErrDuplicate           = errors.New("duplicate entry")
)

var reasons = map[error]string{
	ErrNotFound:            "not_found",
	ErrInvalidInput:        "invalid_input",
	ErrForbidden:           "forbidden",
	ErrUserBlocked:         "user_blocked",
	ErrBelowMinimum:        "below_minimum",
	ErrNoMaturedInvestment: "not_eligible",
	ErrInsufficientFunds:   "insufficient_funds",
	ErrInvalidTransition:   "invalid_transition",
	ErrConflict:            "conflict",
	ErrEmailTaken:          "email_taken",
	ErrInvalidCredentials:  "invalid_credentials",
	ErrDuplicate:           "duplicate",
}

// Reason returns the machine-readable code for err, or "internal".
func Reason(err error) string {
	for sentinel, code := range reasons {
		if errors.Is(err, sentinel) {
			return code
		}
	}
	return "internal"
}
