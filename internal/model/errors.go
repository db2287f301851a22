package model

import "errors"

var (
	ErrHabitNotFound      = errors.New("habit not found")
	ErrInvalidDate        = errors.New("invalid date, expected YYYY-MM-DD")
	ErrFutureDate         = errors.New("date is in the future")
	ErrEmailExists        = errors.New("email already registered")
	ErrInvalidCredentials = errors.New("invalid email or password")
	ErrInvalidTimezone    = errors.New("invalid timezone")
)

// ErrInvalidInput wraps request validation failures outside habit fields.
var ErrInvalidInput = errors.New("invalid input")
