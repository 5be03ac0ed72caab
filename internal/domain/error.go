package domain

import "errors"

var (
	// Common domain errors
	ErrNotFound           = errors.New("entity not found")
	ErrAlreadyExists      = errors.New("entity already exists")
	ErrInvalidArgument    = errors.New("invalid argument")
	ErrOperationFailed    = errors.New("operation failed")
	ErrReadDatabaseRow    = errors.New("failed to read database row")
	ErrInvalidExecContext = errors.New("invalid execution context")

	// Delivery-specific errors
	ErrPaymentNotEligible = errors.New("payment is not eligible for delivery")
	ErrSweepInProgress    = errors.New("a delivery sweep is already in progress")
	ErrTelegramNotLinked  = errors.New("user has no linked telegram account")
)
