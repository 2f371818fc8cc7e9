package htlc

import "errors"

// All of these are local, non-retryable, caller-fixable errors. They are
// rejected synchronously and leave no state change behind.
var (
	// invalid argument
	ErrZeroAmount          = errors.New("amount must be greater than zero")
	ErrZeroTimeout         = errors.New("timeout duration must be greater than zero")
	ErrBadSecretHashLen    = errors.New("secret hash must be 32 bytes")
	ErrEmptyPreimage       = errors.New("preimage must not be empty")
	ErrEmptyPayload        = errors.New("payload must not be empty")
	ErrEmptyTargetContract = errors.New("target contract must not be empty")
	ErrEmptyAddress        = errors.New("address must not be empty")

	// authorization
	ErrPermissionDenied = errors.New("caller is not permitted to perform this operation")

	// registry
	ErrLockNotFound     = errors.New("no lock record with the given id")
	ErrSwapExists       = errors.New("a lock record with the given id already exists")
	ErrAlreadyWithdrawn = errors.New("lock record has already been withdrawn")
	ErrAlreadyRefunded  = errors.New("lock record has already been refunded")

	// lifecycle guards
	ErrTimelockNotExpired = errors.New("timelock has not expired yet")
	ErrInvalidPreimage    = errors.New("preimage does not match the secret hash")

	// custody
	ErrInsufficientFunds = errors.New("insufficient balance for transfer")
)
