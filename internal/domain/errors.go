package domain

import "errors"

var (
	// Input errors
	ErrDuplicateEvent = errors.New("duplicate event id with conflicting amounts")
	ErrUnsortedInput  = errors.New("event stream is not sorted by source ordinal")
	ErrInvalidRecord  = errors.New("raw record failed validation")

	// Classification errors
	ErrUnclassifiableEvent = errors.New("event matched no classification rule")

	// Ledger errors
	ErrUnbalancedPosting = errors.New("posting debits do not equal credits")
	ErrUnknownCategory   = errors.New("no posting rule for category")

	// Lot errors
	ErrNegativeLotBasis = errors.New("disposal quantity exceeds open lot quantity")
	ErrUnknownMethod    = errors.New("unknown cost basis method")

	// Statement errors
	ErrUnknownFrequency = errors.New("unknown reporting frequency")

	// Checkpoint errors
	ErrCheckpointNotFound = errors.New("checkpoint not found")
	ErrCheckpointGap      = errors.New("event stream does not continue from checkpoint ordinal")

	// Auth errors
	ErrInvalidToken = errors.New("invalid token")
	ErrExpiredToken = errors.New("token expired")
)
