package service

import (
	"errors"
	"fmt"
)

// Vote casting error taxonomy. The web layer maps these to user-facing
// messages; none of them is retried automatically.
var (
	ErrNoActiveElection      = errors.New("no active election")
	ErrInvalidCandidate      = errors.New("invalid candidate")
	ErrAlreadyVoted          = errors.New("voter has already voted in this election")
	ErrAccountNotProvisioned = errors.New("voter ledger account not provisioned")
)

// Registration errors surfaced before any ledger work happens.
var (
	ErrEmailRegistered   = errors.New("email already registered")
	ErrVoterIDRegistered = errors.New("voter id already registered")
)

// SubmissionError wraps a failure to build, sign or broadcast the ledger
// transaction. The vote was not recorded anywhere; the voter must see it
// and may retry.
type SubmissionError struct {
	Cause error
}

func (e *SubmissionError) Error() string {
	return fmt.Sprintf("ledger submission failed: %v", e.Cause)
}

func (e *SubmissionError) Unwrap() error {
	return e.Cause
}
