package search

import (
	"errors"
	"fmt"
)

// ErrEmptyResult means a search finished with zero offers. Distinct from
// a partial (poll-budget) completion, which is a soft success.
var ErrEmptyResult = errors.New("search completed with no offers")

// SubmissionError is a hard failure creating a search. It is surfaced
// immediately and never retried.
type SubmissionError struct {
	Status int
}

func (e *SubmissionError) Error() string {
	return fmt.Sprintf("search submission rejected with status %d", e.Status)
}

// BookingLinkError is a failed booking click-through. The offer remains
// bookable; the caller should surface the failure and allow a retry.
type BookingLinkError struct {
	Err error
}

func (e *BookingLinkError) Error() string {
	return "booking link failed: " + e.Err.Error()
}

func (e *BookingLinkError) Unwrap() error {
	return e.Err
}
