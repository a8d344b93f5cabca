package domain

import (
	"errors"
	"fmt"
)

// RejectReason identifies an expected, user-facing rejection. Rejections
// are always recorded in the audit log and returned to the caller
// verbatim; they are never retried automatically.
type RejectReason string

const (
	// Eligibility rejections, in evaluation order.
	ReasonPollNotActive          RejectReason = "PollNotActive"
	ReasonAuthenticationRequired RejectReason = "AuthenticationRequired"
	ReasonAlreadyVoted           RejectReason = "AlreadyVoted"
	ReasonVoteLimitReached       RejectReason = "VoteLimitReached"

	// Ballot validation rejections.
	ReasonUnknownOption            RejectReason = "UnknownOption"
	ReasonDuplicateSelection       RejectReason = "DuplicateSelection"
	ReasonSelectionCountOutOfRange RejectReason = "SelectionCountOutOfRange"

	// Results visibility rejections.
	ReasonResultsEmbargoed RejectReason = "ResultsEmbargoed"
	ReasonPollStillActive  RejectReason = "PollStillActive"
	ReasonPollNotStarted   RejectReason = "PollNotStarted"
)

// RejectionError is the typed error carrying a RejectReason across the
// service boundary.
type RejectionError struct {
	Reason RejectReason
	Detail string
}

func (e *RejectionError) Error() string {
	if e.Detail != "" {
		return fmt.Sprintf("%s: %s", e.Reason, e.Detail)
	}
	return string(e.Reason)
}

// Reject builds a RejectionError for a reason.
func Reject(reason RejectReason) *RejectionError {
	return &RejectionError{Reason: reason}
}

// Rejectf builds a RejectionError with a formatted detail message.
func Rejectf(reason RejectReason, format string, args ...interface{}) *RejectionError {
	return &RejectionError{Reason: reason, Detail: fmt.Sprintf(format, args...)}
}

// AsRejection unwraps err into a RejectionError when it is one.
func AsRejection(err error) (*RejectionError, bool) {
	var rej *RejectionError
	if errors.As(err, &rej) {
		return rej, true
	}
	return nil, false
}

// ErrVersionConflict signals an optimistic-concurrency failure on a poll
// edit: the supplied version no longer matches the stored one. The caller
// re-reads current state and retries; nothing is logged as an error.
var ErrVersionConflict = errors.New("poll version conflict")

// ErrPollNotFound signals an unknown poll ID.
var ErrPollNotFound = errors.New("poll not found")

// ErrVoteNotFound signals an unknown vote ID or receipt.
var ErrVoteNotFound = errors.New("vote not found")

// ErrForbidden signals an authenticated caller without sufficient rights.
var ErrForbidden = errors.New("forbidden")
