package poller

import (
	"errors"
	"fmt"
)

// Reason classifies a terminal poll outcome so callers can decide whether a
// fresh invocation can help.
type Reason string

const (
	// ReasonUserNotFound: the account does not exist; a caller error, never
	// retried.
	ReasonUserNotFound Reason = "UserNotFound"
	// ReasonServiceError: transport or HTTP failure against the ledger. Fatal
	// for this invocation; callers may re-invoke manually.
	ReasonServiceError Reason = "ServiceError"
	// ReasonActionNotSuccessful: a confirmed event exists but its action
	// failed on the ledger. A failed on-chain action is not retried away.
	ReasonActionNotSuccessful Reason = "ActionNotSuccessful"
	// ReasonMalformedTransfer: the confirmed event has an unexpected shape.
	ReasonMalformedTransfer Reason = "MalformedTransfer"
	// ReasonExhausted: no qualifying event within the attempt budget; the
	// whole poll may be retried with a fresh window.
	ReasonExhausted Reason = "Exhausted"
)

// Failure is a terminal poll outcome other than a credit.
type Failure struct {
	Reason Reason
	Err    error
}

func (f *Failure) Error() string {
	if f.Err != nil {
		return fmt.Sprintf("%s: %v", f.Reason, f.Err)
	}
	return string(f.Reason)
}

func (f *Failure) Unwrap() error { return f.Err }

func failure(reason Reason, err error) *Failure {
	return &Failure{Reason: reason, Err: err}
}

// ReasonOf extracts the reason code from a poll error, or "" when the error
// is not a poll failure (e.g. context cancellation).
func ReasonOf(err error) Reason {
	var f *Failure
	if errors.As(err, &f) {
		return f.Reason
	}
	return ""
}
