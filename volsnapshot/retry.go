package volsnapshot

import (
	"errors"
	"strings"
)

// retryableCode classifies a platform error code as retryable (spec.md
// §4.4: "static set of codes (insufficient storage, concurrent-op
// conflict, timeout, transient RPC/lock errors)").
type retryableCode int

const (
	codeInsufficientStorage retryableCode = iota
	codeConcurrentOpConflict
	codeTimeout
	codeTransientRPC
)

// retryableCodes is checked first; platform drivers populate
// Error.Code from the VSS HRESULT / COM error when they can. Values
// below mirror the VSS writer error domain's well-known retryable
// HRESULTs (VSS_E_SNAPSHOT_SET_IN_PROGRESS, VSS_E_WRITER_INFRASTRUCTURE,
// VSS_E_INSUFFICIENT_STORAGE, and the generic RPC-unavailable/timeout
// codes), renumbered here as the small driver-neutral enum above.
var retryableHRESULTs = map[uint32]retryableCode{
	0x8004230F: codeConcurrentOpConflict, // VSS_E_SNAPSHOT_SET_IN_PROGRESS
	0x8004230C: codeTransientRPC,         // VSS_E_WRITER_INFRASTRUCTURE
	0x80042306: codeInsufficientStorage,  // VSS_E_INSUFFICIENT_STORAGE
	0x800706BA: codeTimeout,              // RPC_S_SERVER_UNAVAILABLE
}

// retryablePhrases is the fallback used when a driver can only surface
// an error string (spec.md §4.4: "fall back to a small English-phrase
// pattern list"). Matching is case-insensitive substring, deliberately
// loose since this path exists only because the structured code was
// unavailable.
var retryablePhrases = []string{
	"insufficient storage",
	"already in progress",
	"timed out",
	"timeout",
	"the RPC server is unavailable",
	"resource busy",
}

// nonRetryablePhrases short-circuits the fallback for errors that are
// unambiguously permanent even though they also contain a substring
// that might otherwise look transient.
var nonRetryablePhrases = []string{
	"access is denied",
	"invalid volume",
	"not supported",
}

// IsRetryable reports whether err should be retried per spec.md §4.4.
// Driver implementations should prefer wrapping errors in *DriverError
// with Code set; IsRetryable falls back to phrase matching only when
// Code is absent.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}

	var de *DriverError
	if errors.As(err, &de) && de.HasCode {
		_, retryable := retryableHRESULTs[de.Code]
		return retryable
	}

	msg := strings.ToLower(err.Error())

	for _, p := range nonRetryablePhrases {
		if strings.Contains(msg, strings.ToLower(p)) {
			return false
		}
	}

	for _, p := range retryablePhrases {
		if strings.Contains(msg, strings.ToLower(p)) {
			return true
		}
	}

	return false
}

// DriverError wraps a platform snapshot error with an optional
// structured code (spec.md §4.4 retry classification).
type DriverError struct {
	Op      string
	Code    uint32
	HasCode bool
	Err     error
}

func (e *DriverError) Error() string {
	return e.Op + ": " + e.Err.Error()
}

func (e *DriverError) Unwrap() error { return e.Err }

// NewDriverError wraps err from operation op with no structured code,
// forcing callers onto the phrase-matching fallback.
func NewDriverError(op string, err error) *DriverError {
	return &DriverError{Op: op, Err: err}
}

// NewDriverErrorCode wraps err with a structured HRESULT-style code.
func NewDriverErrorCode(op string, code uint32, err error) *DriverError {
	return &DriverError{Op: op, Code: code, HasCode: true, Err: err}
}
