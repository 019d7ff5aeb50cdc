package ir

import (
	"errors"
	"fmt"
)

// Code classifies ledger errors. Codes are part of the wire contract: the
// relay and CLI surface them verbatim.
type Code string

const (
	CodeNotFound        Code = "NotFound"
	CodeAlreadyExists   Code = "AlreadyExists"
	CodeInvalidAmount   Code = "InvalidAmount"
	CodeInvalidState    Code = "InvalidState"
	CodeInvalidArgument Code = "InvalidArgument"
	CodeChainInvalid    Code = "ChainInvalid"
	CodeIntegrityFault  Code = "IntegrityFault"
)

// Error is a typed ledger error.
type Error struct {
	Code    Code
	Message string
	Key     string // record id, when the error concerns one record
	TxID    string // transaction id, when known
	Err     error  // underlying cause (optional)
}

// Sentinels for errors.Is. Matching compares Code only.
var (
	ErrNotFound        = &Error{Code: CodeNotFound}
	ErrAlreadyExists   = &Error{Code: CodeAlreadyExists}
	ErrInvalidAmount   = &Error{Code: CodeInvalidAmount}
	ErrInvalidState    = &Error{Code: CodeInvalidState}
	ErrInvalidArgument = &Error{Code: CodeInvalidArgument}
	ErrChainInvalid    = &Error{Code: CodeChainInvalid}
	ErrIntegrityFault  = &Error{Code: CodeIntegrityFault}
)

func (e *Error) Error() string {
	msg := string(e.Code)
	if e.Key != "" {
		msg += fmt.Sprintf(" [%s]", e.Key)
	}
	if e.Message != "" {
		msg += ": " + e.Message
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is reports whether target is an *Error with the same Code.
func (e *Error) Is(target error) bool {
	var t *Error
	if !errors.As(target, &t) {
		return false
	}
	return t.Code == e.Code
}

// Errorf builds an Error for key with a formatted message.
func Errorf(code Code, key, format string, args ...any) *Error {
	return &Error{Code: code, Key: key, Message: fmt.Sprintf(format, args...)}
}

// NotFound reports that key has no live record (or no history).
func NotFound(key string) *Error {
	return &Error{Code: CodeNotFound, Key: key, Message: "record does not exist"}
}

// AlreadyExists reports a Create on a live key.
func AlreadyExists(key string) *Error {
	return &Error{Code: CodeAlreadyExists, Key: key, Message: "record already exists"}
}

// IntegrityFault wraps an invariant violation that correct operation never produces.
func IntegrityFault(key string, err error) *Error {
	return &Error{Code: CodeIntegrityFault, Key: key, Message: "integrity fault", Err: err}
}

// ChainInvalidError converts a failed audit into an error. It returns nil
// when the result is valid.
func ChainInvalidError(result AuditResult) error {
	if result.Valid {
		return nil
	}
	e := &Error{Code: CodeChainInvalid, Key: result.ID, Message: "hash chain does not verify"}
	if d := result.Divergence; d != nil {
		e.TxID = d.TxID
		e.Message = fmt.Sprintf("entry %d: %s mismatch", d.Index, d.Field)
	}
	return e
}

// CodeOf extracts the Code from err. It reports "" for nil and for errors
// outside the taxonomy (storage failures, cancelled contexts).
func CodeOf(err error) Code {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return ""
}
