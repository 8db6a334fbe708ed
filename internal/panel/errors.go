package panel

import (
	"errors"
	"fmt"
	"maps"
	"slices"
	"strings"
)

// Kind identifies a failure reported to the console.
type Kind string

const (
	KindAlreadyExists     Kind = "ALREADY_EXISTS"
	KindPermissionDenied  Kind = "PERMISSION_DENIED"
	KindNoAccountSelected Kind = "NO_ACCOUNT_SELECTED"
	KindTypeError         Kind = "TYPE_ERROR"
	KindStoreError        Kind = "STORE_ERROR"

	// Password policy
	KindEmptyPassword    Kind = "EMPTY_PASSWORD"
	KindPasswordMismatch Kind = "PW_MISMATCH"
	KindPasswordTooShort Kind = "PW_LESS_THAN_MIN_LENGTH"
	KindPasswordTooLong  Kind = "PW_GREATER_THAN_MAX_LENGTH"
	KindIncorrectOldPass Kind = "INCORRECT_OLDPW"

	KindInvalidProfile     Kind = "INVALID_PROFILE_TYPE"
	KindInvalidCredentials Kind = "INVALID_CREDENTIALS"
	KindAccountDisabled    Kind = "ACCOUNT_DISABLED"
	KindInvalidEmail       Kind = "INVALID_MAIL"
)

// Sentinels for errors.Is. Matching compares kinds only.
var (
	ErrAlreadyExists     = &Error{Kind: KindAlreadyExists}
	ErrPermissionDenied  = &Error{Kind: KindPermissionDenied}
	ErrNoAccountSelected = &Error{Kind: KindNoAccountSelected}
	ErrTypeError         = &Error{Kind: KindTypeError}
	ErrStore             = &Error{Kind: KindStoreError}
)

// Error is a failure with an explicit kind and an optional store detail.
type Error struct {
	Kind   Kind
	Detail string
	Err    error
}

// NewError returns an error of the given kind.
func NewError(kind Kind, detail string) *Error {
	return &Error{Kind: kind, Detail: detail}
}

// StoreError wraps a backend failure. The detail is the backend's own
// description of the problem.
func StoreError(detail string, err error) *Error {
	return &Error{Kind: KindStoreError, Detail: detail, Err: err}
}

func (e *Error) Error() string {
	if e.Detail == "" {
		return string(e.Kind)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Detail)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is matches any *Error of the same kind.
func (e *Error) Is(target error) bool {
	var t *Error
	if !errors.As(target, &t) {
		return false
	}
	return t.Kind == e.Kind
}

// BatchError collects per-item failures of a batch operation. Items absent
// from Failures succeeded.
type BatchError struct {
	Failures map[string]string
}

func (e *BatchError) Error() string {
	keys := slices.Sorted(maps.Keys(e.Failures))
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, k+": "+e.Failures[k])
	}
	return fmt.Sprintf("%s: %d item(s) failed: %s", KindStoreError, len(keys), strings.Join(parts, "; "))
}

// Is reports a batch failure as a store error.
func (e *BatchError) Is(target error) bool {
	var t *Error
	return errors.As(target, &t) && t.Kind == KindStoreError
}

// KindOf returns the kind carried by err, or "" for nil and foreign errors.
func KindOf(err error) Kind {
	if err == nil {
		return ""
	}

	var pe *Error
	if errors.As(err, &pe) {
		return pe.Kind
	}

	var be *BatchError
	if errors.As(err, &be) {
		return KindStoreError
	}

	return ""
}
