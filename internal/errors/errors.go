// internal/errors/errors.go
package appErrors

import (
	"errors"
	"fmt"
)

type Kind string

const (
	KindValidation       Kind = "validation"
	KindConflict         Kind = "conflict"
	KindNotFound         Kind = "not_found"
	KindTransportFailure Kind = "transport_failure"
	KindInternal         Kind = "internal"
)

// Error carries a kind and a human readable reason for the caller.
type Error struct {
	Kind   Kind
	Reason string
	Err    error
}

func (e *Error) Error() string {
	if e == nil {
		return ""
	}
	if e.Err == nil {
		return e.Reason
	}
	return fmt.Sprintf("%s: %v", e.Reason, e.Err)
}

func (e *Error) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

func New(kind Kind, reason string, err error) *Error {
	return &Error{Kind: kind, Reason: reason, Err: err}
}

// KindOf returns the kind of the first *Error in err's chain, or KindInternal.
func KindOf(err error) Kind {
	var appErr *Error
	if errors.As(err, &appErr) {
		return appErr.Kind
	}
	return KindInternal
}

func IsKind(err error, kind Kind) bool {
	return err != nil && KindOf(err) == kind
}

func NewValidation(format string, args ...any) error {
	return New(KindValidation, fmt.Sprintf(format, args...), nil)
}

func NewConflict(format string, args ...any) error {
	return New(KindConflict, fmt.Sprintf(format, args...), nil)
}

func NewCampaignNotFound(id int) error {
	return New(KindNotFound, fmt.Sprintf("campaign with ID %d not found", id), nil)
}

func NewRecipientNotFound(id int) error {
	return New(KindNotFound, fmt.Sprintf("recipient with ID %d not found", id), nil)
}

func NewTransportFailure(channel string, err error) error {
	return New(KindTransportFailure, channel+" delivery failed", err)
}

func NewInternal(reason string, err error) error {
	return New(KindInternal, reason, err)
}
