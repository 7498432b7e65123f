package domain

import (
	"fmt"

	"github.com/cockroachdb/errors"
)

var (
	ErrSerializationFailure = errors.New("serialization failure")
	ErrNotFound             = errors.New("not found")
	ErrConflict             = errors.New("conflict")
	ErrValidation           = errors.New("validation failed")
	ErrForbidden            = errors.New("forbidden")
	ErrIntegrity            = errors.New("integrity violation")
)

// ValidationError is a user-correctable input error naming the offending field.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Reason
	}
	return e.Field + ": " + e.Reason
}

func (e *ValidationError) Is(target error) bool {
	return target == ErrValidation
}

func Invalid(field, format string, args ...interface{}) error {
	return &ValidationError{Field: field, Reason: fmt.Sprintf(format, args...)}
}

func Conflictf(format string, args ...interface{}) error {
	return errors.Mark(errors.Newf(format, args...), ErrConflict)
}

func NotFoundf(format string, args ...interface{}) error {
	return errors.Mark(errors.Newf(format, args...), ErrNotFound)
}

func Forbiddenf(format string, args ...interface{}) error {
	return errors.Mark(errors.Newf(format, args...), ErrForbidden)
}

func Integrityf(format string, args ...interface{}) error {
	return errors.Mark(errors.Newf(format, args...), ErrIntegrity)
}

type QRReason string

const (
	QRInvalid     QRReason = "invalid"
	QRNotFound    QRReason = "not_found"
	QRWrongStatus QRReason = "wrong_status"
	QRExpired     QRReason = "expired"
)

// QRRejection explains why a presented ticket token was refused.
type QRRejection struct {
	Reason QRReason
	Detail string
}

func (e *QRRejection) Error() string {
	if e.Detail == "" {
		return "ticket rejected: " + string(e.Reason)
	}
	return "ticket rejected: " + string(e.Reason) + ": " + e.Detail
}

func (e *QRRejection) Is(target error) bool {
	switch e.Reason {
	case QRNotFound:
		return target == ErrNotFound
	case QRWrongStatus:
		return target == ErrConflict
	default:
		return target == ErrValidation
	}
}
