// Package apperr defines the error kinds surfaced by the inspection core.
package apperr

import (
	"errors"
	"fmt"
	"strings"
)

// ValidationError reports malformed input. It is never retried.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return "validation failed: " + e.Message
	}
	return fmt.Sprintf("validation failed: %s: %s", e.Field, e.Message)
}

// Validation creates a ValidationError for field.
func Validation(field, format string, args ...any) error {
	return &ValidationError{Field: field, Message: fmt.Sprintf(format, args...)}
}

// NotFoundError reports an operation on a record that no longer exists.
type NotFoundError struct {
	Resource string
	ID       any
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s %v not found", e.Resource, e.ID)
}

// NotFound creates a NotFoundError.
func NotFound(resource string, id any) error {
	return &NotFoundError{Resource: resource, ID: id}
}

// ForbiddenError reports an operation the caller's role does not allow.
type ForbiddenError struct {
	Action string
}

func (e *ForbiddenError) Error() string {
	return "forbidden: " + e.Action
}

// Forbidden creates a ForbiddenError.
func Forbidden(action string) error {
	return &ForbiddenError{Action: action}
}

// StorageError wraps a failure of the record store or the file store.
type StorageError struct {
	Op  string
	Err error
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("storage: %s: %v", e.Op, e.Err)
}

func (e *StorageError) Unwrap() error { return e.Err }

// Storage wraps err as a StorageError. A nil err stays nil.
func Storage(op string, err error) error {
	if err == nil {
		return nil
	}
	var se *StorageError
	if errors.As(err, &se) {
		return err
	}
	return &StorageError{Op: op, Err: err}
}

// RejectedFile is one upload refused by the upload policy.
type RejectedFile struct {
	Name   string `json:"name"`
	Reason string `json:"reason"`
}

// PartialAttachmentFailure lists the uploads that were refused while the
// rest of the same request was saved.
type PartialAttachmentFailure struct {
	Rejected []RejectedFile
}

func (e *PartialAttachmentFailure) Error() string {
	parts := make([]string, 0, len(e.Rejected))
	for _, r := range e.Rejected {
		parts = append(parts, r.Name+" ("+r.Reason+")")
	}
	return "some attachments were rejected: " + strings.Join(parts, ", ")
}

// IsValidation reports whether err is a ValidationError.
func IsValidation(err error) bool {
	var target *ValidationError
	return errors.As(err, &target)
}

// IsNotFound reports whether err is a NotFoundError.
func IsNotFound(err error) bool {
	var target *NotFoundError
	return errors.As(err, &target)
}

// IsForbidden reports whether err is a ForbiddenError.
func IsForbidden(err error) bool {
	var target *ForbiddenError
	return errors.As(err, &target)
}

// IsStorage reports whether err is a StorageError.
func IsStorage(err error) bool {
	var target *StorageError
	return errors.As(err, &target)
}

// AsPartial extracts a PartialAttachmentFailure from err.
func AsPartial(err error) (*PartialAttachmentFailure, bool) {
	var target *PartialAttachmentFailure
	ok := errors.As(err, &target)
	return target, ok
}
