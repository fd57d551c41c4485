package model

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrInvalid   = errors.New("invalid input")
	ErrNotFound  = errors.New("not found")
	ErrForbidden = errors.New("forbidden")
	ErrConflict  = errors.New("already exists")
)

// ValidationError is a user-facing input problem. Problems itemizes every rule
// that failed, e.g. each unmet password requirement.
type ValidationError struct {
	Field    string
	Message  string
	Problems []string
}

func (e *ValidationError) Error() string {
	if len(e.Problems) == 0 {
		return e.Message
	}
	return e.Message + ": " + strings.Join(e.Problems, "; ")
}

func (e *ValidationError) Is(target error) bool {
	return target == ErrInvalid
}

func Invalid(field, message string, problems ...string) *ValidationError {
	return &ValidationError{Field: field, Message: message, Problems: problems}
}

// NotFoundError reports a lookup by id, email or name that matched nothing.
type NotFoundError struct {
	Entity string
	Key    any
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s %v not found", e.Entity, e.Key)
}

func (e *NotFoundError) Is(target error) bool {
	return target == ErrNotFound
}

func NotFound(entity string, key any) *NotFoundError {
	return &NotFoundError{Entity: entity, Key: key}
}

// AuthorizationError reports a failed role or ownership check.
type AuthorizationError struct {
	Action string
	Reason string
}

func (e *AuthorizationError) Error() string {
	return fmt.Sprintf("not allowed to %s: %s", e.Action, e.Reason)
}

func (e *AuthorizationError) Is(target error) bool {
	return target == ErrForbidden
}

func Forbidden(action, reason string) *AuthorizationError {
	return &AuthorizationError{Action: action, Reason: reason}
}
