package apperror

import (
	"errors"
	"fmt"
)

// ErrNotFound is returned when a resource is not found
type ErrNotFound struct {
	Resource string
	ID       string
}

func (e *ErrNotFound) Error() string {
	return fmt.Sprintf("%s not found: %s", e.Resource, e.ID)
}

// ErrConflict is returned when a write collides with a uniqueness rule
type ErrConflict struct {
	Message    string
	Constraint string
}

func (e *ErrConflict) Error() string {
	if e.Message != "" {
		return e.Message
	}
	if e.Constraint != "" {
		return "conflict on " + e.Constraint
	}
	return "conflict"
}

// ErrValidation is returned when validation fails
type ErrValidation struct {
	Message string
	Fields  map[string]string
}

func (e *ErrValidation) Error() string {
	if e.Message != "" {
		return e.Message
	}
	return "validation failed"
}

// ErrInvalidStateTransition is returned when a sync job transition is not allowed
type ErrInvalidStateTransition struct {
	From string
	To   string
}

func (e *ErrInvalidStateTransition) Error() string {
	return fmt.Sprintf("invalid state transition from %s to %s", e.From, e.To)
}

// ErrJobAlreadyRunning is returned when another job of the same type holds the store
var ErrJobAlreadyRunning = errors.New("a sync job of this type is already running for the store")

// ErrCounterOverflow is returned when more items are recorded than the job declared
var ErrCounterOverflow = errors.New("processed items would exceed total items")

func IsNotFound(err error) bool {
	var e *ErrNotFound
	return errors.As(err, &e)
}

func IsConflict(err error) bool {
	var e *ErrConflict
	return errors.As(err, &e)
}

func IsValidation(err error) bool {
	var e *ErrValidation
	return errors.As(err, &e)
}

func IsInvalidStateTransition(err error) bool {
	var e *ErrInvalidStateTransition
	return errors.As(err, &e)
}
