package types

import "fmt"

// NotFoundError indicates that a referenced entity does not exist
type NotFoundError struct {
	Entity string
	Key    string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s not found: %s", e.Entity, e.Key)
}

// NewNotFound builds a NotFoundError for an integer-keyed entity
func NewNotFound(entity string, id int64) *NotFoundError {
	return &NotFoundError{Entity: entity, Key: fmt.Sprintf("%d", id)}
}

// ValidationError indicates an empty or malformed request field
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation error: %s - %s", e.Field, e.Message)
}

// ConflictError indicates a write that would violate a uniqueness rule.
// Nothing is written when it is returned.
type ConflictError struct {
	Message string
}

func (e *ConflictError) Error() string {
	return e.Message
}
