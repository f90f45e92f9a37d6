package event

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"gorm.io/gorm"
)

var (
	// ErrNotFound covers both a missing event and one owned by someone else.
	ErrNotFound = errors.New("event not found")
	// ErrConflict is returned when a conditional write loses to a concurrent one.
	ErrConflict = errors.New("event was modified concurrently")
)

type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

type ValidationError struct {
	Fields []FieldError `json:"fields"`
}

func (e *ValidationError) Error() string {
	msgs := make([]string, 0, len(e.Fields))
	for _, f := range e.Fields {
		msgs = append(msgs, f.Field+": "+f.Message)
	}
	return "validation failed: " + strings.Join(msgs, "; ")
}

func (e *ValidationError) Add(field, message string) {
	e.Fields = append(e.Fields, FieldError{Field: field, Message: message})
}

// Err returns nil when no field failed, so callers can `return v.Err()`.
func (e *ValidationError) Err() error {
	if len(e.Fields) == 0 {
		return nil
	}
	return e
}

func invalid(field, message string) error {
	return &ValidationError{Fields: []FieldError{{Field: field, Message: message}}}
}

// StoreError marks a transient persistence failure. Callers may retry.
type StoreError struct {
	Op  string
	Err error
}

func (e *StoreError) Error() string {
	return fmt.Sprintf("store %s: %v", e.Op, e.Err)
}

func (e *StoreError) Unwrap() error {
	return e.Err
}

// storeErr classifies an error coming out of gorm. Domain errors pass
// through untouched.
func storeErr(op string, err error) error {
	if err == nil {
		return nil
	}
	var verr *ValidationError
	switch {
	case errors.Is(err, ErrNotFound), errors.Is(err, ErrConflict), errors.As(err, &verr):
		return err
	case errors.Is(err, gorm.ErrRecordNotFound):
		return ErrNotFound
	}
	var serr *StoreError
	if errors.As(err, &serr) {
		return err
	}
	return &StoreError{Op: op, Err: err}
}

// IsTransient reports whether err is worth retrying.
func IsTransient(err error) bool {
	var serr *StoreError
	return errors.As(err, &serr) || errors.Is(err, context.DeadlineExceeded)
}
