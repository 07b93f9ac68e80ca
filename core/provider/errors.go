package provider

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound means the referenced record does not exist on the backend.
	ErrNotFound = errors.New("not found")
	// ErrAlreadyExists means a create collided with an existing record.
	ErrAlreadyExists = errors.New("already exists")
	// ErrTransport means the backend could not be reached or rejected the call.
	ErrTransport = errors.New("transport failure")
	// ErrInvalidRecord means a record failed validation at the provider boundary.
	ErrInvalidRecord = errors.New("invalid record")
)

// NotFound wraps ErrNotFound with the kind and key that were looked up.
func NotFound(kind, key string) error {
	return fmt.Errorf("%s %q: %w", kind, key, ErrNotFound)
}

// AlreadyExists wraps ErrAlreadyExists with the kind and key that collided.
func AlreadyExists(kind, key string) error {
	return fmt.Errorf("%s %q: %w", kind, key, ErrAlreadyExists)
}

// Transport wraps a backend error so callers can match ErrTransport while keeping the cause.
func Transport(op string, err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w: %w", op, ErrTransport, err)
}

// Invalid wraps a validation error as ErrInvalidRecord.
func Invalid(key string, err error) error {
	return fmt.Errorf("record %q: %w: %v", key, ErrInvalidRecord, err)
}

// IsNotFound reports whether err is a lookup miss.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}
