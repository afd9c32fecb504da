package users

import (
	"errors"
	"fmt"

	"github.com/include-portal/users-api/internal/models"
)

var (
	// ErrNotFound is returned when no live record exists for a subject.
	ErrNotFound = errors.New("user not found")
	// ErrAlreadyExists is returned by create when the subject already has a record.
	ErrAlreadyExists = errors.New("user already exists")
	// ErrConcurrentUpdate is a store failure: the record changed between read and write.
	ErrConcurrentUpdate = errors.New("user was modified concurrently")
)

// Kind classifies an error returned by the service.
type Kind string

const (
	KindValidation    Kind = "validation"
	KindNotFound      Kind = "not_found"
	KindAlreadyExists Kind = "already_exists"
	KindStore         Kind = "store"
)

// KindOf maps err to exactly one Kind. It returns "" for a nil error.
func KindOf(err error) Kind {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrNotFound):
		return KindNotFound
	case errors.Is(err, ErrAlreadyExists):
		return KindAlreadyExists
	case errors.Is(err, models.ErrMalformedDocument):
		return KindValidation
	}
	if fe, ok := models.AsFieldError(err); ok {
		if fe.Code == models.CodeDuplicateUniqueKey {
			return KindAlreadyExists
		}
		return KindValidation
	}
	return KindStore
}

func alreadyExists() error {
	return fmt.Errorf("%w: %w", ErrAlreadyExists, models.DuplicateUniqueKey("keycloak_id"))
}
