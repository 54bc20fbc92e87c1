package auth

import (
	"errors"
	"fmt"

	"github.com/okian/arcadehub/internal/domain/model"
)

// Sentinel kinds for token errors. Both wrap model.ErrUnauthenticated.
var (
	ErrMissingToken = fmt.Errorf("missing bearer token: %w", model.ErrUnauthenticated)
	ErrInvalidToken = fmt.Errorf("invalid token: %w", model.ErrUnauthenticated)
	ErrEmptySubject = errors.New("empty subject")
)
