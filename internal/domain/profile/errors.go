package profile

import (
	"errors"

	"github.com/okian/arcadehub/internal/domain/model"
)

var (
	ErrUnauthenticated = model.ErrUnauthenticated
	ErrRemoteFailure   = model.ErrRemoteFailure
	// ErrInvalidProfile is returned for a blank or over-long display name.
	ErrInvalidProfile = errors.New("invalid profile")
)
