package auth

import (
	"errors"
	"fmt"

	"github.com/Kyz7/authserver/internal/utils"
)

var (
	// ErrUnauthorized is returned for every credential failure.
	ErrUnauthorized = errors.New("unauthorized")
	ErrValidation   = errors.New("validation failed")
)

// ErrPasswordTooLong is a validation failure: the hasher cannot take the password.
var ErrPasswordTooLong = fmt.Errorf("%w: password must be at most %d bytes", ErrValidation, utils.MaxPasswordBytes)
