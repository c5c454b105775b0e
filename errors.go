package labara

import (
	"github.com/labara-io/labara-go/internal/domain"
)

// IsConfigurationError reports whether err stems from a malformed or
// unfetchable configuration payload.
func IsConfigurationError(err error) bool {
	return domain.IsConfigurationError(err)
}

// IsNotFound reports whether err signals a missing flag or configuration.
func IsNotFound(err error) bool {
	return domain.IsNotFound(err)
}

// IsTypeMismatch reports whether err signals a typed getter applied to a
// flag of a different declared type.
func IsTypeMismatch(err error) bool {
	return domain.IsTypeMismatch(err)
}
