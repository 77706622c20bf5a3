package postgres

import (
	"fmt"

	"github.com/ThureinS/bookreview/pkg/database"
	apperrors "github.com/ThureinS/bookreview/pkg/errors"
)

// storeError wraps a driver error with the operation name. Connection
// failures become transient unavailable errors.
func storeError(op string, err error) error {
	wrapped := fmt.Errorf("%s: %w", op, err)
	if database.IsConnectionError(err) {
		return apperrors.Unavailable(wrapped)
	}
	return wrapped
}
