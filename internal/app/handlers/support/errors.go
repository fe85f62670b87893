package support

import (
	"errors"

	"github.com/google/uuid"
)

// ErrForbidden is returned when the caller is not a participant of the
// resource, or not the author of the message being changed.
var ErrForbidden = errors.New("handlers: caller is not allowed to perform this action")

// NewID returns a fresh entity id.
func NewID() string {
	return uuid.NewString()
}
