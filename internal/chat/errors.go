package chat

import "errors"

var (
	// ErrUnauthenticated means the operation needs a bound connection and
	// none was found for the connection id.
	ErrUnauthenticated = errors.New("connection is not authenticated")

	// ErrForbidden means the user is not a durable participant of the
	// target room. Deliberately vague so room existence is not leaked.
	ErrForbidden = errors.New("access denied")

	// ErrNotFound covers absent rooms, messages and users.
	ErrNotFound = errors.New("not found")

	// ErrStoreUnavailable marks a transient store failure (timeout or
	// connectivity). The operation failed, nothing was changed in the
	// registry, and the caller may simply try again.
	ErrStoreUnavailable = errors.New("store unavailable")

	ErrInvalidEvent = errors.New("invalid event")
)
