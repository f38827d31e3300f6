package domain

import "errors"

var (
	// ErrMalformedMessage marks a provider message missing id, threadId or
	// payload headers. Callers skip the message and keep going.
	ErrMalformedMessage = errors.New("malformed message")

	// ErrTransientRemote covers auth expiry, rate limiting and server side
	// failures. The affected item is retried on the next scheduled pass.
	ErrTransientRemote = errors.New("transient remote error")

	// ErrPermission is returned when the provider refuses a mutation.
	ErrPermission = errors.New("permission denied by mail provider")
)
