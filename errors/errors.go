package errors

import "fmt"

var (
	// Validation failures. The connection stays open, the caller gets an error event.
	ErrEmptyMessage   = fmt.Errorf("message is empty")
	ErrMessageTooLong = fmt.Errorf("message exceeds maximum length")
	ErrSelfRoom       = fmt.Errorf("a user cannot open a room with themself")

	ErrReceiverNotFound = fmt.Errorf("receiver not found")
	ErrUserNotFound     = fmt.Errorf("user not found")

	// Auth failures. The connection is refused before any event is accepted.
	ErrMissingToken       = fmt.Errorf("no token provided")
	ErrInvalidToken       = fmt.Errorf("invalid token")
	ErrInvalidCredentials = fmt.Errorf("invalid credentials")
	ErrInvalidPassword    = fmt.Errorf("password does not meet complexity requirements")
	ErrUserAlreadyExists  = fmt.Errorf("user already exists")
	ErrTokenGeneration    = fmt.Errorf("token generation failed")

	ErrWorkerPanic = fmt.Errorf("worker panic")
)
