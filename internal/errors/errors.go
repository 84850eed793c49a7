package errors

import (
	"errors"
)

// Common error kinds shared by the moderation packages.
var (
	ErrInvalidInput   = errors.New("invalid input")
	ErrNotFound       = errors.New("not found")
	ErrNoPermission   = errors.New("no permission")
	ErrContentBlocked = errors.New("content blocked by ai safety filters")
)
