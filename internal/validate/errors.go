package validate

import "errors"

var (
	// ErrInvalidGroupName is returned when a group name fails UTF-8 or
	// length validation.
	ErrInvalidGroupName = errors.New("invalid group name")

	// ErrInvalidAccessCode is returned when an access code is empty.
	ErrInvalidAccessCode = errors.New("invalid access code")
)
