package auth

import "errors"

var (
	// ErrInvalidToken is returned when a token fails parsing, signature
	// verification, or no longer matches the user's password version.
	ErrInvalidToken = errors.New("invalid token")

	// ErrWrongPassword is returned when login credentials do not match.
	ErrWrongPassword = errors.New("wrong email or password")

	// ErrEmptyPassword is returned when hashing an empty password.
	ErrEmptyPassword = errors.New("password must not be empty")

	// ErrInactiveUser is returned when an inactive user authenticates.
	ErrInactiveUser = errors.New("user is inactive")
)
