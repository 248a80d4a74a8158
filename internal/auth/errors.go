package auth

import "errors"

var (
	// ErrInvalidToken is returned when the provided token is invalid
	ErrInvalidToken = errors.New("invalid token")
	// ErrInvalidSubject is returned when a valid token carries neither email nor subject
	ErrInvalidSubject = errors.New("invalid subject claim")
	// ErrForbidden is returned when the caller lacks the admin role
	ErrForbidden = errors.New("admin access required")
	// ErrNoCaller is returned when no authenticated caller is stored in the request context
	ErrNoCaller = errors.New("no authenticated caller found in request context")
)
