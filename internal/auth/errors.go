package auth

import "errors"

var (
	// ErrMissingToken means the request carried no bearer token at all.
	ErrMissingToken = errors.New("auth: missing token")
	// ErrInvalidToken covers malformed, mis-signed, and expired tokens.
	ErrInvalidToken = errors.New("auth: invalid token")
)
