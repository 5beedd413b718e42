package auth

import "errors"

var (
	ErrNotFound           = errors.New("admin not found")
	ErrConflict           = errors.New("username already exists")
	ErrInvalidInput       = errors.New("invalid input")
	ErrUnauthorized       = errors.New("authentication required")
	ErrForbidden          = errors.New("insufficient role")
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrInvalidToken       = errors.New("invalid token")
)
