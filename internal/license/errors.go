package license

import "errors"

var (
	ErrInvalidInput = errors.New("invalid input")
	ErrNotFound     = errors.New("project not found")
	ErrConflict     = errors.New("project name or identifier already exists")
)
