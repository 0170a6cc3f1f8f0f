package repository

import "errors"

var (
	// ErrNotFound record not found
	ErrNotFound = errors.New("record not found")

	// ErrDuplicate duplicate record
	ErrDuplicate = errors.New("duplicate record")

	// ErrInvalidData invalid data passed to a repository
	ErrInvalidData = errors.New("invalid data")
)
