package domain

import "errors"

var (
	// Common domain errors
	ErrNotFound         = errors.New("entity not found")
	ErrAlreadyExists    = errors.New("entity already exists")
	ErrInvalidArgument  = errors.New("invalid argument")
	ErrConflict         = errors.New("conditional write conflict")
	ErrStoreUnavailable = errors.New("record store unavailable")
)
