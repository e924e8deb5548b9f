package storage

import "errors"

// Common storage errors
var (
	// ErrBatchNotFound indicates that sync batch was not found
	ErrBatchNotFound = errors.New("batch not found")

	// ErrConflictNotFound indicates that conflict record was not found
	ErrConflictNotFound = errors.New("conflict not found")

	// ErrDeviceNotFound indicates that device was not found in storage
	ErrDeviceNotFound = errors.New("device not found")

	// ErrDeviceAlreadyExists indicates that device with this id is already registered
	ErrDeviceAlreadyExists = errors.New("device already exists")

	// ErrUploadNotFound indicates that media upload session was not found
	ErrUploadNotFound = errors.New("upload not found")
)

// IsNotFound reports whether err is one of the not-found storage errors.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrBatchNotFound) ||
		errors.Is(err, ErrConflictNotFound) ||
		errors.Is(err, ErrDeviceNotFound) ||
		errors.Is(err, ErrUploadNotFound)
}
