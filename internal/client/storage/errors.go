package storage

import "errors"

// Common client storage errors
var (
	// ErrAuthNotFound indicates that no authentication data exists
	ErrAuthNotFound = errors.New("authentication data not found")

	// ErrEntityNotFound indicates that the local entity does not exist
	ErrEntityNotFound = errors.New("entity not found")

	// ErrConflictNotFound indicates that the conflict is not stored locally
	ErrConflictNotFound = errors.New("conflict not found")

	// ErrMediaNotFound indicates that the media upload is not queued
	ErrMediaNotFound = errors.New("media upload not found")

	// ErrStorageClosed indicates that storage is closed
	ErrStorageClosed = errors.New("storage is closed")
)
