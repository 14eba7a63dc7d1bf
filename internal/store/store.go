// Package store provides local persistence for client-side settings.
package store

import (
	"context"
	"errors"
)

// ErrNotFound is returned when a setting has never been written.
var ErrNotFound = errors.New("setting not found")

// Repository defines the interface for persisting client settings.
// It stands in for browser local storage: a flat, unversioned key/value space.
type Repository interface {
	// GetSetting returns the value stored under key, or ErrNotFound.
	GetSetting(ctx context.Context, key string) (string, error)

	// PutSetting creates or replaces the value stored under key.
	PutSetting(ctx context.Context, key, value string) error

	// PutSettingIfAbsent stores value only when key is unset and returns the
	// value that ends up stored.
	PutSettingIfAbsent(ctx context.Context, key, value string) (string, error)

	// DeleteSetting removes key. Deleting a missing key is not an error.
	DeleteSetting(ctx context.Context, key string) error

	// Ping verifies database connectivity and returns an error if the database is unreachable.
	Ping(ctx context.Context) error

	// Close closes the database connection.
	Close() error
}
