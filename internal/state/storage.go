package state

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// ErrNotFound is returned by Storage.Get for a key that was never set.
var ErrNotFound = errors.New("key not found")

// Storage is a small key-value store for persisted blobs.
type Storage interface {
	// Name describes the storage for logs.
	Name() string
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte) error
	Close() error
}

// Driver selects a Storage implementation.
type Driver string

const (
	DriverFile   Driver = "file"
	DriverSQLite Driver = "sqlite"
)

// ParseDriver converts a string to a Driver.
func ParseDriver(s string) (Driver, error) {
	switch d := Driver(strings.ToLower(strings.TrimSpace(s))); d {
	case "", DriverFile:
		return DriverFile, nil
	case DriverSQLite, "sqlite3":
		return DriverSQLite, nil
	default:
		return "", fmt.Errorf("unknown state driver %q", s)
	}
}

// Open opens the storage for driver inside dir, creating dir if needed.
func Open(driver Driver, dir string) (Storage, error) {
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return nil, fmt.Errorf("state dir: %w", err)
	}
	switch driver {
	case DriverFile, "":
		return NewFileStorage(dir), nil
	case DriverSQLite:
		return OpenSQLite(filepath.Join(dir, "pastabox.db"))
	default:
		return nil, fmt.Errorf("unknown state driver %q", driver)
	}
}

// DefaultDir returns the per-user state directory.
func DefaultDir() string {
	if dir, err := os.UserConfigDir(); err == nil {
		return filepath.Join(dir, "pastabox")
	}
	return filepath.Join(os.TempDir(), "pastabox")
}
