// Package storage implements the file store consumed by permanent deletion.
// The engine only records paths; this package is the single place that
// touches the filesystem.
package storage

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/rs/zerolog"
)

// LocalStore removes version files under a configured root directory.
type LocalStore struct {
	root   string
	logger zerolog.Logger
}

// NewLocalStore creates a store rooted at the given directory.
func NewLocalStore(root string, logger zerolog.Logger) *LocalStore {
	return &LocalStore{
		root:   filepath.Clean(root),
		logger: logger.With().Str("component", "local_store").Logger(),
	}
}

// Delete removes the file at the stored path. Paths are resolved under the
// store root; anything escaping it is rejected. Deleting a missing file is
// not an error.
func (s *LocalStore) Delete(_ context.Context, path string) error {
	full := filepath.Join(s.root, filepath.Clean("/"+path))
	if !strings.HasPrefix(full, s.root+string(filepath.Separator)) && full != s.root {
		return fmt.Errorf("path %q escapes storage root", path)
	}

	if err := os.Remove(full); err != nil {
		if os.IsNotExist(err) {
			s.logger.Debug().Str("path", full).Msg("file already absent")
			return nil
		}
		return fmt.Errorf("failed to delete file: %w", err)
	}

	return nil
}
