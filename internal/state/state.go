// Package state remembers the most recently mounted device between runs.
package state

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/afero"

	"github.com/kriansa/usb-automount/internal/log"
	"github.com/kriansa/usb-automount/internal/maybe"
)

// Store persists a single device path in a plain text file. Writes
// replace the file wholesale and the last writer wins.
type Store struct {
	fs   afero.Fs
	path string
}

// NewStore creates a Store backed by the file at path
func NewStore(fs afero.Fs, path string) *Store {
	return &Store{
		fs:   fs,
		path: path,
	}
}

// Path returns the state file location
func (s *Store) Path() string {
	return s.path
}

// RecordMounted overwrites the state with device
func (s *Store) RecordMounted(device string) error {
	if err := s.fs.MkdirAll(filepath.Dir(s.path), 0o755); err != nil {
		return fmt.Errorf("create state directory: %w", err)
	}

	if err := afero.WriteFile(s.fs, s.path, []byte(device), 0o644); err != nil {
		return fmt.Errorf("write state file: %w", err)
	}

	log.Debug("recorded mounted device", "device", device, "path", s.path)
	return nil
}

// ReadLastMounted returns the recorded device. A missing, empty or
// unreadable state file all mean nothing was recorded.
func (s *Store) ReadLastMounted() maybe.Option[string] {
	data, err := afero.ReadFile(s.fs, s.path)
	if err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			log.Warn("failed to read state file", "path", s.path, "error", err)
		}
		return maybe.None[string]()
	}

	device := strings.TrimSpace(string(data))
	return maybe.FromOK(device, device != "")
}
