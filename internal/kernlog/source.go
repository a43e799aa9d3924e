package kernlog

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"slices"

	"github.com/spf13/afero"
)

const (
	// DefaultPath is the kernel log written by rsyslog on Debian-like systems
	DefaultPath = "/var/log/kern.log"
	// DefaultLines is the number of trailing lines scanned per poll
	DefaultLines = 10

	// Upper bound read from the end of the file. Kernel lines are far
	// shorter than this, so DefaultLines always fit.
	tailWindow = 64 * 1024
)

// Source produces the most recent kernel log lines, oldest first
type Source interface {
	Tail(ctx context.Context) ([]string, error)
}

// FileSource reads the trailing lines of a log file
type FileSource struct {
	fs    afero.Fs
	path  string
	lines int
}

// NewFileSource creates a Source reading the last lines of path
func NewFileSource(fs afero.Fs, path string, lines int) *FileSource {
	return &FileSource{
		fs:    fs,
		path:  path,
		lines: lines,
	}
}

// Tail returns up to the configured number of non-empty trailing lines
func (s *FileSource) Tail(ctx context.Context) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	f, err := s.fs.Open(s.path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", s.path, err)
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return nil, fmt.Errorf("stat %s: %w", s.path, err)
	}

	offset := info.Size() - tailWindow
	if offset < 0 {
		offset = 0
	}
	if _, err := f.Seek(offset, io.SeekStart); err != nil {
		return nil, fmt.Errorf("seek %s: %w", s.path, err)
	}

	data, err := io.ReadAll(f)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", s.path, err)
	}

	// Drop the partial line the window started in
	if offset > 0 {
		if i := bytes.IndexByte(data, '\n'); i >= 0 {
			data = data[i+1:]
		} else {
			data = nil
		}
	}

	return lastLines(data, s.lines), nil
}

// lastLines returns the last n non-empty lines of data in file order
func lastLines(data []byte, n int) []string {
	var lines []string
	for len(data) > 0 && len(lines) < n {
		data = bytes.TrimRight(data, "\r\n")
		i := bytes.LastIndexByte(data, '\n')
		line := data[i+1:]
		data = data[:max(i, 0)]
		if len(bytes.TrimSpace(line)) > 0 {
			lines = append(lines, string(line))
		}
	}

	slices.Reverse(lines)
	return lines
}
