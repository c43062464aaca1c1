// Package staging keeps client payloads on local disk for the lifetime of a
// single request. Every request gets its own directory so concurrent
// requests never share a path.
package staging

import (
	"errors"
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Area is the root directory under which request directories are created.
type Area struct {
	root string
}

// NewArea ensures root exists and returns an Area rooted there.
func NewArea(root string) (*Area, error) {
	if strings.TrimSpace(root) == "" {
		return nil, errors.New("staging: root directory is empty")
	}
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, fmt.Errorf("staging: create root: %w", err)
	}
	return &Area{root: root}, nil
}

// Root returns the area's root directory.
func (a *Area) Root() string {
	return a.root
}

// Session is a per-request scratch directory.
type Session struct {
	id  string
	dir string
}

// Begin creates a fresh request directory. Callers must defer Cleanup.
func (a *Area) Begin() (*Session, error) {
	id := uuid.NewString()
	dir := filepath.Join(a.root, id)
	if err := os.Mkdir(dir, 0o700); err != nil {
		return nil, fmt.Errorf("staging: create session dir: %w", err)
	}
	return &Session{id: id, dir: dir}, nil
}

// ID returns the request id the session directory is named after.
func (s *Session) ID() string {
	return s.id
}

// Dir returns the session directory.
func (s *Session) Dir() string {
	return s.dir
}

// Write copies r into a new file named after ext (timestamp + random suffix)
// and returns its path. The file is created exclusively.
func (s *Session) Write(ext string, r io.Reader) (string, error) {
	name := fmt.Sprintf("%d-%s%s", time.Now().UnixNano(), uuid.NewString()[:8], strings.ToLower(ext))
	return s.WriteNamed(name, r)
}

// WriteNamed copies r into dir/name, failing if the file already exists.
func (s *Session) WriteNamed(name string, r io.Reader) (string, error) {
	if name != filepath.Base(name) || name == "." || name == ".." {
		return "", fmt.Errorf("staging: invalid file name %q", name)
	}
	path := filepath.Join(s.dir, name)
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o600)
	if err != nil {
		return "", fmt.Errorf("staging: create file: %w", err)
	}
	if _, err := io.Copy(f, r); err != nil {
		f.Close()
		os.Remove(path)
		return "", fmt.Errorf("staging: write file: %w", err)
	}
	if err := f.Close(); err != nil {
		os.Remove(path)
		return "", fmt.Errorf("staging: close file: %w", err)
	}
	return path, nil
}

// Remove deletes a single staged file. Missing files are not an error.
func (s *Session) Remove(path string) error {
	if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("staging: remove file: %w", err)
	}
	return nil
}

// Cleanup removes the session directory and everything in it.
func (s *Session) Cleanup() {
	if err := os.RemoveAll(s.dir); err != nil {
		log.Printf("staging: cleanup %s: %v", s.dir, err)
	}
}
