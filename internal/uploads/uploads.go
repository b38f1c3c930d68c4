// Package uploads assembles chunked video uploads on local disk and keeps
// the finished files around until they are attached to a post.
package uploads

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"
)

var (
	ErrNotFound   = errors.New("upload not found")
	ErrOutOfOrder = errors.New("chunk out of order")
)

var unsafeChars = regexp.MustCompile(`[^A-Za-z0-9\-_]`)

// SanitizeBase strips the extension from a client filename and replaces
// anything outside [A-Za-z0-9-_] with underscores.
func SanitizeBase(name string) (base, ext string) {
	name = filepath.Base(name)
	ext = filepath.Ext(name)
	base = strings.TrimSuffix(name, ext)
	base = unsafeChars.ReplaceAllString(base, "_")
	if base == "" {
		base = "upload"
	}
	return base, strings.TrimPrefix(ext, ".")
}

// FinalName builds the unique filename a finished upload is stored under.
func FinalName(clientName string, now time.Time) string {
	base, ext := SanitizeBase(clientName)
	if ext == "" {
		return fmt.Sprintf("%s_%d", base, now.Unix())
	}
	return fmt.Sprintf("%s_%d.%s", base, now.Unix(), ext)
}

// Finalized is a completed upload waiting to be attached.
type Finalized struct {
	Name string
	Path string
	Size int64
}

// Store is the finalized-upload directory. Filenames are flattened with
// filepath.Base before use, so callers cannot escape the directory.
type Store struct {
	dir string
}

func NewStore(dir string) (*Store, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create upload dir: %w", err)
	}
	return &Store{dir: dir}, nil
}

func (s *Store) Dir() string { return s.dir }

// Resolve looks a finalized upload up by filename. Missing files return
// ErrNotFound; the caller decides whether that is fatal.
func (s *Store) Resolve(filename string) (*Finalized, error) {
	path := filepath.Join(s.dir, filepath.Base(filename))
	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	if info.IsDir() {
		return nil, ErrNotFound
	}
	return &Finalized{Name: filepath.Base(filename), Path: path, Size: info.Size()}, nil
}

// Release removes a finalized upload. Releasing a missing file is a no-op.
func (s *Store) Release(filename string) error {
	err := os.Remove(filepath.Join(s.dir, filepath.Base(filename)))
	if err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}
