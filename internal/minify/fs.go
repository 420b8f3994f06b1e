package minify

import (
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"
)

// FS is the filesystem surface used by the build pipeline.
type FS interface {
	Exists(path string) bool
	// IsFile reports whether path is a regular file (symlinks followed).
	IsFile(path string) bool
	IsWritable(dir string) bool
	MkdirAll(path string) error
	// List returns the names (not paths) of regular files in dir whose
	// name starts with prefix, sorted.
	List(dir, prefix string) ([]string, error)
	Remove(path string) error
	ReadFile(path string) ([]byte, error)
	// WriteFile must leave either the complete file or nothing at path.
	WriteFile(path string, data []byte) error
	ModTime(path string) (time.Time, error)
}

const (
	dirPerm  = 0o775
	filePerm = 0o644
)

// OSFS is the FS backed by the local filesystem.
type OSFS struct{}

func (OSFS) Exists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

func (OSFS) IsFile(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.Mode().IsRegular()
}

func (OSFS) IsWritable(dir string) bool {
	info, err := os.Stat(dir)
	if err != nil || !info.IsDir() {
		return false
	}
	return dirWritable(dir)
}

func (OSFS) MkdirAll(path string) error {
	return os.MkdirAll(path, dirPerm)
}

func (OSFS) List(dir, prefix string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}
		return nil, err
	}
	var names []string
	for _, e := range entries {
		if e.IsDir() || !strings.HasPrefix(e.Name(), prefix) {
			continue
		}
		names = append(names, e.Name())
	}
	sort.Strings(names)
	return names, nil
}

func (OSFS) Remove(path string) error {
	return os.Remove(path)
}

func (OSFS) ReadFile(path string) ([]byte, error) {
	return os.ReadFile(path)
}

// WriteFile writes into a temp file in the same directory, then renames it
// into place.
func (OSFS) WriteFile(path string, data []byte) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), ".tmp-"+filepath.Base(path)+"-*")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	defer func() {
		_ = tmp.Close()
		_ = os.Remove(tmpName)
	}()

	if _, err := tmp.Write(data); err != nil {
		return err
	}
	if err := tmp.Chmod(filePerm); err != nil {
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmpName, path)
}

func (OSFS) ModTime(path string) (time.Time, error) {
	info, err := os.Stat(path)
	if err != nil {
		return time.Time{}, err
	}
	return info.ModTime(), nil
}
