package minify

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

// writeTree creates files (root-relative path -> content) under a fresh
// public directory and returns it.
func writeTree(t *testing.T, files map[string]string) string {
	t.Helper()
	root := t.TempDir()
	for rel, content := range files {
		path := filepath.Join(root, filepath.FromSlash(strings.TrimLeft(rel, "/")))
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			t.Fatalf("mkdir: %v", err)
		}
		if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
			t.Fatalf("write %s: %v", rel, err)
		}
	}
	return root
}

func setMTime(t *testing.T, path string, unix int64) {
	t.Helper()
	ts := time.Unix(unix, 0)
	if err := os.Chtimes(path, ts, ts); err != nil {
		t.Fatalf("chtimes %s: %v", path, err)
	}
}

// countingBackend records every call and returns a marked-up copy of the
// source, or err when set.
type countingBackend struct {
	calls int
	last  string
	err   error
}

func (b *countingBackend) Minify(source string) (string, error) {
	b.calls++
	b.last = source
	if b.err != nil {
		return "", b.err
	}
	return "min:" + source, nil
}

// faultFS wraps OSFS and injects failures.
type faultFS struct {
	OSFS
	notWritable bool
	mkdirErr    error
	removeErr   error
	writeErr    map[string]error // by path suffix
	writes      []string
}

func (f *faultFS) IsWritable(dir string) bool {
	if f.notWritable {
		return false
	}
	return f.OSFS.IsWritable(dir)
}

func (f *faultFS) MkdirAll(path string) error {
	if f.mkdirErr != nil {
		return f.mkdirErr
	}
	return f.OSFS.MkdirAll(path)
}

func (f *faultFS) Remove(path string) error {
	if f.removeErr != nil {
		return f.removeErr
	}
	return f.OSFS.Remove(path)
}

func (f *faultFS) WriteFile(path string, data []byte) error {
	for suffix, err := range f.writeErr {
		if strings.HasSuffix(path, suffix) {
			return err
		}
	}
	f.writes = append(f.writes, path)
	return f.OSFS.WriteFile(path, data)
}

var errInjected = errors.New("injected")

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}
