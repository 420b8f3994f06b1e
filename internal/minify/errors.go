package minify

import (
	"errors"
	"fmt"
)

// Error kinds. Every failure returned by this package matches exactly one
// of them with errors.Is.
var (
	ErrInvalidConfiguration = errors.New("invalid configuration")
	ErrMissingSourceFile    = errors.New("missing source file")
	ErrDirectoryUnavailable = errors.New("build directory unavailable")
	ErrArtifactRemoval      = errors.New("cannot remove artifact")
	ErrMinification         = errors.New("minification failed")
	ErrPersist              = errors.New("cannot save artifact")
)

var (
	errEmptyFileList = errors.New("no files given")
	errNotWritable   = errors.New("not writable")
)

// BuildError carries the kind of failure, the path involved and the cause.
type BuildError struct {
	Kind error
	Path string
	Err  error
}

func (e *BuildError) Error() string {
	msg := e.Kind.Error()
	if e.Path != "" {
		msg = fmt.Sprintf("%s: '%s'", msg, e.Path)
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *BuildError) Unwrap() []error {
	if e.Err == nil {
		return []error{e.Kind}
	}
	return []error{e.Kind, e.Err}
}

func newError(kind error, path string, cause error) *BuildError {
	return &BuildError{Kind: kind, Path: path, Err: cause}
}
