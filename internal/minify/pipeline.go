package minify

import (
	"bytes"
	"fmt"
	"path/filepath"
	"strings"
)

// Config is the per-builder build configuration.
type Config struct {
	// PublicPath is the document root that source references and the
	// build path are relative to.
	PublicPath string
	// BuildPath is the artifact directory relative to PublicPath.
	BuildPath   string
	Salt        string
	TrackMTime  bool
	RemoveStale bool
}

// Validate checks the fields a build cannot run without.
func (c Config) Validate() error {
	if strings.TrimSpace(c.PublicPath) == "" {
		return fmt.Errorf("%w: public path is required", ErrInvalidConfiguration)
	}
	if strings.TrimSpace(c.BuildPath) == "" {
		return fmt.Errorf("%w: build path is required", ErrInvalidConfiguration)
	}
	return nil
}

// OutputDir is the absolute artifact directory.
func (c Config) OutputDir() string {
	return filepath.Join(c.PublicPath, c.BuildPath)
}

// State is a step of a single build.
type State int

const (
	StateIdle State = iota
	StateResolving
	StateProbing
	StateHitDone
	StateMissBuilding
	StatePersisted
	StateFailed
)

var stateNames = [...]string{"idle", "resolving", "probing", "hit", "building", "persisted", "failed"}

func (s State) String() string {
	if int(s) < len(stateNames) {
		return stateNames[s]
	}
	return fmt.Sprintf("State(%d)", int(s))
}

// Result describes how far a build got. It is returned even on failure.
type Result struct {
	Files       FileSet
	Fingerprint Fingerprint
	Filename    string
	State       State
	// Failed is the state the build was in when it failed.
	Failed State
	Swept  []string
}

// Hit reports whether the artifact was already built.
func (r *Result) Hit() bool {
	return r != nil && r.State == StateHitDone
}

// Sibling derives an extra file stored next to the artifact under
// <artifact><Suffix>, e.g. a precompressed copy.
type Sibling interface {
	Suffix() string
	Encode(data []byte) ([]byte, error)
}

// Option configures a Builder.
type Option func(*Builder)

// WithFS replaces the local filesystem.
func WithFS(fsys FS) Option {
	return func(b *Builder) {
		if fsys != nil {
			b.fs = fsys
		}
	}
}

// WithSiblings writes the given siblings before each new artifact.
func WithSiblings(siblings ...Sibling) Option {
	return func(b *Builder) {
		b.siblings = append(b.siblings, siblings...)
	}
}

// Builder runs the build pipeline for one provider and configuration.
type Builder struct {
	provider      Provider
	cfg           Config
	fs            FS
	fingerprinter *Fingerprinter
	siblings      []Sibling
}

// NewBuilder validates cfg and returns a builder for provider.
func NewBuilder(provider Provider, cfg Config, opts ...Option) (*Builder, error) {
	if provider == nil {
		return nil, fmt.Errorf("%w: provider is required", ErrInvalidConfiguration)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	b := &Builder{
		provider:      provider,
		cfg:           cfg,
		fs:            OSFS{},
		fingerprinter: NewFingerprinter(cfg.Salt, cfg.TrackMTime),
	}
	for _, opt := range opts {
		opt(b)
	}
	return b, nil
}

func (b *Builder) Provider() Provider { return b.provider }

func (b *Builder) Config() Config { return b.cfg }

// Resolve resolves refs against the public path without building.
func (b *Builder) Resolve(refs []string) (FileSet, error) {
	return Resolve(b.fs, b.cfg.PublicPath, refs)
}

// Build resolves refs and returns the artifact name, building the artifact
// first when it does not exist yet.
func (b *Builder) Build(refs []string) (*Result, error) {
	res := &Result{State: StateResolving}

	set, err := Resolve(b.fs, b.cfg.PublicPath, refs)
	if err != nil {
		return res.fail(err)
	}
	res.Files = set

	res.State = StateProbing
	fp, err := b.fingerprinter.Compute(b.fs, set)
	if err != nil {
		return res.fail(err)
	}
	res.Fingerprint = fp
	res.Filename = fp.Filename(b.provider.Extension())

	dir := b.cfg.OutputDir()
	if Probe(b.fs, dir, res.Filename) {
		res.State = StateHitDone
		return res, nil
	}

	res.State = StateMissBuilding
	if err := b.ensureDir(dir); err != nil {
		return res.fail(err)
	}
	if b.cfg.RemoveStale {
		swept, err := Sweep(b.fs, dir, fp.Base)
		res.Swept = swept
		if err != nil {
			return res.fail(err)
		}
	}

	source, err := b.concat(set)
	if err != nil {
		return res.fail(err)
	}
	target := filepath.Join(dir, res.Filename)
	minified, err := b.provider.Minify(source)
	if err != nil {
		return res.fail(newError(ErrMinification, target, err))
	}
	if err := b.persist(target, []byte(minified)); err != nil {
		return res.fail(err)
	}

	res.State = StatePersisted
	return res, nil
}

func (r *Result) fail(err error) (*Result, error) {
	r.Failed = r.State
	r.State = StateFailed
	return r, err
}

func (b *Builder) ensureDir(dir string) error {
	if !b.fs.Exists(dir) {
		if err := b.fs.MkdirAll(dir); err != nil {
			return newError(ErrDirectoryUnavailable, dir, err)
		}
	}
	if !b.fs.IsWritable(dir) {
		return newError(ErrDirectoryUnavailable, dir, errNotWritable)
	}
	return nil
}

func (b *Builder) concat(set FileSet) (string, error) {
	var buf bytes.Buffer
	for _, p := range set.Paths {
		data, err := b.fs.ReadFile(p)
		if err != nil {
			return "", newError(ErrMissingSourceFile, p, err)
		}
		buf.Write(data)
		buf.WriteByte('\n')
	}
	return buf.String(), nil
}

// persist writes the siblings first so the artifact, which is the cache
// hit signal, only appears once everything next to it is in place.
func (b *Builder) persist(target string, data []byte) error {
	written := make([]string, 0, len(b.siblings))
	for _, s := range b.siblings {
		path := target + s.Suffix()
		encoded, err := s.Encode(data)
		if err == nil {
			err = b.fs.WriteFile(path, encoded)
		}
		if err != nil {
			b.discard(written)
			return newError(ErrPersist, path, err)
		}
		written = append(written, path)
	}
	if err := b.fs.WriteFile(target, data); err != nil {
		b.discard(written)
		return newError(ErrPersist, target, err)
	}
	return nil
}

func (b *Builder) discard(paths []string) {
	for _, p := range paths {
		_ = b.fs.Remove(p)
	}
}
