// Package assets ties configuration, environment policy and the build
// pipeline together and renders the markup for built bundles.
package assets

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/pv/assetcache/internal/config"
	"github.com/pv/assetcache/internal/filelock"
	"github.com/pv/assetcache/internal/logger"
	"github.com/pv/assetcache/internal/minifier"
	"github.com/pv/assetcache/internal/minify"
	"github.com/pv/assetcache/internal/precompress"
)

// Kind is the asset type of a bundle.
type Kind string

const (
	KindJS  Kind = "js"
	KindCSS Kind = "css"
)

// ParseKind accepts js/javascript and css/stylesheet.
func ParseKind(s string) (Kind, error) {
	switch s {
	case "js", "javascript":
		return KindJS, nil
	case "css", "stylesheet":
		return KindCSS, nil
	default:
		return "", fmt.Errorf("unknown asset kind %q", s)
	}
}

const defaultLockTimeout = 30 * time.Second

type options struct {
	fs          minify.FS
	jsBackend   minify.Backend
	cssBackend  minify.Backend
	observers   []Observer
	lockTimeout time.Duration
	logger      *slog.Logger
}

// Option configures Assets.
type Option func(*options)

// WithFS replaces the local filesystem of both builders.
func WithFS(fsys minify.FS) Option {
	return func(o *options) { o.fs = fsys }
}

// WithBackends replaces the esbuild minifiers. A nil backend keeps the default.
func WithBackends(js, css minify.Backend) Option {
	return func(o *options) {
		if js != nil {
			o.jsBackend = js
		}
		if css != nil {
			o.cssBackend = css
		}
	}
}

// WithObserver registers an observer for every build.
func WithObserver(obs Observer) Option {
	return func(o *options) {
		if obs != nil {
			o.observers = append(o.observers, obs)
		}
	}
}

// WithLockTimeout bounds the wait for the build directory lock.
func WithLockTimeout(d time.Duration) Option {
	return func(o *options) { o.lockTimeout = d }
}

func WithLogger(l *slog.Logger) Option {
	return func(o *options) {
		if l != nil {
			o.logger = l
		}
	}
}

// Assets builds and renders JavaScript and StyleSheet bundles for one
// environment.
type Assets struct {
	cfg         config.MinifyConfig
	env         string
	policy      Policy
	js          *minify.Builder
	css         *minify.Builder
	observers   []Observer
	lockTimeout time.Duration
	logger      *slog.Logger
}

// New validates cfg and prepares a builder per asset kind.
func New(cfg *config.MinifyConfig, env string, opts ...Option) (*Assets, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	o := options{
		jsBackend:   minifier.JavaScript(),
		cssBackend:  minifier.StyleSheet(),
		lockTimeout: defaultLockTimeout,
		logger:      logger.Log,
	}
	for _, opt := range opts {
		opt(&o)
	}

	siblings, err := precompress.Parse(cfg.Precompress)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", minify.ErrInvalidConfiguration, err)
	}

	builderOpts := []minify.Option{minify.WithSiblings(siblings...)}
	if o.fs != nil {
		builderOpts = append(builderOpts, minify.WithFS(o.fs))
	}

	base := minify.Config{
		PublicPath:  cfg.PublicPath,
		Salt:        cfg.HashSalt,
		TrackMTime:  !cfg.DisableMTime,
		RemoveStale: cfg.RemoveOldFiles,
	}

	jsCfg := base
	jsCfg.BuildPath = cfg.JSBuildPath
	js, err := minify.NewBuilder(minify.NewJavaScript(o.jsBackend), jsCfg, builderOpts...)
	if err != nil {
		return nil, err
	}

	cssCfg := base
	cssCfg.BuildPath = cfg.CSSBuildPath
	css, err := minify.NewBuilder(minify.NewStyleSheet(o.cssBackend), cssCfg, builderOpts...)
	if err != nil {
		return nil, err
	}

	return &Assets{
		cfg:         *cfg,
		env:         env,
		policy:      Policy{Ignored: cfg.IgnoreEnvironments},
		js:          js,
		css:         css,
		observers:   o.observers,
		lockTimeout: o.lockTimeout,
		logger:      o.logger,
	}, nil
}

func (a *Assets) Environment() string { return a.env }

// ShouldMinify reports whether bundles are built in the current environment.
func (a *Assets) ShouldMinify() bool {
	return a.policy.ShouldMinify(a.env)
}

// Subscribe adds an observer after construction. Not safe to call
// concurrently with builds.
func (a *Assets) Subscribe(obs Observer) {
	if obs != nil {
		a.observers = append(a.observers, obs)
	}
}

// JavaScript builds (or reuses) the bundle of the given script files.
func (a *Assets) JavaScript(files []string, attrs minify.Attributes) (*Bundle, error) {
	return a.Build(KindJS, files, attrs)
}

// StyleSheet builds (or reuses) the bundle of the given stylesheet files.
func (a *Assets) StyleSheet(files []string, attrs minify.Attributes) (*Bundle, error) {
	return a.Build(KindCSS, files, attrs)
}

// Build dispatches on kind.
func (a *Assets) Build(kind Kind, files []string, attrs minify.Attributes) (*Bundle, error) {
	var builder *minify.Builder
	var urlPath string
	switch kind {
	case KindJS:
		builder, urlPath = a.js, a.cfg.GetJSURLPath()
	case KindCSS:
		builder, urlPath = a.css, a.cfg.GetCSSURLPath()
	default:
		return nil, fmt.Errorf("unknown asset kind %q", kind)
	}

	start := time.Now()
	bundle := &Bundle{
		Kind:     kind,
		Attrs:    attrs,
		provider: builder.Provider(),
		urlPath:  urlPath,
		baseURL:  a.cfg.BaseURL,
	}

	if !a.ShouldMinify() {
		set, err := builder.Resolve(files)
		a.notify(newEvent(kind, a.env, files, nil, err), start)
		if err != nil {
			return nil, err
		}
		bundle.Files = set
		return bundle, nil
	}

	res, err := a.build(builder, files)
	a.notify(newEvent(kind, a.env, files, res, err), start)
	if err != nil {
		return nil, err
	}

	bundle.Files = res.Files
	bundle.Minified = true
	bundle.Filename = res.Filename
	bundle.Result = res
	return bundle, nil
}

func (a *Assets) build(builder *minify.Builder, files []string) (*minify.Result, error) {
	if !a.cfg.LockBuildDir {
		return builder.Build(files)
	}

	lock, err := filelock.Acquire(builder.Config().OutputDir(), a.lockTimeout)
	if err != nil {
		return &minify.Result{State: minify.StateFailed, Failed: minify.StateMissBuilding},
			fmt.Errorf("%w: %w", minify.ErrDirectoryUnavailable, err)
	}
	defer func() {
		if err := lock.Unlock(); err != nil {
			a.logger.Warn("failed to release build lock", "dir", builder.Config().OutputDir(), "error", err)
		}
	}()
	return builder.Build(files)
}

func (a *Assets) notify(ev Event, start time.Time) {
	ev.Duration = time.Since(start)

	switch {
	case ev.Err != nil:
		a.logger.Error("asset build failed", "kind", ev.Kind, "env", ev.Environment, "state", ev.State, "error", ev.Err)
	case ev.Hit:
		a.logger.Debug("asset bundle up to date", "kind", ev.Kind, "file", ev.Filename)
	case ev.Minified:
		a.logger.Info("asset bundle built", "kind", ev.Kind, "file", ev.Filename,
			"files", len(ev.Files), "swept", len(ev.Swept), "duration", ev.Duration)
	}

	for _, obs := range a.observers {
		obs.OnBuild(ev)
	}
}
