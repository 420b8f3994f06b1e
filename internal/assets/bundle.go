package assets

import (
	"strings"

	"github.com/pv/assetcache/internal/minify"
)

// RenderOptions select the markup produced for a bundle.
type RenderOptions struct {
	Mode minify.OutputMode
	// FullURL prefixes URLs with the base URL.
	FullURL bool
	// RequestRoot is the scheme and host of the current request, used as
	// the base URL when none is configured.
	RequestRoot string
}

// Bundle is the outcome of one JavaScript or StyleSheet call.
type Bundle struct {
	Kind     Kind
	Files    minify.FileSet
	Attrs    minify.Attributes
	Minified bool
	// Filename is the artifact name; empty when not minified.
	Filename string
	Result   *minify.Result

	provider minify.Provider
	urlPath  string
	baseURL  string
}

func (b *Bundle) base(opts RenderOptions) string {
	if !opts.FullURL {
		return ""
	}
	base := b.baseURL
	if strings.TrimSpace(base) == "" {
		base = opts.RequestRoot
	}
	return strings.TrimRight(base, "/")
}

// URL returns the artifact URL, or "" when the bundle was not minified.
func (b *Bundle) URL(opts RenderOptions) string {
	if !b.Minified {
		return ""
	}
	return b.base(opts) + joinURLPath(b.urlPath, b.Filename)
}

// joinURLPath puts exactly one slash before and after dir, the same way the
// build path is joined on disk.
func joinURLPath(dir, name string) string {
	dir = strings.Trim(dir, "/")
	if dir == "" {
		return "/" + name
	}
	return "/" + dir + "/" + name
}

// Render returns the markup for the bundle. Bundles that were not
// minified always render one tag per source file.
func (b *Bundle) Render(opts RenderOptions) string {
	if !b.Minified || opts.Mode == minify.RawTagsPerFile {
		return minify.RawTags(b.provider, b.base(opts), b.Files, b.Attrs)
	}
	url := b.URL(opts)
	if opts.Mode == minify.MinifiedURLOnly {
		return url
	}
	return b.provider.Tag(url, b.Attrs)
}

// String renders the default single tag.
func (b *Bundle) String() string {
	return b.Render(RenderOptions{})
}
