// assetbuild builds one bundle and prints its markup.
//
// Usage:
//
//	assetbuild -kind js -public ./public /js/a.js /js/b.js
//	assetbuild -kind css -glob 'css/src/*.css' -mode url
//
// Only the rendered result goes to stdout; logs go to stderr.
package main

import (
	"flag"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/pv/assetcache/internal/assets"
	"github.com/pv/assetcache/internal/config"
	"github.com/pv/assetcache/internal/logger"
	"github.com/pv/assetcache/internal/minify"
)

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

// run returns the process exit code: 0 ok, 1 build failure, 2 usage error.
func run(args []string, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("assetbuild", flag.ContinueOnError)
	fs.SetOutput(stderr)
	kindStr := fs.String("kind", "js", "Bundle kind: js or css")
	glob := fs.String("glob", "", "Glob relative to the public path; matches are sorted by name (00-, 01-, ...)")
	modeStr := fs.String("mode", "tag", "Output: tag, url or raw")
	fullURL := fs.Bool("full-url", false, "Prefix URLs with base_url (or -root)")
	root := fs.String("root", "", "Request root used when base_url is not configured, e.g. https://example.com")

	cfg, err := config.ParseWith(fs, args)
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return 2
	}
	logger.InitWriter(stderr, cfg.LogFormat, config.ParseLogLevel(cfg.LogLevel))

	kind, err := assets.ParseKind(*kindStr)
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return 2
	}
	mode, err := minify.ParseOutputMode(*modeStr)
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return 2
	}

	files := fs.Args()
	if *glob != "" {
		matched, err := globFiles(cfg.PublicPath, *glob)
		if err != nil {
			fmt.Fprintf(stderr, "Error finding source files: %v\n", err)
			return 1
		}
		files = append(files, matched...)
	}
	if len(files) == 0 {
		fmt.Fprintln(stderr, "No source files given")
		return 2
	}

	a, err := assets.New(cfg.Minify, cfg.Environment)
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return 1
	}

	bundle, err := a.Build(kind, files, nil)
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return 1
	}

	out := bundle.Render(assets.RenderOptions{Mode: mode, FullURL: *fullURL, RequestRoot: *root})
	if !strings.HasSuffix(out, "\n") {
		out += "\n"
	}
	fmt.Fprint(stdout, out)
	return 0
}

// globFiles returns the public-relative references matching pattern.
func globFiles(publicPath, pattern string) ([]string, error) {
	matches, err := filepath.Glob(filepath.Join(publicPath, pattern))
	if err != nil {
		return nil, err
	}
	sort.Strings(matches)

	refs := make([]string, 0, len(matches))
	for _, m := range matches {
		rel, err := filepath.Rel(publicPath, m)
		if err != nil {
			return nil, err
		}
		refs = append(refs, "/"+filepath.ToSlash(rel))
	}
	return refs, nil
}
