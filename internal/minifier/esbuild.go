// Package minifier provides the JavaScript and stylesheet minifier backends
// used by the build pipeline. Both run esbuild's transform API in-process:
// whitespace, identifier and syntax minification, no bundling and no
// source maps.
package minifier

import (
	"errors"
	"fmt"
	"strings"

	"github.com/evanw/esbuild/pkg/api"
)

// Esbuild minifies source text with one esbuild loader.
type Esbuild struct {
	loader            api.Loader
	minifyIdentifiers bool
}

// JavaScript returns the backend for .js bundles.
func JavaScript() *Esbuild {
	return &Esbuild{loader: api.LoaderJS, minifyIdentifiers: true}
}

// StyleSheet returns the backend for .css bundles.
func StyleSheet() *Esbuild {
	return &Esbuild{loader: api.LoaderCSS}
}

// Minify implements minify.Backend. Syntax errors are returned as a
// *SyntaxError listing every message esbuild reported.
func (e *Esbuild) Minify(source string) (string, error) {
	result := api.Transform(source, api.TransformOptions{
		Loader:            e.loader,
		MinifyWhitespace:  true,
		MinifyIdentifiers: e.minifyIdentifiers,
		MinifySyntax:      true,
		LegalComments:     api.LegalCommentsNone,
		LogLevel:          api.LogLevelSilent,
	})
	if len(result.Errors) > 0 {
		return "", newSyntaxError(result.Errors)
	}
	return string(result.Code), nil
}

// SyntaxError is a rejected source.
type SyntaxError struct {
	Messages []string
}

func (e *SyntaxError) Error() string {
	return fmt.Sprintf("%d error(s): %s", len(e.Messages), strings.Join(e.Messages, "; "))
}

// ErrSyntax matches every *SyntaxError.
var ErrSyntax = errors.New("syntax error")

func (e *SyntaxError) Is(target error) bool {
	return target == ErrSyntax
}

func newSyntaxError(msgs []api.Message) *SyntaxError {
	out := make([]string, 0, len(msgs))
	for _, m := range msgs {
		text := m.Text
		if m.Location != nil {
			text = fmt.Sprintf("line %d:%d: %s", m.Location.Line, m.Location.Column, m.Text)
		}
		out = append(out, text)
	}
	return &SyntaxError{Messages: out}
}
