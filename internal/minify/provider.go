package minify

import "errors"

// Backend minifies concatenated source text.
type Backend interface {
	Minify(source string) (string, error)
}

// BackendFunc adapts a plain function to Backend.
type BackendFunc func(source string) (string, error)

func (f BackendFunc) Minify(source string) (string, error) {
	return f(source)
}

// Provider is one asset kind: its artifact extension, its minifier and the
// tag that references a file of that kind.
type Provider interface {
	Extension() string
	Minify(source string) (string, error)
	Tag(url string, attrs Attributes) string
}

var errNoBackend = errors.New("no minifier backend configured")

// JavaScript produces .js artifacts referenced by <script> tags.
type JavaScript struct {
	Backend Backend
}

func NewJavaScript(backend Backend) *JavaScript {
	return &JavaScript{Backend: backend}
}

func (p *JavaScript) Extension() string { return ".js" }

func (p *JavaScript) Minify(source string) (string, error) {
	if p.Backend == nil {
		return "", errNoBackend
	}
	return p.Backend.Minify(source)
}

func (p *JavaScript) Tag(url string, attrs Attributes) string {
	all := withDefaults(Attributes{{Name: "src", Value: url}}, attrs)
	return "<script " + RenderAttributes(all) + "></script>\n"
}

// StyleSheet produces .css artifacts referenced by <link> tags.
type StyleSheet struct {
	Backend Backend
}

func NewStyleSheet(backend Backend) *StyleSheet {
	return &StyleSheet{Backend: backend}
}

func (p *StyleSheet) Extension() string { return ".css" }

func (p *StyleSheet) Minify(source string) (string, error) {
	if p.Backend == nil {
		return "", errNoBackend
	}
	return p.Backend.Minify(source)
}

func (p *StyleSheet) Tag(url string, attrs Attributes) string {
	all := withDefaults(Attributes{
		{Name: "href", Value: url},
		{Name: "rel", Value: "stylesheet"},
	}, attrs)
	return "<link " + RenderAttributes(all) + ">\n"
}
