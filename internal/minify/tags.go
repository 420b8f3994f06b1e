package minify

import (
	"fmt"
	"html"
	"strings"
)

// Attribute is one HTML attribute. Value is a string, a bool (rendered as a
// bare name) or nil (omitted). An empty Name takes its name from Value,
// so {Value: "defer"} renders as defer="defer".
type Attribute struct {
	Name  string
	Value any
}

// Attributes keeps attributes in the order they are rendered.
type Attributes []Attribute

// Get returns the value of the first attribute with the given name.
func (a Attributes) Get(name string) (any, bool) {
	for _, attr := range a {
		if attr.Name == name {
			return attr.Value, true
		}
	}
	return nil, false
}

// withDefaults puts defaults first and drops caller attributes that would
// override them.
func withDefaults(defaults, attrs Attributes) Attributes {
	out := make(Attributes, 0, len(defaults)+len(attrs))
	out = append(out, defaults...)
	for _, attr := range attrs {
		if _, taken := defaults.Get(attr.Name); taken && attr.Name != "" {
			continue
		}
		out = append(out, attr)
	}
	return out
}

// RenderAttributes renders attrs separated by single spaces.
func RenderAttributes(attrs Attributes) string {
	parts := make([]string, 0, len(attrs))
	for _, attr := range attrs {
		if el, ok := attributeElement(attr.Name, attr.Value); ok {
			parts = append(parts, el)
		}
	}
	return strings.Join(parts, " ")
}

func attributeElement(name string, value any) (string, bool) {
	if name == "" {
		if value == nil {
			return "", false
		}
		name = fmt.Sprint(value)
	}
	switch v := value.(type) {
	case nil:
		return "", false
	case bool:
		return name, true
	case string:
		return name + `="` + escapeAttr(v) + `"`, true
	default:
		return name + `="` + escapeAttr(fmt.Sprint(v)) + `"`, true
	}
}

// escapeAttr escapes quotes and reserved characters without encoding
// entities that are already present.
func escapeAttr(s string) string {
	return html.EscapeString(html.UnescapeString(s))
}

// RawTags renders one tag per file of set, in order, each URL being
// baseURL followed by the file's root-relative path.
func RawTags(p Provider, baseURL string, set FileSet, attrs Attributes) string {
	var b strings.Builder
	for _, rel := range set.Relative() {
		b.WriteString(p.Tag(baseURL+rel, attrs))
	}
	return b.String()
}

// OutputMode selects what a rendered bundle looks like.
type OutputMode int

const (
	// MinifiedTag renders one tag referencing the built artifact.
	MinifiedTag OutputMode = iota
	// MinifiedURLOnly renders only the artifact URL.
	MinifiedURLOnly
	// RawTagsPerFile renders a tag for each source file.
	RawTagsPerFile
)

func (m OutputMode) String() string {
	switch m {
	case MinifiedTag:
		return "tag"
	case MinifiedURLOnly:
		return "url"
	case RawTagsPerFile:
		return "raw"
	default:
		return fmt.Sprintf("OutputMode(%d)", int(m))
	}
}

// ParseOutputMode accepts "tag", "url" and "raw"; empty means tag.
func ParseOutputMode(s string) (OutputMode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "tag":
		return MinifiedTag, nil
	case "url":
		return MinifiedURLOnly, nil
	case "raw":
		return RawTagsPerFile, nil
	default:
		return MinifiedTag, fmt.Errorf("unknown output mode %q", s)
	}
}
