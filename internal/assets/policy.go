package assets

import "slices"

// Policy decides per environment whether bundles are built at all.
type Policy struct {
	Ignored []string
}

// ShouldMinify reports whether env is not in the ignore list.
func (p Policy) ShouldMinify(env string) bool {
	return !slices.Contains(p.Ignored, env)
}
