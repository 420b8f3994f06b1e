// Package minify is the asset build cache: it resolves an ordered set of
// source files, derives a deterministic artifact name from it, decides
// whether that artifact is already built and, on a miss, concatenates,
// minifies and persists it into a build directory.
//
// The package performs no logging and holds no global state. A Builder is
// safe to construct directly in tests. Two builders racing on the same
// fingerprint are not coordinated: the last rename wins.
package minify
