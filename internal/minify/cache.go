package minify

import "path/filepath"

// Probe reports whether filename already exists in dir. Any stat failure
// counts as absent, which only costs a rebuild.
func Probe(fsys FS, dir, filename string) bool {
	return fsys.Exists(filepath.Join(dir, filename))
}

// Sweep removes every file in dir whose name starts with baseHash and
// returns the removed names. It stops at the first failed removal.
func Sweep(fsys FS, dir, baseHash string) ([]string, error) {
	if baseHash == "" {
		return nil, nil
	}
	names, err := fsys.List(dir, baseHash)
	if err != nil {
		return nil, newError(ErrArtifactRemoval, dir, err)
	}
	removed := make([]string, 0, len(names))
	for _, name := range names {
		path := filepath.Join(dir, name)
		if err := fsys.Remove(path); err != nil {
			return removed, newError(ErrArtifactRemoval, path, err)
		}
		removed = append(removed, name)
	}
	return removed, nil
}
