package minify

import "strings"

// FileSet is an ordered, resolved list of absolute source paths under Root.
type FileSet struct {
	Root  string
	Paths []string
}

// Len returns the number of files in the set.
func (s FileSet) Len() int {
	return len(s.Paths)
}

// Relative returns each path with the root prefix stripped, in order.
func (s FileSet) Relative() []string {
	out := make([]string, len(s.Paths))
	for i, p := range s.Paths {
		out[i] = strings.TrimPrefix(p, s.Root)
	}
	return out
}

// Resolve joins every reference onto root and checks that it is a regular
// file. References are root-relative; a missing leading slash is tolerated.
func Resolve(fsys FS, root string, refs []string) (FileSet, error) {
	if len(refs) == 0 {
		return FileSet{}, newError(ErrMissingSourceFile, "", errEmptyFileList)
	}
	root = strings.TrimRight(root, "/")

	paths := make([]string, 0, len(refs))
	for _, ref := range refs {
		path := root + "/" + strings.TrimLeft(ref, "/")
		if !fsys.IsFile(path) {
			return FileSet{}, newError(ErrMissingSourceFile, path, nil)
		}
		paths = append(paths, path)
	}
	return FileSet{Root: root, Paths: paths}, nil
}
