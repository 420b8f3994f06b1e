package minify

import (
	"crypto/md5"
	"encoding/hex"
	"strconv"
	"strings"
)

const pathDelimiter = "-"

// Fingerprint names an artifact: a hash of the relative paths plus salt
// and, when tracked, the sum of the files' modification times.
type Fingerprint struct {
	Base     string
	MTime    int64
	HasMTime bool
}

func (f Fingerprint) String() string {
	if !f.HasMTime {
		return f.Base
	}
	return f.Base + strconv.FormatInt(f.MTime, 10)
}

// Filename returns the artifact file name for the given extension (".js").
func (f Fingerprint) Filename(ext string) string {
	return f.String() + ext
}

// Fingerprinter computes fingerprints for resolved file sets.
type Fingerprinter struct {
	salt       string
	trackMTime bool
}

func NewFingerprinter(salt string, trackMTime bool) *Fingerprinter {
	return &Fingerprinter{salt: salt, trackMTime: trackMTime}
}

// BaseHash hashes the joined relative paths and the salt. It does not touch
// the filesystem and ignores file contents.
func (f *Fingerprinter) BaseHash(set FileSet) string {
	sum := md5.Sum([]byte(strings.Join(set.Relative(), pathDelimiter) + f.salt))
	return hex.EncodeToString(sum[:])
}

// Compute returns the full fingerprint. A file that vanished after
// resolution is reported as ErrMissingSourceFile.
func (f *Fingerprinter) Compute(fsys FS, set FileSet) (Fingerprint, error) {
	fp := Fingerprint{Base: f.BaseHash(set)}
	if !f.trackMTime {
		return fp, nil
	}
	var total int64
	for _, p := range set.Paths {
		mt, err := fsys.ModTime(p)
		if err != nil {
			return Fingerprint{}, newError(ErrMissingSourceFile, p, err)
		}
		total += mt.Unix()
	}
	fp.MTime = total
	fp.HasMTime = true
	return fp, nil
}
