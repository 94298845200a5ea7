// Package checksum computes file digests for dataset integrity checking.
// The algorithm is fixed per dataset at creation time so that all checksums
// within one dataset stay mutually consistent even if the configured default
// changes later.
package checksum

import (
	"crypto/sha256"
	"crypto/sha512"
	"encoding/hex"
	"hash"
	"io"

	billy "github.com/go-git/go-billy/v5"
	"github.com/zeebo/errs"
)

// Error is the class for checksum failures.
var Error = errs.Class("checksum")

// Alg names a supported checksum algorithm. Its value doubles as the stem
// of the combined listing file written on completion (e.g. sha256sums.txt).
type Alg string

// The supported algorithms.
const (
	SHA256 Alg = "sha256"
	SHA512 Alg = "sha512"
)

// ParseAlg validates an algorithm name from configuration.
func ParseAlg(s string) (Alg, error) {
	switch Alg(s) {
	case SHA256, SHA512:
		return Alg(s), nil
	}
	return "", Error.New("unsupported checksum algorithm %q", s)
}

func (a Alg) hasher() (hash.Hash, error) {
	switch a {
	case SHA256:
		return sha256.New(), nil
	case SHA512:
		return sha512.New(), nil
	}
	return nil, Error.New("unsupported checksum algorithm %q", a)
}

// Sum computes the hex digest of the file at path on fs.
func Sum(fs billy.Filesystem, path string, alg Alg) (string, error) {
	h, err := alg.hasher()
	if err != nil {
		return "", err
	}
	f, err := fs.Open(path)
	if err != nil {
		return "", Error.New("open %s: %v", path, err)
	}
	defer func() { _ = f.Close() }()
	if _, err := io.Copy(h, f); err != nil {
		return "", Error.New("read %s: %v", path, err)
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}
