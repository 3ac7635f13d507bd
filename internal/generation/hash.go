package generation

import (
	"crypto/md5" //nolint:gosec // content addressing, not security
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"hash"

	"golang.org/x/crypto/blake2b"
)

// Supported content hash algorithms.
const (
	HashMD5     = "md5"
	HashSHA256  = "sha256"
	HashBLAKE2b = "blake2b"
)

// HashFunc computes the hex content hash of a byte slice.
type HashFunc func(data []byte) string

// NewHashFunc returns the HashFunc for a named algorithm. An empty name
// selects md5.
func NewHashFunc(algorithm string) (HashFunc, error) {
	var newHash func() hash.Hash
	switch algorithm {
	case "", HashMD5:
		newHash = md5.New
	case HashSHA256:
		newHash = sha256.New
	case HashBLAKE2b:
		newHash = func() hash.Hash {
			// a nil key never errors
			h, _ := blake2b.New256(nil)
			return h
		}
	default:
		return nil, fmt.Errorf("%w: unknown hash algorithm %q", ErrInvalidConfig, algorithm)
	}

	return func(data []byte) string {
		h := newHash()
		h.Write(data)
		return hex.EncodeToString(h.Sum(nil))
	}, nil
}
