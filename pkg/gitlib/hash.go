// Package gitlib wraps the libgit2 bindings with the small surface the
// libgit2 backend needs: opening a repository, walking history from a
// revision, listing tree blobs recursively and reading blob content.
package gitlib

import (
	"encoding/hex"
	"errors"
	"fmt"

	git2go "github.com/libgit2/git2go/v34"
)

// HashSize is the size of a SHA-1 object ID in bytes.
const HashSize = 20

// ErrInvalidHash is returned by ParseHash for malformed input.
var ErrInvalidHash = errors.New("invalid object hash")

// Hash is a git object ID.
type Hash [HashSize]byte

// ParseHash decodes a 40 character hex object ID.
func ParseHash(s string) (Hash, error) {
	var h Hash

	if len(s) != hex.EncodedLen(HashSize) {
		return h, fmt.Errorf("%w: %q", ErrInvalidHash, s)
	}

	_, err := hex.Decode(h[:], []byte(s))
	if err != nil {
		return h, fmt.Errorf("%w: %q: %w", ErrInvalidHash, s, err)
	}

	return h, nil
}

// HashFromOid converts a libgit2 Oid to Hash.
func HashFromOid(oid *git2go.Oid) Hash {
	var h Hash
	copy(h[:], oid[:])

	return h
}

// String returns the lowercase hex form.
func (h Hash) String() string {
	return hex.EncodeToString(h[:])
}

// ToOid converts Hash back to a libgit2 Oid.
func (h Hash) ToOid() *git2go.Oid {
	oid := new(git2go.Oid)
	copy(oid[:], h[:])

	return oid
}
