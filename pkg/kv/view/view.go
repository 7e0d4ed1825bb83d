// Package view implements the non-owning byte-view primitive shared by
// keys and values throughout the storage engine.
//
// A View never allocates on its own: it is always backed by bytes owned
// by someone else (a caller's input buffer, or, for index keys, the
// durable arena copy). Callers that need to retain bytes past the
// lifetime of the backing buffer must call ToOwned.
package view

import (
	"bytes"

	"github.com/dchest/siphash"
)

// hashKey0/hashKey1 seed the SipHash-2-4 used by Hash. Fixed rather than
// randomized: index lookups must be reproducible across a single process
// run, and there is no adversarial-input concern for an embedded engine.
const (
	hashKey0 = 0x706f6c61726b7630 // "polarkv0"
	hashKey1 = 0x706f6c6172766965 // "polarvie"
)

// View is a non-owning (pointer, length) pair over raw bytes.
type View struct {
	b []byte
}

// Of wraps b in a View without copying.
func Of(b []byte) View {
	return View{b: b}
}

// Data returns the underlying bytes. The caller must not retain them
// past the lifetime of whatever owns the backing array.
func (v View) Data() []byte {
	return v.b
}

// Size returns the length in bytes.
func (v View) Size() int {
	return len(v.b)
}

// Compare returns -1, 0 or 1 using lexicographic byte order, matching
// bytes.Compare.
func (v View) Compare(other View) int {
	return bytes.Compare(v.b, other.b)
}

// Equal reports whether v and other have identical contents.
func (v View) Equal(other View) bool {
	return bytes.Equal(v.b, other.b)
}

// ToOwned copies the view into a freshly allocated, independently owned
// byte slice.
func (v View) ToOwned() []byte {
	if v.b == nil {
		return nil
	}
	out := make([]byte, len(v.b))
	copy(out, v.b)
	return out
}

// Hash returns a domain-specific 64-bit hash (keyed SipHash-2-4) of the
// view's contents. Used by the short-key table in pkg/kv/index.
func (v View) Hash() uint64 {
	return siphash.Hash(hashKey0, hashKey1, v.b)
}
