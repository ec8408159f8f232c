package protocol

import (
	"bytes"
	"errors"
	"fmt"
)

// IdentityLen is the fixed width of participant and projectile identities
const IdentityLen = 8

// ErrInvalidIdentity is returned for empty or oversized identities
var ErrInvalidIdentity = errors.New("protocol: invalid identity")

// Identity is a participant display identifier, null padded to 8 bytes
type Identity [IdentityLen]byte

// NewIdentity pads s to 8 bytes. Empty strings, strings longer than 8 bytes
// and strings containing NUL are rejected.
func NewIdentity(s string) (Identity, error) {
	var id Identity
	if err := fill(id[:], s); err != nil {
		return Identity{}, err
	}
	return id, nil
}

// MustIdentity is NewIdentity for literals; it panics on bad input
func MustIdentity(s string) Identity {
	id, err := NewIdentity(s)
	if err != nil {
		panic(err)
	}
	return id
}

// String returns the identity without its null padding
func (id Identity) String() string {
	return string(bytes.TrimRight(id[:], "\x00"))
}

// IsZero reports whether the identity is all padding
func (id Identity) IsZero() bool {
	return id == Identity{}
}

func (id Identity) MarshalText() ([]byte, error) {
	return []byte(id.String()), nil
}

// ProjectileID identifies a projectile across both teams of a match
type ProjectileID [IdentityLen]byte

// NewProjectileID pads s to 8 bytes with the same rules as NewIdentity
func NewProjectileID(s string) (ProjectileID, error) {
	var id ProjectileID
	if err := fill(id[:], s); err != nil {
		return ProjectileID{}, err
	}
	return id, nil
}

func (id ProjectileID) String() string {
	return string(bytes.TrimRight(id[:], "\x00"))
}

func (id ProjectileID) MarshalText() ([]byte, error) {
	return []byte(id.String()), nil
}

func fill(dst []byte, s string) error {
	if s == "" || len(s) > len(dst) {
		return fmt.Errorf("%w: %q", ErrInvalidIdentity, s)
	}
	if bytes.IndexByte([]byte(s), 0) >= 0 {
		return fmt.Errorf("%w: contains NUL", ErrInvalidIdentity)
	}
	copy(dst, s)
	return nil
}
