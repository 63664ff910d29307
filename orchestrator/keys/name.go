package keys

import (
	"fmt"

	orcerrors "github.com/pushchain/gorc/orchestrator/errors"
)

// MaxKeyNameLength bounds names so they fit both a file name and a secret id.
const MaxKeyNameLength = 128

// KeyName addresses a key in any backend. The zero value is not a valid name.
type KeyName struct {
	name string
}

// NewKeyName validates s. Allowed characters are ASCII letters, digits, '-', '_' and '.',
// and the name must not start with '.'.
func NewKeyName(s string) (KeyName, error) {
	if s == "" {
		return KeyName{}, orcerrors.NewInvalidNameError(s, "name is empty")
	}
	if len(s) > MaxKeyNameLength {
		return KeyName{}, orcerrors.NewInvalidNameError(s, fmt.Sprintf("name is longer than %d bytes", MaxKeyNameLength))
	}
	if s[0] == '.' {
		return KeyName{}, orcerrors.NewInvalidNameError(s, "name must not start with '.'")
	}
	for i := 0; i < len(s); i++ {
		if !isNameByte(s[i]) {
			return KeyName{}, orcerrors.NewInvalidNameError(s, fmt.Sprintf("invalid character %q at offset %d", s[i], i))
		}
	}
	return KeyName{name: s}, nil
}

// MustKeyName is NewKeyName for constant names; it panics on invalid input.
func MustKeyName(s string) KeyName {
	name, err := NewKeyName(s)
	if err != nil {
		panic(err)
	}
	return name
}

func isNameByte(c byte) bool {
	switch {
	case c >= 'a' && c <= 'z', c >= 'A' && c <= 'Z', c >= '0' && c <= '9':
		return true
	case c == '-', c == '_', c == '.':
		return true
	}
	return false
}

// String returns the name as given
func (n KeyName) String() string {
	return n.name
}

// IsZero reports whether n was never validated
func (n KeyName) IsZero() bool {
	return n.name == ""
}

// KeyInfo describes a stored key without exposing its material.
type KeyInfo struct {
	Name KeyName
	// Algorithm is "" when the backend does not report it.
	Algorithm string
	// Encrypted reports whether the backend encrypts the entry under a caller-held secret.
	Encrypted bool
}
