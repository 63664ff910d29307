package keys

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	orcerrors "github.com/pushchain/gorc/orchestrator/errors"
)

func TestNewKeyName(t *testing.T) {
	valid := []string{
		"validator-key",
		"orchestrator",
		"eth_signer.v2",
		"A1",
		"a",
		strings.Repeat("k", MaxKeyNameLength),
	}
	for _, s := range valid {
		t.Run("valid "+s[:min(len(s), 16)], func(t *testing.T) {
			name, err := NewKeyName(s)
			require.NoError(t, err)
			assert.Equal(t, s, name.String())
			assert.False(t, name.IsZero())
		})
	}

	invalid := []struct {
		name  string
		input string
	}{
		{"empty", ""},
		{"too long", strings.Repeat("k", MaxKeyNameLength+1)},
		{"dot", "."},
		{"dot dot", ".."},
		{"hidden file", ".keys"},
		{"path separator", "keys/validator"},
		{"traversal", "a/../b"},
		{"backslash", `a\b`},
		{"space", "my key"},
		{"secret manager only char", "key@prod"},
		{"non ascii", "clé"},
		{"nul byte", "a\x00b"},
	}
	for _, tc := range invalid {
		t.Run("invalid "+tc.name, func(t *testing.T) {
			_, err := NewKeyName(tc.input)
			require.Error(t, err)
			assert.ErrorIs(t, err, orcerrors.ErrInvalidName)
		})
	}
}

func TestMustKeyName(t *testing.T) {
	assert.Equal(t, "signer", MustKeyName("signer").String())
	assert.Panics(t, func() { MustKeyName("bad/name") })
	assert.True(t, KeyName{}.IsZero())
}
