package errors

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestKeyError(t *testing.T) {
	t.Run("error string carries code, op, key and cause", func(t *testing.T) {
		cause := errors.New("connection refused")
		err := NewBackendUnavailableError("load", "validator-key", "secrets manager request failed", cause).
			WithBackend("aws")

		assert.Equal(t,
			`[aws:BACKEND_UNAVAILABLE] load "validator-key": secrets manager request failed: connection refused`,
			err.Error())
		assert.ErrorIs(t, err, cause)
	})

	t.Run("sentinels match by code", func(t *testing.T) {
		err := NewNotFoundError("delete", "orchestrator")
		assert.ErrorIs(t, err, ErrNotFound)
		assert.NotErrorIs(t, err, ErrCorrupt)

		wrapped := fmt.Errorf("loading key: %w", err)
		assert.ErrorIs(t, wrapped, ErrNotFound)
		assert.Equal(t, ErrCodeNotFound, CodeOf(wrapped))
	})

	t.Run("non key errors have no code", func(t *testing.T) {
		assert.Equal(t, ErrorCode(""), CodeOf(errors.New("plain")))
		assert.False(t, HasCode(nil, ErrCodeNotFound))
	})
}

func TestIsRetryable(t *testing.T) {
	testCases := []struct {
		name     string
		err      error
		expected bool
	}{
		{"nil", nil, false},
		{"backend unavailable", NewBackendUnavailableError("load", "k", "down", nil), true},
		{"wrapped backend unavailable", Wrap(NewBackendUnavailableError("load", "k", "down", nil), "ctx"), true},
		{"not found", NewNotFoundError("load", "k"), false},
		{"write rejected", NewWriteRejectedError("store", "k", "denied", nil), false},
		{"plain error", errors.New("timeout"), false},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.expected, IsRetryable(tc.err))
		})
	}
}

func TestWrap(t *testing.T) {
	require.Nil(t, Wrap(nil, "msg"))
	require.Nil(t, Wrapf(nil, "msg %d", 1))

	base := NewCorruptError("load", "k", "bad pem", nil)
	err := Wrapf(base, "key %s", "k")
	assert.Equal(t, `key k: [CORRUPT] load "k": bad pem`, err.Error())

	var keyErr *KeyError
	require.True(t, As(err, &keyErr))
	assert.Equal(t, ErrCodeCorrupt, keyErr.Code)
	assert.True(t, Is(err, ErrCorrupt))
}
