package main

import (
	"bytes"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/cosmos/cosmos-sdk/types/bech32"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pushchain/gorc/orchestrator/config"
	orcerrors "github.com/pushchain/gorc/orchestrator/errors"
)

const (
	testScalarHex = "4f8a11a8324126b19d53fefb2a8fc4006cde578f77defde3157f42a6fc98c12a"
	testEVMAddr   = "0x79b506a17041e0ce7f2ea888dd354138d1cef8d1"
	testHash160   = "4b33feaccc69cfb2f3b2525aacbbf1f2279a9d4f"

	testMnemonic = "abandon abandon abandon abandon abandon abandon abandon abandon abandon abandon abandon about"
)

// writeTestConfig writes a config pointing the file keystore into a temp dir.
func writeTestConfig(t *testing.T) string {
	t.Helper()
	t.Setenv("GORC_KEYSTORE_PASSPHRASE", "cli-test")

	dir := t.TempDir()
	cfg := config.Default()
	cfg.Keystore = config.LocalFile(filepath.Join(dir, "keystore"))
	cfg.Cosmos.Prefix = "gravity"

	path := filepath.Join(dir, "config.toml")
	require.NoError(t, config.Save(cfg, path))
	return path
}

func run(t *testing.T, stdin string, args ...string) (string, error) {
	t.Helper()
	cmd := NewRootCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetIn(strings.NewReader(stdin))
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func TestConfigDefault(t *testing.T) {
	out, err := run(t, "", "config", "default")
	require.NoError(t, err)

	cfg, err := config.Parse([]byte(out))
	require.NoError(t, err)
	assert.Equal(t, config.Default(), cfg)
}

func TestConfigInitAndCheck(t *testing.T) {
	home := t.TempDir()

	out, err := run(t, "", "--home", home, "config", "init")
	require.NoError(t, err)
	assert.Contains(t, out, filepath.Join(home, "config.toml"))

	_, err = run(t, "", "--home", home, "config", "init")
	require.Error(t, err)

	out, err = run(t, "", "--home", home, "config", "check")
	require.NoError(t, err)
	assert.Contains(t, out, "keystore backend: file")

	require.NoError(t, os.WriteFile(filepath.Join(home, "config.toml"), []byte("[keystore]\nbackend = \"file\"\nfoo = 1\n"), 0o600))
	_, err = run(t, "", "--home", home, "config", "check")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "foo")
}

func TestConfigPathFromEnv(t *testing.T) {
	path := writeTestConfig(t)
	t.Setenv("GORC_CONFIG", path)

	out, err := run(t, "", "config", "check")
	require.NoError(t, err)
	assert.Contains(t, out, path)
}

func TestKeysImportShowDelete(t *testing.T) {
	path := writeTestConfig(t)

	out, err := run(t, "", "--config", path, "keys", "eth", "import", "validator-key", "0x"+testScalarHex)
	require.NoError(t, err)
	assert.Contains(t, strings.ToLower(out), testEVMAddr)

	_, err = run(t, "", "--config", path, "keys", "eth", "import", "validator-key", testScalarHex)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "already exists")

	_, err = run(t, "", "--config", path, "keys", "eth", "import", "validator-key", testScalarHex, "--overwrite")
	require.NoError(t, err)

	out, err = run(t, "", "--config", path, "keys", "eth", "show", "validator-key")
	require.NoError(t, err)
	assert.Contains(t, strings.ToLower(out), "address: "+testEVMAddr)
	assert.Contains(t, out, "Algorithm: ecdsa-secp256k1")
	assert.Contains(t, out, "Encrypted: true")
	assert.Contains(t, out, "Backend: file")

	hash, err := hex.DecodeString(testHash160)
	require.NoError(t, err)
	cosmosAddr, err := bech32.ConvertAndEncode("gravity", hash)
	require.NoError(t, err)

	out, err = run(t, "", "--config", path, "keys", "cosmos", "show", "validator-key")
	require.NoError(t, err)
	assert.Contains(t, out, "Address: "+cosmosAddr)

	out, err = run(t, "", "--config", path, "keys", "list")
	require.NoError(t, err)
	assert.Equal(t, "validator-key\n", out)

	out, err = run(t, "n\n", "--config", path, "keys", "eth", "delete", "validator-key")
	require.NoError(t, err)
	assert.Contains(t, out, "Aborted")

	_, err = run(t, "", "--config", path, "keys", "eth", "delete", "validator-key", "-y")
	require.NoError(t, err)

	_, err = run(t, "", "--config", path, "keys", "eth", "show", "validator-key")
	require.ErrorIs(t, err, orcerrors.ErrNotFound)

	out, err = run(t, "", "--config", path, "keys", "list")
	require.NoError(t, err)
	assert.Equal(t, "No keys found\n", out)
}

func TestKeysImportRejectsBadInput(t *testing.T) {
	path := writeTestConfig(t)

	tests := []struct {
		name string
		args []string
		want error
	}{
		{name: "bad name", args: []string{"bad/name", testScalarHex}, want: orcerrors.ErrInvalidName},
		{name: "not hex", args: []string{"k", "zz"}, want: orcerrors.ErrKeyFormat},
		{name: "short", args: []string{"k", "0102"}, want: orcerrors.ErrKeyFormat},
		{name: "zero", args: []string{"k", strings.Repeat("00", 32)}, want: orcerrors.ErrKeyFormat},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			args := append([]string{"--config", path, "keys", "eth", "import"}, tt.args...)
			_, err := run(t, "", args...)
			require.ErrorIs(t, err, tt.want)
		})
	}
}

func TestKeysRecover(t *testing.T) {
	path := writeTestConfig(t)

	out, err := run(t, testMnemonic+"\n", "--config", path, "keys", "eth", "recover", "eth-key")
	require.NoError(t, err)
	assert.Contains(t, strings.ToLower(out), strings.ToLower("0x9858EfFD232B4033E47d90003D41EC34EcaEda94"))

	// no trailing newline
	_, err = run(t, testMnemonic, "--config", path, "keys", "cosmos", "recover", "cosmos-key")
	require.NoError(t, err)

	_, err = run(t, "abandon abandon abandon\n", "--config", path, "keys", "eth", "recover", "bad-key")
	require.ErrorIs(t, err, orcerrors.ErrKeyFormat)

	out, err = run(t, "", "--config", path, "keys", "list")
	require.NoError(t, err)
	assert.Equal(t, fmt.Sprintf("%s\n%s\n", "cosmos-key", "eth-key"), out)
}

func TestVersion(t *testing.T) {
	out, err := run(t, "", "version")
	require.NoError(t, err)
	assert.Contains(t, out, "Version:")
}

func TestKeysRequirePassphraseWithoutTerminal(t *testing.T) {
	path := writeTestConfig(t)
	t.Setenv("GORC_KEYSTORE_PASSPHRASE", "")

	tests := []struct {
		name  string
		stdin string
		args  []string
	}{
		{name: "recover", stdin: testMnemonic + "\n", args: []string{"keys", "eth", "recover", "validator-key"}},
		{name: "import", args: []string{"keys", "eth", "import", "validator-key", testScalarHex}},
		{name: "show", args: []string{"keys", "cosmos", "show", "validator-key"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := run(t, tt.stdin, append([]string{"--config", path}, tt.args...)...)
			require.Error(t, err)
			assert.Contains(t, err.Error(), "GORC_KEYSTORE_PASSPHRASE")
		})
	}

	// nothing was written under an empty passphrase
	cfg, err := config.Load(path)
	require.NoError(t, err)
	entries, err := os.ReadDir(cfg.Keystore.Path)
	if err == nil {
		assert.Empty(t, entries)
	} else {
		assert.True(t, os.IsNotExist(err))
	}

	// listing and deleting never decrypt
	out, err := run(t, "", "--config", path, "keys", "list")
	require.NoError(t, err)
	assert.Equal(t, "No keys found\n", out)
}

func TestKeysShowPassphraseFromEnv(t *testing.T) {
	path := writeTestConfig(t)

	_, err := run(t, "", "--config", path, "keys", "eth", "import", "validator-key", testScalarHex)
	require.NoError(t, err)

	out, err := run(t, "", "--config", path, "keys", "eth", "show", "validator-key")
	require.NoError(t, err)
	assert.Contains(t, out, "Encrypted: true")

	t.Setenv("GORC_KEYSTORE_PASSPHRASE", "wrong")
	_, err = run(t, "", "--config", path, "keys", "eth", "show", "validator-key")
	require.ErrorIs(t, err, orcerrors.ErrCorrupt)
}
