package keys

import (
	"bytes"
	"encoding/hex"
	"strings"
	"testing"

	"github.com/cosmos/cosmos-sdk/types/bech32"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	orcerrors "github.com/pushchain/gorc/orchestrator/errors"
)

func scalarOne() []byte {
	raw := make([]byte, ScalarLength)
	raw[ScalarLength-1] = 1
	return raw
}

func mustHex(t *testing.T, s string) []byte {
	t.Helper()
	bz, err := hex.DecodeString(s)
	require.NoError(t, err)
	return bz
}

func TestParseSecretKey(t *testing.T) {
	doc, err := ParsePEM(opensslSecp256k1PEM)
	require.NoError(t, err)

	sk, err := ParseSecretKey(doc)
	require.NoError(t, err)
	assert.Equal(t, opensslSecp256k1Scalar, hex.EncodeToString(sk.Bytes()))
}

func TestParseSecretKeyRejectsOtherKeys(t *testing.T) {
	for name, text := range map[string]string{
		"p256":    opensslP256PEM,
		"ed25519": opensslEd25519PEM,
	} {
		t.Run(name, func(t *testing.T) {
			doc, err := ParsePEM(text)
			require.NoError(t, err)

			_, err = ParseSecretKey(doc)
			require.Error(t, err)
			assert.ErrorIs(t, err, orcerrors.ErrKeyFormat)
		})
	}

	t.Run("nil document", func(t *testing.T) {
		_, err := ParseSecretKey(nil)
		assert.ErrorIs(t, err, orcerrors.ErrKeyFormat)
	})
}

func TestNewDocumentFromScalarValidatesRange(t *testing.T) {
	order := mustHex(t, curveOrderHex)
	belowOrder := bytes.Clone(order)
	belowOrder[ScalarLength-1]--

	testCases := []struct {
		name  string
		raw   []byte
		valid bool
	}{
		{"one", scalarOne(), true},
		{"n-1", belowOrder, true},
		{"zero", make([]byte, ScalarLength), false},
		{"n", order, false},
		{"all ones", bytes.Repeat([]byte{0xff}, ScalarLength), false},
		{"short", []byte{1, 2, 3}, false},
		{"long", append(scalarOne(), 0), false},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			doc, err := NewDocumentFromScalar(tc.raw)
			if !tc.valid {
				require.Error(t, err)
				assert.ErrorIs(t, err, orcerrors.ErrKeyFormat)
				return
			}
			require.NoError(t, err)

			sk, err := ParseSecretKey(doc)
			require.NoError(t, err)
			assert.Equal(t, tc.raw, sk.Bytes())
		})
	}
}

func TestEVMKey(t *testing.T) {
	key, err := EVMKey(scalarOne())
	require.NoError(t, err)
	assert.Equal(t, scalarOne(), crypto.FromECDSA(key))
	assert.Equal(t, "0x7E5F4552091A69125d5DfCb7b8C2659029395Bdf", EVMAddress(key))

	_, err = EVMKey(scalarOne()[1:])
	assert.ErrorIs(t, err, orcerrors.ErrKeyFormat)

	_, err = EVMKey(mustHex(t, curveOrderHex))
	assert.ErrorIs(t, err, orcerrors.ErrKeyFormat)
}

func TestCosmosKey(t *testing.T) {
	key, err := CosmosKey(scalarOne())
	require.NoError(t, err)
	assert.Equal(t, scalarOne(), key.Key)

	// hash160 of the compressed generator point
	want, err := bech32.ConvertAndEncode("cosmos", mustHex(t, "751e76e8199196d454941c45d1b3a323f1433bd6"))
	require.NoError(t, err)

	addr, err := CosmosAddress(key, "cosmos")
	require.NoError(t, err)
	assert.Equal(t, want, addr)
}

func TestCosmosKeyFromHex(t *testing.T) {
	testCases := []struct {
		name  string
		input string
		valid bool
	}{
		{"lowercase", opensslSecp256k1Scalar, true},
		{"uppercase", strings.ToUpper(opensslSecp256k1Scalar), true},
		{"odd length", opensslSecp256k1Scalar[1:], false},
		{"not hex", "zz" + opensslSecp256k1Scalar[2:], false},
		{"short", "01", false},
		{"curve order", curveOrderHex, false},
		{"zero", strings.Repeat("0", 64), false},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			key, err := CosmosKeyFromHex(tc.input)
			if !tc.valid {
				assert.ErrorIs(t, err, orcerrors.ErrKeyFormat)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, mustHex(t, opensslSecp256k1Scalar), key.Key)
		})
	}
}

func TestDeriveIsDeterministic(t *testing.T) {
	doc, err := ParsePEM(opensslSecp256k1PEM)
	require.NoError(t, err)

	first, err := Derive(doc)
	require.NoError(t, err)
	second, err := Derive(doc)
	require.NoError(t, err)

	assert.Equal(t, first.Scalar, second.Scalar)
	assert.Equal(t, crypto.FromECDSA(first.EVM), crypto.FromECDSA(second.EVM))
	assert.Equal(t, first.Cosmos.Key, second.Cosmos.Key)
	assert.Equal(t, first.Cosmos.PubKey().Bytes(), second.Cosmos.PubKey().Bytes())

	assert.Equal(t, mustHex(t, opensslSecp256k1Scalar), first.Scalar)
	assert.Equal(t, first.Scalar, crypto.FromECDSA(first.EVM))
	assert.Equal(t, first.Scalar, first.Cosmos.Key)
	assert.True(t, strings.EqualFold(opensslSecp256k1EVMAddr, EVMAddress(first.EVM)))
	assert.Equal(t, opensslSecp256k1Hash160, hex.EncodeToString(first.Cosmos.PubKey().Address()))
}

func TestDeriveRejectsWrongCurve(t *testing.T) {
	doc, err := ParsePEM(opensslP256PEM)
	require.NoError(t, err)

	_, err = Derive(doc)
	assert.ErrorIs(t, err, orcerrors.ErrKeyFormat)
}

func TestRecoverScalar(t *testing.T) {
	const mnemonic = "abandon abandon abandon abandon abandon abandon abandon abandon abandon abandon abandon about"

	t.Run("ethereum path", func(t *testing.T) {
		raw, err := RecoverScalar(mnemonic, "m/44'/60'/0'/0/0")
		require.NoError(t, err)
		assert.Equal(t, "1ab42cc412b618bdea3a599e3c9bae199ebf030895b039e9db1e30dafb12b727", hex.EncodeToString(raw))

		key, err := EVMKey(raw)
		require.NoError(t, err)
		assert.Equal(t, "0x9858EfFD232B4033E47d90003D41EC34EcaEda94", EVMAddress(key))
	})

	t.Run("cosmos path", func(t *testing.T) {
		raw, err := RecoverScalar("  "+strings.ReplaceAll(mnemonic, " ", "\n")+"  ", "m/44'/118'/0'/0/0")
		require.NoError(t, err)
		assert.Equal(t, "c4a48e2fce1481cd3294b4490f6678090ea98d3d0e5cd984558ab0968741b104", hex.EncodeToString(raw))
	})

	t.Run("invalid mnemonic", func(t *testing.T) {
		_, err := RecoverScalar("abandon abandon abandon", "m/44'/60'/0'/0/0")
		assert.ErrorIs(t, err, orcerrors.ErrKeyFormat)
	})

	t.Run("invalid path", func(t *testing.T) {
		_, err := RecoverScalar(mnemonic, "not-a-path")
		assert.ErrorIs(t, err, orcerrors.ErrKeyFormat)
	})
}
