package keys

import (
	"strings"

	"github.com/cosmos/cosmos-sdk/crypto/hd"
	"github.com/cosmos/go-bip39"

	orcerrors "github.com/pushchain/gorc/orchestrator/errors"
)

// RecoverScalar derives the secp256k1 scalar at hdPath from a BIP-39 mnemonic.
// This recovers existing keys; it never draws new randomness.
func RecoverScalar(mnemonic, hdPath string) ([]byte, error) {
	mnemonic = strings.Join(strings.Fields(mnemonic), " ")
	if !bip39.IsMnemonicValid(mnemonic) {
		return nil, orcerrors.NewKeyFormatError("invalid mnemonic", nil)
	}
	raw, err := hd.Secp256k1.Derive()(mnemonic, "", hdPath)
	if err != nil {
		return nil, orcerrors.NewKeyFormatError("failed to derive key at "+hdPath, err)
	}
	return raw, nil
}
