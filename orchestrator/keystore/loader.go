package keystore

import (
	"crypto/ecdsa"

	"github.com/cosmos/cosmos-sdk/crypto/keys/secp256k1"

	"github.com/pushchain/gorc/orchestrator/keys"
)

// LoadDerivedKeySet loads the key called name and derives both chain keys from it.
func (ks *Keystore) LoadDerivedKeySet(name string) (*keys.DerivedKeySet, error) {
	keyName, err := keys.NewKeyName(name)
	if err != nil {
		return nil, err
	}
	doc, err := ks.Load(keyName)
	if err != nil {
		return nil, err
	}
	return keys.Derive(doc)
}

// LoadEVMKey loads the key called name as an Ethereum private key.
func (ks *Keystore) LoadEVMKey(name string) (*ecdsa.PrivateKey, error) {
	set, err := ks.LoadDerivedKeySet(name)
	if err != nil {
		return nil, err
	}
	return set.EVM, nil
}

// LoadCosmosKey loads the key called name as a Cosmos SDK secp256k1 private key.
func (ks *Keystore) LoadCosmosKey(name string) (*secp256k1.PrivKey, error) {
	set, err := ks.LoadDerivedKeySet(name)
	if err != nil {
		return nil, err
	}
	return set.Cosmos, nil
}

// ImportScalar stores raw as a PKCS#8 document under name.
func (ks *Keystore) ImportScalar(name keys.KeyName, raw []byte) (replaced bool, err error) {
	doc, err := keys.NewDocumentFromScalar(raw)
	if err != nil {
		return false, err
	}
	return ks.Store(name, doc)
}
