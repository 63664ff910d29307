package keys

import (
	"crypto/ecdsa"
	"crypto/x509/pkix"
	"encoding/asn1"
	"encoding/hex"
	"fmt"

	"github.com/cosmos/cosmos-sdk/crypto/keys/secp256k1"
	"github.com/cosmos/cosmos-sdk/types/bech32"
	secp "github.com/decred/dcrd/dcrec/secp256k1/v4"
	"github.com/ethereum/go-ethereum/crypto"

	orcerrors "github.com/pushchain/gorc/orchestrator/errors"
)

const (
	// ScalarLength is the fixed width of a secp256k1 private scalar
	ScalarLength = 32

	AlgorithmSecp256k1 = "ecdsa-secp256k1"
)

// SecretKey is a validated secp256k1 scalar in [1, n-1].
type SecretKey struct {
	scalar [ScalarLength]byte
}

// Bytes returns the scalar as 32 big-endian bytes.
func (k *SecretKey) Bytes() []byte {
	out := make([]byte, ScalarLength)
	copy(out, k.scalar[:])
	return out
}

// DerivedKeySet holds the scalar and both chain encodings derived from one document.
type DerivedKeySet struct {
	Scalar []byte
	EVM    *ecdsa.PrivateKey
	Cosmos *secp256k1.PrivKey
}

func secretKeyFromBytes(raw []byte) (*SecretKey, error) {
	if len(raw) != ScalarLength {
		return nil, orcerrors.NewKeyFormatError(fmt.Sprintf("scalar is %d bytes, want %d", len(raw), ScalarLength), nil)
	}
	var s secp.ModNScalar
	if overflow := s.SetByteSlice(raw); overflow {
		return nil, orcerrors.NewKeyFormatError("scalar is not below the curve order", nil)
	}
	if s.IsZero() {
		return nil, orcerrors.NewKeyFormatError("scalar is zero", nil)
	}
	k := &SecretKey{}
	copy(k.scalar[:], raw)
	return k, nil
}

// ParseSecretKey extracts the secp256k1 scalar from a PKCS#8 document.
func ParseSecretKey(doc *KeyDocument) (*SecretKey, error) {
	if doc == nil {
		return nil, orcerrors.NewKeyFormatError("no key document", nil)
	}

	var info pkcs8
	if rest, err := asn1.Unmarshal(doc.der, &info); err != nil || len(rest) != 0 {
		return nil, orcerrors.NewKeyFormatError("document is not a PKCS#8 structure", err)
	}
	if info.Version != 0 {
		return nil, orcerrors.NewKeyFormatError(fmt.Sprintf("unsupported PKCS#8 version %d", info.Version), nil)
	}
	if !info.Algo.Algorithm.Equal(oidPublicKeyECDSA) {
		return nil, orcerrors.NewKeyFormatError("document is not an elliptic curve key: algorithm "+info.Algo.Algorithm.String(), nil)
	}

	var curve asn1.ObjectIdentifier
	if rest, err := asn1.Unmarshal(info.Algo.Parameters.FullBytes, &curve); err != nil || len(rest) != 0 {
		return nil, orcerrors.NewKeyFormatError("missing named curve parameters", err)
	}
	if !curve.Equal(oidCurveSecp256k1) {
		return nil, orcerrors.NewKeyFormatError("key is not on secp256k1: curve "+curve.String(), nil)
	}

	var ec ecPrivateKey
	if rest, err := asn1.Unmarshal(info.PrivateKey, &ec); err != nil || len(rest) != 0 {
		return nil, orcerrors.NewKeyFormatError("malformed ECPrivateKey", err)
	}
	if ec.Version != 1 {
		return nil, orcerrors.NewKeyFormatError(fmt.Sprintf("unsupported ECPrivateKey version %d", ec.Version), nil)
	}
	if len(ec.NamedCurveOID) != 0 && !ec.NamedCurveOID.Equal(oidCurveSecp256k1) {
		return nil, orcerrors.NewKeyFormatError("inner curve does not match secp256k1", nil)
	}

	return secretKeyFromBytes(ec.PrivateKey)
}

// NewDocumentFromScalar encodes raw as a canonical PKCS#8 document carrying the
// uncompressed public key.
func NewDocumentFromScalar(raw []byte) (*KeyDocument, error) {
	key, err := secretKeyFromBytes(raw)
	if err != nil {
		return nil, err
	}

	var s secp.ModNScalar
	s.SetByteSlice(key.scalar[:])
	priv := secp.NewPrivateKey(&s)
	defer priv.Zero()
	pub := priv.PubKey().SerializeUncompressed()

	inner, err := asn1.Marshal(ecPrivateKey{
		Version:    1,
		PrivateKey: key.scalar[:],
		PublicKey:  asn1.BitString{Bytes: pub, BitLength: 8 * len(pub)},
	})
	if err != nil {
		return nil, orcerrors.NewKeyFormatError("failed to encode ECPrivateKey", err)
	}

	params, err := asn1.Marshal(oidCurveSecp256k1)
	if err != nil {
		return nil, orcerrors.NewKeyFormatError("failed to encode curve parameters", err)
	}

	der, err := asn1.Marshal(pkcs8{
		Version: 0,
		Algo: pkix.AlgorithmIdentifier{
			Algorithm:  oidPublicKeyECDSA,
			Parameters: asn1.RawValue{FullBytes: params},
		},
		PrivateKey: inner,
	})
	if err != nil {
		return nil, orcerrors.NewKeyFormatError("failed to encode PKCS#8", err)
	}
	return &KeyDocument{der: der}, nil
}

// EVMKey interprets raw as an Ethereum private key.
func EVMKey(raw []byte) (*ecdsa.PrivateKey, error) {
	if len(raw) != ScalarLength {
		return nil, orcerrors.NewKeyFormatError(fmt.Sprintf("EVM key must be %d bytes, got %d", ScalarLength, len(raw)), nil)
	}
	key, err := crypto.ToECDSA(raw)
	if err != nil {
		return nil, orcerrors.NewKeyFormatError("invalid EVM private key", err)
	}
	return key, nil
}

// CosmosKey re-encodes raw as lowercase hex and parses it as a Cosmos private key.
func CosmosKey(raw []byte) (*secp256k1.PrivKey, error) {
	return CosmosKeyFromHex(hex.EncodeToString(raw))
}

// CosmosKeyFromHex parses a hex encoded secp256k1 scalar.
func CosmosKeyFromHex(s string) (*secp256k1.PrivKey, error) {
	bz, err := hex.DecodeString(s)
	if err != nil {
		return nil, orcerrors.NewKeyFormatError("malformed hex private key", err)
	}
	key, err := secretKeyFromBytes(bz)
	if err != nil {
		return nil, err
	}
	return &secp256k1.PrivKey{Key: key.Bytes()}, nil
}

// Derive runs the full pipeline on doc.
func Derive(doc *KeyDocument) (*DerivedKeySet, error) {
	sk, err := ParseSecretKey(doc)
	if err != nil {
		return nil, err
	}
	raw := sk.Bytes()

	evmKey, err := EVMKey(raw)
	if err != nil {
		return nil, err
	}
	cosmosKey, err := CosmosKey(raw)
	if err != nil {
		return nil, err
	}

	return &DerivedKeySet{
		Scalar: raw,
		EVM:    evmKey,
		Cosmos: cosmosKey,
	}, nil
}

// EVMAddress returns the checksummed Ethereum address of key.
func EVMAddress(key *ecdsa.PrivateKey) string {
	return crypto.PubkeyToAddress(key.PublicKey).Hex()
}

// CosmosAddress returns the bech32 account address of key under prefix.
func CosmosAddress(key *secp256k1.PrivKey, prefix string) (string, error) {
	addr, err := bech32.ConvertAndEncode(prefix, key.PubKey().Address())
	if err != nil {
		return "", fmt.Errorf("failed to encode %s address: %w", prefix, err)
	}
	return addr, nil
}
