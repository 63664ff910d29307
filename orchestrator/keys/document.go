package keys

import (
	"bytes"
	"crypto/x509/pkix"
	"encoding/asn1"
	"encoding/pem"

	orcerrors "github.com/pushchain/gorc/orchestrator/errors"
)

const pemBlockType = "PRIVATE KEY"

var (
	oidPublicKeyECDSA = asn1.ObjectIdentifier{1, 2, 840, 10045, 2, 1}
	oidCurveSecp256k1 = asn1.ObjectIdentifier{1, 3, 132, 0, 10}
)

// pkcs8 is the PKCS#8 PrivateKeyInfo structure (RFC 5208).
type pkcs8 struct {
	Version    int
	Algo       pkix.AlgorithmIdentifier
	PrivateKey []byte
}

// ecPrivateKey is the SEC 1 / RFC 5915 ECPrivateKey structure.
type ecPrivateKey struct {
	Version       int
	PrivateKey    []byte
	NamedCurveOID asn1.ObjectIdentifier `asn1:"optional,explicit,tag:0"`
	PublicKey     asn1.BitString        `asn1:"optional,explicit,tag:1"`
}

// KeyDocument is a PKCS#8 encoded private key. It holds the DER form; PEM is derived from it,
// so both forms round-trip without loss.
type KeyDocument struct {
	der []byte
}

// ParseDER builds a document from the binary form. The input is copied.
func ParseDER(der []byte) (*KeyDocument, error) {
	var info pkcs8
	rest, err := asn1.Unmarshal(der, &info)
	if err != nil {
		return nil, orcerrors.NewCorruptError("decode", "", "not a PKCS#8 structure", err)
	}
	if len(rest) != 0 {
		return nil, orcerrors.NewCorruptError("decode", "", "trailing data after PKCS#8 structure", nil)
	}
	return &KeyDocument{der: bytes.Clone(der)}, nil
}

// ParsePEM builds a document from its PEM text. Anything around the single
// "PRIVATE KEY" block other than whitespace is rejected.
func ParsePEM(text string) (*KeyDocument, error) {
	block, rest := pem.Decode([]byte(text))
	if block == nil {
		return nil, orcerrors.NewCorruptError("decode", "", "no PEM block found", nil)
	}
	if block.Type != pemBlockType {
		return nil, orcerrors.NewCorruptError("decode", "", "unexpected PEM block type "+block.Type, nil)
	}
	if len(block.Headers) != 0 {
		return nil, orcerrors.NewCorruptError("decode", "", "encrypted or annotated PEM blocks are not supported", nil)
	}
	if len(bytes.TrimSpace(rest)) != 0 {
		return nil, orcerrors.NewCorruptError("decode", "", "trailing data after PEM block", nil)
	}
	return ParseDER(block.Bytes)
}

// DER returns a copy of the binary form.
func (d *KeyDocument) DER() []byte {
	return bytes.Clone(d.der)
}

// PEM returns the canonical PEM text.
func (d *KeyDocument) PEM() string {
	return string(pem.EncodeToMemory(&pem.Block{Type: pemBlockType, Bytes: d.der}))
}

// Algorithm names the key algorithm when it is recognised, "" otherwise.
func (d *KeyDocument) Algorithm() string {
	var info pkcs8
	if _, err := asn1.Unmarshal(d.der, &info); err != nil {
		return ""
	}
	if !info.Algo.Algorithm.Equal(oidPublicKeyECDSA) {
		return ""
	}
	var curve asn1.ObjectIdentifier
	if _, err := asn1.Unmarshal(info.Algo.Parameters.FullBytes, &curve); err != nil {
		return ""
	}
	if curve.Equal(oidCurveSecp256k1) {
		return AlgorithmSecp256k1
	}
	return ""
}

// Equal reports whether both documents hold identical bytes.
func (d *KeyDocument) Equal(other *KeyDocument) bool {
	if d == nil || other == nil {
		return d == other
	}
	return bytes.Equal(d.der, other.der)
}
