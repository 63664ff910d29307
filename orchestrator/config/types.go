package config

import (
	"fmt"
	"net/netip"
)

// Backend selects which provider persists keys
type Backend string

const (
	// BackendFile is the local passphrase-encrypted file store
	BackendFile Backend = "file"

	// BackendAWS is AWS Secrets Manager, configured from the process environment
	BackendAWS Backend = "aws"
)

// String returns the string representation of the backend
func (b Backend) String() string {
	return string(b)
}

// MarshalText implements encoding.TextMarshaler
func (b Backend) MarshalText() ([]byte, error) {
	return []byte(b), nil
}

// UnmarshalText implements encoding.TextUnmarshaler and rejects unknown backends
func (b *Backend) UnmarshalText(text []byte) error {
	switch Backend(text) {
	case BackendFile, BackendAWS:
		*b = Backend(text)
		return nil
	default:
		return fmt.Errorf("unknown keystore backend %q: must be %q or %q", text, BackendFile, BackendAWS)
	}
}

// Keystore selects the keystore variant. Path is only meaningful for BackendFile,
// RecoveryWindowDays only for BackendAWS.
type Keystore struct {
	Backend            Backend `toml:"backend"`              // "file" or "aws" (default: file)
	Path               string  `toml:"path"`                 // File keystore directory (default: /tmp/keystore)
	RecoveryWindowDays int64   `toml:"recovery_window_days"` // Days before a deleted secret is purged, 0 = service default
}

// LocalFile returns the file keystore variant rooted at path.
func LocalFile(path string) Keystore {
	return Keystore{Backend: BackendFile, Path: path}
}

// RemoteSecretService returns the AWS Secrets Manager variant.
func RemoteSecretService() Keystore {
	return Keystore{Backend: BackendAWS}
}

type Config struct {
	Keystore Keystore        `toml:"keystore"`
	Gravity  GravitySection  `toml:"gravity"`
	Ethereum EthereumSection `toml:"ethereum"`
	Cosmos   CosmosSection   `toml:"cosmos"`
	Metrics  MetricsSection  `toml:"metrics"`
	Log      LogSection      `toml:"log"`
}

type GravitySection struct {
	Contract  string `toml:"contract"`   // Gravity bridge contract address on Ethereum
	FeesDenom string `toml:"fees_denom"` // Denom used to pay Cosmos fees
}

type EthereumSection struct {
	KeyDerivationPath  string  `toml:"key_derivation_path"`  // BIP-32 path used when recovering from a mnemonic
	RPC                string  `toml:"rpc"`                  // Ethereum JSON-RPC endpoint
	GasPriceMultiplier float32 `toml:"gas_price_multiplier"` // Multiplier applied to the node's gas price
	BlocksToSearch     uint64  `toml:"blocks_to_search"`     // Blocks scanned per event query
}

type CosmosSection struct {
	KeyDerivationPath string   `toml:"key_derivation_path"` // BIP-32 path used when recovering from a mnemonic
	GRPC              string   `toml:"grpc"`                // Cosmos gRPC endpoint
	Prefix            string   `toml:"prefix"`              // Bech32 account prefix
	GasPrice          GasPrice `toml:"gas_price"`
}

type GasPrice struct {
	Amount float64 `toml:"amount"`
	Denom  string  `toml:"denom"`
}

// AsTuple returns the (amount, denom) pair used for fee estimation
func (g GasPrice) AsTuple() (float64, string) {
	return g.Amount, g.Denom
}

type MetricsSection struct {
	ListenAddr netip.AddrPort `toml:"listen_addr"` // ip:port of the metrics listener
}

type LogSection struct {
	Level  string `toml:"level"`  // zerolog level name, e.g. "debug", "info"
	Format string `toml:"format"` // "json" or "console"
}
