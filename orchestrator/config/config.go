package config

import (
	"bytes"
	"errors"
	"fmt"
	"net/netip"
	"os"
	"path/filepath"

	"github.com/pelletier/go-toml/v2"
)

const (
	DefaultKeystorePath = "/tmp/keystore"

	// DefaultCosmosHDPath is the standard Cosmos SDK account path
	DefaultCosmosHDPath = "m/44'/118'/0'/0/0"

	// DefaultEthereumHDPath is the standard Ethereum account path
	DefaultEthereumHDPath = "m/44'/60'/0'/0/0"
)

// Default returns the configuration used for every field absent from the input.
func Default() Config {
	return Config{
		Keystore: LocalFile(DefaultKeystorePath),
		Gravity: GravitySection{
			Contract:  "0x0000000000000000000000000000000000000000",
			FeesDenom: "stake",
		},
		Ethereum: EthereumSection{
			KeyDerivationPath:  DefaultEthereumHDPath,
			RPC:                "http://localhost:8545",
			GasPriceMultiplier: 1.0,
			BlocksToSearch:     5000,
		},
		Cosmos: CosmosSection{
			KeyDerivationPath: DefaultCosmosHDPath,
			GRPC:              "http://localhost:9090",
			Prefix:            "cosmos",
			GasPrice: GasPrice{
				Amount: 0.001,
				Denom:  "stake",
			},
		},
		Metrics: MetricsSection{
			ListenAddr: netip.AddrPortFrom(netip.AddrFrom4([4]byte{127, 0, 0, 1}), 3000),
		},
		Log: LogSection{
			Level:  "info",
			Format: "console",
		},
	}
}

// Parse decodes a TOML document on top of Default. Unknown keys at any depth are an error.
func Parse(data []byte) (Config, error) {
	cfg := Default()

	data, err := normalizeLegacyKeystore(data)
	if err != nil {
		return Config{}, fmt.Errorf("failed to decode config: %w", err)
	}

	dec := toml.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&cfg); err != nil {
		var strict *toml.StrictMissingError
		if errors.As(err, &strict) {
			return Config{}, fmt.Errorf("unknown config fields:\n%s", strict.String())
		}
		return Config{}, fmt.Errorf("failed to decode config: %w", err)
	}

	if err := validateConfig(&cfg); err != nil {
		return Config{}, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

// normalizeLegacyKeystore rewrites the enum form of the keystore setting,
// keystore = "Aws" or keystore = { File = "/path" }, into the table form.
// Input without that form is returned unchanged.
func normalizeLegacyKeystore(data []byte) ([]byte, error) {
	var raw map[string]any
	if err := toml.Unmarshal(data, &raw); err != nil {
		// reported with positions by the strict decode
		return data, nil
	}

	var keystore map[string]any
	switch v := raw["keystore"].(type) {
	case string:
		if v != "Aws" {
			return nil, fmt.Errorf("unknown keystore variant %q: must be \"Aws\" or { File = \"<path>\" }", v)
		}
		keystore = map[string]any{"backend": string(BackendAWS)}
	case map[string]any:
		path, ok := v["File"]
		if !ok {
			return data, nil
		}
		if len(v) != 1 {
			return nil, fmt.Errorf("keystore { File = ... } must not carry other fields")
		}
		p, ok := path.(string)
		if !ok {
			return nil, fmt.Errorf("keystore File must be a path string")
		}
		keystore = map[string]any{"backend": string(BackendFile), "path": p}
	default:
		return data, nil
	}

	raw["keystore"] = keystore
	out, err := toml.Marshal(raw)
	if err != nil {
		return nil, err
	}
	return out, nil
}

// Load reads and parses the config file at path.
func Load(path string) (Config, error) {
	data, err := os.ReadFile(filepath.Clean(path))
	if err != nil {
		return Config{}, fmt.Errorf("failed to read config file: %w", err)
	}
	return Parse(data)
}

// Encode renders cfg as TOML.
func (c Config) Encode() ([]byte, error) {
	data, err := toml.Marshal(c)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal config: %w", err)
	}
	return data, nil
}

// Save writes cfg to path, creating the parent directory.
func Save(cfg Config, path string) error {
	if err := validateConfig(&cfg); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := cfg.Encode()
	if err != nil {
		return err
	}

	if err := os.WriteFile(path, data, 0o600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}

// validateConfig checks shape only; chain sections are passed through as-is.
func validateConfig(cfg *Config) error {
	switch cfg.Keystore.Backend {
	case BackendFile:
		if cfg.Keystore.Path == "" {
			return fmt.Errorf("keystore.path is required for the %q backend", BackendFile)
		}
	case BackendAWS:
	default:
		return fmt.Errorf("unknown keystore backend %q", cfg.Keystore.Backend)
	}

	if cfg.Keystore.RecoveryWindowDays < 0 {
		return fmt.Errorf("keystore.recovery_window_days must not be negative")
	}

	if !cfg.Metrics.ListenAddr.IsValid() {
		return fmt.Errorf("metrics.listen_addr must be an ip:port address")
	}

	if cfg.Log.Format != "json" && cfg.Log.Format != "console" {
		return fmt.Errorf("log format must be 'json' or 'console'")
	}

	return nil
}
