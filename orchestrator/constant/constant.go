package constant

import "os"

// <NodeDir>/                    (e.g., /home/orchestrator/.gorc)
// └── config.toml
//
// The file keystore lives wherever keystore.path points (default /tmp/keystore):
// <KeystoreDir>/
// └── <name>.key

const (
	NodeDir = ".gorc"

	ConfigFileName = "config.toml"

	// KeystorePassphraseEnv holds the passphrase for the file keystore
	KeystorePassphraseEnv = "GORC_KEYSTORE_PASSPHRASE"

	// EnvPrefix is the prefix for environment overrides of CLI flags (GORC_CONFIG, GORC_HOME)
	EnvPrefix = "GORC"
)

var DefaultNodeHome = os.ExpandEnv("$HOME/") + NodeDir
