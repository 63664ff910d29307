package main

import (
	"bufio"
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"golang.org/x/term"

	"github.com/pushchain/gorc/orchestrator/config"
	"github.com/pushchain/gorc/orchestrator/constant"
	orcerrors "github.com/pushchain/gorc/orchestrator/errors"
	"github.com/pushchain/gorc/orchestrator/keys"
	"github.com/pushchain/gorc/orchestrator/keystore"
)

// keyFlavor is the chain a keys subcommand presents a stored key for.
type keyFlavor struct {
	use     string
	short   string
	hdPath  func(config.Config) string
	address func(*keys.DerivedKeySet, config.Config) (string, error)
}

var (
	ethFlavor = keyFlavor{
		use:    "eth",
		short:  "Manage Ethereum signing keys",
		hdPath: func(cfg config.Config) string { return cfg.Ethereum.KeyDerivationPath },
		address: func(set *keys.DerivedKeySet, _ config.Config) (string, error) {
			return keys.EVMAddress(set.EVM), nil
		},
	}
	cosmosFlavor = keyFlavor{
		use:    "cosmos",
		short:  "Manage Cosmos signing keys",
		hdPath: func(cfg config.Config) string { return cfg.Cosmos.KeyDerivationPath },
		address: func(set *keys.DerivedKeySet, cfg config.Config) (string, error) {
			return keys.CosmosAddress(set.Cosmos, cfg.Cosmos.Prefix)
		},
	}
)

// keysCmd returns the keys command with all subcommands
func keysCmd(v *viper.Viper) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "keys",
		Short: "Manage orchestrator keys",
		Long: `
The keys commands manage the private keys held by the configured keystore.
The same stored key can be presented as an Ethereum or a Cosmos key.

Available Commands:
  eth     Import, recover, show and delete Ethereum keys
  cosmos  Import, recover, show and delete Cosmos keys
  list    List all stored key names
`,
	}

	cmd.AddCommand(flavorCmd(v, ethFlavor))
	cmd.AddCommand(flavorCmd(v, cosmosFlavor))
	cmd.AddCommand(keysListCmd(v))

	return cmd
}

func flavorCmd(v *viper.Viper, flavor keyFlavor) *cobra.Command {
	cmd := &cobra.Command{
		Use:   flavor.use,
		Short: flavor.short,
	}
	cmd.AddCommand(keysImportCmd(v, flavor))
	cmd.AddCommand(keysRecoverCmd(v, flavor))
	cmd.AddCommand(keysShowCmd(v, flavor))
	cmd.AddCommand(keysDeleteCmd(v))
	return cmd
}

// passphraseMode says whether a command needs the file keystore passphrase.
type passphraseMode int

const (
	// noPassphrase is for commands that never decrypt (list, delete)
	noPassphrase passphraseMode = iota
	readPassphrase
	// newPassphrase prompts twice, for commands that write key material
	newPassphrase
)

// session is the config, logger and keystore a keys subcommand runs against.
type session struct {
	cfg config.Config
	log zerolog.Logger
	ks  *keystore.Keystore
}

func openSession(cmd *cobra.Command, v *viper.Viper, mode passphraseMode) (*session, error) {
	cfg, log, err := loadConfig(cmd, v)
	if err != nil {
		return nil, err
	}

	opts := []keystore.Option{keystore.WithLogger(log)}
	if mode != noPassphrase && cfg.Keystore.Backend == config.BackendFile && os.Getenv(constant.KeystorePassphraseEnv) == "" {
		passphrase, err := getPassphrase(cmd, "Enter keystore passphrase: ", mode == newPassphrase)
		if err != nil {
			return nil, fmt.Errorf("failed to get passphrase: %w", err)
		}
		opts = append(opts, keystore.WithPassphrase(passphrase))
	}

	ks, err := keystore.FromConfig(cfg, opts...)
	if err != nil {
		return nil, err
	}
	return &session{cfg: cfg, log: log, ks: ks}, nil
}

// store writes doc under name, refusing to replace an existing key unless overwrite is set.
func (s *session) store(cmd *cobra.Command, flavor keyFlavor, name keys.KeyName, doc *keys.KeyDocument, overwrite bool) error {
	if !overwrite {
		_, err := s.ks.Describe(name)
		switch {
		case err == nil:
			return fmt.Errorf("key with name '%s' already exists (use --overwrite to replace it)", name)
		case !orcerrors.HasCode(err, orcerrors.ErrCodeNotFound):
			return err
		}
	}

	if _, err := s.ks.Store(name, doc); err != nil {
		return err
	}

	set, err := keys.Derive(doc)
	if err != nil {
		return err
	}
	addr, err := flavor.address(set, s.cfg)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Key stored successfully!\n")
	fmt.Fprintf(out, "Name: %s\n", name)
	fmt.Fprintf(out, "Address: %s\n", addr)
	return nil
}

func keysImportCmd(v *viper.Viper, flavor keyFlavor) *cobra.Command {
	var overwrite bool
	cmd := &cobra.Command{
		Use:   "import <name> <private-key-hex>",
		Short: "Import a raw 32-byte private key",
		Long: fmt.Sprintf(`
Import a hex encoded secp256k1 private key and store it as a PKCS#8 document.

Examples:
  gorc keys %[1]s import orchestrator 0x4f8a...c12a
  gorc keys %[1]s import orchestrator 4f8a...c12a --overwrite
`, flavor.use),
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			name, err := keys.NewKeyName(args[0])
			if err != nil {
				return err
			}
			raw, err := hex.DecodeString(strings.TrimPrefix(strings.TrimSpace(args[1]), "0x"))
			if err != nil {
				return orcerrors.NewKeyFormatError("private key is not valid hex", err)
			}
			doc, err := keys.NewDocumentFromScalar(raw)
			if err != nil {
				return err
			}

			s, err := openSession(cmd, v, newPassphrase)
			if err != nil {
				return err
			}
			return s.store(cmd, flavor, name, doc, overwrite)
		},
	}
	cmd.Flags().BoolVar(&overwrite, "overwrite", false, "Replace an existing key with the same name")
	return cmd
}

func keysRecoverCmd(v *viper.Viper, flavor keyFlavor) *cobra.Command {
	var (
		overwrite bool
		hdPath    string
	)
	cmd := &cobra.Command{
		Use:   "recover <name>",
		Short: "Recover a key from a BIP-39 mnemonic",
		Long: fmt.Sprintf(`
Recover a key from a mnemonic phrase read from stdin. The key is derived at the
%[1]s key_derivation_path from the config unless --hd-path is given. When stdin
is not a terminal the file keystore passphrase is taken from GORC_KEYSTORE_PASSPHRASE.

Examples:
  gorc keys %[1]s recover orchestrator
  echo "$MNEMONIC" | GORC_KEYSTORE_PASSPHRASE=... gorc keys %[1]s recover orchestrator --hd-path "m/44'/60'/0'/0/1"
`, flavor.use),
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			name, err := keys.NewKeyName(args[0])
			if err != nil {
				return err
			}

			s, err := openSession(cmd, v, newPassphrase)
			if err != nil {
				return err
			}

			fmt.Fprint(cmd.ErrOrStderr(), "Enter your mnemonic phrase: ")
			mnemonic, err := bufio.NewReader(cmd.InOrStdin()).ReadString('\n')
			if err != nil && (err != io.EOF || strings.TrimSpace(mnemonic) == "") {
				return fmt.Errorf("failed to read mnemonic: %w", err)
			}

			path := hdPath
			if path == "" {
				path = flavor.hdPath(s.cfg)
			}
			raw, err := keys.RecoverScalar(mnemonic, path)
			if err != nil {
				return err
			}
			doc, err := keys.NewDocumentFromScalar(raw)
			if err != nil {
				return err
			}
			return s.store(cmd, flavor, name, doc, overwrite)
		},
	}
	cmd.Flags().BoolVar(&overwrite, "overwrite", false, "Replace an existing key with the same name")
	cmd.Flags().StringVar(&hdPath, "hd-path", "", "BIP-32 derivation path (default from config)")
	return cmd
}

func keysShowCmd(v *viper.Viper, flavor keyFlavor) *cobra.Command {
	return &cobra.Command{
		Use:   "show <name>",
		Short: "Show the address and metadata of a key",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			name, err := keys.NewKeyName(args[0])
			if err != nil {
				return err
			}

			s, err := openSession(cmd, v, readPassphrase)
			if err != nil {
				return err
			}

			doc, info, err := s.ks.Inspect(name)
			if err != nil {
				return err
			}
			set, err := keys.Derive(doc)
			if err != nil {
				return err
			}
			addr, err := flavor.address(set, s.cfg)
			if err != nil {
				return err
			}

			algorithm := info.Algorithm
			if algorithm == "" {
				algorithm = "unknown"
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Name: %s\n", info.Name)
			fmt.Fprintf(out, "Address: %s\n", addr)
			fmt.Fprintf(out, "Algorithm: %s\n", algorithm)
			fmt.Fprintf(out, "Encrypted: %t\n", info.Encrypted)
			fmt.Fprintf(out, "Backend: %s\n", s.ks.Backend())
			return nil
		},
	}
}

func keysDeleteCmd(v *viper.Viper) *cobra.Command {
	var yes bool
	cmd := &cobra.Command{
		Use:   "delete <name>",
		Short: "Delete a key",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			name, err := keys.NewKeyName(args[0])
			if err != nil {
				return err
			}

			if !yes {
				fmt.Fprintf(cmd.ErrOrStderr(), "Delete key '%s'? This cannot be undone [y/N]: ", name)
				answer, _ := bufio.NewReader(cmd.InOrStdin()).ReadString('\n')
				if a := strings.ToLower(strings.TrimSpace(answer)); a != "y" && a != "yes" {
					fmt.Fprintln(cmd.OutOrStdout(), "Aborted")
					return nil
				}
			}

			s, err := openSession(cmd, v, noPassphrase)
			if err != nil {
				return err
			}
			if err := s.ks.Delete(name); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Key '%s' deleted\n", name)
			return nil
		},
	}
	cmd.Flags().BoolVarP(&yes, "yes", "y", false, "Skip confirmation")
	return cmd
}

func keysListCmd(v *viper.Viper) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List all stored key names",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := openSession(cmd, v, noPassphrase)
			if err != nil {
				return err
			}
			names, err := s.ks.List()
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if len(names) == 0 {
				fmt.Fprintln(out, "No keys found")
				return nil
			}
			for _, name := range names {
				fmt.Fprintln(out, name)
			}
			return nil
		},
	}
}

// getPassphrase prompts on the terminal without echo. Without a terminal the
// passphrase must come from GORC_KEYSTORE_PASSPHRASE.
func getPassphrase(cmd *cobra.Command, prompt string, confirm bool) (string, error) {
	in, ok := cmd.InOrStdin().(*os.File)
	if !ok || !term.IsTerminal(int(in.Fd())) {
		return "", fmt.Errorf("no terminal to read the keystore passphrase from: set %s", constant.KeystorePassphraseEnv)
	}
	fd := int(in.Fd())

	errOut := cmd.ErrOrStderr()
	fmt.Fprint(errOut, prompt)
	passBytes, err := term.ReadPassword(fd)
	if err != nil {
		return "", err
	}
	fmt.Fprintln(errOut)

	passphrase := string(passBytes)
	if passphrase == "" {
		return "", fmt.Errorf("keystore passphrase must not be empty")
	}

	if confirm {
		fmt.Fprint(errOut, "Confirm passphrase: ")
		confirmBytes, err := term.ReadPassword(fd)
		if err != nil {
			return "", err
		}
		fmt.Fprintln(errOut)

		if passphrase != string(confirmBytes) {
			return "", fmt.Errorf("passphrases do not match")
		}
	}

	return passphrase, nil
}
