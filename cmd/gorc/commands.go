package main

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	sdkversion "github.com/cosmos/cosmos-sdk/version"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/pushchain/gorc/orchestrator/config"
	"github.com/pushchain/gorc/orchestrator/constant"
	"github.com/pushchain/gorc/orchestrator/logger"
)

func InitRootCmd(rootCmd *cobra.Command, v *viper.Viper) {
	rootCmd.AddCommand(keysCmd(v))
	rootCmd.AddCommand(configCmd(v))
	rootCmd.AddCommand(versionCmd())
}

// configPath resolves --config, then GORC_CONFIG, then <home>/config.toml.
func configPath(v *viper.Viper) string {
	if path := v.GetString(flagConfig); path != "" {
		return path
	}
	return filepath.Join(v.GetString(flagHome), constant.ConfigFileName)
}

// loadConfig reads the config file, falling back to defaults when it does not exist.
func loadConfig(cmd *cobra.Command, v *viper.Viper) (config.Config, zerolog.Logger, error) {
	path := configPath(v)

	cfg, err := config.Load(path)
	missing := errors.Is(err, os.ErrNotExist)
	if missing {
		cfg, err = config.Default(), nil
	}
	if err != nil {
		return config.Config{}, zerolog.Nop(), fmt.Errorf("failed to load config %s: %w", path, err)
	}

	log := logger.NewWithWriter(cmd.ErrOrStderr(), cfg.Log.Level, cfg.Log.Format)
	if missing {
		log.Debug().Str("path", path).Msg("config file not found, using defaults")
	}
	return cfg, log, nil
}

func configCmd(v *viper.Viper) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Inspect and initialise the orchestrator config",
	}
	cmd.AddCommand(configDefaultCmd())
	cmd.AddCommand(configInitCmd(v))
	cmd.AddCommand(configCheckCmd(v))
	return cmd
}

func configDefaultCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "default",
		Short: "Print the default config",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := config.Default().Encode()
			if err != nil {
				return err
			}
			_, err = cmd.OutOrStdout().Write(data)
			return err
		},
	}
}

func configInitCmd(v *viper.Viper) *cobra.Command {
	var force bool
	cmd := &cobra.Command{
		Use:   "init",
		Short: "Write the default config file",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			path := configPath(v)
			if _, err := os.Stat(path); err == nil && !force {
				return fmt.Errorf("config file %s already exists (use --force to overwrite)", path)
			}
			if err := config.Save(config.Default(), path); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Wrote %s\n", path)
			return nil
		},
	}
	cmd.Flags().BoolVar(&force, "force", false, "Overwrite an existing config file")
	return cmd
}

func configCheckCmd(v *viper.Viper) *cobra.Command {
	return &cobra.Command{
		Use:   "check",
		Short: "Validate the config file",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			path := configPath(v)
			cfg, err := config.Load(path)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s is valid (keystore backend: %s)\n", path, cfg.Keystore.Backend)
			return nil
		},
	}
}

func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print gorc version info",
		Run: func(cmd *cobra.Command, args []string) {
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Name:       %s\n", sdkversion.Name)
			fmt.Fprintf(out, "App Name:   %s\n", sdkversion.AppName)
			fmt.Fprintf(out, "Version:    %s\n", sdkversion.Version)
			fmt.Fprintf(out, "Commit:     %s\n", sdkversion.Commit)
			fmt.Fprintf(out, "Build Tags: %s\n", sdkversion.BuildTags)
		},
	}
}
