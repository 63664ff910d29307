package main

import (
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/pushchain/gorc/orchestrator/constant"
)

const (
	flagHome   = "home"
	flagConfig = "config"
)

func NewRootCmd() *cobra.Command {
	v := viper.New()
	v.SetEnvPrefix(constant.EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	rootCmd := &cobra.Command{
		Use:           "gorc",
		Short:         "Gravity orchestrator key management",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.PersistentFlags().String(flagHome, constant.DefaultNodeHome, "orchestrator home directory")
	rootCmd.PersistentFlags().String(flagConfig, "", "config file (default <home>/"+constant.ConfigFileName+")")
	_ = v.BindPFlag(flagHome, rootCmd.PersistentFlags().Lookup(flagHome))
	_ = v.BindPFlag(flagConfig, rootCmd.PersistentFlags().Lookup(flagConfig))

	InitRootCmd(rootCmd, v)

	return rootCmd
}
