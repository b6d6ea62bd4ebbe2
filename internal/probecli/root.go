// Package probecli implements the kmsprobe command tree: a diagnostic
// front end for the kms allocator, built the way smoothpaper builds
// its own cobra/viper command tree.
package probecli

import (
	"os"

	charmlog "github.com/charmbracelet/log"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/NeowayLabs/kmsplane/kms"
)

var rootCmd = &cobra.Command{
	Use:   "kmsprobe",
	Short: "Probe a KMS device's plane allocation without a compositor",
	Long: `kmsprobe drives the kmsplane allocator against a real DRM device
or a scripted fake, replaying a scenario file of layers and reporting
which planes the allocator chose for them.`,
}

var cfgFile string

func init() {
	cobra.OnInitialize(initConfig, initLogging)

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "",
		"config file (default $XDG_CONFIG_HOME/kmsprobe/config.yaml)")
	rootCmd.PersistentFlags().String("card", "/dev/dri/card0", "DRM device node to open")
	rootCmd.PersistentFlags().Bool("debug", false, "enable allocator search tracing")

	viper.BindPFlag("card", rootCmd.PersistentFlags().Lookup("card"))
	viper.BindPFlag("debug", rootCmd.PersistentFlags().Lookup("debug"))

	rootCmd.AddCommand(newProbeCmd())
	rootCmd.AddCommand(newDryRunCmd())
}

func initConfig() {
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.SetConfigName("config")
		viper.SetConfigType("yaml")
		configHome := os.Getenv("XDG_CONFIG_HOME")
		if configHome == "" {
			configHome = os.Getenv("HOME") + "/.config"
		}
		viper.AddConfigPath(configHome + "/kmsprobe")
	}

	viper.SetDefault("card", "/dev/dri/card0")
	viper.SetDefault("debug", false)
	viper.AutomaticEnv()

	// A missing config file is fine; the CLI runs entirely off flags,
	// env and defaults otherwise.
	_ = viper.ReadInConfig()
}

func initLogging() {
	if viper.GetBool("debug") {
		kms.SetLogPriority(charmlog.DebugLevel)
	} else {
		kms.SetLogPriority(charmlog.ErrorLevel)
	}
}

// Execute runs the root command. Called by cmd/kmsprobe's main.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
