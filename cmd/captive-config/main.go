// Captive-config provisions Wi-Fi credentials on a headless Linux device.
//
// It scans for nearby networks, raises an open soft-AP, and serves a config
// page to whoever joins it. Every DNS name resolves to the device, so
// phones and laptops show the page as a captive portal. Once the user
// picks a network and types the passphrase, the credentials are printed
// and the tool exits.
//
// Usage:
//
//	captive-config run [flags]
//
// See 'captive-config --help' for available commands.
package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/muurk/captiveconfig/internal/config"
	"github.com/muurk/captiveconfig/internal/logging"
	"github.com/muurk/captiveconfig/internal/version"
)

// errReported marks failures that were already rendered for the user.
var errReported = errors.New("failure already reported")

func main() {
	err := rootCmd.Execute()
	logging.Sync()
	if err != nil {
		if !errors.Is(err, errReported) {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		}
		os.Exit(1)
	}
}

// Global flags
var (
	configPath string
	logLevel   string
)

var rootCmd = &cobra.Command{
	Use:   "captive-config",
	Short: "Captive-portal Wi-Fi provisioning",
	Long: `Provision Wi-Fi credentials on a headless device through a captive portal.

captive-config scans for nearby networks, starts an open access point, and
answers every DNS query and HTTP request with a page listing those networks.
The user joins the access point from a phone, picks a network, types the
passphrase and submits. The credentials are then printed for the caller to
apply.`,
	Version:       version.Version,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		return logging.Initialize(logLevel)
	},
}

func init() {
	rootCmd.CompletionOptions.DisableDefaultCmd = true

	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "Config file (default: "+defaultConfigPathHint()+")")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "Log level (debug, info, warn, error); default from "+logging.LogLevelEnvVar)

	rootCmd.AddCommand(versionCmd)
}

func defaultConfigPathHint() string {
	if p, err := config.GetConfigPath(); err == nil {
		return p
	}
	return "$XDG_CONFIG_HOME/captivecfg/config.yaml"
}

// loadConfig reads --config or the default path. The log level from the file
// applies when neither --log-level nor the environment set one.
func loadConfig() (*config.Config, string, error) {
	var (
		cfg  *config.Config
		path = configPath
		err  error
	)
	if path == "" {
		cfg, path, err = config.LoadDefault()
	} else {
		cfg, err = config.Load(path)
	}
	if err != nil {
		return nil, path, err
	}

	if logLevel == "" && os.Getenv(logging.LogLevelEnvVar) == "" && cfg.LogLevel != "" {
		if err := logging.Initialize(cfg.LogLevel); err != nil {
			return nil, path, err
		}
	}
	return cfg, path, nil
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Fprintf(cmd.OutOrStdout(), "captive-config %s\n", version.Full())
	},
}
