package main

import (
	"fmt"
	"os"
	"runtime"
	"strings"

	"github.com/spf13/cobra"

	"seedharvest/pkg/logger"
	"seedharvest/pkg/ui"
)

var (
	// Version information
	version   = "1.0.0"
	gitCommit = "unknown"
	buildDate = "unknown"

	// Global flags
	configFile  string
	logLevel    string
	quiet       bool
	profileName string
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "seedharvest",
	Short: "Harvest new M-Team torrents into a seeding client",
	Long: `seedharvest walks the M-Team catalog page by page, downloads the torrent
file of every item it has not handled before and hands it to a Transmission
or qBittorrent instance for seeding.

Features:
  - Durable ledger of processed items and the next catalog page
  - Bounded concurrent downloads with rate-limit backoff
  - Clean stop on the daily download quota
  - Deduplication against the consumer's current torrents
  - Secure API key storage using the system keychain

Running without a subcommand is the same as 'seedharvest run'.`,
	Version: fmt.Sprintf("%s (commit: %s, built: %s)", version, gitCommit, buildDate),
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		if quiet || logLevel == "error" {
			ui.SetQuietMode(true)
		}
	},
	RunE: runHarvest,
}

// versionCmd prints the same text as --version
var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Fprint(ui.Out, strings.Replace(versionTemplate(), "{{.Version}}", rootCmd.Version, 1))
	},
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func versionTemplate() string {
	return `seedharvest {{.Version}}
Go Version: ` + runtime.Version() + `
OS/Arch: ` + runtime.GOOS + `/` + runtime.GOARCH + `
`
}

func init() {
	logger.Version = version

	rootCmd.PersistentFlags().StringVarP(&configFile, "config", "c", "", "config file (default is ./seedharvest.yaml)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().BoolVarP(&quiet, "quiet", "q", false, "suppress all output except errors")
	rootCmd.PersistentFlags().StringVarP(&profileName, "profile", "p", "default", "stored credential profile")

	addRunFlags(rootCmd)
	rootCmd.AddCommand(versionCmd)

	rootCmd.SetVersionTemplate(versionTemplate())

	rootCmd.SilenceUsage = true
	rootCmd.CompletionOptions.DisableDefaultCmd = true
}
