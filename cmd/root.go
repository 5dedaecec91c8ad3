// Package cmd implements CLI commands using cobra framework.
package cmd

import (
	"github.com/spf13/cobra"

	"firestige.xyz/pktlive/internal/command"
	"firestige.xyz/pktlive/internal/config"
)

var (
	// Global flags
	configFile string
	socketPath string
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "pktlive",
	Short: "pktlive - live packet capture streamed to web clients",
	Long: `pktlive captures packets on a network interface and streams a summary of every
IP packet (source, destination, length, timestamp) to connected websocket clients.

Capture is started and stopped on demand from:
  - the web page served by the daemon (start_sniff / stop_sniff)
  - the REST API under /api/v1
  - this CLI via the daemon's Unix Domain Socket
  - a Kafka command topic (optional)`,
	Version:       command.Version,
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configFile, "config", "c", "",
		"config file path (defaults are used when empty)")
	rootCmd.PersistentFlags().StringVarP(&socketPath, "socket", "s", "",
		"daemon socket path (overrides control.socket)")

	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(startCmd)
	rootCmd.AddCommand(stopCmd)
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(devicesCmd)
	rootCmd.AddCommand(validateCmd)
}

// resolveSocket returns the --socket flag or the socket from the config file.
func resolveSocket() (string, error) {
	if socketPath != "" {
		return socketPath, nil
	}
	cfg, err := config.Load(configFile)
	if err != nil {
		return "", err
	}
	return cfg.Control.Socket, nil
}
