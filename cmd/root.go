// Package cmd wires the codemate subcommands: the studio server, the
// secrets broker, and the terminal clients that talk to them.
package cmd

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/themateplatform/codemate/internal/config"
	"github.com/themateplatform/codemate/internal/log"
)

var (
	// cfg is the loaded configuration, available to every subcommand
	// after PersistentPreRunE.
	cfg config.Config

	flagConfig   string
	flagLogFile  string
	flagLogLevel string
)

var rootCmd = &cobra.Command{
	Use:   "codemate",
	Short: "Collaborative code generation studio",
	Long: `CodeMate pairs AI code generation with live collaboration.

The studio server (serve) hosts the REST API and the presence hub.
The broker keeps provider secrets out of studio processes. monitor,
chat and suggest are the terminal clients.`,
	SilenceUsage:      true,
	SilenceErrors:     true,
	PersistentPreRunE: loadConfig,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&flagConfig, "config", "", "config file (default ~/.config/codemate/config.yaml)")
	rootCmd.PersistentFlags().StringVar(&flagLogFile, "log-file", "", "append logs to this file")
	rootCmd.PersistentFlags().StringVar(&flagLogLevel, "log-level", "", "debug, info, warn or error")
}

// loadConfig resolves configuration for the invoked subcommand. A .env
// in the working directory supplies CODEMATE_* variables during
// development; its absence is fine.
func loadConfig(_ *cobra.Command, _ []string) error {
	_ = godotenv.Load()

	c, err := config.Load(flagConfig)
	if err != nil {
		return err
	}

	if flagLogFile != "" {
		c.Log.File = flagLogFile
	}
	if flagLogLevel != "" {
		c.Log.Level = flagLogLevel
	}
	if _, err := c.SlogLevel(); err != nil {
		return err
	}

	cfg = c
	return nil
}

// setupLogging directs log output per the loaded config. Interactive
// commands stay quiet on the terminal: without a log file their logs
// are discarded rather than drawn over the UI.
func setupLogging(interactive bool) error {
	level, err := cfg.SlogLevel()
	if err != nil {
		return err
	}
	if cfg.Log.File != "" {
		return log.SetupFile(cfg.Log.File, level)
	}
	if !interactive {
		log.Setup(os.Stderr, level)
	}
	return nil
}

// Execute runs the root command. Errors print to stderr and exit
// non-zero.
func Execute() {
	err := rootCmd.Execute()
	if cerr := log.Close(); cerr != nil && err == nil {
		err = cerr
	}
	if err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
