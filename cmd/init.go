package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/themateplatform/codemate/internal/config"
)

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Write a starter config file",
	Long: `Write a commented config file with default settings, at --config or
the standard location. Refuses to overwrite an existing file.`,
	// The file being written does not exist yet, so the root's config
	// loading must not run here.
	PersistentPreRunE: func(*cobra.Command, []string) error { return nil },
	RunE:              runInit,
}

func init() {
	rootCmd.AddCommand(initCmd)
}

func runInit(_ *cobra.Command, _ []string) error {
	path := flagConfig
	if path == "" {
		p, err := config.DefaultConfigPath()
		if err != nil {
			return err
		}
		path = p
	}

	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("config file already exists at %s", path)
	}

	if err := config.WriteDefaultConfig(path); err != nil {
		return err
	}

	fmt.Println("Wrote", path)
	fmt.Println("Set auth.secret before running the broker.")
	return nil
}
