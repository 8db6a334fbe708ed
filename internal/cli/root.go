// Package cli implements the iredadmin command line.
package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/isometry/iredadmin/internal/config"
)

var (
	Version = "dev"
	Commit  = "none"
	Date    = "unknown"
)

var configPath string

// RootCmd represents the base command when called without any subcommands
var RootCmd = &cobra.Command{
	Use:          "iredadmin",
	Short:        "Admin console backend for iRedMail directories",
	SilenceUsage: true,
	Long: `iredadmin manages mail administrator accounts stored in an iRedMail
LDAP directory and the admin activity log kept in PostgreSQL.`,
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the RootCmd.
func Execute() error {
	return RootCmd.Execute()
}

func init() {
	RootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "/etc/iredadmin/iredadmin.yaml", "path to the configuration file")
}

// loadConfig reads and validates the file named by --config.
func loadConfig() (*config.Config, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration %s: %w", configPath, err)
	}
	return cfg, nil
}
