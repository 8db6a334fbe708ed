package cli

import (
	"context"
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/isometry/iredadmin/internal/i18n"
	"github.com/isometry/iredadmin/internal/logging"
)

var languagesAll bool

var languagesCmd = &cobra.Command{
	Use:   "languages",
	Short: "List installed language packs",
	Long: `List the supported languages that have a pack installed under the
configured i18n directory. With --all, list every supported language.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		var langs []i18n.Language
		if languagesAll {
			langs = i18n.Supported()
		} else {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			ctx := logging.Init(cmd.Context(), cfg.Log.Level)
			langs = i18n.Catalog{Root: cfg.General.I18nDir}.Available(ctx)
		}

		w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
		for _, l := range langs {
			fmt.Fprintf(w, "%s\t%s\n", l.Code, l.Name)
		}
		return w.Flush()
	},
}

var checkCmd = &cobra.Command{
	Use:   "check",
	Short: "Validate the configuration and test both backends",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Configuration %s... PASS\n", configPath)

		ctx := logging.Init(cmd.Context(), cfg.Log.Level)
		b, err := connect(ctx, cfg)
		if err != nil {
			return err
		}
		defer b.Close()

		failed := false
		check := func(name string, fn func(context.Context) error) {
			fmt.Fprintf(cmd.OutOrStdout(), "Checking %s... ", name)
			if err := fn(ctx); err != nil {
				fmt.Fprintf(cmd.OutOrStdout(), "FAIL\n  Error: %v\n", err)
				failed = true
				return
			}
			fmt.Fprintln(cmd.OutOrStdout(), "PASS")
		}

		check("LDAP directory", b.client.Connect)
		check("admin accounts", func(ctx context.Context) error {
			_, err := b.admins.ListAdmins(ctx)
			return err
		})
		check("log database", b.store.Ping)

		if failed {
			return fmt.Errorf("one or more checks failed")
		}
		return nil
	},
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Fprintf(cmd.OutOrStdout(), "iredadmin %s (commit %s, built %s)\n", Version, Commit, Date)
	},
}

func init() {
	languagesCmd.Flags().BoolVar(&languagesAll, "all", false, "list every supported language")

	RootCmd.AddCommand(languagesCmd, checkCmd, versionCmd)
}
