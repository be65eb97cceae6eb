package main

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/artpar/rowmap/adapters/sqlite"
	"github.com/artpar/rowmap/core/introspect"
)

func newValidateCmd(flags *globalFlags) *cobra.Command {
	var checkDatabase bool

	cmd := &cobra.Command{
		Use:   "validate",
		Short: "Validate configuration and entity declarations",
		Long: `Validate the rowmap configuration and every entity declaration.

Checks:
  - Config file parses and passes validation
  - Entity declarations parse and are well formed
  - Every reference targets a declared entity
  - Database opens (optional)

Examples:
  rowmap validate
  rowmap validate --entities ./entities --check-database`,
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()

			cfg, reg, err := flags.declarations(cmd.ErrOrStderr())
			if err != nil {
				fmt.Fprintf(out, "  %s Declarations load\n", crossMark)
				return err
			}
			fmt.Fprintf(out, "  %s Config valid (%s %s)\n", checkMark, cfg.Database.Driver, cfg.Database.DSN)
			fmt.Fprintf(out, "  %s Declarations loaded: %d\n", checkMark, reg.Len())

			if err := introspect.Check(reg); err != nil {
				fmt.Fprintf(out, "  %s Declarations well formed\n", crossMark)
				return err
			}
			fmt.Fprintf(out, "  %s Declarations well formed\n", checkMark)

			if checkDatabase {
				info, err := checkDatabaseOpens(cfg.Database.Driver, cfg.Database.DSN)
				if err != nil {
					fmt.Fprintf(out, "  %s Database opens\n", crossMark)
					return err
				}
				fmt.Fprintf(out, "  %s Database opens (%s, journal %s)\n", checkMark, info.Package, info.Journal)
			}

			fmt.Fprintln(out)
			fmt.Fprintln(out, "Configuration is valid.")
			return nil
		},
	}

	cmd.Flags().BoolVar(&checkDatabase, "check-database", false, "check that the database opens")
	return cmd
}

func checkDatabaseOpens(driver, dsn string) (sqlite.Info, error) {
	db, err := sqlite.OpenDB(driver, dsn)
	if err != nil {
		return sqlite.Info{}, err
	}
	defer db.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		return sqlite.Info{}, err
	}
	return sqlite.Describe(db, driver, dsn)
}

const (
	checkMark = "\033[32m✓\033[0m"
	crossMark = "\033[31m✗\033[0m"
)
