package main

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/banshee-data/landcover.report/internal/db"
)

func newMigrateCmd(g *globalFlags) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Manage the registry schema",
	}

	// open skips NewDB so the schema is left to the subcommand.
	open := func() (*db.DB, error) {
		cfg, err := g.loadConfig()
		if err != nil {
			return nil, err
		}
		return db.OpenDB(cfg.GetDBPath())
	}
	printStatus := func(cmd *cobra.Command, database *db.DB) error {
		st, err := database.Status(db.MigrationsFS())
		if err != nil {
			return err
		}
		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "current version: %d\nlatest version: %d\ndirty: %v\n", st.Current, st.Latest, st.Dirty)
		if st.Dirty {
			fmt.Fprintln(out, "a migration failed mid-execution; inspect the database and run: lulc migrate force <version>")
		} else if st.Pending() {
			fmt.Fprintln(out, "pending migrations; run: lulc migrate up")
		}
		return nil
	}

	up := &cobra.Command{
		Use:   "up",
		Short: "Apply all pending migrations",
		RunE: func(cmd *cobra.Command, _ []string) error {
			database, err := open()
			if err != nil {
				return err
			}
			defer database.Close()
			if err := database.MigrateUp(db.MigrationsFS()); err != nil {
				return fmt.Errorf("migration up failed: %w", err)
			}
			return printStatus(cmd, database)
		},
	}
	down := &cobra.Command{
		Use:   "down",
		Short: "Roll back one migration",
		RunE: func(cmd *cobra.Command, _ []string) error {
			database, err := open()
			if err != nil {
				return err
			}
			defer database.Close()
			if err := database.MigrateDown(db.MigrationsFS()); err != nil {
				return fmt.Errorf("migration down failed: %w", err)
			}
			return printStatus(cmd, database)
		},
	}
	status := &cobra.Command{
		Use:   "status",
		Short: "Show the current schema version",
		RunE: func(cmd *cobra.Command, _ []string) error {
			database, err := open()
			if err != nil {
				return err
			}
			defer database.Close()
			return printStatus(cmd, database)
		},
	}
	force := &cobra.Command{
		Use:   "force <version>",
		Short: "Set the schema version without running migrations (recovery only)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			v, err := strconv.Atoi(args[0])
			if err != nil {
				return fmt.Errorf("invalid version number %q", args[0])
			}
			database, err := open()
			if err != nil {
				return err
			}
			defer database.Close()
			if err := database.MigrateForce(db.MigrationsFS(), v); err != nil {
				return fmt.Errorf("force migration failed: %w", err)
			}
			return printStatus(cmd, database)
		},
	}

	cmd.AddCommand(up, down, status, force)
	return cmd
}
