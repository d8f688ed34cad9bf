package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/banshee-data/landcover.report/internal/db"
	"github.com/banshee-data/landcover.report/internal/landcover/storage/sqlite"
	"github.com/banshee-data/landcover.report/internal/security"
)

func openAssets(g *globalFlags) (*db.DB, *sqlite.AssetStore, error) {
	cfg, err := g.loadConfig()
	if err != nil {
		return nil, nil, err
	}
	database, err := db.NewDB(cfg.GetDBPath())
	if err != nil {
		return nil, nil, err
	}
	return database, sqlite.NewAssetStore(database.DB), nil
}

func newAssetsCmd(g *globalFlags) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "assets",
		Short: "Inspect the asset registry",
	}

	var prefix string
	list := &cobra.Command{
		Use:   "list",
		Short: "List registered assets, oldest first",
		RunE: func(cmd *cobra.Command, _ []string) error {
			database, store, err := openAssets(g)
			if err != nil {
				return err
			}
			defer database.Close()
			assets, err := store.List(prefix)
			if err != nil {
				return err
			}
			return printAssets(cmd.OutOrStdout(), assets)
		},
	}
	list.Flags().StringVar(&prefix, "prefix", "", "only assets with this lineage prefix")

	show := &cobra.Command{
		Use:   "show <name-or-id>",
		Short: "Print one asset and its change report as JSON",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			database, store, err := openAssets(g)
			if err != nil {
				return err
			}
			defer database.Close()
			a, err := store.GetByName(args[0])
			if errors.Is(err, sqlite.ErrAssetNotFound) {
				a, err = store.Get(args[0])
			}
			if err != nil {
				return fmt.Errorf("%s: %w", args[0], err)
			}
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(a)
		},
	}

	var exportPath string
	export := &cobra.Command{
		Use:   "export",
		Short: "Write every asset as a JSON array",
		RunE: func(cmd *cobra.Command, _ []string) error {
			database, store, err := openAssets(g)
			if err != nil {
				return err
			}
			defer database.Close()
			assets, err := store.List(prefix)
			if err != nil {
				return err
			}
			data, err := json.MarshalIndent(assets, "", "  ")
			if err != nil {
				return err
			}
			if exportPath == "" {
				_, err = cmd.OutOrStdout().Write(append(data, '\n'))
				return err
			}
			if err := security.ValidateExportPath(exportPath); err != nil {
				return err
			}
			return os.WriteFile(exportPath, data, 0o644)
		},
	}
	export.Flags().StringVar(&prefix, "prefix", "", "only assets with this lineage prefix")
	export.Flags().StringVarP(&exportPath, "output", "o", "", "output file (stdout when empty)")

	cmd.AddCommand(list, show, export)
	return cmd
}

func printAssets(w io.Writer, assets []*sqlite.Asset) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "NAME\tSTAGE\tRULESET\tYEARS\tCHANGED\tCREATED")
	for _, a := range assets {
		fmt.Fprintf(tw, "%s\t%s_v%d\t%s\t%d-%d\t%d\t%s\n",
			a.Name, a.Stage, a.StageVersion, a.RuleSet, a.StartYear, a.EndYear,
			a.ChangedPixels, time.Unix(0, a.CreatedAt).UTC().Format(time.RFC3339))
	}
	return tw.Flush()
}
