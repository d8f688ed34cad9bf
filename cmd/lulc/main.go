// Command lulc runs the land-cover post-classification chain over annual
// classification stacks and manages the asset registry it writes to.
package main

import (
	"fmt"
	"io"
	"log"
	"os"

	"github.com/spf13/cobra"

	"github.com/banshee-data/landcover.report/internal/config"
	"github.com/banshee-data/landcover.report/internal/landcover/pipeline"
	"github.com/banshee-data/landcover.report/internal/monitoring"
	"github.com/banshee-data/landcover.report/internal/version"
)

// globalFlags are shared by every subcommand.
type globalFlags struct {
	configPath string
	dbPath     string
	logDiag    bool
	logTrace   bool
}

func main() {
	if err := newRootCmd(os.Stderr).Execute(); err != nil {
		log.Fatalf("lulc: %v", err)
	}
}

func newRootCmd(logOut io.Writer) *cobra.Command {
	g := &globalFlags{}
	root := &cobra.Command{
		Use:           "lulc",
		Short:         "Post-classification consistency for annual land-cover maps",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&g.configPath, "config", "", "run configuration JSON (defaults apply when empty)")
	root.PersistentFlags().StringVar(&g.dbPath, "db", "", "asset registry database (overrides db_path)")
	root.PersistentFlags().BoolVar(&g.logDiag, "log-diag", false, "enable the diagnostic log stream")
	root.PersistentFlags().BoolVar(&g.logTrace, "log-trace", false, "enable the per-band trace log stream")

	root.AddCommand(
		newPostclassCmd(g, logOut),
		newTrainingMaskCmd(g, logOut),
		newAssetsCmd(g),
		newMigrateCmd(g),
		&cobra.Command{
			Use:   "version",
			Short: "Print the build version",
			Run: func(cmd *cobra.Command, _ []string) {
				fmt.Fprintln(cmd.OutOrStdout(), version.String())
			},
		},
	)
	return root
}

// loadConfig reads the run configuration and applies the command-line
// overrides.
func (g *globalFlags) loadConfig() (*config.PipelineConfig, error) {
	cfg := config.DefaultPipelineConfig()
	if g.configPath != "" {
		var err error
		if cfg, err = config.LoadPipelineConfig(g.configPath); err != nil {
			return nil, err
		}
	}
	if g.dbPath != "" {
		cfg.DBPath = &g.dbPath
	}
	if g.logDiag {
		cfg.LogDiag = &g.logDiag
	}
	if g.logTrace {
		cfg.LogTrace = &g.logTrace
	}
	return cfg, nil
}

// setupLogging routes the pipeline streams to w. Diagnostics and traces are
// opt-in.
func setupLogging(cfg *config.PipelineConfig, w io.Writer) {
	var diag, trace io.Writer
	if cfg.GetLogDiag() {
		diag = w
	}
	if cfg.GetLogTrace() {
		trace = w
	}
	pipeline.SetLogWriters(w, diag, trace)
	monitoring.SetLogger(monitoring.WriterLogf(w, "[lulc] "))
}
