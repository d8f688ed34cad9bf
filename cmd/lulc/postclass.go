package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/paulmach/orb"
	"github.com/spf13/cobra"

	"github.com/banshee-data/landcover.report/internal/config"
	"github.com/banshee-data/landcover.report/internal/db"
	"github.com/banshee-data/landcover.report/internal/fsutil"
	"github.com/banshee-data/landcover.report/internal/landcover/l2raster"
	"github.com/banshee-data/landcover.report/internal/landcover/pipeline"
	"github.com/banshee-data/landcover.report/internal/landcover/storage/sqlite"
	"github.com/banshee-data/landcover.report/internal/monitoring"
	"github.com/banshee-data/landcover.report/internal/version"
)

// runFlags are the inputs shared by postclass and trainingmask.
type runFlags struct {
	input   string
	output  string
	layers  string
	ruleSet string
	workers int
	resume  bool
}

func (f *runFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVar(&f.input, "input", "", "input stack directory (stack.json + classification_<year>.tif)")
	cmd.Flags().StringVar(&f.output, "output", "", "output directory")
	cmd.Flags().StringVar(&f.layers, "layers", "", "reference layer directory")
	cmd.Flags().StringVar(&f.ruleSet, "ruleset", "", "embedded rule set name or .yaml file (overrides the config)")
	cmd.Flags().IntVar(&f.workers, "workers", -1, "worker goroutines (0 = one per CPU)")
	_ = cmd.MarkFlagRequired("input")
	_ = cmd.MarkFlagRequired("output")
}

// apply folds the flags into cfg and revalidates it.
func (f *runFlags) apply(cfg *config.PipelineConfig) error {
	if f.ruleSet != "" {
		empty := ""
		if ext := filepath.Ext(f.ruleSet); ext == ".yaml" || ext == ".yml" {
			cfg.RuleSet, cfg.RuleSetPath = &empty, &f.ruleSet
		} else {
			cfg.RuleSet, cfg.RuleSetPath = &f.ruleSet, &empty
		}
	}
	if f.workers >= 0 {
		cfg.Workers = &f.workers
	}
	if f.resume {
		cfg.Resume = &f.resume
		on := true
		cfg.Checkpoint = &on
	}
	return cfg.Validate()
}

// session is everything one command invocation opens.
type session struct {
	cfg     *config.PipelineConfig
	ruleSet *config.RuleSet
	db      *db.DB
	assets  *sqlite.AssetStore
	metrics *monitoring.Metrics
	layers  *l2raster.BandStore
	region  orb.MultiPolygon
}

func openSession(g *globalFlags, f *runFlags, logOut io.Writer) (*session, error) {
	cfg, err := g.loadConfig()
	if err != nil {
		return nil, err
	}
	if err := f.apply(cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	setupLogging(cfg, logOut)

	rs, err := cfg.LoadRuleSet()
	if err != nil {
		return nil, err
	}
	s := &session{cfg: cfg, ruleSet: rs, metrics: monitoring.NewMetrics()}
	if f.layers != "" {
		s.layers = l2raster.NewBandStore(fsutil.OSFileSystem{}, f.layers)
	}
	if p := cfg.GetRegionGeoJSON(); p != "" {
		data, err := os.ReadFile(p)
		if err != nil {
			return nil, fmt.Errorf("read region: %w", err)
		}
		if s.region, err = l2raster.ParseRegion(data); err != nil {
			return nil, fmt.Errorf("region %s: %w", p, err)
		}
	}
	if s.db, err = db.NewDB(cfg.GetDBPath()); err != nil {
		return nil, err
	}
	s.assets = sqlite.NewAssetStore(s.db.DB)
	return s, nil
}

func (s *session) close() {
	if s.db != nil {
		s.db.Close()
	}
}

func (s *session) options() pipeline.Options {
	opts := pipeline.Options{
		RuleSet:  s.ruleSet,
		Region:   s.region,
		Workers:  s.cfg.GetWorkers(),
		Registry: s.assets,
		Metrics:  s.metrics,
		Producer: version.String(),
	}
	// A nil *BandStore in the interface would read as configured.
	if s.layers != nil {
		opts.Layers = s.layers
	}
	if s.cfg.GetCheckpoint() {
		opts.Checkpoints = sqlite.NewCheckpointStore(s.db.DB, s.assets)
		opts.Resume = s.cfg.GetResume()
	}
	return opts
}

func newPostclassCmd(g *globalFlags, logOut io.Writer) *cobra.Command {
	f := &runFlags{}
	cmd := &cobra.Command{
		Use:   "postclass",
		Short: "Run the post-classification chain over an annual stack",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			return runPostclass(ctx, g, f, logOut, cmd.OutOrStdout())
		},
	}
	f.register(cmd)
	cmd.Flags().BoolVar(&f.resume, "resume", false, "restart after the deepest stored checkpoint")
	return cmd
}

func runPostclass(ctx context.Context, g *globalFlags, f *runFlags, logOut, out io.Writer) error {
	s, err := openSession(g, f, logOut)
	if err != nil {
		return err
	}
	defer s.close()

	in, _, err := l2raster.NewBandStore(fsutil.OSFileSystem{}, f.input).ReadStack()
	if err != nil {
		return fmt.Errorf("input %s: %w", f.input, err)
	}
	runner, err := pipeline.NewRunner(s.options())
	if err != nil {
		return err
	}
	res, err := runner.Run(ctx, in)
	if err != nil {
		if errors.Is(err, pipeline.ErrIncompleteOutput) {
			return fmt.Errorf("run aborted, nothing written: %w", err)
		}
		return err
	}

	m := l2raster.Manifest{
		Name:     res.Name.String(),
		Lineage:  res.Name.String(),
		RuleSet:  s.ruleSet.Name,
		Producer: version.String(),
	}
	if err := l2raster.NewBandStore(fsutil.OSFileSystem{}, f.output).WriteStack(res.Stack, m); err != nil {
		return fmt.Errorf("write output: %w", err)
	}
	a, err := runner.Register(res, f.output)
	if err != nil {
		return err
	}
	if err := s.metrics.WriteTextfile(s.cfg.GetMetricsTextfile()); err != nil {
		return fmt.Errorf("write metrics: %w", err)
	}
	fmt.Fprintf(out, "%s\t%s\t%d pixel-years changed\n", a.AssetID, a.Name, res.Report.Changed())
	return nil
}

func newTrainingMaskCmd(g *globalFlags, logOut io.Writer) *cobra.Command {
	f := &runFlags{}
	cmd := &cobra.Command{
		Use:   "trainingmask",
		Short: "Derive a stable-pixel training mask from a reference stack",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runTrainingMask(cmd.Context(), g, f, logOut, cmd.OutOrStdout())
		},
	}
	f.register(cmd)
	return cmd
}

func runTrainingMask(ctx context.Context, g *globalFlags, f *runFlags, logOut, out io.Writer) error {
	s, err := openSession(g, f, logOut)
	if err != nil {
		return err
	}
	defer s.close()

	in, _, err := l2raster.NewBandStore(fsutil.OSFileSystem{}, f.input).ReadStack()
	if err != nil {
		return fmt.Errorf("input %s: %w", f.input, err)
	}
	opts := s.options()
	opts.Checkpoints, opts.Resume = nil, false
	runner, err := pipeline.NewRunner(opts)
	if err != nil {
		return err
	}
	res, err := runner.TrainingMask(ctx, in)
	if err != nil {
		return err
	}
	if err := l2raster.NewBandStore(fsutil.OSFileSystem{}, f.output).WriteLabelLayer(res.Name.String(), res.Mask); err != nil {
		return fmt.Errorf("write mask: %w", err)
	}
	a := &sqlite.Asset{
		Name:      res.Name.String(),
		RuleSet:   s.ruleSet.Name,
		StartYear: in.StartYear,
		EndYear:   in.EndYear(),
		Width:     in.Width,
		Height:    in.Height,
		Producer:  version.String(),
		Path:      filepath.Join(f.output, res.Name.String()+".tif"),
	}
	if err := s.assets.Insert(a); err != nil {
		return err
	}
	if err := s.metrics.WriteTextfile(s.cfg.GetMetricsTextfile()); err != nil {
		return fmt.Errorf("write metrics: %w", err)
	}
	fmt.Fprintf(out, "%s\t%s\t%d stable pixels, %d removed\n", a.AssetID, a.Name, res.Stable, res.Removed)
	return nil
}
