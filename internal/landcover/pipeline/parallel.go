package pipeline

import (
	"context"
	"fmt"
	"runtime"

	"golang.org/x/sync/errgroup"

	"github.com/banshee-data/landcover.report/internal/landcover/l1labels"
	"github.com/banshee-data/landcover.report/internal/landcover/l2raster"
)

// rowsPerBlock bounds the unit of work handed to one goroutine.
const rowsPerBlock = 64

func workerCount(n int) int {
	if n <= 0 {
		return runtime.NumCPU()
	}
	return n
}

// mapPixels applies fn to the series of every pixel and writes the results
// into a fresh stack. Pixels are independent, so row blocks run
// concurrently with no ordering between them. Pixels with no valid year are
// passed through untouched and counted.
func mapPixels(ctx context.Context, in *l2raster.Stack, workers int, fn func(idx int, s l1labels.Series) l1labels.Series) (*l2raster.Stack, int, error) {
	out := l2raster.NewStackLike(in)
	missing := make([]int, (in.Height+rowsPerBlock-1)/rowsPerBlock)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workerCount(workers))
	for block := range missing {
		block := block
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			lo := block * rowsPerBlock * in.Width
			hi := min((block+1)*rowsPerBlock, in.Height) * in.Width
			var buf l1labels.Series
			for idx := lo; idx < hi; idx++ {
				buf = in.Series(idx, buf)
				if buf.AllMissing() {
					missing[block]++
					continue
				}
				res := fn(idx, buf)
				if len(res) != len(buf) {
					return fmt.Errorf("%w: pixel %d: series of %d years became %d", ErrIncompleteOutput, idx, len(buf), len(res))
				}
				out.SetSeries(idx, res)
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, 0, err
	}
	total := 0
	for _, m := range missing {
		total += m
	}
	return out, total, nil
}

// mapBands applies fn to every year band concurrently. fn must finish all
// of its rounds over a band before returning; Wait is the barrier that keeps
// the next stage from reading a partially filtered stack.
func mapBands(ctx context.Context, in *l2raster.Stack, workers int, fn func(year int, g *l2raster.Grid) (*l2raster.Grid, error)) (*l2raster.Stack, error) {
	out := l2raster.NewStackLike(in)
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workerCount(workers))
	for i, band := range in.Bands {
		i, band := i, band
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			year := in.StartYear + i
			res, err := fn(year, band)
			if err != nil {
				return fmt.Errorf("year %d: %w", year, err)
			}
			if err := in.Shape.Check(res.Shape); err != nil {
				return fmt.Errorf("%w: year %d: %v", ErrIncompleteOutput, year, err)
			}
			out.Bands[i] = res
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}
