package pipeline

import (
	"fmt"

	"gonum.org/v1/gonum/stat"

	"github.com/banshee-data/landcover.report/internal/landcover/l2raster"
	"github.com/banshee-data/landcover.report/internal/landcover/l5fusion"
)

// StageReport summarises what one stage changed. MeanFraction and
// StdFraction describe the fraction of pixels changed per year.
type StageReport struct {
	Stage        string              `json:"stage"`
	Version      int                 `json:"version"`
	Asset        string              `json:"asset"`
	Changed      int                 `json:"changed_pixel_years"`
	PerYear      []int               `json:"changed_per_year"`
	DurationMs   int64               `json:"duration_ms"`
	MeanFraction float64             `json:"mean_changed_fraction"`
	StdFraction  float64             `json:"std_changed_fraction"`
	Missing      int                 `json:"missing_observation_pixels,omitempty"`
	Rules        []l5fusion.RuleStat `json:"rules,omitempty"`
	Resumed      bool                `json:"resumed,omitempty"`
}

// Report is the change report of one run, stored with the final asset.
type Report struct {
	RuleSet  string        `json:"ruleset"`
	Asset    string        `json:"asset"`
	Producer string        `json:"producer"`
	Width    int           `json:"width"`
	Height   int           `json:"height"`
	Years    []int         `json:"years"`
	Clipped  int           `json:"clipped_pixels"`
	Missing  int           `json:"missing_observation_pixels"`
	Stages   []StageReport `json:"stages"`
}

// Changed returns the total pixel-years changed across stages.
func (r *Report) Changed() int {
	total := 0
	for _, s := range r.Stages {
		total += s.Changed
	}
	return total
}

// diffStacks counts changed cells per year between two stacks with the
// same layout.
func diffStacks(before, after *l2raster.Stack) ([]int, error) {
	if err := before.SameLayout(after); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrIncompleteOutput, err)
	}
	perYear := make([]int, before.Len())
	for i := range before.Bands {
		n, err := before.Bands[i].Diff(after.Bands[i])
		if err != nil {
			return nil, fmt.Errorf("%w: year %d: %v", ErrIncompleteOutput, before.StartYear+i, err)
		}
		perYear[i] = n
	}
	return perYear, nil
}

// summarise fills the change totals and the mean and standard deviation of
// the per-year changed fraction.
func (sr *StageReport) summarise(perYear []int, pixels int) {
	sr.PerYear = perYear
	sr.Changed = 0
	fractions := make([]float64, len(perYear))
	for i, n := range perYear {
		sr.Changed += n
		if pixels > 0 {
			fractions[i] = float64(n) / float64(pixels)
		}
	}
	switch len(fractions) {
	case 0:
	case 1:
		sr.MeanFraction = fractions[0]
	default:
		sr.MeanFraction, sr.StdFraction = stat.MeanStdDev(fractions, nil)
	}
}
