// Package testutil provides shared test utilities and fixtures.
//
// This package centralises common test helpers to reduce code duplication
// across test files and improve test maintainability.
package testutil

import (
	"testing"

	"github.com/banshee-data/landcover.report/internal/landcover/l1labels"
	"github.com/banshee-data/landcover.report/internal/landcover/l2raster"
)

// AssertNoError fails the test if err is not nil.
func AssertNoError(t *testing.T, err error) {
	t.Helper()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

// AssertError fails the test if err is nil.
func AssertError(t *testing.T, err error) {
	t.Helper()
	if err == nil {
		t.Fatal("expected error, got nil")
	}
}

// Series builds a label series from integer class codes.
func Series(codes ...int) l1labels.Series {
	s := make(l1labels.Series, len(codes))
	for i, c := range codes {
		s[i] = l1labels.Label(c)
	}
	return s
}

// UniformGrid returns a width x height grid filled with l.
func UniformGrid(width, height int, l l1labels.Label) *l2raster.Grid {
	g := l2raster.NewGrid(width, height)
	g.Fill(l)
	return g
}

// GridFromRows builds a grid from integer rows and fails the test on
// ragged input.
func GridFromRows(t *testing.T, rows ...[]int) *l2raster.Grid {
	t.Helper()
	labels := make([][]l1labels.Label, len(rows))
	for i, r := range rows {
		labels[i] = Series(r...)
	}
	g, err := l2raster.GridFromRows(labels)
	if err != nil {
		t.Fatalf("GridFromRows: %v", err)
	}
	return g
}

// UniformStack returns a stack where every pixel holds series, starting at
// startYear.
func UniformStack(t *testing.T, startYear, width, height int, series l1labels.Series) *l2raster.Stack {
	t.Helper()
	s, err := l2raster.NewStack(startYear, startYear+len(series)-1, width, height)
	if err != nil {
		t.Fatalf("NewStack: %v", err)
	}
	for idx := 0; idx < s.Pixels(); idx++ {
		s.SetSeries(idx, series)
	}
	return s
}
