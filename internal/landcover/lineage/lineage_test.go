package lineage

import (
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestParseRoundTrip(t *testing.T) {
	names := []string{
		"CERRADO_C10_gapfill_v11_incidence_v4_sandVeg_v3_freq_v7_temp_v16_falseReg_v29_geo_v11_sp_v10",
		"CERRADO_S03_gapfill_v2_temp_v8",
		"CERRADO_C10",
		"ROCKY_gapfill_v0",
	}
	for _, s := range names {
		t.Run(s, func(t *testing.T) {
			n, err := Parse(s)
			if err != nil {
				t.Fatalf("Parse(%q): %v", s, err)
			}
			if got := n.String(); got != s {
				t.Errorf("round trip: got %q, want %q", got, s)
			}
		})
	}
}

func TestParseSteps(t *testing.T) {
	n, err := Parse("CERRADO_C10_gapfill_v11_freq_v7")
	if err != nil {
		t.Fatal(err)
	}
	want := Name{Prefix: "CERRADO_C10", Steps: []Step{{"gapfill", 11}, {"freq", 7}}}
	if diff := cmp.Diff(want, n); diff != "" {
		t.Errorf("Parse mismatch (-want +got):\n%s", diff)
	}
	if !n.Has("freq") || n.Has("temp") {
		t.Errorf("Has: unexpected result for %v", n)
	}
	if st, ok := n.Latest(); !ok || st != (Step{"freq", 7}) {
		t.Errorf("Latest = %v, %v", st, ok)
	}
}

func TestParseMalformed(t *testing.T) {
	for _, s := range []string{"", "A__gapfill_v1", "A_gapfill_v1_freq", "A_gapfill_v1_v2_v3", "_A"} {
		t.Run(s, func(t *testing.T) {
			if _, err := Parse(s); !errors.Is(err, ErrMalformed) {
				t.Errorf("Parse(%q) error = %v, want ErrMalformed", s, err)
			}
		})
	}
}

func TestAppendTruncate(t *testing.T) {
	base := MustParse("CERRADO_C10_gapfill_v11")
	next, err := base.Append("freq", 7)
	if err != nil {
		t.Fatal(err)
	}
	if got := next.String(); got != "CERRADO_C10_gapfill_v11_freq_v7" {
		t.Errorf("Append = %q", got)
	}
	if got := base.String(); got != "CERRADO_C10_gapfill_v11" {
		t.Errorf("Append mutated receiver: %q", got)
	}
	if got := next.Truncate(1).String(); got != base.String() {
		t.Errorf("Truncate(1) = %q", got)
	}
	if got := next.Truncate(0).String(); got != "CERRADO_C10" {
		t.Errorf("Truncate(0) = %q", got)
	}

	if _, err := base.Append("false_reg", 1); err == nil {
		t.Error("Append accepted a stage with an underscore")
	}
	if _, err := base.Append("v2", 1); err == nil {
		t.Error("Append accepted a version-like stage")
	}
}
