// Package lineage parses and formats asset lineage names.
//
// A lineage name is a prefix followed by the ordered processing steps that
// produced an asset, each written as "<stage>_v<version>":
//
//	CERRADO_C10_gapfill_v11_incidence_v4_freq_v7_temp_v16
//
// Downstream steps parse the name of their input to decide what has already
// been applied, and append their own step to name their output.
package lineage

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// ErrMalformed is returned for names that do not follow the lineage grammar.
var ErrMalformed = errors.New("malformed lineage name")

// Step is one applied processing stage.
type Step struct {
	Stage   string
	Version int
}

func (s Step) String() string { return fmt.Sprintf("%s_v%d", s.Stage, s.Version) }

// Name is a parsed lineage.
type Name struct {
	Prefix string
	Steps  []Step
}

func parseVersion(tok string) (int, bool) {
	if len(tok) < 2 || tok[0] != 'v' {
		return 0, false
	}
	v, err := strconv.Atoi(tok[1:])
	if err != nil || v < 0 || strconv.Itoa(v) != tok[1:] {
		return 0, false
	}
	return v, true
}

// Parse splits a lineage name into its prefix and steps. The prefix is
// everything before the first "<stage>_v<N>" pair; every token after that
// must belong to a pair. A bare prefix with no steps is valid.
func Parse(s string) (Name, error) {
	if s == "" {
		return Name{}, fmt.Errorf("%w: empty", ErrMalformed)
	}
	toks := strings.Split(s, "_")
	for _, t := range toks {
		if t == "" {
			return Name{}, fmt.Errorf("%w: %q has an empty segment", ErrMalformed, s)
		}
	}
	first := len(toks)
	for i := 1; i+1 < len(toks); i++ {
		if _, ok := parseVersion(toks[i+1]); ok {
			first = i
			break
		}
	}
	n := Name{Prefix: strings.Join(toks[:first], "_")}
	rest := toks[first:]
	if len(rest)%2 != 0 {
		return Name{}, fmt.Errorf("%w: %q has a dangling segment %q", ErrMalformed, s, rest[len(rest)-1])
	}
	for i := 0; i < len(rest); i += 2 {
		v, ok := parseVersion(rest[i+1])
		if !ok {
			return Name{}, fmt.Errorf("%w: %q: expected version after %q, got %q", ErrMalformed, s, rest[i], rest[i+1])
		}
		if _, isVersion := parseVersion(rest[i]); isVersion {
			return Name{}, fmt.Errorf("%w: %q: stage name %q looks like a version", ErrMalformed, s, rest[i])
		}
		n.Steps = append(n.Steps, Step{Stage: rest[i], Version: v})
	}
	return n, nil
}

// MustParse is Parse for literals in tests and defaults.
func MustParse(s string) Name {
	n, err := Parse(s)
	if err != nil {
		panic(err)
	}
	return n
}

func (n Name) String() string {
	var b strings.Builder
	b.WriteString(n.Prefix)
	for _, st := range n.Steps {
		b.WriteByte('_')
		b.WriteString(st.String())
	}
	return b.String()
}

// ValidateStage rejects stage names that would not survive a round trip.
func ValidateStage(stage string) error {
	if stage == "" || strings.Contains(stage, "_") {
		return fmt.Errorf("%w: stage %q must be non-empty and contain no underscore", ErrMalformed, stage)
	}
	if _, ok := parseVersion(stage); ok {
		return fmt.Errorf("%w: stage %q looks like a version", ErrMalformed, stage)
	}
	return nil
}

// Append returns a new name with one more step. n is not modified.
func (n Name) Append(stage string, version int) (Name, error) {
	if err := ValidateStage(stage); err != nil {
		return Name{}, err
	}
	if version < 0 {
		return Name{}, fmt.Errorf("%w: negative version %d", ErrMalformed, version)
	}
	out := Name{Prefix: n.Prefix, Steps: make([]Step, len(n.Steps), len(n.Steps)+1)}
	copy(out.Steps, n.Steps)
	out.Steps = append(out.Steps, Step{Stage: stage, Version: version})
	return out, nil
}

// Has reports whether stage was applied, at any version.
func (n Name) Has(stage string) bool {
	for _, st := range n.Steps {
		if st.Stage == stage {
			return true
		}
	}
	return false
}

// Latest returns the last applied step.
func (n Name) Latest() (Step, bool) {
	if len(n.Steps) == 0 {
		return Step{}, false
	}
	return n.Steps[len(n.Steps)-1], true
}

// Truncate returns the name made of the prefix and the first k steps.
func (n Name) Truncate(k int) Name {
	if k > len(n.Steps) {
		k = len(n.Steps)
	}
	if k < 0 {
		k = 0
	}
	return Name{Prefix: n.Prefix, Steps: append([]Step(nil), n.Steps[:k]...)}
}
