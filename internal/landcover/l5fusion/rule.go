package l5fusion

import (
	"errors"
	"fmt"

	"github.com/banshee-data/landcover.report/internal/landcover/l1labels"
)

// Op is a comparison applied to a reference layer value.
type Op string

const (
	OpEq    Op = "eq"
	OpNeq   Op = "neq"
	OpLt    Op = "lt"
	OpLte   Op = "lte"
	OpGt    Op = "gt"
	OpGte   Op = "gte"
	OpIn    Op = "in"
	OpNotIn Op = "not_in"
)

// ParseOp validates an operator name.
func ParseOp(s string) (Op, error) {
	switch op := Op(s); op {
	case OpEq, OpNeq, OpLt, OpLte, OpGt, OpGte, OpIn, OpNotIn:
		return op, nil
	}
	return "", fmt.Errorf("unknown layer operator %q", s)
}

// SourceCondition tests one reference layer at the pixel being fused.
// Pixels outside the layer footprint never satisfy a condition, whatever
// the operator.
type SourceCondition struct {
	Layer  string
	Op     Op
	Value  float64
	Values []float64
}

func (c SourceCondition) holds(v float64) bool {
	switch c.Op {
	case OpEq:
		return v == c.Value
	case OpNeq:
		return v != c.Value
	case OpLt:
		return v < c.Value
	case OpLte:
		return v <= c.Value
	case OpGt:
		return v > c.Value
	case OpGte:
		return v >= c.Value
	case OpIn, OpNotIn:
		found := false
		for _, x := range c.Values {
			if v == x {
				found = true
				break
			}
		}
		return found == (c.Op == OpIn)
	}
	return false
}

// Rule is one override: where the base label satisfies the base condition
// and every source condition holds, the label becomes Set. Only pixels with
// a valid base label are considered. An empty BaseIn accepts every valid
// label; BaseNotIn then excludes from that.
type Rule struct {
	Name      string
	BaseIn    l1labels.ClassSet
	BaseNotIn l1labels.ClassSet
	Sources   []SourceCondition
	Set       l1labels.Label
}

// Validate checks the fields that would make the rule meaningless.
func (r Rule) Validate() error {
	if r.Name == "" {
		return errors.New("fusion rule: name is required")
	}
	if !r.Set.Valid() {
		return fmt.Errorf("fusion rule %q: set must be a class, not no-data", r.Name)
	}
	if len(r.Sources) == 0 {
		return fmt.Errorf("fusion rule %q: at least one layer condition is required", r.Name)
	}
	for _, c := range r.Sources {
		if c.Layer == "" {
			return fmt.Errorf("fusion rule %q: condition without layer", r.Name)
		}
		if _, err := ParseOp(string(c.Op)); err != nil {
			return fmt.Errorf("fusion rule %q: %w", r.Name, err)
		}
		if (c.Op == OpIn || c.Op == OpNotIn) && len(c.Values) == 0 {
			return fmt.Errorf("fusion rule %q: %s on %q needs values", r.Name, c.Op, c.Layer)
		}
	}
	return nil
}

func (r *Rule) baseMatches(l l1labels.Label) bool {
	if !l.Valid() {
		return false
	}
	if r.BaseIn.Len() > 0 && !r.BaseIn.Has(l) {
		return false
	}
	return !r.BaseNotIn.Has(l)
}

// RuleBuilder assembles a Rule fluently:
//
//	NewRule("prodes").BaseIn(3, 4, 11, 12).Where("prodes", OpEq, 1).Set(27)
type RuleBuilder struct {
	r Rule
}

// NewRule starts a rule with the given name.
func NewRule(name string) *RuleBuilder {
	return &RuleBuilder{r: Rule{Name: name}}
}

// BaseIn restricts the rule to base pixels holding one of labels.
func (b *RuleBuilder) BaseIn(labels ...l1labels.Label) *RuleBuilder {
	for _, l := range labels {
		b.r.BaseIn[l] = true
	}
	return b
}

// BaseNotIn excludes base pixels holding one of labels.
func (b *RuleBuilder) BaseNotIn(labels ...l1labels.Label) *RuleBuilder {
	for _, l := range labels {
		b.r.BaseNotIn[l] = true
	}
	return b
}

// Where adds a scalar layer comparison.
func (b *RuleBuilder) Where(layer string, op Op, value float64) *RuleBuilder {
	b.r.Sources = append(b.r.Sources, SourceCondition{Layer: layer, Op: op, Value: value})
	return b
}

// WhereIn adds a set-membership layer condition.
func (b *RuleBuilder) WhereIn(layer string, values ...float64) *RuleBuilder {
	b.r.Sources = append(b.r.Sources, SourceCondition{Layer: layer, Op: OpIn, Values: values})
	return b
}

// WhereNotIn adds a set-exclusion layer condition.
func (b *RuleBuilder) WhereNotIn(layer string, values ...float64) *RuleBuilder {
	b.r.Sources = append(b.r.Sources, SourceCondition{Layer: layer, Op: OpNotIn, Values: values})
	return b
}

// Set finishes the rule with its output class.
func (b *RuleBuilder) Set(l l1labels.Label) Rule {
	b.r.Set = l
	return b.r
}
