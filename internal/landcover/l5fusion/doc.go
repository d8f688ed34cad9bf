// Package l5fusion builds training masks: the stable-pixel base of a label
// stack, overridden by an ordered list of reference-layer rules, then
// cleaned with a minimum-area filter.
//
// Rules are applied as a single left fold. Each rule reads the output of
// the rule before it, so reordering a rule set changes the mask. Two rules
// that disagree on a pixel are not an error; the later one wins and the
// collision is recorded in RuleStat.Overwritten.
//
// Dependency rule: L5 depends on L1, L2 and L4.
package l5fusion
