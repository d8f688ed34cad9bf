// Package l4spatial implements the per-band neighbourhood stages: capped
// connected-component sizing, neighbourhood mode, the minimum-mapping-unit
// filter and its gap-closing round, slope-driven reclassification, small
// regrowth exclusion and the change-incidence filter.
//
// Every operation reads one input grid (or stack) and writes a fresh one,
// so callers can run bands in parallel and barrier between rounds.
//
// Dependency rule: L4 depends on L1 and L2.
package l4spatial
