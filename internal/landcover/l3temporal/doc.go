// Package l3temporal implements the per-pixel temporal consistency stages.
//
// Every stage is a pure function from one l1labels.Series to a fresh
// Series: gap filling, class remapping, N-year window rules, first/last
// year boundary rules, frequency stabilization and the transition rules
// that undo implausible regrowth or sudden class appearance. Stages are
// composed with Chain and executed per pixel by the pipeline package.
//
// Nothing here knows about neighbours. Spatial corroboration lives in
// l4spatial.
//
// Dependency rule: L3 depends on L1 only.
package l3temporal
