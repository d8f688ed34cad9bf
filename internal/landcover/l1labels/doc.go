// Package l1labels holds the categorical label model shared by every
// post-classification stage.
//
// Responsibilities: the Label type and the NoData sentinel, the class codes
// the shipped rule sets refer to, class remapping tables, class sets, and the
// per-pixel Series value with its counting helpers (runs, histogram, mode).
//
// Dependency rule: L1 depends on nothing inside landcover. Every higher
// layer (l2raster, l3temporal, l4spatial, l5fusion) imports L1.
package l1labels
