// Package pipeline runs the post-classification consistency chain over an
// annual classification stack and builds stable-pixel training masks.
//
// This package is the composition root: it imports from the layer packages
// (l1labels, l2raster, l3temporal, l4spatial, l5fusion), lineage, config and
// storage, but none of those packages import pipeline/.
//
// Temporal stages run as a pixel-parallel map over row blocks. Spatial
// stages run per year band, each round finishing for the whole band before
// the next one starts. Every stage produces a fresh stack, which is what
// makes checkpointing between stages possible.
package pipeline
