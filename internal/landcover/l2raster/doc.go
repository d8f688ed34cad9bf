// Package l2raster is the grid layer: dense row-major label and value grids,
// the year-indexed classification Stack, region masks, and the on-disk
// band store.
//
// Responsibilities:
//   - Grid / ValueGrid / Mask storage with Idx(row, col) addressing
//   - Stack: one label Grid per year over a contiguous year range
//   - GeoTransform and GeoJSON study-region rasterization
//   - 8- and 16-bit grayscale TIFF band codec
//   - BandStore: stack.json manifest plus one TIFF per year, written
//     atomically so an interrupted run never leaves a readable partial stack
//
// Dependency rule: L2 depends on L1 (labels) and fsutil only.
package l2raster
