// Package reduce projects embedding matrices into two or three dimensions.
//
// Two methods are available:
//
//   - PCA: linear projection onto the directions of maximum variance.
//   - UMAP: non-linear embedding that preserves local neighbourhoods.
//
// Both work on small inputs. PCA clamps its component count to N-1 and
// pads the remaining output columns with zeros; a single row is duplicated
// with a small offset so that a scatter plot has two points. UMAP needs at
// least MinUMAPSamples rows; Reduce falls back to PCA below that and
// whenever UMAP fails numerically.
//
// UMAP is seeded and therefore reproducible. The overlap jitter added to
// PCA output is cosmetic. It is seeded by default and can be switched off.
package reduce
