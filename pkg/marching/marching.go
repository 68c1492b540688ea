// Package marching extracts an isosurface triangle mesh from a uniform
// scalar grid using the marching cubes algorithm.
package marching

import (
	"math"

	"gonum.org/v1/gonum/spatial/r3"

	"ctstackto3d/pkg/mesh"
	"ctstackto3d/pkg/volume"
)

// Extractor converts a volume grid plus a scalar threshold into a raw
// triangle mesh approximating the level set {p : scalar(p) = threshold}.
//
// The grid is padded with one layer of virtual exterior corners that
// always classify as outside, so any region of above-threshold voxels
// touching the grid boundary is closed off by a boundary shell. Closed
// output is what makes the enclosed-volume integral meaningful, but it
// also means boundary-clipped regions include their caps and side
// walls: the surface metrics of, say, a half-space ramp describe the
// closed slab, not just its interior level-set plane. The raw output is
// a triangle soup with duplicated cell-boundary vertices; run it
// through mesh.Cleaner before measuring or decimating.
type Extractor struct {
	grid *volume.Grid
	iso  float64

	// computeNormals toggles per-vertex gradient normals.
	computeNormals bool
}

// NewExtractor returns an extractor for the given grid and threshold.
func NewExtractor(grid *volume.Grid, iso float64) *Extractor {
	return &Extractor{grid: grid, iso: iso, computeNormals: true}
}

// ComputeNormals toggles per-vertex normal generation from the local
// scalar gradient. Normals are additive: turning them off (or a zero
// gradient) never changes the emitted geometry.
func (e *Extractor) ComputeNormals(on bool) {
	e.computeNormals = on
}

// Inside is the corner classification that fixes the case-table row of
// every cell: a sample is inside the surface iff its value is strictly
// above the threshold. Applying this one rule uniformly is also the
// disambiguation policy for the face-saddle configurations: every
// ambiguous face is triangulated by the fixed table row its corner
// signs select, so two cells sharing a face always agree on the corner
// signs even though the trilinear saddle itself is not examined.
// Saddle faces whose true contour differs from the table's choice can
// still produce cracked or non-manifold seams; that is a known,
// accepted limitation of this resolution rule.
func Inside(value, iso float64) bool {
	return value > iso
}

// corner is one cube corner sample: its lattice coordinate, value and
// whether it is a virtual exterior sample from the boundary padding.
type corner struct {
	x, y, z int
	value   float64
	virtual bool
}

// Extract runs marching cubes over every (padded) cell and returns the
// raw mesh. A volume with no threshold crossings yields a mesh with
// zero faces, which is a valid result.
func (e *Extractor) Extract() *mesh.Mesh {
	g := e.grid
	out := &mesh.Mesh{}

	var corners [8]corner
	var verts [12]r3.Vec
	var norms [12]r3.Vec

	// Cells start one lattice step outside the grid on every side.
	for z := -1; z < g.Depth; z++ {
		for y := -1; y < g.Height; y++ {
			for x := -1; x < g.Width; x++ {
				index := 0
				for i, off := range cornerOffsets {
					c := corner{x: x + off[0], y: y + off[1], z: z + off[2]}
					c.virtual = c.x < 0 || c.y < 0 || c.z < 0 ||
						c.x >= g.Width || c.y >= g.Height || c.z >= g.Depth
					if !c.virtual {
						c.value = g.At(c.x, c.y, c.z)
					}
					corners[i] = c
					if c.virtual || !Inside(c.value, e.iso) {
						index |= 1 << i
					}
				}

				edges := edgeTable[index]
				if edges == 0 {
					// Uniform cell, no geometry.
					continue
				}

				for ei := 0; ei < 12; ei++ {
					if edges&(1<<ei) == 0 {
						continue
					}
					a, b := corners[edgeCorners[ei][0]], corners[edgeCorners[ei][1]]
					verts[ei] = e.interpolate(a, b)
					if e.computeNormals {
						norms[ei] = e.interpolateNormal(a, b)
					}
				}

				row := &triTable[index]
				for t := 0; row[t] != -1; t += 3 {
					base := len(out.Vertices)
					for k := 0; k < 3; k++ {
						ei := row[t+k]
						out.Vertices = append(out.Vertices, verts[ei])
						if e.computeNormals {
							out.Normals = append(out.Normals, norms[ei])
						}
					}
					out.Faces = append(out.Faces, [3]int{base, base + 1, base + 2})
				}
			}
		}
	}

	return out
}

// interpolate places the threshold crossing on the edge between two
// corner samples. Real-to-real edges interpolate linearly; edges with a
// virtual exterior corner have no second value to interpolate against,
// so the crossing is pinned to the edge midpoint. That pins the
// boundary shell half a voxel outside the outermost samples, giving
// every boundary voxel its full unit cell.
func (e *Extractor) interpolate(a, b corner) r3.Vec {
	t := 0.5
	if !a.virtual && !b.virtual {
		denom := b.value - a.value
		if math.Abs(denom) > 1e-12 {
			t = (e.iso - a.value) / denom
		}
		if t < 0 {
			t = 0
		} else if t > 1 {
			t = 1
		}
	}

	s := e.grid.Spacing
	return r3.Vec{
		X: (float64(a.x) + t*float64(b.x-a.x)) * s.X,
		Y: (float64(a.y) + t*float64(b.y-a.y)) * s.Y,
		Z: (float64(a.z) + t*float64(b.z-a.z)) * s.Z,
	}
}

// interpolateNormal blends the corner gradients across the edge and
// orients the result against the gradient, so normals point from the
// above-threshold region toward the outside. Virtual corners reuse the
// gradient of the real end.
func (e *Extractor) interpolateNormal(a, b corner) r3.Vec {
	ga := e.gradient(a)
	gb := e.gradient(b)

	blend := r3.Scale(0.5, r3.Add(ga, gb))
	n := r3.Norm(blend)
	if n < 1e-12 {
		return r3.Vec{}
	}
	return r3.Scale(-1/n, blend)
}

// gradient estimates the scalar gradient at a corner with central
// differences, falling back to clamped one-sided differences at the
// grid border. A virtual corner borrows the gradient of its nearest
// real sample.
func (e *Extractor) gradient(c corner) r3.Vec {
	g := e.grid
	x, y, z := clampInt(c.x, 0, g.Width-1), clampInt(c.y, 0, g.Height-1), clampInt(c.z, 0, g.Depth-1)

	diff := func(span int, vLo, vHi, spacing float64) float64 {
		if span == 0 {
			return 0
		}
		return (vHi - vLo) / (float64(span) * spacing)
	}

	x0, x1 := clampInt(x-1, 0, g.Width-1), clampInt(x+1, 0, g.Width-1)
	y0, y1 := clampInt(y-1, 0, g.Height-1), clampInt(y+1, 0, g.Height-1)
	z0, z1 := clampInt(z-1, 0, g.Depth-1), clampInt(z+1, 0, g.Depth-1)

	return r3.Vec{
		X: diff(x1-x0, g.At(x0, y, z), g.At(x1, y, z), g.Spacing.X),
		Y: diff(y1-y0, g.At(x, y0, z), g.At(x, y1, z), g.Spacing.Y),
		Z: diff(z1-z0, g.At(x, y, z0), g.At(x, y, z1), g.Spacing.Z),
	}
}

func clampInt(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
