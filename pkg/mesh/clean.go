package mesh

import (
	"math"

	"gonum.org/v1/gonum/spatial/r3"
)

// DefaultMergeTolerance is the absolute distance under which two vertex
// positions are considered the same point. Adjacent marching-cubes cells
// emit their shared boundary vertices independently, so the raw
// extractor output contains large numbers of duplicates at exactly (up
// to rounding) coincident positions.
const DefaultMergeTolerance = 1e-6

// minFaceArea is the numerical-zero threshold below which a face is
// treated as degenerate and dropped.
const minFaceArea = 1e-12

// Cleaner merges duplicate vertices and removes degenerate faces.
// Cleaning is idempotent and preserves the relative order of surviving
// faces. Face winding is assumed consistent on input and passes through
// unchanged. It does not guarantee a manifold result: non-manifold
// edges produced by ambiguous extraction cases pass through unchanged.
type Cleaner struct {
	// Tolerance is the absolute vertex merge distance.
	Tolerance float64
}

// NewCleaner returns a Cleaner with the default merge tolerance.
func NewCleaner() *Cleaner {
	return &Cleaner{Tolerance: DefaultMergeTolerance}
}

// cellKey quantizes a position onto the merge grid.
type cellKey struct {
	x, y, z int64
}

// Clean returns a new mesh with coincident vertices merged, face
// indices remapped and degenerate faces dropped. The input is not
// modified.
func (c *Cleaner) Clean(m *Mesh) *Mesh {
	tol := c.Tolerance
	if tol <= 0 {
		tol = DefaultMergeTolerance
	}

	// Bucket vertices on a grid of tol-sized cells and compare against
	// the 27 neighboring cells, so pairs straddling a cell boundary
	// still merge.
	buckets := make(map[cellKey][]int, len(m.Vertices))
	remap := make([]int, len(m.Vertices))
	var vertices []r3.Vec
	var normals []r3.Vec
	hasNormals := len(m.Normals) == len(m.Vertices)

	quantize := func(v r3.Vec) cellKey {
		return cellKey{
			x: int64(math.Floor(v.X / tol)),
			y: int64(math.Floor(v.Y / tol)),
			z: int64(math.Floor(v.Z / tol)),
		}
	}

	for i, v := range m.Vertices {
		key := quantize(v)
		found := -1
	search:
		for dx := int64(-1); dx <= 1; dx++ {
			for dy := int64(-1); dy <= 1; dy++ {
				for dz := int64(-1); dz <= 1; dz++ {
					k := cellKey{key.x + dx, key.y + dy, key.z + dz}
					for _, j := range buckets[k] {
						if r3.Norm(r3.Sub(v, vertices[j])) <= tol {
							found = j
							break search
						}
					}
				}
			}
		}
		if found >= 0 {
			remap[i] = found
			continue
		}
		idx := len(vertices)
		vertices = append(vertices, v)
		if hasNormals {
			normals = append(normals, m.Normals[i])
		}
		buckets[key] = append(buckets[key], idx)
		remap[i] = idx
	}

	out := &Mesh{Vertices: vertices, Normals: normals}

	// Remap faces in their original order and drop the ones the merge
	// has collapsed.
	for _, f := range m.Faces {
		g := [3]int{remap[f[0]], remap[f[1]], remap[f[2]]}
		if g[0] == g[1] || g[1] == g[2] || g[0] == g[2] {
			continue
		}
		a, b, cc := out.Vertices[g[0]], out.Vertices[g[1]], out.Vertices[g[2]]
		area := 0.5 * r3.Norm(r3.Cross(r3.Sub(b, a), r3.Sub(cc, a)))
		if area < minFaceArea {
			continue
		}
		out.Faces = append(out.Faces, g)
	}

	return out
}
