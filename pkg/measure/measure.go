// Package measure computes geometric summary metrics of a triangle mesh.
package measure

import (
	"math"

	"gonum.org/v1/gonum/spatial/r3"

	"ctstackto3d/pkg/mesh"
)

// Metrics summarizes the geometry of a mesh.
type Metrics struct {
	// TriangleCount is the number of faces measured.
	TriangleCount int

	// SurfaceArea is the sum of all face areas.
	SurfaceArea float64

	// Volume is the enclosed volume computed by the signed-tetrahedra
	// method. It is exact for closed consistently wound meshes; for
	// meshes with boundary it is the absolute net signed volume, an
	// approximation that degrades with the amount of missing surface.
	Volume float64

	// BoundsMin and BoundsMax are the axis-aligned bounding box corners.
	BoundsMin r3.Vec
	BoundsMax r3.Vec

	// Centroid is the area-weighted average of the face centroids. It is
	// a surface centroid, not a solid center of mass, but matches it for
	// the closed shells the pipeline produces well enough for reporting.
	Centroid r3.Vec
}

// BoundsSize returns the bounding box extents per axis.
func (m Metrics) BoundsSize() r3.Vec {
	return r3.Sub(m.BoundsMax, m.BoundsMin)
}

// Analyze measures a mesh in a single pass over its faces. Meshes with
// zero faces yield zero metrics. The input is not modified, and the
// result depends only on the set of faces, not their order or the cyclic
// rotation of their vertices.
func Analyze(m *mesh.Mesh) Metrics {
	out := Metrics{TriangleCount: m.TriangleCount()}
	if out.TriangleCount == 0 {
		return out
	}

	out.BoundsMin = r3.Vec{X: math.Inf(1), Y: math.Inf(1), Z: math.Inf(1)}
	out.BoundsMax = r3.Vec{X: math.Inf(-1), Y: math.Inf(-1), Z: math.Inf(-1)}

	var signedVolume float64
	var weightedCentroid r3.Vec

	seen := make([]bool, len(m.Vertices))
	for _, f := range m.Faces {
		a, b, c := m.Vertices[f[0]], m.Vertices[f[1]], m.Vertices[f[2]]

		// Signed volume of the tetrahedron spanned by the face and the
		// origin. Outward winding makes the sum the enclosed volume.
		signedVolume += r3.Dot(a, r3.Cross(b, c)) / 6

		area := 0.5 * r3.Norm(r3.Cross(r3.Sub(b, a), r3.Sub(c, a)))
		out.SurfaceArea += area

		centroid := r3.Scale(1.0/3.0, r3.Add(a, r3.Add(b, c)))
		weightedCentroid = r3.Add(weightedCentroid, r3.Scale(area, centroid))

		for _, vi := range f {
			if seen[vi] {
				continue
			}
			seen[vi] = true
			out.BoundsMin = minVec(out.BoundsMin, m.Vertices[vi])
			out.BoundsMax = maxVec(out.BoundsMax, m.Vertices[vi])
		}
	}

	out.Volume = math.Abs(signedVolume)
	if out.SurfaceArea > 0 {
		out.Centroid = r3.Scale(1/out.SurfaceArea, weightedCentroid)
	}
	return out
}

func minVec(a, b r3.Vec) r3.Vec {
	return r3.Vec{X: math.Min(a.X, b.X), Y: math.Min(a.Y, b.Y), Z: math.Min(a.Z, b.Z)}
}

func maxVec(a, b r3.Vec) r3.Vec {
	return r3.Vec{X: math.Max(a.X, b.X), Y: math.Max(a.Y, b.Y), Z: math.Max(a.Z, b.Z)}
}
