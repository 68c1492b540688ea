// Package mesh defines the indexed triangle mesh passed between pipeline
// stages and the cleaning stage that canonicalizes raw extractor output.
package mesh

import (
	"gonum.org/v1/gonum/spatial/r3"
)

// Mesh is an indexed triangle mesh. Faces index into Vertices and are
// consistently wound (counter-clockwise seen from outside). Normals is
// optional: either empty or one unit normal per vertex.
type Mesh struct {
	Vertices []r3.Vec
	Faces    [][3]int
	Normals  []r3.Vec
}

// TriangleCount returns the number of faces.
func (m *Mesh) TriangleCount() int {
	return len(m.Faces)
}

// Clone returns a deep copy. Stages that mutate geometry work on a
// clone so earlier stage outputs stay immutable.
func (m *Mesh) Clone() *Mesh {
	out := &Mesh{
		Vertices: make([]r3.Vec, len(m.Vertices)),
		Faces:    make([][3]int, len(m.Faces)),
	}
	copy(out.Vertices, m.Vertices)
	copy(out.Faces, m.Faces)
	if len(m.Normals) > 0 {
		out.Normals = make([]r3.Vec, len(m.Normals))
		copy(out.Normals, m.Normals)
	}
	return out
}

// FaceNormal returns the unnormalized normal of face i (the cross
// product of two edges); its length is twice the face area.
func (m *Mesh) FaceNormal(i int) r3.Vec {
	f := m.Faces[i]
	a, b, c := m.Vertices[f[0]], m.Vertices[f[1]], m.Vertices[f[2]]
	return r3.Cross(r3.Sub(b, a), r3.Sub(c, a))
}

// FaceArea returns the area of face i.
func (m *Mesh) FaceArea(i int) float64 {
	return 0.5 * r3.Norm(m.FaceNormal(i))
}
