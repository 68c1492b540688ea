// Package stl writes triangle meshes as binary STL files.
package stl

import (
	"bufio"
	"encoding/binary"
	"math"
	"os"

	"github.com/pkg/errors"

	"gonum.org/v1/gonum/spatial/r3"

	"ctstackto3d/pkg/mesh"
)

// Triangle is one STL facet: a unit facet normal and three vertices in
// counter-clockwise order seen from the normal side.
type Triangle struct {
	Normal  [3]float32
	Vertex1 [3]float32
	Vertex2 [3]float32
	Vertex3 [3]float32
}

// FromMesh converts an indexed mesh into STL facets. Facet normals are
// recomputed from the face winding rather than taken from the mesh's
// per-vertex normals, since STL stores one normal per facet. Degenerate
// faces get a zero normal, which readers tolerate.
func FromMesh(m *mesh.Mesh) []Triangle {
	triangles := make([]Triangle, 0, m.TriangleCount())
	for i, f := range m.Faces {
		n := m.FaceNormal(i)
		l := r3.Norm(n)
		if l > 0 {
			n = r3.Scale(1/l, n)
		} else {
			n = r3.Vec{}
		}
		triangles = append(triangles, Triangle{
			Normal:  toFloat32(n),
			Vertex1: toFloat32(m.Vertices[f[0]]),
			Vertex2: toFloat32(m.Vertices[f[1]]),
			Vertex3: toFloat32(m.Vertices[f[2]]),
		})
	}
	return triangles
}

// SaveToSTL writes the triangles to filename in binary STL format:
// an 80-byte header, a uint32 triangle count, then one 50-byte record
// per triangle, all little-endian.
func SaveToSTL(filename string, triangles []Triangle) error {
	file, err := os.Create(filename)
	if err != nil {
		return errors.Wrapf(err, "failed to create STL file %s", filename)
	}
	defer file.Close()

	w := bufio.NewWriter(file)

	var header [80]byte
	copy(header[:], "Binary STL generated by ctstackto3d")
	if _, err := w.Write(header[:]); err != nil {
		return errors.Wrap(err, "failed to write STL header")
	}

	if err := binary.Write(w, binary.LittleEndian, uint32(len(triangles))); err != nil {
		return errors.Wrap(err, "failed to write triangle count")
	}

	for i, t := range triangles {
		record := [12]float32{
			t.Normal[0], t.Normal[1], t.Normal[2],
			t.Vertex1[0], t.Vertex1[1], t.Vertex1[2],
			t.Vertex2[0], t.Vertex2[1], t.Vertex2[2],
			t.Vertex3[0], t.Vertex3[1], t.Vertex3[2],
		}
		if err := binary.Write(w, binary.LittleEndian, record); err != nil {
			return errors.Wrapf(err, "failed to write triangle %d", i)
		}
		// Attribute byte count, unused.
		if err := binary.Write(w, binary.LittleEndian, uint16(0)); err != nil {
			return errors.Wrapf(err, "failed to write triangle %d attributes", i)
		}
	}

	if err := w.Flush(); err != nil {
		return errors.Wrapf(err, "failed to flush STL file %s", filename)
	}
	return nil
}

func toFloat32(v r3.Vec) [3]float32 {
	return [3]float32{
		clampFloat32(v.X),
		clampFloat32(v.Y),
		clampFloat32(v.Z),
	}
}

func clampFloat32(v float64) float32 {
	if v > math.MaxFloat32 {
		return math.MaxFloat32
	}
	if v < -math.MaxFloat32 {
		return -math.MaxFloat32
	}
	return float32(v)
}
