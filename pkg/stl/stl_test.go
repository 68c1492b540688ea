package stl

import (
	"encoding/binary"
	"math"
	"os"
	"path/filepath"
	"testing"

	"gonum.org/v1/gonum/spatial/r3"

	"ctstackto3d/pkg/mesh"
)

// TestFromMesh verifies that facet normals are recomputed from the
// face winding.
func TestFromMesh(t *testing.T) {
	// A single counter-clockwise triangle in the z=0 plane, so its
	// facet normal must be +Z.
	m := &mesh.Mesh{
		Vertices: []r3.Vec{
			{X: 0, Y: 0, Z: 0},
			{X: 1, Y: 0, Z: 0},
			{X: 0, Y: 1, Z: 0},
		},
		Faces: [][3]int{{0, 1, 2}},
	}

	triangles := FromMesh(m)
	if len(triangles) != 1 {
		t.Fatalf("Expected 1 triangle, got %d", len(triangles))
	}

	n := triangles[0].Normal
	if math.Abs(float64(n[0])) > 1e-6 || math.Abs(float64(n[1])) > 1e-6 || math.Abs(float64(n[2])-1) > 1e-6 {
		t.Errorf("Expected facet normal (0,0,1), got (%f,%f,%f)", n[0], n[1], n[2])
	}

	if triangles[0].Vertex2 != [3]float32{1, 0, 0} {
		t.Errorf("Vertex order not preserved: got %v", triangles[0].Vertex2)
	}
}

// TestFromMeshDegenerate verifies degenerate faces produce a zero
// normal instead of NaN.
func TestFromMeshDegenerate(t *testing.T) {
	m := &mesh.Mesh{
		Vertices: []r3.Vec{
			{X: 0, Y: 0, Z: 0},
			{X: 1, Y: 1, Z: 1},
			{X: 2, Y: 2, Z: 2},
		},
		Faces: [][3]int{{0, 1, 2}},
	}

	triangles := FromMesh(m)
	n := triangles[0].Normal
	for i, c := range n {
		if c != 0 {
			t.Errorf("Expected zero normal component %d for degenerate face, got %f", i, c)
		}
	}
}

// TestSaveToSTL verifies that the STL file can be written
func TestSaveToSTL(t *testing.T) {
	// Create a simple triangle for testing
	triangles := []Triangle{
		{
			Normal:  [3]float32{0, 0, 1},
			Vertex1: [3]float32{0, 0, 0},
			Vertex2: [3]float32{1, 0, 0},
			Vertex3: [3]float32{0, 1, 0},
		},
	}

	// Create a temporary file
	tmpFile, err := os.CreateTemp("", "test-*.stl")
	if err != nil {
		t.Fatalf("Failed to create temp file: %v", err)
	}
	defer os.Remove(tmpFile.Name())
	tmpFile.Close()

	// Save triangles to STL
	err = SaveToSTL(tmpFile.Name(), triangles)
	if err != nil {
		t.Fatalf("Failed to save STL: %v", err)
	}

	// Check that file has the exact expected size
	// STL header: 80 bytes
	// Number of triangles: 4 bytes
	// Triangle: 50 bytes (12 bytes per vertex, 12 bytes per normal, 2 bytes attribute)
	info, err := os.Stat(tmpFile.Name())
	if err != nil {
		t.Fatalf("Failed to stat output file: %v", err)
	}
	wantSize := int64(80 + 4 + 50*len(triangles))
	if info.Size() != wantSize {
		t.Errorf("STL file size mismatch, expected %d bytes, got %d", wantSize, info.Size())
	}

	// The declared triangle count must match
	data, err := os.ReadFile(tmpFile.Name())
	if err != nil {
		t.Fatalf("Failed to read output file: %v", err)
	}
	count := binary.LittleEndian.Uint32(data[80:84])
	if count != uint32(len(triangles)) {
		t.Errorf("Expected triangle count %d in header, got %d", len(triangles), count)
	}
}

// TestSaveToSTLRoundTrip writes a mesh and re-reads the vertex records.
func TestSaveToSTLRoundTrip(t *testing.T) {
	m := &mesh.Mesh{
		Vertices: []r3.Vec{
			{X: 0, Y: 0, Z: 0},
			{X: 2, Y: 0, Z: 0},
			{X: 0, Y: 3, Z: 0},
			{X: 0, Y: 0, Z: 4},
		},
		Faces: [][3]int{{0, 1, 2}, {0, 1, 3}},
	}

	tmpDir, err := os.MkdirTemp("", "stl-roundtrip")
	if err != nil {
		t.Fatalf("Failed to create temp dir: %v", err)
	}
	defer os.RemoveAll(tmpDir)

	path := filepath.Join(tmpDir, "out.stl")
	if err := SaveToSTL(path, FromMesh(m)); err != nil {
		t.Fatalf("Failed to save STL: %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("Failed to read STL: %v", err)
	}

	count := binary.LittleEndian.Uint32(data[80:84])
	if count != 2 {
		t.Fatalf("Expected 2 triangles, got %d", count)
	}

	// First record, first vertex starts after the normal (12 bytes).
	readF32 := func(off int) float32 {
		return math.Float32frombits(binary.LittleEndian.Uint32(data[off : off+4]))
	}
	base := 84 + 12
	got := [3]float32{readF32(base), readF32(base + 4), readF32(base + 8)}
	if got != [3]float32{0, 0, 0} {
		t.Errorf("First vertex mismatch: got %v", got)
	}
	v2 := [3]float32{readF32(base + 12), readF32(base + 16), readF32(base + 20)}
	if v2 != [3]float32{2, 0, 0} {
		t.Errorf("Second vertex mismatch: got %v", v2)
	}
}

// TestSaveToSTLEmpty verifies a zero-triangle file is still valid.
func TestSaveToSTLEmpty(t *testing.T) {
	tmpDir, err := os.MkdirTemp("", "stl-empty")
	if err != nil {
		t.Fatalf("Failed to create temp dir: %v", err)
	}
	defer os.RemoveAll(tmpDir)

	path := filepath.Join(tmpDir, "empty.stl")
	if err := SaveToSTL(path, nil); err != nil {
		t.Fatalf("Failed to save empty STL: %v", err)
	}

	info, err := os.Stat(path)
	if err != nil {
		t.Fatalf("Failed to stat output file: %v", err)
	}
	if info.Size() != 84 {
		t.Errorf("Expected 84 byte file for empty STL, got %d", info.Size())
	}
}
