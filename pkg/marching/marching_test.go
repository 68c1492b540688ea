package marching

import (
	"math"
	"testing"

	"gonum.org/v1/gonum/spatial/r3"

	"ctstackto3d/pkg/measure"
	"ctstackto3d/pkg/mesh"
	"ctstackto3d/pkg/volume"
)

// sphereGrid builds a size^3 volume with value 255 inside a centered
// sphere and 0 outside.
func sphereGrid(size int, radius float64) *volume.Grid {
	g := &volume.Grid{
		Data:    make([]float64, size*size*size),
		Width:   size,
		Height:  size,
		Depth:   size,
		Spacing: volume.Spacing{X: 1, Y: 1, Z: 1},
	}
	center := float64(size-1) / 2
	for z := 0; z < size; z++ {
		for y := 0; y < size; y++ {
			for x := 0; x < size; x++ {
				dx := float64(x) - center
				dy := float64(y) - center
				dz := float64(z) - center
				if math.Sqrt(dx*dx+dy*dy+dz*dz) < radius {
					g.Data[g.Index(x, y, z)] = 255
				}
			}
		}
	}
	return g
}

func uniformGrid(size int, value float64) *volume.Grid {
	g := &volume.Grid{
		Data:    make([]float64, size*size*size),
		Width:   size,
		Height:  size,
		Depth:   size,
		Spacing: volume.Spacing{X: 1, Y: 1, Z: 1},
	}
	for i := range g.Data {
		g.Data[i] = value
	}
	return g
}

// TestExtractSphere verifies the extractor produces a plausible closed
// sphere: enough triangles, outward normals and measurements near the
// analytic values.
func TestExtractSphere(t *testing.T) {
	size := 20
	radius := float64(size) / 4
	g := sphereGrid(size, radius)

	m := NewExtractor(g, 127.5).Extract()
	if m.TriangleCount() < 100 {
		t.Fatalf("Expected at least 100 triangles for sphere, got %d", m.TriangleCount())
	}

	// Face normals must point away from the sphere center. The surface
	// is stair-stepped at voxel scale, so allow some tilt.
	center := r3.Vec{X: float64(size-1) / 2, Y: float64(size-1) / 2, Z: float64(size-1) / 2}
	for i := range m.Faces {
		f := m.Faces[i]
		fc := r3.Scale(1.0/3.0, r3.Add(m.Vertices[f[0]], r3.Add(m.Vertices[f[1]], m.Vertices[f[2]])))
		out := r3.Unit(r3.Sub(fc, center))
		n := m.FaceNormal(i)
		if r3.Norm(n) == 0 {
			continue
		}
		if r3.Dot(out, r3.Unit(n)) < -0.5 {
			t.Fatalf("Face %d normal points inward", i)
		}
	}

	// A binary sphere lands the crossing halfway between the last inside
	// and first outside sample, so measurements match a radius of about
	// radius+0.5 within discretization error.
	metrics := measure.Analyze(mesh.NewCleaner().Clean(m))
	r := radius + 0.5
	wantVolume := 4.0 / 3.0 * math.Pi * r * r * r
	if math.Abs(metrics.Volume-wantVolume)/wantVolume > 0.15 {
		t.Errorf("Sphere volume %.2f too far from analytic %.2f", metrics.Volume, wantVolume)
	}
	wantArea := 4 * math.Pi * r * r
	if math.Abs(metrics.SurfaceArea-wantArea)/wantArea > 0.15 {
		t.Errorf("Sphere area %.2f too far from analytic %.2f", metrics.SurfaceArea, wantArea)
	}
}

// TestExtractVertexNormals checks the gradient normals of the sphere
// point outward like the face normals do.
func TestExtractVertexNormals(t *testing.T) {
	size := 20
	g := sphereGrid(size, float64(size)/4)

	m := NewExtractor(g, 127.5).Extract()
	if len(m.Normals) != len(m.Vertices) {
		t.Fatalf("Expected one normal per vertex, got %d normals for %d vertices",
			len(m.Normals), len(m.Vertices))
	}

	center := r3.Vec{X: float64(size-1) / 2, Y: float64(size-1) / 2, Z: float64(size-1) / 2}
	outward := 0
	nonZero := 0
	for i, n := range m.Normals {
		if r3.Norm(n) == 0 {
			continue
		}
		nonZero++
		if r3.Dot(r3.Sub(m.Vertices[i], center), n) > 0 {
			outward++
		}
	}
	if nonZero == 0 {
		t.Fatal("All vertex normals are zero")
	}
	if float64(outward)/float64(nonZero) < 0.95 {
		t.Errorf("Only %d of %d vertex normals point outward", outward, nonZero)
	}
}

// TestExtractNormalsOff verifies geometry is identical with normal
// generation disabled.
func TestExtractNormalsOff(t *testing.T) {
	g := sphereGrid(12, 3)

	withNormals := NewExtractor(g, 127.5).Extract()

	e := NewExtractor(g, 127.5)
	e.ComputeNormals(false)
	withoutNormals := e.Extract()

	if len(withoutNormals.Normals) != 0 {
		t.Errorf("Expected no normals, got %d", len(withoutNormals.Normals))
	}
	if len(withNormals.Vertices) != len(withoutNormals.Vertices) {
		t.Fatalf("Vertex count differs: %d vs %d", len(withNormals.Vertices), len(withoutNormals.Vertices))
	}
	for i := range withNormals.Vertices {
		if withNormals.Vertices[i] != withoutNormals.Vertices[i] {
			t.Fatalf("Vertex %d differs with normals disabled", i)
		}
	}
}

// TestExtractAboveMax verifies a threshold above every sample yields an
// empty mesh, which is a valid result.
func TestExtractAboveMax(t *testing.T) {
	g := uniformGrid(6, 100)
	m := NewExtractor(g, 200).Extract()
	if m.TriangleCount() != 0 {
		t.Errorf("Expected empty mesh above the value range, got %d triangles", m.TriangleCount())
	}
}

// TestExtractBelowMinShell verifies a threshold below every sample
// produces the closed bounding shell of the voxel-centered grid: the
// bounding box extends half a voxel beyond the samples on every side
// and the enclosed volume is just under the full box (the shell
// chamfers the box edges and corners).
func TestExtractBelowMinShell(t *testing.T) {
	size := 6
	g := uniformGrid(size, 100)

	m := NewExtractor(g, 50).Extract()
	if m.TriangleCount() == 0 {
		t.Fatal("Expected a bounding shell below the value range, got empty mesh")
	}

	metrics := measure.Analyze(mesh.NewCleaner().Clean(m))

	ext := float64(size)
	sz := metrics.BoundsSize()
	for axis, got := range []float64{sz.X, sz.Y, sz.Z} {
		if math.Abs(got-ext) > 1e-9 {
			t.Errorf("Bounding box axis %d is %.6f, expected %.6f", axis, got, ext)
		}
	}

	box := ext * ext * ext
	if metrics.Volume > box+1e-9 {
		t.Errorf("Shell volume %.4f exceeds bounding box %.4f", metrics.Volume, box)
	}
	if metrics.Volume < 0.85*box {
		t.Errorf("Shell volume %.4f too small for bounding box %.4f", metrics.Volume, box)
	}

	// The shell of a uniform volume is symmetric, so its centroid sits
	// at the grid center.
	c := r3.Vec{X: float64(size-1) / 2, Y: float64(size-1) / 2, Z: float64(size-1) / 2}
	if r3.Norm(r3.Sub(metrics.Centroid, c)) > 1e-6 {
		t.Errorf("Shell centroid %+v not at grid center %+v", metrics.Centroid, c)
	}
}

// TestExtractGradientSlab thresholds a linear ramp volume. The level
// set is the exact plane where the ramp crosses the threshold, and the
// above-threshold slab is closed off at the grid boundary.
func TestExtractGradientSlab(t *testing.T) {
	size := 10
	g := &volume.Grid{
		Data:    make([]float64, size*size*size),
		Width:   size,
		Height:  size,
		Depth:   size,
		Spacing: volume.Spacing{X: 1, Y: 1, Z: 1},
	}
	for z := 0; z < size; z++ {
		for y := 0; y < size; y++ {
			for x := 0; x < size; x++ {
				g.Data[g.Index(x, y, z)] = 25.5 * float64(z)
			}
		}
	}

	m := NewExtractor(g, 127.5).Extract()
	if m.TriangleCount() == 0 {
		t.Fatal("Expected a slab surface, got empty mesh")
	}

	metrics := measure.Analyze(mesh.NewCleaner().Clean(m))

	// 25.5*z crosses 127.5 exactly at z=5, so the slab floor sits on
	// that plane and nothing extends below it.
	if math.Abs(metrics.BoundsMin.Z-5) > 1e-9 {
		t.Errorf("Slab floor at z=%.6f, expected 5", metrics.BoundsMin.Z)
	}
	if math.Abs(metrics.BoundsMax.Z-(float64(size)-0.5)) > 1e-9 {
		t.Errorf("Slab ceiling at z=%.6f, expected %.1f", metrics.BoundsMax.Z, float64(size)-0.5)
	}

	// Closed slab: 10x10 cross-section, 4.5 tall, minus boundary
	// chamfers along the top and side edges.
	box := 10.0 * 10.0 * 4.5
	if metrics.Volume > box+1e-9 || metrics.Volume < 0.9*box {
		t.Errorf("Slab volume %.2f, expected just under %.2f", metrics.Volume, box)
	}

	// The surface centroid of the closed slab sits inside the slab,
	// well above the volume midplane.
	if metrics.Centroid.Z < 5 || metrics.Centroid.Z > 9.5 {
		t.Errorf("Slab centroid z=%.2f outside [5, 9.5]", metrics.Centroid.Z)
	}
}

// TestExtractSpacing verifies voxel spacing scales the output geometry.
func TestExtractSpacing(t *testing.T) {
	size := 6
	g := uniformGrid(size, 100)
	g.Spacing = volume.Spacing{X: 2, Y: 1, Z: 0.5}

	m := NewExtractor(g, 50).Extract()
	metrics := measure.Analyze(mesh.NewCleaner().Clean(m))

	sz := metrics.BoundsSize()
	want := r3.Vec{X: float64(size) * 2, Y: float64(size) * 1, Z: float64(size) * 0.5}
	if math.Abs(sz.X-want.X) > 1e-9 || math.Abs(sz.Y-want.Y) > 1e-9 || math.Abs(sz.Z-want.Z) > 1e-9 {
		t.Errorf("Bounding box %+v, expected %+v", sz, want)
	}
}

// TestExtractDeterministic verifies repeated extraction of the same
// volume yields identical meshes.
func TestExtractDeterministic(t *testing.T) {
	g := sphereGrid(14, 4)

	a := NewExtractor(g, 127.5).Extract()
	b := NewExtractor(g, 127.5).Extract()

	if len(a.Vertices) != len(b.Vertices) || len(a.Faces) != len(b.Faces) {
		t.Fatalf("Mesh sizes differ between runs: %d/%d vs %d/%d",
			len(a.Vertices), len(a.Faces), len(b.Vertices), len(b.Faces))
	}
	for i := range a.Vertices {
		if a.Vertices[i] != b.Vertices[i] {
			t.Fatalf("Vertex %d differs between runs", i)
		}
	}
	for i := range a.Faces {
		if a.Faces[i] != b.Faces[i] {
			t.Fatalf("Face %d differs between runs", i)
		}
	}
}

// TestEdgeTableSymmetry checks the complementary-case symmetry of the
// edge table: inverting all corner classifications selects the same
// cut edges.
func TestEdgeTableSymmetry(t *testing.T) {
	for i := 0; i < 256; i++ {
		if edgeTable[i] != edgeTable[255-i] {
			t.Errorf("edgeTable[%d] = %04x, edgeTable[%d] = %04x", i, edgeTable[i], 255-i, edgeTable[255-i])
		}
	}
}

// TestTriTableEdgesConsistent checks every triangle in the case table
// references only edges flagged in the edge table for that case.
func TestTriTableEdgesConsistent(t *testing.T) {
	for i := 0; i < 256; i++ {
		row := triTable[i]
		for k := 0; row[k] != -1; k++ {
			e := row[k]
			if e < 0 || e > 11 {
				t.Fatalf("triTable[%d][%d] = %d out of edge range", i, k, e)
			}
			if edgeTable[i]&(1<<uint(e)) == 0 {
				t.Errorf("triTable[%d] uses edge %d not present in edgeTable", i, e)
			}
		}
	}
}

// BenchmarkExtract benchmarks the extractor on a small sphere volume.
func BenchmarkExtract(b *testing.B) {
	g := sphereGrid(16, 4)
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		NewExtractor(g, 127.5).Extract()
	}
}
