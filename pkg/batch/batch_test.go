package batch

import (
	"encoding/csv"
	"math"
	"os"
	"path/filepath"
	"testing"

	"ctstackto3d/internal/models"
	"ctstackto3d/pkg/config"
	"ctstackto3d/pkg/volume"
)

// testConfig returns a small quiet sweep configuration suitable for
// tests.
func testConfig() *config.Config {
	cfg := config.DefaultConfig()
	cfg.Processing.NumCores = 2
	cfg.Sweep.ThresholdStart = 50
	cfg.Sweep.ThresholdEnd = 150
	cfg.Sweep.ThresholdStep = 50
	cfg.Sweep.BaseReduction = 0
	cfg.Sweep.RefinementThreshold = 100
	cfg.Sweep.Reductions = []float64{0.0, 0.5}
	cfg.Render.Width = 64
	cfg.Render.Height = 64
	cfg.Output.Verbose = false
	return cfg
}

// gradientGrid returns a size^3 volume whose value grows linearly with
// z, so any mid-range threshold selects a slab of the upper layers.
func gradientGrid(size int) *volume.Grid {
	g := &volume.Grid{
		Data:    make([]float64, size*size*size),
		Width:   size,
		Height:  size,
		Depth:   size,
		Spacing: volume.Spacing{X: 1, Y: 1, Z: 1},
	}
	for z := 0; z < size; z++ {
		v := 255 * float64(z) / float64(size-1)
		for y := 0; y < size; y++ {
			for x := 0; x < size; x++ {
				g.Data[g.Index(x, y, z)] = v
			}
		}
	}
	return g
}

// TestCombinations verifies the canonical sweep expansion: ascending
// threshold scan first, then the reduction series in configured order.
func TestCombinations(t *testing.T) {
	o := New(testConfig(), gradientGrid(4), t.TempDir())

	combos := o.Combinations()

	want := []models.Combination{
		{Threshold: 50, Reduction: 0},
		{Threshold: 100, Reduction: 0},
		{Threshold: 150, Reduction: 0},
		{Threshold: 100, Reduction: 0.0},
		{Threshold: 100, Reduction: 0.5},
	}
	if len(combos) != len(want) {
		t.Fatalf("Got %d combinations, expected %d", len(combos), len(want))
	}
	for i, c := range want {
		if combos[i] != c {
			t.Errorf("Combination %d = %+v, expected %+v", i, combos[i], c)
		}
	}
}

// TestCombinationsFractionalStep verifies index-based threshold
// stepping keeps the inclusive endpoint for steps that are not exactly
// representable.
func TestCombinationsFractionalStep(t *testing.T) {
	cfg := testConfig()
	cfg.Sweep.ThresholdStart = 0
	cfg.Sweep.ThresholdEnd = 1
	cfg.Sweep.ThresholdStep = 0.1
	cfg.Sweep.Reductions = nil

	o := New(cfg, gradientGrid(4), t.TempDir())
	combos := o.Combinations()

	// 0, 0.1, ..., 1.0 inclusive; the reduction series is empty.
	if len(combos) != 11 {
		t.Fatalf("Got %d combinations, expected 11", len(combos))
	}
	if math.Abs(combos[10].Threshold-1) > 1e-12 {
		t.Errorf("Last threshold = %g, expected 1", combos[10].Threshold)
	}
}

// TestRunKeepsRowOnExportFailure verifies an artifact write failure is
// logged but does not drop the combination's measured row or abort the
// sweep.
func TestRunKeepsRowOnExportFailure(t *testing.T) {
	size := 8
	cfg := testConfig()
	cfg.Sweep.ThresholdStart = 100
	cfg.Sweep.ThresholdEnd = 100
	cfg.Sweep.RefinementThreshold = 100
	cfg.Sweep.Reductions = nil

	outDir := t.TempDir()

	// Occupy the artifact paths with directories so os.Create fails.
	base := models.Combination{Threshold: 100, Reduction: 0}.BaseName()
	for _, ext := range []string{".stl", ".png"} {
		if err := os.MkdirAll(filepath.Join(outDir, base+ext), 0755); err != nil {
			t.Fatalf("Failed to occupy artifact path: %v", err)
		}
	}

	o := New(cfg, gradientGrid(size), outDir)
	results, err := o.Run()
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	if len(results) != 1 {
		t.Fatalf("Got %d results, expected the measured row to survive export failure", len(results))
	}
	r := results[0]
	if r.Threshold != 100 || r.TriangleCount <= 0 || r.SurfaceArea <= 0 {
		t.Errorf("Surviving row is implausible: %+v", r)
	}
	if r.STLFile != base+".stl" || r.ImageFile != base+".png" {
		t.Errorf("Row artifact names = %q, %q, expected %q base", r.STLFile, r.ImageFile, base)
	}
}

// TestRunGradientVolume runs the whole pipeline over a gradient volume
// and checks result order, artifacts and geometric plausibility.
func TestRunGradientVolume(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping pipeline test in short mode")
	}

	size := 10
	cfg := testConfig()
	outDir := t.TempDir()
	o := New(cfg, gradientGrid(size), outDir)

	results, err := o.Run()
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	// Every combination selects a non-empty slab of this volume.
	combos := o.Combinations()
	if len(results) != len(combos) {
		t.Fatalf("Got %d results, expected %d", len(results), len(combos))
	}
	for i, r := range results {
		if r.Combination != combos[i] {
			t.Errorf("Result %d is %+v, expected canonical order %+v", i, r.Combination, combos[i])
		}
	}

	for _, r := range results {
		if r.TriangleCount <= 0 {
			t.Errorf("%s: no triangles", r.BaseName())
		}
		if r.Volume <= 0 || r.SurfaceArea <= 0 {
			t.Errorf("%s: non-positive volume %.2f or area %.2f", r.BaseName(), r.Volume, r.SurfaceArea)
		}

		// A higher threshold selects a thinner upper slab, so the
		// centroid must sit in the upper half of the volume.
		if r.Threshold >= 100 && r.CenterZ < float64(size-1)/2 {
			t.Errorf("%s: centroid z %.2f below volume midplane", r.BaseName(), r.CenterZ)
		}

		for _, name := range []string{r.STLFile, r.ImageFile} {
			if _, err := os.Stat(filepath.Join(outDir, name)); err != nil {
				t.Errorf("%s: missing artifact %s: %v", r.BaseName(), name, err)
			}
		}
	}

	// Decimation must not increase the face count.
	var full, half *models.Result
	for _, r := range results {
		if r.Threshold == 100 && r.Reduction == 0 {
			full = r
		}
		if r.Threshold == 100 && r.Reduction == 0.5 {
			half = r
		}
	}
	if full == nil || half == nil {
		t.Fatal("Refinement results missing from sweep")
	}
	if half.TriangleCount > full.TriangleCount {
		t.Errorf("Reduction 0.5 has %d faces, more than undecimated %d",
			half.TriangleCount, full.TriangleCount)
	}
}

// TestRunSkipsEmptyCombinations verifies thresholds above the value
// range are skipped without failing the sweep.
func TestRunSkipsEmptyCombinations(t *testing.T) {
	size := 6
	cfg := testConfig()
	cfg.Sweep.ThresholdStart = 300
	cfg.Sweep.ThresholdEnd = 300
	cfg.Sweep.RefinementThreshold = 300

	o := New(cfg, gradientGrid(size), t.TempDir())

	results, err := o.Run()
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if len(results) != 0 {
		t.Errorf("Expected all combinations skipped, got %d results", len(results))
	}
}

// TestWriteSummary verifies the CSV layout and rounding.
func TestWriteSummary(t *testing.T) {
	results := []*models.Result{
		{
			Combination:   models.Combination{Threshold: 120, Reduction: 0.5},
			TriangleCount: 1234,
			SurfaceArea:   56.789,
			Volume:        12.345,
			BoundsX:       10, BoundsY: 20, BoundsZ: 30,
			CenterX: 1.005, CenterY: 2, CenterZ: 3,
			STLFile:   "model_th120_red50.stl",
			ImageFile: "model_th120_red50.png",
		},
	}

	dir := t.TempDir()
	path := filepath.Join(dir, "summary.csv")
	if err := WriteSummary(path, results); err != nil {
		t.Fatalf("WriteSummary failed: %v", err)
	}

	f, err := os.Open(path)
	if err != nil {
		t.Fatalf("Failed to open summary: %v", err)
	}
	defer f.Close()

	rows, err := csv.NewReader(f).ReadAll()
	if err != nil {
		t.Fatalf("Failed to parse summary CSV: %v", err)
	}
	if len(rows) != 2 {
		t.Fatalf("Got %d CSV rows, expected header plus 1", len(rows))
	}

	header := rows[0]
	if header[0] != "Threshold" || header[1] != "Reduction (%)" || header[len(header)-1] != "Image File" {
		t.Errorf("Unexpected header: %v", header)
	}

	row := rows[1]
	if row[0] != "120" {
		t.Errorf("Threshold column = %q, expected 120", row[0])
	}
	if row[1] != "50" {
		t.Errorf("Reduction column = %q, expected 50", row[1])
	}
	if row[2] != "1234" {
		t.Errorf("Polygon count column = %q, expected 1234", row[2])
	}
	if row[3] != "56.79" {
		t.Errorf("Surface area column = %q, expected 56.79", row[3])
	}
	if row[4] != "12.35" {
		t.Errorf("Volume column = %q, expected 12.35", row[4])
	}
	if row[11] != "model_th120_red50.stl" || row[12] != "model_th120_red50.png" {
		t.Errorf("Artifact columns = %q, %q", row[11], row[12])
	}
}

// TestWriteSummaryNoResults verifies no file is left behind for an
// empty sweep.
func TestWriteSummaryNoResults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "summary.csv")

	err := WriteSummary(path, nil)
	if err != ErrNoResults {
		t.Fatalf("Expected ErrNoResults, got %v", err)
	}
	if _, statErr := os.Stat(path); !os.IsNotExist(statErr) {
		t.Error("Summary file was created despite empty results")
	}
}
