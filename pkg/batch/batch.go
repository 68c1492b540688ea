// Package batch runs the full extraction pipeline over a parameter
// sweep and collects the per-combination results for the summary report.
package batch

import (
	"fmt"
	"log"
	"math"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"

	"github.com/pkg/errors"

	"ctstackto3d/internal/models"
	"ctstackto3d/pkg/config"
	"ctstackto3d/pkg/decimate"
	"ctstackto3d/pkg/marching"
	"ctstackto3d/pkg/measure"
	"ctstackto3d/pkg/mesh"
	"ctstackto3d/pkg/stl"
	"ctstackto3d/pkg/visualization"
	"ctstackto3d/pkg/volume"
)

// Orchestrator drives the two-phase parameter sweep: a coarse threshold
// scan at a base reduction, then a decimation series at a fixed
// refinement threshold. Every combination runs the same pipeline:
// extract, clean, decimate, measure, export.
type Orchestrator struct {
	cfg       *config.Config
	grid      *volume.Grid
	outputDir string

	cleaner    *mesh.Cleaner
	simplifier *decimate.Simplifier
	renderer   *visualization.Renderer
}

// New returns an orchestrator for one volume and output directory.
func New(cfg *config.Config, grid *volume.Grid, outputDir string) *Orchestrator {
	renderer := visualization.NewRenderer()
	renderer.Width = cfg.Render.Width
	renderer.Height = cfg.Render.Height

	return &Orchestrator{
		cfg:        cfg,
		grid:       grid,
		outputDir:  outputDir,
		cleaner:    mesh.NewCleaner(),
		simplifier: decimate.NewSimplifier(),
		renderer:   renderer,
	}
}

// Combinations expands the configured sweep into the canonical ordered
// list of (threshold, reduction) pairs: the threshold scan in ascending
// threshold order first, then the reduction series in configured order.
// The progress total and the summary row order both come from this
// list, never from a precomputed count.
func (o *Orchestrator) Combinations() []models.Combination {
	var combos []models.Combination

	// Step by index rather than accumulating the float step, so
	// fractional steps keep the inclusive endpoint.
	s := o.cfg.Sweep
	steps := int(math.Floor((s.ThresholdEnd-s.ThresholdStart)/s.ThresholdStep + 1e-9))
	for i := 0; i <= steps; i++ {
		t := s.ThresholdStart + float64(i)*s.ThresholdStep
		combos = append(combos, models.Combination{Threshold: t, Reduction: s.BaseReduction})
	}
	for _, r := range s.Reductions {
		combos = append(combos, models.Combination{Threshold: s.RefinementThreshold, Reduction: r})
	}

	return combos
}

// Run processes every combination of the sweep and returns the results
// in canonical combination order. Combinations whose final mesh is
// empty are skipped with a log line and produce no result. Export
// failures are logged but keep the measured row, so one bad file write
// does not discard the geometry numbers.
func (o *Orchestrator) Run() ([]*models.Result, error) {
	if err := os.MkdirAll(o.outputDir, 0755); err != nil {
		return nil, errors.Wrapf(err, "failed to create output directory %s", o.outputDir)
	}

	combos := o.Combinations()
	total := len(combos)

	workers := o.cfg.Processing.NumCores
	if workers > total {
		workers = total
	}
	if workers < 1 {
		workers = 1
	}
	if o.cfg.Output.Verbose {
		fmt.Printf("Running %d combinations on %d cores\n", total, workers)
	}

	// Results land in a slice indexed by combination so the output
	// order stays canonical regardless of worker scheduling.
	results := make([]*models.Result, total)
	jobs := make(chan int)
	var done int64
	var wg sync.WaitGroup

	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range jobs {
				c := combos[i]
				res := o.runOne(c)
				n := atomic.AddInt64(&done, 1)
				if o.cfg.Output.Verbose {
					fmt.Printf("Progress: %d/%d (threshold=%g, reduction=%d%%)\n",
						n, total, c.Threshold, c.ReductionPercent())
				}
				results[i] = res
			}
		}()
	}

	for i := range combos {
		jobs <- i
	}
	close(jobs)
	wg.Wait()

	// Drop the skipped combinations, keeping canonical order.
	out := make([]*models.Result, 0, total)
	for _, r := range results {
		if r != nil {
			out = append(out, r)
		}
	}
	return out, nil
}

// runOne executes the pipeline for a single combination. A nil return
// means the combination produced no geometry and is skipped.
func (o *Orchestrator) runOne(c models.Combination) *models.Result {
	extractor := marching.NewExtractor(o.grid, c.Threshold)
	raw := extractor.Extract()

	cleaned := o.cleaner.Clean(raw)

	final := cleaned
	if c.Reduction > 0 {
		final = o.simplifier.Simplify(cleaned, c.Reduction)
	}

	if final.TriangleCount() == 0 {
		log.Printf("Skipping threshold=%g reduction=%d%%: no surface at this threshold",
			c.Threshold, c.ReductionPercent())
		return nil
	}

	metrics := measure.Analyze(final)
	size := metrics.BoundsSize()

	res := &models.Result{
		Combination:   c,
		TriangleCount: metrics.TriangleCount,
		SurfaceArea:   metrics.SurfaceArea,
		Volume:        metrics.Volume,
		BoundsX:       size.X,
		BoundsY:       size.Y,
		BoundsZ:       size.Z,
		CenterX:       metrics.Centroid.X,
		CenterY:       metrics.Centroid.Y,
		CenterZ:       metrics.Centroid.Z,
		STLFile:       c.BaseName() + ".stl",
		ImageFile:     c.BaseName() + ".png",
	}

	stlPath := filepath.Join(o.outputDir, res.STLFile)
	if err := stl.SaveToSTL(stlPath, stl.FromMesh(final)); err != nil {
		log.Printf("Failed to export %s: %v", res.STLFile, err)
	}

	pngPath := filepath.Join(o.outputDir, res.ImageFile)
	if err := o.renderer.RenderToPNG(final, pngPath); err != nil {
		log.Printf("Failed to render %s: %v", res.ImageFile, err)
	}

	return res
}
