// Package models holds the value types shared between the batch
// orchestrator, the geometric analysis and the summary report.
package models

import (
	"fmt"
	"math"
)

// Combination identifies a single pipeline run: one isosurface threshold
// paired with one decimation reduction fraction. It is immutable and used
// as the key for output file naming.
type Combination struct {
	// Threshold is the isosurface level in the volume's value range.
	Threshold float64

	// Reduction is the requested decimation fraction in [0,1).
	// 0 means no decimation, 0.9 means "remove 90% of the triangles".
	Reduction float64
}

// ReductionPercent returns the reduction as an integer percentage,
// the form used in file names and the summary table.
func (c Combination) ReductionPercent() int {
	return int(math.Round(c.Reduction * 100))
}

// BaseName returns the output base name for this combination,
// e.g. "model_th120_red50".
func (c Combination) BaseName() string {
	return fmt.Sprintf("model_th%g_red%d", c.Threshold, c.ReductionPercent())
}

// Result is one row of the comparison summary: the geometric properties
// measured on the final mesh of a combination plus the artifact file
// names. A Result is never mutated after creation.
type Result struct {
	Combination

	// TriangleCount is the face count of the final mesh.
	TriangleCount int

	// SurfaceArea is the total triangle area.
	SurfaceArea float64

	// Volume is the enclosed volume, an approximation when the mesh
	// is not closed.
	Volume float64

	// BoundsX, BoundsY, BoundsZ are the bounding-box extents per axis.
	BoundsX, BoundsY, BoundsZ float64

	// CenterX, CenterY, CenterZ are the area-weighted centroid coordinates.
	CenterX, CenterY, CenterZ float64

	// STLFile and ImageFile are the artifact base names recorded in
	// the summary (not full paths).
	STLFile   string
	ImageFile string
}
