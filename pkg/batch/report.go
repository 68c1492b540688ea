package batch

import (
	"encoding/csv"
	"fmt"
	"os"
	"strconv"

	"github.com/pkg/errors"

	"ctstackto3d/internal/models"
)

// ErrNoResults is returned by WriteSummary when the sweep produced no
// rows at all, so callers can report it without leaving an empty file
// behind.
var ErrNoResults = errors.New("no results to summarize")

// summaryHeader is the fixed column order of the comparison summary.
var summaryHeader = []string{
	"Threshold",
	"Reduction (%)",
	"Polygon Count",
	"Surface Area",
	"Volume",
	"Bounding Box X",
	"Bounding Box Y",
	"Bounding Box Z",
	"Center of Mass X",
	"Center of Mass Y",
	"Center of Mass Z",
	"STL File",
	"Image File",
}

// WriteSummary writes the comparison table as CSV, one row per result
// in the order given. Geometric quantities are rounded to two decimals;
// counts and percentages are integers. No file is created when results
// is empty.
func WriteSummary(path string, results []*models.Result) error {
	if len(results) == 0 {
		return ErrNoResults
	}

	file, err := os.Create(path)
	if err != nil {
		return errors.Wrapf(err, "failed to create summary file %s", path)
	}
	defer file.Close()

	w := csv.NewWriter(file)
	if err := w.Write(summaryHeader); err != nil {
		return errors.Wrap(err, "failed to write summary header")
	}

	for _, r := range results {
		row := []string{
			strconv.FormatFloat(r.Threshold, 'g', -1, 64),
			strconv.Itoa(r.ReductionPercent()),
			strconv.Itoa(r.TriangleCount),
			fmt.Sprintf("%.2f", r.SurfaceArea),
			fmt.Sprintf("%.2f", r.Volume),
			fmt.Sprintf("%.2f", r.BoundsX),
			fmt.Sprintf("%.2f", r.BoundsY),
			fmt.Sprintf("%.2f", r.BoundsZ),
			fmt.Sprintf("%.2f", r.CenterX),
			fmt.Sprintf("%.2f", r.CenterY),
			fmt.Sprintf("%.2f", r.CenterZ),
			r.STLFile,
			r.ImageFile,
		}
		if err := w.Write(row); err != nil {
			return errors.Wrapf(err, "failed to write summary row for %s", r.BaseName())
		}
	}

	w.Flush()
	if err := w.Error(); err != nil {
		return errors.Wrapf(err, "failed to flush summary file %s", path)
	}
	return nil
}
