// Package volume provides the uniform 3D scalar grid that every pipeline
// run reads, and the loader that assembles it from a directory of 2D
// grayscale cross-section images.
package volume

import (
	"image"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/pkg/errors"

	// Registered image formats for the slice decoder. CT stacks are
	// typically exported as 8-bit TIFF, but PNG and JPEG exports are
	// accepted too.
	_ "golang.org/x/image/tiff"
	_ "image/jpeg"
	_ "image/png"
)

// Spacing is the physical size of a voxel along each axis.
type Spacing struct {
	X, Y, Z float64
}

// Grid is a uniform 3D scalar field stored as a 1D array in x-fastest
// row-major order (idx = z*Width*Height + y*Width + x). Voxel values are
// 8-bit grayscale intensities widened to float64 (0..255). A Grid is
// immutable once loaded and is shared read-only by all pipeline runs.
type Grid struct {
	Data    []float64
	Width   int
	Height  int
	Depth   int
	Spacing Spacing
}

// Index returns the flat array index of voxel (x, y, z).
func (g *Grid) Index(x, y, z int) int {
	return z*g.Width*g.Height + y*g.Width + x
}

// At returns the scalar value at voxel (x, y, z). Bounds are the
// caller's responsibility.
func (g *Grid) At(x, y, z int) float64 {
	return g.Data[g.Index(x, y, z)]
}

// Range returns the minimum and maximum voxel values.
func (g *Grid) Range() (min, max float64) {
	if len(g.Data) == 0 {
		return 0, 0
	}
	min, max = g.Data[0], g.Data[0]
	for _, v := range g.Data {
		if v < min {
			min = v
		}
		if v > max {
			max = v
		}
	}
	return min, max
}

// recognized reports whether a filename looks like a slice image.
func recognized(name string) bool {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".tif", ".tiff", ".png", ".jpg", ".jpeg":
		return true
	}
	return false
}

// extractNumber extracts the numeric part of a filename, used to sort
// slices into anatomical order regardless of zero padding.
func extractNumber(filename string) int {
	base := filepath.Base(filename)
	numStr := ""
	for _, c := range base {
		if c >= '0' && c <= '9' {
			numStr += string(c)
		}
	}
	if numStr != "" {
		if num, err := strconv.Atoi(numStr); err == nil {
			return num
		}
	}
	return 0
}

// LoadFromDir reads every recognized image in dir, sorts them by the
// numeric part of their filenames and stacks them along z into a Grid.
// All slices must share the dimensions of the first one. A missing
// directory or a directory without a single recognized image is the one
// fatal input error of the whole program.
func LoadFromDir(dir string, spacing Spacing) (*Grid, error) {
	files, err := os.ReadDir(dir)
	if err != nil {
		return nil, errors.Wrapf(err, "reading slice directory %q", dir)
	}

	var names []string
	for _, f := range files {
		if !f.IsDir() && recognized(f.Name()) {
			names = append(names, f.Name())
		}
	}
	if len(names) == 0 {
		return nil, errors.Errorf("no slice images found in %q", dir)
	}

	sort.Slice(names, func(i, j int) bool {
		return extractNumber(names[i]) < extractNumber(names[j])
	})

	grid := &Grid{Depth: len(names), Spacing: spacing}
	for z, name := range names {
		img, err := loadImage(filepath.Join(dir, name))
		if err != nil {
			return nil, errors.Wrapf(err, "loading slice %q", name)
		}

		bounds := img.Bounds()
		if z == 0 {
			grid.Width = bounds.Dx()
			grid.Height = bounds.Dy()
			grid.Data = make([]float64, grid.Width*grid.Height*grid.Depth)
		} else if bounds.Dx() != grid.Width || bounds.Dy() != grid.Height {
			return nil, errors.Errorf("slice %q is %dx%d, expected %dx%d",
				name, bounds.Dx(), bounds.Dy(), grid.Width, grid.Height)
		}

		for y := 0; y < grid.Height; y++ {
			for x := 0; x < grid.Width; x++ {
				r, _, _, _ := img.At(bounds.Min.X+x, bounds.Min.Y+y).RGBA()
				// 16-bit sample down to the 8-bit CT value range.
				grid.Data[grid.Index(x, y, z)] = float64(r >> 8)
			}
		}
	}

	return grid, nil
}

// loadImage decodes a single slice image in any registered format.
func loadImage(path string) (image.Image, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	img, _, err := image.Decode(file)
	if err != nil {
		return nil, err
	}
	return img, nil
}
