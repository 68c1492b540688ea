// Package visualization renders offscreen preview images of meshes.
package visualization

import (
	"github.com/fogleman/fauxgl"
	"github.com/pkg/errors"

	"ctstackto3d/pkg/mesh"
)

// Default preview image dimensions.
const (
	DefaultWidth  = 800
	DefaultHeight = 800
)

// Renderer rasterizes a mesh into a shaded preview PNG using a fixed
// camera, so previews of the same stack under different parameters stay
// visually comparable.
type Renderer struct {
	Width  int
	Height int

	// ObjectColor and Background follow the neutral gray-on-light-gray
	// scheme of the reports the previews accompany.
	ObjectColor fauxgl.Color
	Background  fauxgl.Color
}

// NewRenderer returns a renderer with the default size and colors.
func NewRenderer() *Renderer {
	return &Renderer{
		Width:       DefaultWidth,
		Height:      DefaultHeight,
		ObjectColor: fauxgl.Color{R: 0.7, G: 0.7, B: 0.7, A: 1},
		Background:  fauxgl.Color{R: 0.9, G: 0.9, B: 0.9, A: 1},
	}
}

// RenderToPNG renders the mesh and writes the image to path. The mesh
// is copied into the rasterizer's own format and normalized to the
// camera frustum, so the caller's mesh is not modified.
func (r *Renderer) RenderToPNG(m *mesh.Mesh, path string) error {
	if m.TriangleCount() == 0 {
		return errors.Errorf("cannot render empty mesh to %s", path)
	}

	triangles := make([]*fauxgl.Triangle, 0, m.TriangleCount())
	for _, f := range m.Faces {
		a, b, c := m.Vertices[f[0]], m.Vertices[f[1]], m.Vertices[f[2]]
		triangles = append(triangles, fauxgl.NewTriangleForPoints(
			fauxgl.V(a.X, a.Y, a.Z),
			fauxgl.V(b.X, b.Y, b.Z),
			fauxgl.V(c.X, c.Y, c.Z),
		))
	}

	fm := fauxgl.NewTriangleMesh(triangles)
	fm.BiUnitCube()
	fm.SmoothNormalsThreshold(fauxgl.Radians(30))

	width, height := r.Width, r.Height
	if width <= 0 {
		width = DefaultWidth
	}
	if height <= 0 {
		height = DefaultHeight
	}

	eye := fauxgl.V(-3, 1, -0.75)
	center := fauxgl.V(0, 0, 0)
	up := fauxgl.V(0, 1, 0)
	light := fauxgl.V(-0.75, 1, 0.25).Normalize()

	ctx := fauxgl.NewContext(width, height)
	ctx.ClearColorBufferWith(r.Background)

	aspect := float64(width) / float64(height)
	matrix := fauxgl.LookAt(eye, center, up).Perspective(30, aspect, 1, 10)

	shader := fauxgl.NewPhongShader(matrix, light, eye)
	shader.ObjectColor = r.ObjectColor
	ctx.Shader = shader

	ctx.DrawMesh(fm)

	if err := fauxgl.SavePNG(path, ctx.Image()); err != nil {
		return errors.Wrapf(err, "failed to save preview image %s", path)
	}
	return nil
}
