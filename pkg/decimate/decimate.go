// Package decimate reduces the triangle count of a mesh by greedy
// iterative edge collapse while preserving its topology.
package decimate

import (
	"container/heap"
	"math"
	"sort"

	"gonum.org/v1/gonum/spatial/r3"

	"ctstackto3d/pkg/mesh"
)

// DefaultMaxNormalDeviation is the angular tolerance beyond which a
// collapse may not rotate any surviving face, guarding against folded
// (orientation-flipped) triangles.
const DefaultMaxNormalDeviation = math.Pi / 3

// Simplifier decimates meshes by half-edge collapse: the cheapest
// collapsible edge endpoint is repeatedly merged into its neighbor.
// A collapse is applied only if it keeps the mesh topologically valid:
// it must not change the connected-component count, must not create an
// edge shared by more than two faces, and must not rotate a surviving
// face beyond MaxNormalDeviation. Selection is deterministic: equal
// costs are broken by edge length and then vertex indices, so the same
// input and target always yield the same output.
type Simplifier struct {
	// MaxNormalDeviation is the orientation-flip tolerance in radians.
	MaxNormalDeviation float64
}

// NewSimplifier returns a Simplifier with the default tolerances.
func NewSimplifier() *Simplifier {
	return &Simplifier{MaxNormalDeviation: DefaultMaxNormalDeviation}
}

// Simplify returns a mesh whose triangle count is as close as possible
// to (1-reduction) times the input count, subject to the topology
// constraints. When the constraints stop progress early the best
// achieved mesh is returned; under-reduction is an expected outcome,
// not an error. The input mesh is never modified. Vertex normals are
// not carried over once any collapse has been applied.
func (s *Simplifier) Simplify(m *mesh.Mesh, reduction float64) *mesh.Mesh {
	if reduction <= 0 || m.TriangleCount() == 0 {
		return m.Clone()
	}

	target := int(math.Round((1 - reduction) * float64(m.TriangleCount())))
	if target >= m.TriangleCount() {
		return m.Clone()
	}

	w := newWorkspace(m, s.MaxNormalDeviation)
	w.seedCandidates()

	for w.liveFaces > target && w.queue.Len() > 0 {
		c := heap.Pop(&w.queue).(candidate)
		if w.stale(c) {
			continue
		}
		if !w.collapseAllowed(c.u, c.v) {
			continue
		}
		w.collapse(c.u, c.v)
	}

	return w.build()
}

// candidate proposes collapsing vertex v into vertex u. The versions
// snapshot both endpoints' neighborhoods; a mismatch on pop means the
// entry is stale and must be discarded.
type candidate struct {
	cost       float64
	length     float64
	u, v       int
	verU, verV int
}

type candidateQueue []candidate

func (q candidateQueue) Len() int { return len(q) }

func (q candidateQueue) Less(i, j int) bool {
	a, b := q[i], q[j]
	if a.cost != b.cost {
		return a.cost < b.cost
	}
	if a.length != b.length {
		return a.length < b.length
	}
	if a.v != b.v {
		return a.v < b.v
	}
	return a.u < b.u
}

func (q candidateQueue) Swap(i, j int) { q[i], q[j] = q[j], q[i] }

func (q *candidateQueue) Push(x interface{}) { *q = append(*q, x.(candidate)) }

func (q *candidateQueue) Pop() interface{} {
	old := *q
	n := len(old)
	item := old[n-1]
	*q = old[:n-1]
	return item
}

// workspace is the mutable collapse state. Faces are edited in place
// and flagged dead rather than removed, so the surviving faces keep
// their original relative order in the rebuilt mesh.
type workspace struct {
	verts     []r3.Vec
	faces     [][3]int
	faceAlive []bool
	liveFaces int

	// vertFaces lists the live face ids incident to each vertex.
	vertFaces [][]int

	// version invalidates queued candidates when a neighborhood changes.
	version []int

	queue       candidateQueue
	minFlipDot  float64
	minFaceArea float64
}

func newWorkspace(m *mesh.Mesh, maxDeviation float64) *workspace {
	w := &workspace{
		verts:       append([]r3.Vec(nil), m.Vertices...),
		faces:       append([][3]int(nil), m.Faces...),
		faceAlive:   make([]bool, len(m.Faces)),
		liveFaces:   len(m.Faces),
		vertFaces:   make([][]int, len(m.Vertices)),
		version:     make([]int, len(m.Vertices)),
		minFlipDot:  math.Cos(maxDeviation),
		minFaceArea: 1e-12,
	}
	for i, f := range w.faces {
		w.faceAlive[i] = true
		for _, v := range f {
			w.vertFaces[v] = append(w.vertFaces[v], i)
		}
	}
	return w
}

// seedCandidates queues both collapse directions of every unique edge.
func (w *workspace) seedCandidates() {
	seen := make(map[[2]int]bool)
	for _, f := range w.faces {
		for k := 0; k < 3; k++ {
			a, b := f[k], f[(k+1)%3]
			key := orderedEdge(a, b)
			if seen[key] {
				continue
			}
			seen[key] = true
			w.pushCandidate(a, b)
			w.pushCandidate(b, a)
		}
	}
}

// pushCandidate queues the collapse of v into u at its current cost.
func (w *workspace) pushCandidate(u, v int) {
	heap.Push(&w.queue, candidate{
		cost:   w.collapseCost(v),
		length: r3.Norm(r3.Sub(w.verts[u], w.verts[v])),
		u:      u,
		v:      v,
		verU:   w.version[u],
		verV:   w.version[v],
	})
}

func (w *workspace) stale(c candidate) bool {
	return c.verU != w.version[c.u] || c.verV != w.version[c.v]
}

// collapseCost is the distance from v to the average plane of its
// incident faces, the local error a collapse of v would introduce.
// Vertices in flat regions cost nothing; vertices on curvature ridges
// are expensive and survive longest.
func (w *workspace) collapseCost(v int) float64 {
	var normalSum r3.Vec
	var centroidSum r3.Vec
	var areaSum float64

	for _, fi := range w.vertFaces[v] {
		f := w.faces[fi]
		a, b, c := w.verts[f[0]], w.verts[f[1]], w.verts[f[2]]
		n := r3.Cross(r3.Sub(b, a), r3.Sub(c, a))
		area := 0.5 * r3.Norm(n)
		normalSum = r3.Add(normalSum, n)
		centroid := r3.Scale(1.0/3.0, r3.Add(a, r3.Add(b, c)))
		centroidSum = r3.Add(centroidSum, r3.Scale(area, centroid))
		areaSum += area
	}

	nl := r3.Norm(normalSum)
	if areaSum < w.minFaceArea || nl < 1e-12 {
		return 0
	}
	avgPoint := r3.Scale(1/areaSum, centroidSum)
	return math.Abs(r3.Dot(r3.Scale(1/nl, normalSum), r3.Sub(w.verts[v], avgPoint)))
}

// edgeFaces returns the live faces containing both u and v.
func (w *workspace) edgeFaces(u, v int) []int {
	var out []int
	for _, fi := range w.vertFaces[v] {
		f := w.faces[fi]
		if f[0] == u || f[1] == u || f[2] == u {
			out = append(out, fi)
		}
	}
	return out
}

// neighbors returns the sorted distinct vertices sharing a face with v,
// excluding v itself.
func (w *workspace) neighbors(v int) []int {
	var out []int
	for _, fi := range w.vertFaces[v] {
		for _, p := range w.faces[fi] {
			if p != v {
				out = append(out, p)
			}
		}
	}
	sort.Ints(out)
	return dedupSorted(out)
}

// collapseAllowed checks the topology and orientation constraints for
// collapsing v into u.
func (w *workspace) collapseAllowed(u, v int) bool {
	ef := w.edgeFaces(u, v)
	if len(ef) == 0 || len(ef) > 2 {
		// Edge vanished, or is already non-manifold.
		return false
	}

	// Link condition: the only vertices adjacent to both endpoints may
	// be the opposite corners of the edge's own faces. Any extra shared
	// neighbor means the collapse would pinch the surface, creating a
	// non-manifold edge or splitting/fusing a component.
	opposite := make([]int, 0, 2)
	for _, fi := range ef {
		for _, p := range w.faces[fi] {
			if p != u && p != v {
				opposite = append(opposite, p)
			}
		}
	}
	sort.Ints(opposite)
	common := intersectSorted(w.neighbors(u), w.neighbors(v))
	if !equalInts(common, opposite) {
		return false
	}

	// Orientation: no surviving face of v may degenerate or rotate
	// beyond the flip tolerance when v moves to u's position.
	edgeSet := make(map[int]bool, len(ef))
	for _, fi := range ef {
		edgeSet[fi] = true
	}
	for _, fi := range w.vertFaces[v] {
		if edgeSet[fi] {
			continue
		}
		f := w.faces[fi]
		var oldPts, newPts [3]r3.Vec
		for k, p := range f {
			oldPts[k] = w.verts[p]
			if p == v {
				newPts[k] = w.verts[u]
			} else {
				newPts[k] = w.verts[p]
			}
		}
		oldN := r3.Cross(r3.Sub(oldPts[1], oldPts[0]), r3.Sub(oldPts[2], oldPts[0]))
		newN := r3.Cross(r3.Sub(newPts[1], newPts[0]), r3.Sub(newPts[2], newPts[0]))
		oldLen, newLen := r3.Norm(oldN), r3.Norm(newN)
		if newLen < w.minFaceArea {
			return false
		}
		if oldLen >= w.minFaceArea {
			if r3.Dot(oldN, newN)/(oldLen*newLen) < w.minFlipDot {
				return false
			}
		}
	}

	return true
}

// collapse merges v into u: the edge's faces die, v's remaining faces
// are rewired to u, and the changed neighborhoods are re-queued.
func (w *workspace) collapse(u, v int) {
	ef := w.edgeFaces(u, v)
	dead := make(map[int]bool, len(ef))
	for _, fi := range ef {
		dead[fi] = true
		w.faceAlive[fi] = false
		w.liveFaces--
	}

	touched := w.neighbors(v)

	// Rewire v's surviving faces to u.
	for _, fi := range w.vertFaces[v] {
		if dead[fi] {
			continue
		}
		f := &w.faces[fi]
		for k := range f {
			if f[k] == v {
				f[k] = u
			}
		}
		w.vertFaces[u] = append(w.vertFaces[u], fi)
	}
	w.vertFaces[v] = nil

	// Drop dead faces from the incidence lists of every corner.
	for _, fi := range ef {
		for _, p := range w.faces[fi] {
			if p == v {
				continue
			}
			w.vertFaces[p] = removeFace(w.vertFaces[p], fi)
		}
	}
	w.vertFaces[u] = removeFaces(w.vertFaces[u], dead)

	// Invalidate and re-queue everything whose neighborhood changed.
	w.version[v]++
	w.version[u]++
	for _, p := range touched {
		w.version[p]++
	}
	requeue := append([]int{u}, touched...)
	for _, p := range requeue {
		for _, n := range w.neighbors(p) {
			w.pushCandidate(p, n)
			w.pushCandidate(n, p)
		}
	}
}

// build compacts the workspace into a fresh mesh. Surviving faces keep
// their original relative order; vertices keep their original relative
// order among those still referenced.
func (w *workspace) build() *mesh.Mesh {
	used := make([]bool, len(w.verts))
	for fi, alive := range w.faceAlive {
		if !alive {
			continue
		}
		for _, p := range w.faces[fi] {
			used[p] = true
		}
	}

	remap := make([]int, len(w.verts))
	out := &mesh.Mesh{}
	for i, u := range used {
		if u {
			remap[i] = len(out.Vertices)
			out.Vertices = append(out.Vertices, w.verts[i])
		}
	}
	for fi, alive := range w.faceAlive {
		if !alive {
			continue
		}
		f := w.faces[fi]
		out.Faces = append(out.Faces, [3]int{remap[f[0]], remap[f[1]], remap[f[2]]})
	}
	return out
}

func orderedEdge(a, b int) [2]int {
	if a < b {
		return [2]int{a, b}
	}
	return [2]int{b, a}
}

func dedupSorted(s []int) []int {
	out := s[:0]
	for i, v := range s {
		if i == 0 || v != s[i-1] {
			out = append(out, v)
		}
	}
	return out
}

func intersectSorted(a, b []int) []int {
	var out []int
	i, j := 0, 0
	for i < len(a) && j < len(b) {
		switch {
		case a[i] < b[j]:
			i++
		case a[i] > b[j]:
			j++
		default:
			out = append(out, a[i])
			i++
			j++
		}
	}
	return out
}

func equalInts(a, b []int) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func removeFace(faces []int, fi int) []int {
	out := faces[:0]
	for _, f := range faces {
		if f != fi {
			out = append(out, f)
		}
	}
	return out
}

func removeFaces(faces []int, dead map[int]bool) []int {
	out := faces[:0]
	for _, f := range faces {
		if !dead[f] {
			out = append(out, f)
		}
	}
	return out
}
