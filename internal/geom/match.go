package geom

import (
	"math"

	"gonum.org/v1/gonum/spatial/kdtree"
)

// fpPoint is one target point with its catalog index, stored in the kd-tree.
type fpPoint struct {
	x, y float64
	idx  int
}

func (p fpPoint) Compare(c kdtree.Comparable, d kdtree.Dim) float64 {
	q := c.(fpPoint)
	switch d {
	case 0:
		return p.x - q.x
	case 1:
		return p.y - q.y
	default:
		panic("geom: illegal dimension")
	}
}

func (p fpPoint) Dims() int { return 2 }

func (p fpPoint) Distance(c kdtree.Comparable) float64 {
	q := c.(fpPoint)
	dx := p.x - q.x
	dy := p.y - q.y
	return dx*dx + dy*dy
}

// fpPoints implements kdtree.Interface over a target point set.
type fpPoints []fpPoint

func (p fpPoints) Index(i int) kdtree.Comparable         { return p[i] }
func (p fpPoints) Len() int                              { return len(p) }
func (p fpPoints) Pivot(d kdtree.Dim) int                { return fpPlane{Dim: d, fpPoints: p}.Pivot() }
func (p fpPoints) Slice(start, end int) kdtree.Interface { return p[start:end] }

// fpPlane is the sorting helper required by kdtree construction.
type fpPlane struct {
	kdtree.Dim
	fpPoints
}

func (p fpPlane) Less(i, j int) bool {
	switch p.Dim {
	case 0:
		return p.fpPoints[i].x < p.fpPoints[j].x
	case 1:
		return p.fpPoints[i].y < p.fpPoints[j].y
	default:
		panic("geom: illegal dimension")
	}
}
func (p fpPlane) Pivot() int { return kdtree.Partition(p, kdtree.MedianOfMedians(p)) }
func (p fpPlane) Slice(start, end int) kdtree.SortSlicer {
	p.fpPoints = p.fpPoints[start:end]
	return p
}
func (p fpPlane) Swap(i, j int) {
	p.fpPoints[i], p.fpPoints[j] = p.fpPoints[j], p.fpPoints[i]
}

// Match associates each source point with its nearest target point. Both
// sets must already be in the same coordinate system. It returns, per
// source point, the index of the nearest target and the Euclidean distance
// to it. Matching is one-directional: several sources may share a target;
// resolving such conflicts (and any maximum-distance gating) is the
// caller's responsibility.
//
// Empty inputs yield empty results, not an error. When the target set is
// empty every index is -1 with an infinite distance.
func Match(srcX, srcY, tgtX, tgtY []float64) (indices []int, distances []float64) {
	n := len(srcX)
	if n == 0 {
		return []int{}, []float64{}
	}
	indices = make([]int, n)
	distances = make([]float64, n)
	if len(tgtX) == 0 {
		for i := range indices {
			indices[i] = -1
			distances[i] = math.Inf(1)
		}
		return indices, distances
	}

	targets := make(fpPoints, len(tgtX))
	for i := range tgtX {
		targets[i] = fpPoint{x: tgtX[i], y: tgtY[i], idx: i}
	}
	tree := kdtree.New(targets, false)

	for i := 0; i < n; i++ {
		got, d2 := tree.Nearest(fpPoint{x: srcX[i], y: srcY[i], idx: -1})
		nearest := got.(fpPoint)
		indices[i] = nearest.idx
		// kdtree distances are squared Euclidean.
		distances[i] = math.Sqrt(d2)
	}
	return indices, distances
}
