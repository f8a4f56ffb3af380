package geom

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"
)

// Circle is the result of a circle fit: centre and radius in the
// coordinate system of the input points.
type Circle struct {
	X, Y   float64
	Radius float64
}

// FitCircle performs an algebraic least-squares circle fit (Kåsa method)
// over the given points. Writing the circle as
//
//	x² + y² + a·x + b·y + c = 0
//
// the coefficients are linear in the observations, so the fit reduces to a
// 3×3 normal-equation solve with no iterative refinement. At least three
// points are required; collinear or coincident points yield ErrDegenerate.
func FitCircle(x, y []float64) (Circle, error) {
	if len(x) != len(y) {
		return Circle{}, fmt.Errorf("fit circle: mismatched lengths %d and %d", len(x), len(y))
	}
	if len(x) < 3 {
		return Circle{}, fmt.Errorf("fit circle: need at least 3 points, got %d: %w", len(x), ErrInsufficientPoints)
	}

	// Normal equations for [x y 1]·[a b c]ᵀ = -(x²+y²).
	var sxx, sxy, syy, sx, sy float64
	var bx, by, bc float64
	n := float64(len(x))
	for i := range x {
		xi, yi := x[i], y[i]
		z := xi*xi + yi*yi
		sxx += xi * xi
		sxy += xi * yi
		syy += yi * yi
		sx += xi
		sy += yi
		bx += -z * xi
		by += -z * yi
		bc += -z
	}

	a := mat.NewDense(3, 3, []float64{
		sxx, sxy, sx,
		sxy, syy, sy,
		sx, sy, n,
	})
	b := mat.NewVecDense(3, []float64{bx, by, bc})

	var sol mat.VecDense
	if err := sol.SolveVec(a, b); err != nil {
		return Circle{}, fmt.Errorf("fit circle: %w", ErrDegenerate)
	}

	ca, cb, cc := sol.AtVec(0), sol.AtVec(1), sol.AtVec(2)
	cx := -ca / 2
	cy := -cb / 2
	r2 := cx*cx + cy*cy - cc
	if !(r2 > 0) || math.IsNaN(r2) || math.IsInf(r2, 0) {
		return Circle{}, fmt.Errorf("fit circle: non-positive radius: %w", ErrDegenerate)
	}
	return Circle{X: cx, Y: cy, Radius: math.Sqrt(r2)}, nil
}
