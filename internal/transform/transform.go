// Package transform implements the parametric transform between raw
// calibration-camera pixels (FVC) and focal-plane mm (FP).
//
// The model is a similarity transform (rotation, scale, offset) applied to
// normalized pixel coordinates, optionally followed by a fixed-basis
// polynomial distortion correction. The similarity part has a closed-form
// least-squares solution; the distortion coefficients are fit linearly
// against the post-similarity residuals. One transform is owned by one
// calibration session and refit as matched points accrue.
package transform

import (
	"errors"
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"

	"github.com/focalplane-data/fpmeter/internal/spots"
)

// ErrInsufficientPoints reports fewer matched points than the active model
// has degrees of freedom.
var ErrInsufficientPoints = errors.New("insufficient points for transform fit")

// Pixel normalization: the FVC sensor is 6000×6000 px; raw pixels are
// reduced to roughly [-1, 1] before the similarity is applied so that the
// fitted scale and distortion coefficients stay O(1)-comparable.
const (
	pixCenter = 3000.0
	pixScale  = 3000.0
)

// fpNorm normalizes focal-plane mm to the unit disc for the distortion
// basis (410 mm focal-plane radius).
const fpNorm = 410.0

// nBasis is the number of distortion basis terms per axis; see basisTerms.
const nBasis = 5

// FVC2FP is the fitted pixel↔mm transform. The zero value is unusable;
// start from Default or a previously fitted transform.
type FVC2FP struct {
	// Rotation of the similarity part, radians.
	Rotation float64 `json:"rotation"`
	// Scale in mm per normalized pixel unit.
	Scale float64 `json:"scale"`
	// Offset in mm.
	OffsetX float64 `json:"offset_x"`
	OffsetY float64 `json:"offset_y"`
	// Distortion coefficients over basisTerms, applied additively to the
	// similarity output. Nil when no distortion correction is fitted.
	XCoeffs []float64 `json:"x_coeffs,omitempty"`
	YCoeffs []float64 `json:"y_coeffs,omitempty"`
}

// Default returns the nominal pre-calibration transform: no rotation, the
// as-designed plate scale, no distortion. Good enough to seed fiducial
// identification on a fresh session.
func Default() *FVC2FP {
	return &FVC2FP{Scale: 435.0}
}

// Copy returns an independent copy; concurrent registrations must each own
// one (a fit for one exposure must not mutate another's transform).
func (t *FVC2FP) Copy() *FVC2FP {
	c := *t
	c.XCoeffs = append([]float64(nil), t.XCoeffs...)
	c.YCoeffs = append([]float64(nil), t.YCoeffs...)
	return &c
}

// FitFlags selects which parameters a Fit call may move.
type FitFlags struct {
	// FixedScale holds the current scale.
	FixedScale bool
	// FixedRotation holds the current rotation.
	FixedRotation bool
	// Distortion additionally fits the polynomial correction terms.
	Distortion bool
}

// freeParams counts the scalar degrees of freedom of the active model.
func (f FitFlags) freeParams() int {
	n := 2 // offset
	if !f.FixedScale {
		n++
	}
	if !f.FixedRotation {
		n++
	}
	if f.Distortion {
		n += 2 * nBasis
	}
	return n
}

// FitResult reports fit quality. The fit never fails on mild
// non-convergence; callers judge quality from the residual.
type FitResult struct {
	// RMS residual between transformed sources and targets, mm.
	RMS float64
	// N is the number of point pairs used.
	N int
}

func (r FitResult) String() string {
	return fmt.Sprintf("n=%d rms=%.4f mm", r.N, r.RMS)
}

// Fit adjusts the transform so that the source pixels map onto the target
// focal-plane positions with minimum sum-of-squared residuals. Inputs are
// parallel slices of matched pairs; the caller has already excluded
// unmatched rows. It fails only when fewer pairs are supplied than the
// active model's degrees of freedom require (each pair constrains two
// scalars).
func (t *FVC2FP) Fit(srcXPix, srcYPix, dstXmm, dstYmm []float64, flags FitFlags) (FitResult, error) {
	n := len(srcXPix)
	if len(srcYPix) != n || len(dstXmm) != n || len(dstYmm) != n {
		return FitResult{}, fmt.Errorf("transform fit: mismatched input lengths")
	}
	minPoints := (flags.freeParams() + 1) / 2
	if n < minPoints {
		return FitResult{}, fmt.Errorf("transform fit: %d points for %d free parameters: %w",
			n, flags.freeParams(), ErrInsufficientPoints)
	}

	// Normalized pixel coordinates.
	sx := make([]float64, n)
	sy := make([]float64, n)
	for i := 0; i < n; i++ {
		sx[i] = (srcXPix[i] - pixCenter) / pixScale
		sy[i] = (srcYPix[i] - pixCenter) / pixScale
	}

	t.fitSimilarity(sx, sy, dstXmm, dstYmm, flags)

	if flags.Distortion {
		if err := t.fitAlternating(sx, sy, dstXmm, dstYmm, flags); err != nil {
			// A rank-deficient distortion solve is mild non-convergence,
			// not a failure: fall back to the similarity-only fit and let
			// the residual tell the story.
			t.XCoeffs = nil
			t.YCoeffs = nil
			t.fitSimilarity(sx, sy, dstXmm, dstYmm, flags)
		}
	}

	// Residual over the final model.
	var ss float64
	for i := 0; i < n; i++ {
		x, y := t.applyNorm(sx[i], sy[i])
		dx := x - dstXmm[i]
		dy := y - dstYmm[i]
		ss += dx*dx + dy*dy
	}
	return FitResult{RMS: math.Sqrt(ss / float64(n)), N: n}, nil
}

// fitSimilarity solves the rotation/scale/offset part in closed form
// (Procrustes): rotation from the atan2 of summed cross and dot products of
// centred coordinates, scale from their projection, offset from the
// centroid gap.
func (t *FVC2FP) fitSimilarity(sx, sy, dx, dy []float64, flags FitFlags) {
	n := float64(len(sx))
	var scx, scy, dcx, dcy float64
	for i := range sx {
		scx += sx[i]
		scy += sy[i]
		dcx += dx[i]
		dcy += dy[i]
	}
	scx /= n
	scy /= n
	dcx /= n
	dcy /= n

	var dot, cross, snorm float64
	for i := range sx {
		ax, ay := sx[i]-scx, sy[i]-scy
		bx, by := dx[i]-dcx, dy[i]-dcy
		dot += ax*bx + ay*by
		cross += ax*by - ay*bx
		snorm += ax*ax + ay*ay
	}

	if !flags.FixedRotation && snorm > 0 {
		t.Rotation = math.Atan2(cross, dot)
	}
	if !flags.FixedScale && snorm > 0 {
		sin, cos := math.Sincos(t.Rotation)
		s := (dot*cos + cross*sin) / snorm
		if s > 0 {
			t.Scale = s
		}
	}

	sin, cos := math.Sincos(t.Rotation)
	t.OffsetX = dcx - t.Scale*(cos*scx-sin*scy)
	t.OffsetY = dcy - t.Scale*(sin*scx+cos*scy)
}

// distortionPasses is the number of alternating similarity/distortion
// rounds in a full fit. The first similarity solve absorbs part of the
// distortion signal, and the basis carries no linear terms to recover it,
// so the similarity must be refit against distortion-corrected targets.
// The correction is small compared to the plate scale, so each round
// shrinks the leftover by orders of magnitude.
const distortionPasses = 3

// fitAlternating alternates similarity and distortion solves until the
// pass budget is spent.
func (t *FVC2FP) fitAlternating(sx, sy, dx, dy []float64, flags FitFlags) error {
	n := len(sx)
	ax := make([]float64, n)
	ay := make([]float64, n)
	for pass := 0; pass < distortionPasses; pass++ {
		if pass > 0 {
			// Refit the similarity against targets with the current
			// distortion estimate removed.
			for i := 0; i < n; i++ {
				fx, fy := t.applyNorm(sx[i], sy[i])
				px, py := t.applySimilarity(sx[i], sy[i])
				ax[i] = dx[i] - (fx - px)
				ay[i] = dy[i] - (fy - py)
			}
			t.fitSimilarity(sx, sy, ax, ay, flags)
		}
		if err := t.fitDistortion(sx, sy, dx, dy); err != nil {
			return err
		}
	}
	return nil
}

// fitDistortion fits the polynomial correction terms by linear least
// squares (QR) on the residuals left by the similarity part.
func (t *FVC2FP) fitDistortion(sx, sy, dx, dy []float64) error {
	n := len(sx)
	t.XCoeffs = nil
	t.YCoeffs = nil

	a := mat.NewDense(n, nBasis, nil)
	rx := mat.NewVecDense(n, nil)
	ry := mat.NewVecDense(n, nil)
	for i := 0; i < n; i++ {
		x, y := t.applyNorm(sx[i], sy[i])
		terms := basisTerms(x/fpNorm, y/fpNorm)
		for j, v := range terms {
			a.Set(i, j, v)
		}
		rx.SetVec(i, dx[i]-x)
		ry.SetVec(i, dy[i]-y)
	}

	var qr mat.QR
	qr.Factorize(a)
	var cx, cy mat.VecDense
	if err := qr.SolveVecTo(&cx, false, rx); err != nil {
		return err
	}
	if err := qr.SolveVecTo(&cy, false, ry); err != nil {
		return err
	}
	t.XCoeffs = make([]float64, nBasis)
	t.YCoeffs = make([]float64, nBasis)
	for j := 0; j < nBasis; j++ {
		t.XCoeffs[j] = cx.AtVec(j)
		t.YCoeffs[j] = cy.AtVec(j)
	}
	return nil
}

// basisTerms evaluates the fixed distortion basis at unit-disc normalized
// focal-plane coordinates. Constant and linear terms are deliberately
// absent: the similarity part owns those.
func basisTerms(x, y float64) [nBasis]float64 {
	r2 := x*x + y*y
	return [nBasis]float64{x * x, x * y, y * y, r2 * x, r2 * y}
}

// applySimilarity maps normalized pixel coordinates through the
// similarity part only.
func (t *FVC2FP) applySimilarity(x, y float64) (float64, float64) {
	sin, cos := math.Sincos(t.Rotation)
	return t.Scale*(cos*x-sin*y) + t.OffsetX, t.Scale*(sin*x+cos*y) + t.OffsetY
}

// applyNorm maps normalized pixel coordinates to focal-plane mm.
func (t *FVC2FP) applyNorm(x, y float64) (float64, float64) {
	fx, fy := t.applySimilarity(x, y)
	if t.XCoeffs != nil {
		terms := basisTerms(fx/fpNorm, fy/fpNorm)
		for j := 0; j < nBasis; j++ {
			fx += t.XCoeffs[j] * terms[j]
			fy += t.YCoeffs[j] * terms[j]
		}
	}
	return fx, fy
}

// Apply transforms raw pixel coordinates to focal-plane mm. It is pure:
// inputs are not modified and no state changes.
func (t *FVC2FP) Apply(xPix, yPix []float64) (xmm, ymm []float64) {
	xmm = make([]float64, len(xPix))
	ymm = make([]float64, len(xPix))
	for i := range xPix {
		xmm[i], ymm[i] = t.applyNorm((xPix[i]-pixCenter)/pixScale, (yPix[i]-pixCenter)/pixScale)
	}
	return xmm, ymm
}

// Invert transforms focal-plane mm back to raw pixels. The similarity part
// inverts exactly; the distortion correction is removed by fixed-point
// iteration, which converges fast because the correction is small compared
// to the plate scale.
func (t *FVC2FP) Invert(xmm, ymm []float64) (xPix, yPix []float64) {
	xPix = make([]float64, len(xmm))
	yPix = make([]float64, len(xmm))
	sin, cos := math.Sincos(t.Rotation)
	for i := range xmm {
		// Seed with the exact similarity inverse.
		nx, ny := t.invertSimilarity(xmm[i], ymm[i], sin, cos)
		if t.XCoeffs != nil {
			for iter := 0; iter < 20; iter++ {
				fx, fy := t.applyNorm(nx, ny)
				ex, ey := fx-xmm[i], fy-ymm[i]
				if math.Abs(ex) < 1e-12 && math.Abs(ey) < 1e-12 {
					break
				}
				// Pull the error back through the similarity linear map.
				cx, cy := t.invertSimilarity(t.OffsetX+ex, t.OffsetY+ey, sin, cos)
				nx -= cx
				ny -= cy
			}
		}
		xPix[i] = nx*pixScale + pixCenter
		yPix[i] = ny*pixScale + pixCenter
	}
	return xPix, yPix
}

func (t *FVC2FP) invertSimilarity(xmm, ymm, sin, cos float64) (nx, ny float64) {
	ux := (xmm - t.OffsetX) / t.Scale
	uy := (ymm - t.OffsetY) / t.Scale
	return cos*ux + sin*uy, -sin*ux + cos*uy
}

// FitSpots refits the transform against the rows of a spot table that
// carry direct metrology positions (fiducial pinholes identified earlier in
// the registration pass) and, when update is set, projects every row's raw
// centroid to focal-plane mm in place.
func (t *FVC2FP) FitSpots(table []spots.Spot, flags FitFlags, update bool) (FitResult, error) {
	var sx, sy, dx, dy []float64
	for i := range table {
		s := &table[i]
		if !s.Matched() || (s.XFPMetro == 0 && s.YFPMetro == 0) {
			continue
		}
		sx = append(sx, s.XPix)
		sy = append(sy, s.YPix)
		dx = append(dx, s.XFPMetro)
		dy = append(dy, s.YFPMetro)
	}
	res, err := t.Fit(sx, sy, dx, dy, flags)
	if err != nil {
		return res, err
	}
	if update {
		t.Project(table)
	}
	return res, nil
}

// Project writes the focal-plane projection of each row's raw centroid
// onto the table in place (the X_FP/Y_FP fields).
func (t *FVC2FP) Project(table []spots.Spot) {
	for i := range table {
		x, y := t.applyNorm((table[i].XPix-pixCenter)/pixScale, (table[i].YPix-pixCenter)/pixScale)
		table[i].XFP = x
		table[i].YFP = y
	}
}
