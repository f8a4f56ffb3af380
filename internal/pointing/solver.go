package pointing

import (
	"errors"
	"fmt"

	"gonum.org/v1/gonum/mat"

	"github.com/focalplane-data/fpmeter/internal/monitoring"
	"github.com/focalplane-data/fpmeter/internal/units"
)

// ErrSingularJacobian reports a degenerate pointing projection. This is a
// fatal configuration error for the tile, not recoverable locally.
var ErrSingularJacobian = errors.New("singular pointing jacobian")

// newtonIterations is the fixed pointing-correction iteration count. Two
// iterations assume near-linearity of the projection over the tile's
// angular scale; callers needing stronger guarantees should check
// Result.TileCenterX/Y and iterate externally.
const newtonIterations = 2

// jacobianEpsDeg is the perturbation used for the numeric derivative of
// the projection: one arcsecond.
const jacobianEpsDeg = 1.0 / 3600.0

// TileParams describes the requested tile.
type TileParams struct {
	// Requested tile centre, degrees.
	RA  float64
	Dec float64
	// Hour angle of the observation, degrees.
	HA float64
	// MJD of the observation. Carried for the pointing-model collaborators;
	// the fitted geometric chain here does not consume it.
	MJD float64
	// Requested field rotation, degrees.
	FieldRot float64
	// ADC prism angles, degrees.
	ADC1 float64
	ADC2 float64
}

// Result carries the solved pointing and its diagnostics. Diagnostics are
// informational; they never gate the output.
type Result struct {
	// Solved telescope pointing, degrees.
	TelRA  float64
	TelDec float64
	// Residual focal-plane position of the tile centre after the fixed
	// Newton iterations, mm.
	TileCenterX float64
	TileCenterY float64
	// Field rotation measured before correction, degrees.
	MeasuredFieldRot float64
	// Discrepancy between the requested rotation and the re-measured
	// rotation of the corrected output, arcseconds.
	FieldRotResidualArcsec float64
}

// SolvePointing computes the telescope pointing that places the tile
// centre at the focal-plane origin and returns focal-plane coordinates for
// the target list, rotated to match the requested field rotation
// convention. Identical inputs produce identical outputs. The fixed
// production iteration count is used; see SolvePointingIterations.
func SolvePointing(tile TileParams, raDeg, decDeg []float64) (xfp, yfp []float64, res Result, err error) {
	return SolvePointingIterations(tile, raDeg, decDeg, newtonIterations)
}

// SolvePointingIterations is SolvePointing with an explicit Newton
// iteration count, for tiles where the centre residual after the default
// two iterations is too large.
func SolvePointingIterations(tile TileParams, raDeg, decDeg []float64, iterations int) (xfp, yfp []float64, res Result, err error) {
	if len(raDeg) != len(decDeg) {
		return nil, nil, Result{}, fmt.Errorf("solve pointing: mismatched target lengths %d and %d", len(raDeg), len(decDeg))
	}

	// LST from the requested hour angle.
	lst := tile.HA + tile.RA

	// Start with pointing at the tile centre; the ADC shift pulls the
	// tile centre off origin, which the Newton iterations take out.
	telRA := tile.RA
	telDec := tile.Dec

	project := func(ra, dec float64) (float64, float64) {
		xt, yt := radec2tan(ra, dec, telRA, telDec, lst)
		return tan2fp(xt, yt, tile.ADC1, tile.ADC2)
	}

	for iter := 0; iter < iterations; iter++ {
		x0, y0 := project(tile.RA, tile.Dec)

		// Numeric derivative of the projection with respect to the tile
		// coordinates.
		xr, yr := project(tile.RA+jacobianEpsDeg, tile.Dec)
		xd, yd := project(tile.RA, tile.Dec+jacobianEpsDeg)
		jac := mat.NewDense(2, 2, []float64{
			(xr - x0) / jacobianEpsDeg, (xd - x0) / jacobianEpsDeg,
			(yr - y0) / jacobianEpsDeg, (yd - y0) / jacobianEpsDeg,
		})

		var delta mat.VecDense
		if solveErr := delta.SolveVec(jac, mat.NewVecDense(2, []float64{x0, y0})); solveErr != nil {
			return nil, nil, Result{}, fmt.Errorf("solve pointing: iteration %d: %w", iter, ErrSingularJacobian)
		}
		// Moving the pointing is equivalent to moving the tile the other
		// way, hence the additive correction.
		telRA += delta.AtVec(0)
		telDec += delta.AtVec(1)
	}

	res.TelRA = telRA
	res.TelDec = telDec
	res.TileCenterX, res.TileCenterY = project(tile.RA, tile.Dec)
	monitoring.Logf("pointing: tile centre at (%.4f, %.4f) mm after %d iterations",
		res.TileCenterX, res.TileCenterY, iterations)

	// Project all targets with the converged pointing.
	xfp = make([]float64, len(raDeg))
	yfp = make([]float64, len(raDeg))
	for i := range raDeg {
		xfp[i], yfp[i] = project(raDeg[i], decDeg[i])
	}

	// Measure the achieved field rotation, then rotate the output so the
	// realised rotation matches the request.
	res.MeasuredFieldRot = MeasureFieldRot(raDeg, decDeg, tile.RA, tile.Dec, xfp, yfp)
	drot := tile.FieldRot - res.MeasuredFieldRot
	sin, cos := units.SinCosD(drot)
	for i := range xfp {
		x, y := xfp[i], yfp[i]
		xfp[i] = cos*x - sin*y
		yfp[i] = sin*x + cos*y
	}

	// Self-check: re-measure on the rotated output. Diagnostic only.
	realised := MeasureFieldRot(raDeg, decDeg, tile.RA, tile.Dec, xfp, yfp)
	res.FieldRotResidualArcsec = (tile.FieldRot - realised) * units.ArcsecPerDeg
	monitoring.Logf("pointing: requested fieldrot=%.1f arcsec delta=%.1f arcsec",
		tile.FieldRot*units.ArcsecPerDeg, res.FieldRotResidualArcsec)

	return xfp, yfp, res, nil
}
