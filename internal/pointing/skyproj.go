// Package pointing maps sky targets onto the focal plane for a requested
// tile, solving for the telescope pointing that puts the tile centre at
// the focal-plane origin and correcting residual field rotation.
package pointing

import (
	"math"

	"github.com/focalplane-data/fpmeter/internal/units"
)

// Plate-scale polynomial of the corrector optics: focal-plane radius in mm
// as a function of field angle in degrees. Coefficients come from the
// fitted raytrace model; deriving them is outside this package's scope.
const (
	plateScaleC1 = 257.5 // mm per degree
	plateScaleC3 = 3.2   // mm per degree cubed
)

// adcShiftMM is the lateral image shift contributed by each ADC prism at
// its phi angle, from the same fitted raytrace model.
const adcShiftMM = 0.175

// hadec2xy is the gnomonic projection of (ha, dec) onto the tangent plane
// at (telHA, telDec). Angles in degrees; tangent coordinates in radians.
func hadec2xy(haDeg, decDeg, telHaDeg, telDecDeg float64) (x, y float64) {
	sinDec, cosDec := units.SinCosD(decDeg)
	sinDec0, cosDec0 := units.SinCosD(telDecDeg)
	sinDH, cosDH := units.SinCosD(haDeg - telHaDeg)

	den := sinDec*sinDec0 + cosDec*cosDec0*cosDH
	x = cosDec * sinDH / den
	y = (sinDec*cosDec0 - cosDec*sinDec0*cosDH) / den
	return x, y
}

// radec2tan projects equatorial coordinates onto the tangent plane of the
// current telescope pointing, given the local sidereal time (degrees).
// Precession, aberration and refraction belong to the excluded
// pointing-model derivation; this applies the fitted geometric chain only.
func radec2tan(raDeg, decDeg, telRaDeg, telDecDeg, lstDeg float64) (x, y float64) {
	return hadec2xy(lstDeg-raDeg, decDeg, lstDeg-telRaDeg, telDecDeg)
}

// tan2fp maps tangent-plane coordinates (radians) to focal-plane mm,
// applying the radial plate-scale polynomial and the ADC lateral shift.
func tan2fp(xtan, ytan, adc1Deg, adc2Deg float64) (xmm, ymm float64) {
	r := math.Hypot(xtan, ytan)
	if r > 0 {
		theta := units.Rad2Deg(r)
		rmm := plateScaleC1*theta + plateScaleC3*theta*theta*theta
		xmm = xtan / r * rmm
		ymm = ytan / r * rmm
	}
	s1, c1 := units.SinCosD(adc1Deg)
	s2, c2 := units.SinCosD(adc2Deg)
	xmm += adcShiftMM * (c1 + c2)
	ymm += adcShiftMM * (s1 + s2)
	return xmm, ymm
}

// fp2tan inverts tan2fp: removes the ADC shift and inverts the radial
// polynomial by Newton iteration (monotonic over the focal plane, so
// convergence is immediate).
func fp2tan(xmm, ymm, adc1Deg, adc2Deg float64) (xtan, ytan float64) {
	s1, c1 := units.SinCosD(adc1Deg)
	s2, c2 := units.SinCosD(adc2Deg)
	xmm -= adcShiftMM * (c1 + c2)
	ymm -= adcShiftMM * (s1 + s2)

	rmm := math.Hypot(xmm, ymm)
	if rmm == 0 {
		return 0, 0
	}
	theta := rmm / plateScaleC1
	for i := 0; i < 10; i++ {
		f := plateScaleC1*theta + plateScaleC3*theta*theta*theta - rmm
		df := plateScaleC1 + 3*plateScaleC3*theta*theta
		step := f / df
		theta -= step
		if math.Abs(step) < 1e-14 {
			break
		}
	}
	r := units.Deg2Rad(theta)
	return xmm / rmm * r, ymm / rmm * r
}

// MeasureFieldRot estimates the field rotation (degrees) from the
// relationship between on-sky offsets and focal-plane positions. Targets
// closer than 10 mm to the focal-plane centre are excluded to avoid
// divide-by-near-zero instability, as are NaN entries. The estimate is the
// mean sine of the per-target angle between the tangent-plane and
// focal-plane direction vectors.
func MeasureFieldRot(raDeg, decDeg []float64, tileRaDeg, tileDecDeg float64, xfp, yfp []float64) float64 {
	const minRadiusMM = 10.0
	var sum float64
	var n int
	for i := range raDeg {
		if math.IsNaN(raDeg[i]) || math.IsNaN(decDeg[i]) || math.IsNaN(xfp[i]) || math.IsNaN(yfp[i]) {
			continue
		}
		r2fp := xfp[i]*xfp[i] + yfp[i]*yfp[i]
		if r2fp <= minRadiusMM*minRadiusMM {
			continue
		}
		// Sign convention matches the hour-angle frame of the projection.
		x2, y2 := hadec2xy(-raDeg[i], decDeg[i], -tileRaDeg, tileDecDeg)
		r2tan := x2*x2 + y2*y2
		if r2tan == 0 {
			continue
		}
		sum += (yfp[i]*x2 - xfp[i]*y2) / math.Sqrt(r2fp*r2tan)
		n++
	}
	if n == 0 {
		return 0
	}
	return units.Rad2Deg(sum / float64(n))
}
