package geom

import "math"

// The focal surface is curved: a dot at flat-CS radius r sits at arc
// length s(r) along the surface. Positioner motion loci are closer to true
// circles in the curved parametrization, so circle fits warp coordinates
// with XYToUV first and warp the fitted centre back with UVToXY.
//
// The surface model is the fitted spherical approximation of the corrector
// optics, radius of curvature focalSurfaceRadius; the arc length of a
// sphere expanded to the first curvature term is
//
//	s(r) = r · (1 + r²/(6·R²))
//
// which is accurate to well below a micron over the 410 mm focal plane.
const focalSurfaceRadius = 4028.0 // mm

// rToS maps flat focal-plane radius (mm) to arc length along the curved
// surface (mm).
func rToS(r float64) float64 {
	return r * (1 + r*r/(6*focalSurfaceRadius*focalSurfaceRadius))
}

// sToR inverts rToS by Newton iteration. s and the returned radius are in
// mm; convergence is quadratic since the correction is small and monotonic.
func sToR(s float64) float64 {
	r := s
	for i := 0; i < 10; i++ {
		f := rToS(r) - s
		df := 1 + r*r/(2*focalSurfaceRadius*focalSurfaceRadius)
		step := f / df
		r -= step
		if math.Abs(step) < 1e-12 {
			break
		}
	}
	return r
}

// XYToUV warps flat focal-plane coordinates (mm) onto the curved-surface
// parametrization: the polar angle is preserved and the radius is replaced
// by the arc length along the surface.
func XYToUV(x, y []float64) (u, v []float64) {
	u = make([]float64, len(x))
	v = make([]float64, len(x))
	for i := range x {
		u[i], v[i] = xyToUV(x[i], y[i])
	}
	return u, v
}

// UVToXY is the inverse warp of XYToUV.
func UVToXY(u, v []float64) (x, y []float64) {
	x = make([]float64, len(u))
	y = make([]float64, len(u))
	for i := range u {
		x[i], y[i] = uvToXY(u[i], v[i])
	}
	return x, y
}

func xyToUV(x, y float64) (u, v float64) {
	r := math.Hypot(x, y)
	if r == 0 {
		return 0, 0
	}
	scale := rToS(r) / r
	return x * scale, y * scale
}

func uvToXY(u, v float64) (x, y float64) {
	s := math.Hypot(u, v)
	if s == 0 {
		return 0, 0
	}
	scale := sToR(s) / s
	return u * scale, v * scale
}
