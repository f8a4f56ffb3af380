// Package units provides shared angular and length conversions for the
// focal-plane measurement pipeline. Focal-plane lengths are carried in mm,
// offsets reported in microns, sky angles in degrees.
package units

import "math"

const (
	// MMPerMicron converts microns to millimetres.
	MMPerMicron = 1e-3
	// MicronPerMM converts millimetres to microns.
	MicronPerMM = 1e3
	// DegPerArcsec converts arcseconds to degrees.
	DegPerArcsec = 1.0 / 3600.0
	// ArcsecPerDeg converts degrees to arcseconds.
	ArcsecPerDeg = 3600.0
)

// Deg2Rad converts degrees to radians.
func Deg2Rad(deg float64) float64 { return deg * math.Pi / 180.0 }

// Rad2Deg converts radians to degrees.
func Rad2Deg(rad float64) float64 { return rad * 180.0 / math.Pi }

// SinCosD returns sin and cos of an angle given in degrees.
func SinCosD(deg float64) (sin, cos float64) {
	return math.Sincos(Deg2Rad(deg))
}

// MM2Micron converts millimetres to microns.
func MM2Micron(mm float64) float64 { return mm * MicronPerMM }

// Micron2MM converts microns to millimetres.
func Micron2MM(um float64) float64 { return um * MMPerMicron }
