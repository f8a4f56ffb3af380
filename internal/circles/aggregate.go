// Package circles estimates per-device centres from repeated positioner
// motion observed across many exposures.
//
// A positioner swept through its range traces an arc of a circle about its
// physical centre. The aggregator accumulates registered spot positions per
// device dot, fits a circle to each moving positioner, and compares fitted
// centres against the metrology expectation. Skips and exclusions are
// per-device policy, never batch failures.
package circles

import (
	"math"
	"sort"

	"gonum.org/v1/gonum/stat"

	"github.com/focalplane-data/fpmeter/internal/geom"
	"github.com/focalplane-data/fpmeter/internal/monitoring"
	"github.com/focalplane-data/fpmeter/internal/spots"
	"github.com/focalplane-data/fpmeter/internal/units"
)

// Aggregation policy constants, from the calibrated production pipeline.
const (
	// minObservations is the smallest accumulated sample that gives a
	// meaningful fit.
	minObservations = 6
	// nonMovingStdMM: a positioner centre dot whose x spread (population
	// std) is below this is parked; a circle fit on a near-stationary
	// cloud is meaningless.
	nonMovingStdMM = 1.0
	// minRadiusMM rejects spuriously small fitted circles.
	minRadiusMM = 0.1
	// maxOffsetMM excludes devices whose fitted centre disagrees with
	// metrology by more than this (outliers, mismatches).
	maxOffsetMM = 3.0
)

// Options override the aggregation policy constants.
type Options struct {
	MinObservations int
	NonMovingStdMM  float64
	MinRadiusMM     float64
	MaxOffsetMM     float64
}

// DefaultOptions are the calibrated production policy values.
func DefaultOptions() Options {
	return Options{
		MinObservations: minObservations,
		NonMovingStdMM:  nonMovingStdMM,
		MinRadiusMM:     minRadiusMM,
		MaxOffsetMM:     maxOffsetMM,
	}
}

// DeviceFit is one accepted device in the aggregate output.
type DeviceFit struct {
	Location  int
	PinholeID int
	// Metrology-expected position, mm.
	XFPMetro float64
	YFPMetro float64
	// Fitted (or averaged, for fiducial pinholes) position, mm.
	XFP float64
	YFP float64
	// Radius of the fitted motion circle, mm. Zero for fiducial pinholes.
	Radius float64
	// NObs is the number of accumulated observations used.
	NObs int
}

// accumulator collects repeated observations of one device dot.
type accumulator struct {
	x, y       []float64
	xexp, yexp float64
}

// MeasureCircles accumulates registered spot tables for the same devices
// over many exposures and returns the accepted per-device fits. Devices
// are keyed by location*10+pinholeID so a positioner centre dot and each
// fiducial pinhole accumulate separately. Unfittable devices are skipped
// with a log line; only accepted devices appear in the output.
func MeasureCircles(exposures [][]spots.Spot) []DeviceFit {
	return MeasureCirclesOptions(exposures, DefaultOptions())
}

// MeasureCirclesOptions is MeasureCircles with explicit policy values.
func MeasureCirclesOptions(exposures [][]spots.Spot, opt Options) []DeviceFit {
	acc := make(map[int]*accumulator)
	var order []int

	for _, table := range exposures {
		// Count rows per key first: a key matched several times within
		// one exposure is ambiguous and contributes nothing this frame.
		counts := make(map[int]int)
		for i := range table {
			if table[i].Location > 0 {
				counts[table[i].DeviceKey()]++
			}
		}
		for i := range table {
			s := &table[i]
			if s.Location <= 0 {
				continue
			}
			key := s.DeviceKey()
			if counts[key] > 1 {
				monitoring.Logf("circles: several spots matched for location %d pinhole %d, skipping frame", s.Location, s.PinholeID)
				continue
			}
			a, ok := acc[key]
			if !ok {
				a = &accumulator{xexp: s.XFPExp, yexp: s.YFPExp}
				acc[key] = a
				order = append(order, key)
			}
			a.x = append(a.x, s.XFP)
			a.y = append(a.y, s.YFP)
		}
	}
	sort.Ints(order)

	var nPositioners, nPinholes int
	for _, key := range order {
		if key%10 == 0 {
			nPositioners++
		} else {
			nPinholes++
		}
	}
	monitoring.Logf("circles: %d positioners, %d fiducial pinholes accumulated", nPositioners, nPinholes)

	var fits []DeviceFit
	var offsets []float64
	for _, key := range order {
		a := acc[key]
		location := key / 10
		pinhole := key % 10

		fit, ok := fitDevice(a, location, pinhole, opt)
		if !ok {
			continue
		}
		dr := math.Hypot(fit.XFP-fit.XFPMetro, fit.YFP-fit.YFPMetro)
		if dr != 0 {
			offsets = append(offsets, dr)
		}
		// Outliers and devices without metrology are excluded from the
		// output, not reported as errors.
		if fit.XFPMetro == 0 || dr >= opt.MaxOffsetMM {
			continue
		}
		fits = append(fits, fit)
	}

	if len(offsets) > 0 {
		sort.Float64s(offsets)
		median := stat.Quantile(0.5, stat.Empirical, offsets, nil)
		monitoring.Logf("circles: median offset = %4.1f um", units.MM2Micron(median))
	}
	return fits
}

// fitDevice applies the skip policies and fits one device. The second
// return is false when the device is skipped.
func fitDevice(a *accumulator, location, pinhole int, opt Options) (DeviceFit, bool) {
	if len(a.x) < opt.MinObservations {
		return DeviceFit{}, false
	}

	// Drop zero-valued placeholder observations.
	var x, y []float64
	for i := range a.x {
		if a.x[i] != 0 {
			x = append(x, a.x[i])
			y = append(y, a.y[i])
		}
	}
	if len(x) == 0 {
		return DeviceFit{}, false
	}

	if pinhole == 0 && stat.PopStdDev(x, nil) < opt.NonMovingStdMM {
		// Parked positioner; the accumulated cloud is not a circle.
		return DeviceFit{}, false
	}

	fit := DeviceFit{
		Location:  location,
		PinholeID: pinhole,
		XFPMetro:  a.xexp,
		YFPMetro:  a.yexp,
		NObs:      len(x),
	}

	if pinhole != 0 {
		// Fiducial pinholes do not move; report the median position.
		fit.XFP = median(x)
		fit.YFP = median(y)
		return fit, true
	}

	// The motion locus is closer to a true circle on the curved focal
	// surface; warp, fit, and warp the centre back.
	u, v := geom.XYToUV(x, y)
	circle, err := geom.FitCircle(u, v)
	if err != nil {
		// Degenerate geometry skips the device, never the batch.
		monitoring.Logf("circles: fit failed for location %d: %v", location, err)
		return DeviceFit{}, false
	}
	cx, cy := geom.UVToXY([]float64{circle.X}, []float64{circle.Y})
	if circle.Radius < opt.MinRadiusMM {
		return DeviceFit{}, false
	}
	fit.XFP = cx[0]
	fit.YFP = cy[0]
	fit.Radius = circle.Radius
	return fit, true
}

func median(v []float64) float64 {
	s := append([]float64(nil), v...)
	sort.Float64s(s)
	return stat.Quantile(0.5, stat.Empirical, s, nil)
}
