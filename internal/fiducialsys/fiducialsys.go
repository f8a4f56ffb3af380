// Package fiducialsys estimates per-fiducial systematic offsets between
// measured and nominal positions across many exposures, and applies the
// resulting corrections to a metrology catalog.
package fiducialsys

import (
	"math"
	"sort"

	"gonum.org/v1/gonum/stat"

	"github.com/focalplane-data/fpmeter/internal/metrology"
	"github.com/focalplane-data/fpmeter/internal/monitoring"
	"github.com/focalplane-data/fpmeter/internal/spots"
	"github.com/focalplane-data/fpmeter/internal/units"
)

// maxResidualMM drops single-exposure measurements whose offset exceeds
// this before aggregation; such residuals are transform failures, not
// fiducial systematics.
const maxResidualMM = 0.1

// Measurement is the mean pinhole offset of one fiducial in one exposure.
type Measurement struct {
	Location int
	// Mean measured-minus-metrology offset over the device's pinholes, mm.
	DX float64
	DY float64
	// NPinholes is the number of pinholes averaged.
	NPinholes int
}

// Correction is the aggregated systematic offset of one fiducial.
type Correction struct {
	Location int
	// Offset to add to the nominal position, mm.
	DX float64
	DY float64
	// N is the number of exposure measurements averaged after trimming.
	N int
}

// MeasureExposure returns the per-fiducial mean offsets of one registered
// spot table. Only rows with a fiducial pinhole id and metrology are used.
func MeasureExposure(table []spots.Spot) []Measurement {
	type acc struct {
		dx, dy []float64
	}
	devs := make(map[int]*acc)
	var order []int
	for i := range table {
		s := &table[i]
		if s.PinholeID <= 0 || s.Location <= 0 {
			continue
		}
		a, ok := devs[s.Location]
		if !ok {
			a = &acc{}
			devs[s.Location] = a
			order = append(order, s.Location)
		}
		a.dx = append(a.dx, s.XFP-s.XFPMetro)
		a.dy = append(a.dy, s.YFP-s.YFPMetro)
	}
	sort.Ints(order)

	var out []Measurement
	var sumSq float64
	for _, loc := range order {
		a := devs[loc]
		m := Measurement{
			Location:  loc,
			DX:        stat.Mean(a.dx, nil),
			DY:        stat.Mean(a.dy, nil),
			NPinholes: len(a.dx),
		}
		sumSq += m.DX*m.DX + m.DY*m.DY
		out = append(out, m)
	}
	if len(out) > 0 {
		rms2d := units.MM2Micron(math.Sqrt(sumSq / float64(len(out))))
		monitoring.Logf("fiducialsys: %d fiducials, offsets vs whole-plane fit %.1f um RMS2d", len(out), rms2d)
	}
	return out
}

// Aggregate combines measurements of the same fiducial across exposures
// into one correction per device. Measurements with an offset above
// maxResidualMM are cut; with three or more surviving measurements the
// single smallest and largest value of each axis are dropped before the
// mean, as cheap sigma clipping.
func Aggregate(ms []Measurement) []Correction {
	devs := make(map[int]*[2][]float64)
	var order []int
	for _, m := range ms {
		if math.Hypot(m.DX, m.DY) >= maxResidualMM {
			continue
		}
		a, ok := devs[m.Location]
		if !ok {
			a = &[2][]float64{}
			devs[m.Location] = a
			order = append(order, m.Location)
		}
		a[0] = append(a[0], m.DX)
		a[1] = append(a[1], m.DY)
	}
	sort.Ints(order)

	var out []Correction
	for _, loc := range order {
		a := devs[loc]
		dx := trimExtremes(a[0])
		dy := trimExtremes(a[1])
		c := Correction{
			Location: loc,
			DX:       stat.Mean(dx, nil),
			DY:       stat.Mean(dy, nil),
			N:        len(dx),
		}
		monitoring.Logf("fiducialsys: location %d: %d measurements, dx,dy %+5.1f, %+5.1f um",
			loc, c.N, units.MM2Micron(c.DX), units.MM2Micron(c.DY))
		out = append(out, c)
	}

	logPetalMeans(out)
	return out
}

// trimExtremes drops the single smallest and largest value when there are
// at least three.
func trimExtremes(v []float64) []float64 {
	if len(v) < 3 {
		return v
	}
	s := append([]float64(nil), v...)
	sort.Float64s(s)
	return s[1 : len(s)-1]
}

func logPetalMeans(corrs []Correction) {
	petals := make(map[int]*[2][]float64)
	var order []int
	for _, c := range corrs {
		p := c.Location / 1000
		a, ok := petals[p]
		if !ok {
			a = &[2][]float64{}
			petals[p] = a
			order = append(order, p)
		}
		a[0] = append(a[0], c.DX)
		a[1] = append(a[1], c.DY)
	}
	sort.Ints(order)
	for _, p := range order {
		a := petals[p]
		monitoring.Logf("fiducialsys: petal %d: average dx,dy %.1f, %.1f um",
			p, units.MM2Micron(stat.Mean(a[0], nil)), units.MM2Micron(stat.Mean(a[1], nil)))
	}
}

// Apply returns a copy of the catalog with each correction added to the
// nominal position of every pinhole at its location. The input catalog is
// not modified.
func Apply(cat *metrology.Catalog, corrs []Correction) *metrology.Catalog {
	byLoc := make(map[int]Correction, len(corrs))
	for _, c := range corrs {
		byLoc[c.Location] = c
	}

	entries := append([]metrology.Entry(nil), cat.Entries...)
	for i := range entries {
		if c, ok := byLoc[entries[i].Location]; ok {
			entries[i].XFP += c.DX
			entries[i].YFP += c.DY
		}
	}
	return metrology.New(entries)
}
