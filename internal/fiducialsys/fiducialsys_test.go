package fiducialsys

import (
	"math"
	"testing"

	"github.com/focalplane-data/fpmeter/internal/metrology"
	"github.com/focalplane-data/fpmeter/internal/monitoring"
	"github.com/focalplane-data/fpmeter/internal/spots"
)

func TestMain(m *testing.M) {
	monitoring.SetLogger(nil)
	m.Run()
}

func TestMeasureExposureAveragesPinholes(t *testing.T) {
	table := []spots.Spot{
		{Location: 1541, PinholeID: 1, XFP: 100.010, YFP: 50, XFPMetro: 100, YFPMetro: 50},
		{Location: 1541, PinholeID: 2, XFP: 100.030, YFP: 50, XFPMetro: 100, YFPMetro: 50},
		{Location: 1541, PinholeID: 3, XFP: 100.020, YFP: 50.006, XFPMetro: 100, YFPMetro: 50},
		// Positioner rows never contribute.
		{Location: 1010, PinholeID: 0, XFP: 200.5, YFP: 0, XFPMetro: 200, YFPMetro: 0},
		// Unmatched rows never contribute.
		{Location: spots.UnmatchedLocation, PinholeID: 1, XFP: 5, YFP: 5},
	}

	ms := MeasureExposure(table)
	if len(ms) != 1 {
		t.Fatalf("got %d measurements, want 1", len(ms))
	}
	m := ms[0]
	if m.Location != 1541 || m.NPinholes != 3 {
		t.Errorf("measurement identity = %d/%d pinholes, want 1541/3", m.Location, m.NPinholes)
	}
	if math.Abs(m.DX-0.020) > 1e-9 {
		t.Errorf("DX = %v, want 0.020", m.DX)
	}
	if math.Abs(m.DY-0.002) > 1e-9 {
		t.Errorf("DY = %v, want 0.002", m.DY)
	}
}

func TestAggregateTrimsExtremes(t *testing.T) {
	// Five measurements of one device; the outermost dx values (0.001 and
	// 0.009) are dropped, leaving a mean of 0.005.
	var ms []Measurement
	for _, dx := range []float64{0.001, 0.004, 0.005, 0.006, 0.009} {
		ms = append(ms, Measurement{Location: 3541, DX: dx, DY: 0.010})
	}

	corrs := Aggregate(ms)
	if len(corrs) != 1 {
		t.Fatalf("got %d corrections, want 1", len(corrs))
	}
	c := corrs[0]
	if c.N != 3 {
		t.Errorf("N = %d, want 3 after trimming", c.N)
	}
	if math.Abs(c.DX-0.005) > 1e-9 {
		t.Errorf("DX = %v, want 0.005", c.DX)
	}
	if math.Abs(c.DY-0.010) > 1e-9 {
		t.Errorf("DY = %v, want 0.010", c.DY)
	}
}

func TestAggregateCutsLargeResiduals(t *testing.T) {
	ms := []Measurement{
		{Location: 1541, DX: 0.01, DY: 0.01},
		// 0.2 mm offset: a transform failure, not a systematic.
		{Location: 1541, DX: 0.2, DY: 0},
		{Location: 1541, DX: 0.02, DY: 0.01},
	}
	corrs := Aggregate(ms)
	if len(corrs) != 1 {
		t.Fatalf("got %d corrections, want 1", len(corrs))
	}
	if corrs[0].N != 2 {
		t.Errorf("N = %d, want 2 (large residual cut)", corrs[0].N)
	}
	if math.Abs(corrs[0].DX-0.015) > 1e-9 {
		t.Errorf("DX = %v, want 0.015", corrs[0].DX)
	}
}

func TestAggregateFewMeasurementsKeptWhole(t *testing.T) {
	ms := []Measurement{
		{Location: 2542, DX: 0.004, DY: -0.002},
		{Location: 2542, DX: 0.006, DY: -0.004},
	}
	corrs := Aggregate(ms)
	if len(corrs) != 1 {
		t.Fatalf("got %d corrections, want 1", len(corrs))
	}
	if corrs[0].N != 2 {
		t.Errorf("N = %d, want 2 (no trimming below three measurements)", corrs[0].N)
	}
	if math.Abs(corrs[0].DX-0.005) > 1e-9 {
		t.Errorf("DX = %v, want 0.005", corrs[0].DX)
	}
}

func TestApplyShiftsAllPinholes(t *testing.T) {
	cat := metrology.New([]metrology.Entry{
		{PetalLoc: 1, DeviceLoc: 541, DeviceType: metrology.DeviceTypeGIF, PinholeID: 1, XFP: 100, YFP: 50},
		{PetalLoc: 1, DeviceLoc: 541, DeviceType: metrology.DeviceTypeGIF, PinholeID: 2, XFP: 101, YFP: 50},
		{PetalLoc: 2, DeviceLoc: 10, DeviceType: metrology.DeviceTypePositioner, PinholeID: 0, XFP: -30, YFP: 40},
	})

	out := Apply(cat, []Correction{{Location: 1541, DX: 0.01, DY: -0.02, N: 4}})

	e, ok := out.Lookup(1541, 1)
	if !ok {
		t.Fatal("corrected catalog lost entry 1541/1")
	}
	if math.Abs(e.XFP-100.01) > 1e-12 || math.Abs(e.YFP-49.98) > 1e-12 {
		t.Errorf("corrected position = (%v,%v), want (100.01,49.98)", e.XFP, e.YFP)
	}
	e, ok = out.Lookup(1541, 2)
	if !ok {
		t.Fatal("corrected catalog lost entry 1541/2")
	}
	if math.Abs(e.XFP-101.01) > 1e-12 {
		t.Errorf("second pinhole not shifted: XFP = %v", e.XFP)
	}

	// Uncorrected devices and the input catalog are untouched.
	e, _ = out.Lookup(2010, 0)
	if e.XFP != -30 {
		t.Errorf("uncorrected device moved to %v", e.XFP)
	}
	orig, _ := cat.Lookup(1541, 1)
	if orig.XFP != 100 {
		t.Errorf("input catalog modified: XFP = %v", orig.XFP)
	}
}
