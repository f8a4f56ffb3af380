package units

import (
	"math"
	"testing"
)

func TestAngleConversions(t *testing.T) {
	if got := Deg2Rad(180); math.Abs(got-math.Pi) > 1e-15 {
		t.Errorf("Deg2Rad(180) = %v, want pi", got)
	}
	if got := Rad2Deg(math.Pi / 2); math.Abs(got-90) > 1e-12 {
		t.Errorf("Rad2Deg(pi/2) = %v, want 90", got)
	}
	if got := 1.0 * DegPerArcsec * ArcsecPerDeg; math.Abs(got-1.0) > 1e-15 {
		t.Errorf("arcsec round trip = %v, want 1", got)
	}
}

func TestSinCosD(t *testing.T) {
	s, c := SinCosD(90)
	if math.Abs(s-1) > 1e-12 || math.Abs(c) > 1e-12 {
		t.Errorf("SinCosD(90) = %v, %v, want 1, 0", s, c)
	}
	s, c = SinCosD(0)
	if s != 0 || c != 1 {
		t.Errorf("SinCosD(0) = %v, %v, want 0, 1", s, c)
	}
}

func TestLengthConversions(t *testing.T) {
	if got := MM2Micron(0.5); got != 500 {
		t.Errorf("MM2Micron(0.5) = %v, want 500", got)
	}
	if got := Micron2MM(250); got != 0.25 {
		t.Errorf("Micron2MM(250) = %v, want 0.25", got)
	}
}
