package geom

import (
	"errors"
	"math"
	"testing"
)

func TestMatchNearest(t *testing.T) {
	tgtX := []float64{0, 10, 0}
	tgtY := []float64{0, 0, 10}

	idx, dist := Match([]float64{0.5}, []float64{0.2}, tgtX, tgtY)
	if idx[0] != 0 {
		t.Errorf("nearest index = %d, want 0", idx[0])
	}
	want := math.Hypot(0.5, 0.2)
	if math.Abs(dist[0]-want) > 1e-12 {
		t.Errorf("distance = %v, want %v", dist[0], want)
	}
}

func TestMatchManySources(t *testing.T) {
	tgtX := []float64{-5, 0, 5}
	tgtY := []float64{0, 0, 0}
	srcX := []float64{4.9, -4.7, 0.1, 100}
	srcY := []float64{0.1, 0, -0.2, 0}

	idx, dist := Match(srcX, srcY, tgtX, tgtY)
	wantIdx := []int{2, 0, 1, 2}
	for i, w := range wantIdx {
		if idx[i] != w {
			t.Errorf("source %d matched target %d, want %d", i, idx[i], w)
		}
	}
	// The far-away source still gets its nearest target; gating is the
	// caller's job and must be representable from the distance alone.
	if dist[3] < 90 {
		t.Errorf("distance for far source = %v, want ~95", dist[3])
	}
}

func TestMatchEmptyInputs(t *testing.T) {
	idx, dist := Match(nil, nil, []float64{1}, []float64{1})
	if len(idx) != 0 || len(dist) != 0 {
		t.Errorf("empty source should give empty results, got %v, %v", idx, dist)
	}

	idx, dist = Match([]float64{1}, []float64{2}, nil, nil)
	if len(idx) != 1 || idx[0] != -1 {
		t.Errorf("empty target should give index -1, got %v", idx)
	}
	if !math.IsInf(dist[0], 1) {
		t.Errorf("empty target distance = %v, want +Inf", dist[0])
	}
}

func TestFitCircleExact(t *testing.T) {
	// Points exactly on a circle of centre (5,5), radius 3.
	var x, y []float64
	for i := 0; i < 12; i++ {
		th := 2 * math.Pi * float64(i) / 12
		x = append(x, 5+3*math.Cos(th))
		y = append(y, 5+3*math.Sin(th))
	}
	c, err := FitCircle(x, y)
	if err != nil {
		t.Fatalf("FitCircle: %v", err)
	}
	if math.Abs(c.X-5) > 1e-9 || math.Abs(c.Y-5) > 1e-9 || math.Abs(c.Radius-3) > 1e-9 {
		t.Errorf("FitCircle = %+v, want centre (5,5) radius 3", c)
	}
}

func TestFitCirclePartialArc(t *testing.T) {
	// A positioner trace usually covers only part of the circle.
	var x, y []float64
	for i := 0; i < 8; i++ {
		th := 0.3 + 1.5*float64(i)/8
		x = append(x, -100+1.2*math.Cos(th))
		y = append(y, 250+1.2*math.Sin(th))
	}
	c, err := FitCircle(x, y)
	if err != nil {
		t.Fatalf("FitCircle: %v", err)
	}
	if math.Abs(c.X+100) > 1e-6 || math.Abs(c.Y-250) > 1e-6 || math.Abs(c.Radius-1.2) > 1e-6 {
		t.Errorf("FitCircle = %+v, want centre (-100,250) radius 1.2", c)
	}
}

func TestFitCircleCollinear(t *testing.T) {
	x := []float64{0, 1, 2, 3, 4, 5}
	y := []float64{0, 1, 2, 3, 4, 5}
	_, err := FitCircle(x, y)
	if err == nil {
		t.Fatal("expected error for collinear points")
	}
	if !errors.Is(err, ErrDegenerate) {
		t.Errorf("error = %v, want ErrDegenerate", err)
	}
}

func TestFitCircleTooFewPoints(t *testing.T) {
	_, err := FitCircle([]float64{0, 1}, []float64{0, 1})
	if !errors.Is(err, ErrInsufficientPoints) {
		t.Errorf("error = %v, want ErrInsufficientPoints", err)
	}
}

func TestSurfaceWarpRoundTrip(t *testing.T) {
	x := []float64{0, 10, -150, 300, -400, 5}
	y := []float64{0, -20, 75, 300, 80, 405}
	u, v := XYToUV(x, y)
	xb, yb := UVToXY(u, v)
	for i := range x {
		if math.Abs(xb[i]-x[i]) > 1e-9 || math.Abs(yb[i]-y[i]) > 1e-9 {
			t.Errorf("round trip (%v,%v) -> (%v,%v)", x[i], y[i], xb[i], yb[i])
		}
	}
}

func TestSurfaceWarpStretchesRadius(t *testing.T) {
	u, v := XYToUV([]float64{400}, []float64{0})
	if u[0] <= 400 {
		t.Errorf("arc length %v should exceed flat radius 400", u[0])
	}
	if v[0] != 0 {
		t.Errorf("polar angle must be preserved, v = %v", v[0])
	}
	// The correction is sub-mm over the focal plane.
	if u[0]-400 > 1.0 {
		t.Errorf("arc-length correction %v mm is implausibly large", u[0]-400)
	}
}

func TestSurfaceWarpPreservesCentre(t *testing.T) {
	u, v := XYToUV([]float64{0}, []float64{0})
	if u[0] != 0 || v[0] != 0 {
		t.Errorf("origin must map to origin, got (%v,%v)", u[0], v[0])
	}
}
