package metrology

import (
	"strings"
	"testing"
)

const sampleCSV = `PETAL_LOC,DEVICE_LOC,DEVICE_TYPE,PINHOLE_ID,X_FP,Y_FP
3,542,GIF,1,101.5,-20.25
3,542,GIF,2,102.1,-20.30
0,25,POS,0,55.0,60.0
`

func TestReadCSVDerivesLocation(t *testing.T) {
	c, err := ReadCSV(strings.NewReader(sampleCSV))
	if err != nil {
		t.Fatalf("ReadCSV: %v", err)
	}
	if c.Len() != 3 {
		t.Fatalf("Len = %d, want 3", c.Len())
	}
	if c.Entries[0].Location != 3542 {
		t.Errorf("Location = %d, want 3542", c.Entries[0].Location)
	}
	if c.Entries[2].Location != 25 {
		t.Errorf("Location = %d, want 25", c.Entries[2].Location)
	}
}

func TestReadCSVExplicitLocationWins(t *testing.T) {
	in := "PETAL_LOC,DEVICE_LOC,LOCATION,X_FP,Y_FP\n1,10,9999,0,0\n"
	c, err := ReadCSV(strings.NewReader(in))
	if err != nil {
		t.Fatalf("ReadCSV: %v", err)
	}
	if c.Entries[0].Location != 9999 {
		t.Errorf("Location = %d, want explicit 9999", c.Entries[0].Location)
	}
}

func TestReadCSVMissingColumn(t *testing.T) {
	_, err := ReadCSV(strings.NewReader("PETAL_LOC,DEVICE_LOC,X_FP\n0,0,0\n"))
	if err == nil {
		t.Fatal("expected error for catalog without Y_FP")
	}
}

func TestLookup(t *testing.T) {
	c, err := ReadCSV(strings.NewReader(sampleCSV))
	if err != nil {
		t.Fatalf("ReadCSV: %v", err)
	}
	e, ok := c.Lookup(3542, 2)
	if !ok {
		t.Fatal("Lookup(3542, 2) not found")
	}
	if e.XFP != 102.1 {
		t.Errorf("XFP = %v, want 102.1", e.XFP)
	}
	if _, ok := c.Lookup(3542, 7); ok {
		t.Error("Lookup of absent pinhole should fail")
	}
}

func TestFiducials(t *testing.T) {
	c, err := ReadCSV(strings.NewReader(sampleCSV))
	if err != nil {
		t.Fatalf("ReadCSV: %v", err)
	}
	fids := c.Fiducials()
	if len(fids) != 2 {
		t.Fatalf("got %d fiducial entries, want 2", len(fids))
	}
	for _, e := range fids {
		if !e.IsFiducial() {
			t.Errorf("entry %+v should be fiducial", e)
		}
	}
}

func TestPositions(t *testing.T) {
	c := New([]Entry{{XFP: 1, YFP: 2}, {XFP: 3, YFP: 4}})
	x, y := c.Positions()
	if len(x) != 2 || x[1] != 3 || y[0] != 2 {
		t.Errorf("Positions = %v, %v", x, y)
	}
}

func TestWriteCSVRoundTrip(t *testing.T) {
	c, err := ReadCSV(strings.NewReader(sampleCSV))
	if err != nil {
		t.Fatalf("ReadCSV: %v", err)
	}

	var buf strings.Builder
	if err := WriteCSV(&buf, c); err != nil {
		t.Fatalf("WriteCSV: %v", err)
	}
	back, err := ReadCSV(strings.NewReader(buf.String()))
	if err != nil {
		t.Fatalf("ReadCSV of written catalog: %v", err)
	}
	if back.Len() != c.Len() {
		t.Fatalf("round trip changed length: %d != %d", back.Len(), c.Len())
	}
	for i := range c.Entries {
		if back.Entries[i] != c.Entries[i] {
			t.Errorf("entry %d changed: %+v != %+v", i, back.Entries[i], c.Entries[i])
		}
	}
}
