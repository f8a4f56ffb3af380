// Package spots defines the per-exposure spot table produced by the
// calibration-camera pipeline and augmented by registration.
//
// The table is a slice of Spot rows with a fixed schema. Fields that the
// original pipeline added as on-demand columns are always present here and
// start at their zero value; zero means "not yet populated" (Location is the
// exception, with -1 meaning unmatched). Registration mutates rows in place;
// tables are never shared across exposures.
package spots

// UnmatchedLocation marks a spot that has not been associated with a
// metrology location.
const UnmatchedLocation = -1

// Spot is one detection in one exposure/frame.
type Spot struct {
	// Raw centroid measurement from the camera, in pixels.
	XPix float64
	YPix float64
	Flux float64

	// Focal-plane projection of the raw centroid, in mm. Written by the
	// transform's Project step.
	XFP float64
	YFP float64

	// Expected focal-plane position, in mm. Populated when the spot is
	// matched against the metrology catalog.
	XFPExp float64
	YFPExp float64

	// Metrology-measured focal-plane position, in mm. Nonzero only for
	// spots whose device has direct metrology (e.g. fiducial pinholes);
	// preferred over the catalog-match expected position when set.
	XFPMetro float64
	YFPMetro float64

	// Device identity on the focal plane. Location is
	// PetalLoc*1000 + DeviceLoc, or UnmatchedLocation.
	PetalLoc  int
	DeviceLoc int
	Location  int

	// PinholeID is 0 for a positioner centre dot, >= 1 for a fiducial
	// pinhole.
	PinholeID int
}

// NewTable returns a spot table of n rows with all locations unmatched.
func NewTable(n int) []Spot {
	t := make([]Spot, n)
	for i := range t {
		t[i].Location = UnmatchedLocation
	}
	return t
}

// DeviceKey is the composite per-dot identity used when accumulating
// repeated observations: location*10 + pinhole id. The multiplier separates
// a positioner centre dot (pinhole 0) from each pinhole of a fiducial and
// must not change; downstream keying depends on it.
func (s *Spot) DeviceKey() int {
	return s.Location*10 + s.PinholeID
}

// Matched reports whether the spot has been associated with a metrology
// location.
func (s *Spot) Matched() bool {
	return s.Location != UnmatchedLocation
}

// UnmatchedIndices returns the indices of rows not yet associated with a
// metrology location.
func UnmatchedIndices(table []Spot) []int {
	var idx []int
	for i := range table {
		if !table[i].Matched() {
			idx = append(idx, i)
		}
	}
	return idx
}
