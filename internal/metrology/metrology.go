// Package metrology holds the authoritative nominal-position catalog for
// all focal-plane device locations. The catalog is loaded once and treated
// as immutable reference data; many spots across exposures may match the
// same entry but never mutate it.
package metrology

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
)

// Device types as recorded in the catalog.
const (
	DeviceTypePositioner = "POS"
	DeviceTypeFIF        = "FIF" // field illuminated fiducial
	DeviceTypeGIF        = "GIF" // guider illuminated fiducial
)

// Entry is one physical dot on the focal plane: a positioner centre
// (pinhole 0) or one pinhole of a fiducial.
type Entry struct {
	PetalLoc   int
	DeviceLoc  int
	DeviceType string
	// Location is the unique composite slot id, PetalLoc*1000 + DeviceLoc.
	Location  int
	PinholeID int
	// Nominal focal-plane position, mm.
	XFP float64
	YFP float64
}

// IsFiducial reports whether the entry belongs to a fiducial device.
func (e *Entry) IsFiducial() bool {
	return e.DeviceType == DeviceTypeFIF || e.DeviceType == DeviceTypeGIF
}

// Catalog is the loaded metrology table.
type Catalog struct {
	Entries []Entry
	// byLocation indexes the entry for each (location, pinhole) pair.
	byKey map[int]int
}

// New builds a catalog from entries, deriving Location where it is unset.
func New(entries []Entry) *Catalog {
	c := &Catalog{Entries: entries, byKey: make(map[int]int, len(entries))}
	for i := range c.Entries {
		e := &c.Entries[i]
		if e.Location == 0 && (e.PetalLoc != 0 || e.DeviceLoc != 0) {
			e.Location = e.PetalLoc*1000 + e.DeviceLoc
		}
		c.byKey[e.Location*10+e.PinholeID] = i
	}
	return c
}

// Len returns the number of catalog entries.
func (c *Catalog) Len() int { return len(c.Entries) }

// Lookup returns the entry for a location and pinhole id, if present.
func (c *Catalog) Lookup(location, pinholeID int) (*Entry, bool) {
	i, ok := c.byKey[location*10+pinholeID]
	if !ok {
		return nil, false
	}
	return &c.Entries[i], true
}

// Positions returns the nominal focal-plane coordinates of all entries, in
// catalog order. Used as the target set for spot matching.
func (c *Catalog) Positions() (x, y []float64) {
	x = make([]float64, len(c.Entries))
	y = make([]float64, len(c.Entries))
	for i := range c.Entries {
		x[i] = c.Entries[i].XFP
		y[i] = c.Entries[i].YFP
	}
	return x, y
}

// Fiducials returns the subset of entries belonging to fiducial devices.
func (c *Catalog) Fiducials() []Entry {
	var out []Entry
	for _, e := range c.Entries {
		if e.IsFiducial() {
			out = append(out, e)
		}
	}
	return out
}

// ReadCSV loads a metrology catalog. Required columns: PETAL_LOC,
// DEVICE_LOC, X_FP, Y_FP. LOCATION is derived when absent; PINHOLE_ID and
// DEVICE_TYPE default to 0 and POS.
func ReadCSV(r io.Reader) (*Catalog, error) {
	cr := csv.NewReader(r)
	header, err := cr.Read()
	if err != nil {
		return nil, fmt.Errorf("read metrology header: %w", err)
	}
	col := make(map[string]int, len(header))
	for i, name := range header {
		col[strings.TrimSpace(name)] = i
	}
	for _, required := range []string{"PETAL_LOC", "DEVICE_LOC", "X_FP", "Y_FP"} {
		if _, ok := col[required]; !ok {
			return nil, fmt.Errorf("metrology missing column %s", required)
		}
	}

	var entries []Entry
	line := 1
	for {
		rec, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, err
		}
		line++
		e := Entry{DeviceType: DeviceTypePositioner}
		if e.PetalLoc, err = intAt(rec, col, "PETAL_LOC"); err != nil {
			return nil, fmt.Errorf("metrology line %d: %w", line, err)
		}
		if e.DeviceLoc, err = intAt(rec, col, "DEVICE_LOC"); err != nil {
			return nil, fmt.Errorf("metrology line %d: %w", line, err)
		}
		if e.XFP, err = floatAt(rec, col, "X_FP"); err != nil {
			return nil, fmt.Errorf("metrology line %d: %w", line, err)
		}
		if e.YFP, err = floatAt(rec, col, "Y_FP"); err != nil {
			return nil, fmt.Errorf("metrology line %d: %w", line, err)
		}
		if i, ok := col["LOCATION"]; ok && i < len(rec) && rec[i] != "" {
			if e.Location, err = strconv.Atoi(rec[i]); err != nil {
				return nil, fmt.Errorf("metrology line %d: bad LOCATION: %w", line, err)
			}
		}
		if i, ok := col["PINHOLE_ID"]; ok && i < len(rec) && rec[i] != "" {
			if e.PinholeID, err = strconv.Atoi(rec[i]); err != nil {
				return nil, fmt.Errorf("metrology line %d: bad PINHOLE_ID: %w", line, err)
			}
		}
		if i, ok := col["DEVICE_TYPE"]; ok && i < len(rec) && rec[i] != "" {
			e.DeviceType = strings.TrimSpace(rec[i])
		}
		entries = append(entries, e)
	}
	return New(entries), nil
}

// WriteCSV writes a catalog in the same layout ReadCSV accepts. Used to
// persist corrected metrology.
func WriteCSV(w io.Writer, c *Catalog) error {
	cw := csv.NewWriter(w)
	header := []string{"PETAL_LOC", "DEVICE_LOC", "DEVICE_TYPE", "LOCATION", "PINHOLE_ID", "X_FP", "Y_FP"}
	if err := cw.Write(header); err != nil {
		return err
	}
	for i := range c.Entries {
		e := &c.Entries[i]
		rec := []string{
			strconv.Itoa(e.PetalLoc), strconv.Itoa(e.DeviceLoc), e.DeviceType,
			strconv.Itoa(e.Location), strconv.Itoa(e.PinholeID),
			strconv.FormatFloat(e.XFP, 'g', -1, 64),
			strconv.FormatFloat(e.YFP, 'g', -1, 64),
		}
		if err := cw.Write(rec); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// WriteCSVFile writes a catalog to disk.
func WriteCSVFile(path string, c *Catalog) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := WriteCSV(f, c); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

// ReadCSVFile loads a metrology catalog from disk.
func ReadCSVFile(path string) (*Catalog, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return ReadCSV(f)
}

func intAt(rec []string, col map[string]int, name string) (int, error) {
	i := col[name]
	if i >= len(rec) {
		return 0, fmt.Errorf("short record, missing %s", name)
	}
	v, err := strconv.Atoi(strings.TrimSpace(rec[i]))
	if err != nil {
		return 0, fmt.Errorf("bad %s: %w", name, err)
	}
	return v, nil
}

func floatAt(rec []string, col map[string]int, name string) (float64, error) {
	i := col[name]
	if i >= len(rec) {
		return 0, fmt.Errorf("short record, missing %s", name)
	}
	v, err := strconv.ParseFloat(strings.TrimSpace(rec[i]), 64)
	if err != nil {
		return 0, fmt.Errorf("bad %s: %w", name, err)
	}
	return v, nil
}
