package spots

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"strconv"
)

// csvHeader is the on-disk column order for spot tables. Matches the field
// names used by the measurement pipeline outputs.
var csvHeader = []string{
	"XPIX", "YPIX", "FLUX",
	"X_FP", "Y_FP",
	"X_FP_EXP", "Y_FP_EXP",
	"X_FP_METRO", "Y_FP_METRO",
	"PETAL_LOC", "DEVICE_LOC", "LOCATION", "PINHOLE_ID",
}

// WriteCSV writes a spot table in the pipeline CSV layout.
func WriteCSV(w io.Writer, table []Spot) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(csvHeader); err != nil {
		return err
	}
	for i := range table {
		s := &table[i]
		rec := []string{
			formatFloat(s.XPix), formatFloat(s.YPix), formatFloat(s.Flux),
			formatFloat(s.XFP), formatFloat(s.YFP),
			formatFloat(s.XFPExp), formatFloat(s.YFPExp),
			formatFloat(s.XFPMetro), formatFloat(s.YFPMetro),
			strconv.Itoa(s.PetalLoc), strconv.Itoa(s.DeviceLoc),
			strconv.Itoa(s.Location), strconv.Itoa(s.PinholeID),
		}
		if err := cw.Write(rec); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// ReadCSV reads a spot table written by WriteCSV. Files holding only the
// raw detection columns (XPIX, YPIX, FLUX) are accepted; the remaining
// fields default to zero with Location unmatched.
func ReadCSV(r io.Reader) ([]Spot, error) {
	cr := csv.NewReader(r)
	header, err := cr.Read()
	if err != nil {
		return nil, fmt.Errorf("read spot header: %w", err)
	}
	col := make(map[string]int, len(header))
	for i, name := range header {
		col[name] = i
	}
	for _, required := range []string{"XPIX", "YPIX"} {
		if _, ok := col[required]; !ok {
			return nil, fmt.Errorf("spot table missing column %s", required)
		}
	}

	var table []Spot
	for {
		rec, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, err
		}
		s := Spot{Location: UnmatchedLocation}
		s.XPix = floatField(rec, col, "XPIX")
		s.YPix = floatField(rec, col, "YPIX")
		s.Flux = floatField(rec, col, "FLUX")
		s.XFP = floatField(rec, col, "X_FP")
		s.YFP = floatField(rec, col, "Y_FP")
		s.XFPExp = floatField(rec, col, "X_FP_EXP")
		s.YFPExp = floatField(rec, col, "Y_FP_EXP")
		s.XFPMetro = floatField(rec, col, "X_FP_METRO")
		s.YFPMetro = floatField(rec, col, "Y_FP_METRO")
		s.PetalLoc = intField(rec, col, "PETAL_LOC", 0)
		s.DeviceLoc = intField(rec, col, "DEVICE_LOC", 0)
		s.Location = intField(rec, col, "LOCATION", UnmatchedLocation)
		s.PinholeID = intField(rec, col, "PINHOLE_ID", 0)
		table = append(table, s)
	}
	return table, nil
}

// ReadCSVFile reads a spot table from disk.
func ReadCSVFile(path string) ([]Spot, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return ReadCSV(f)
}

// WriteCSVFile writes a spot table to disk.
func WriteCSVFile(path string, table []Spot) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := WriteCSV(f, table); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'g', -1, 64)
}

func floatField(rec []string, col map[string]int, name string) float64 {
	i, ok := col[name]
	if !ok || i >= len(rec) || rec[i] == "" {
		return 0
	}
	v, err := strconv.ParseFloat(rec[i], 64)
	if err != nil {
		return 0
	}
	return v
}

func intField(rec []string, col map[string]int, name string, def int) int {
	i, ok := col[name]
	if !ok || i >= len(rec) || rec[i] == "" {
		return def
	}
	v, err := strconv.Atoi(rec[i])
	if err != nil {
		return def
	}
	return v
}
