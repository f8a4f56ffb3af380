package circles

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"strconv"
)

var csvHeader = []string{
	"LOCATION", "PINHOLE_ID",
	"X_FP_METRO", "Y_FP_METRO",
	"X_FP", "Y_FP",
	"RADIUS", "N_OBS",
}

// WriteCSV writes the aggregated device fits.
func WriteCSV(w io.Writer, fits []DeviceFit) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(csvHeader); err != nil {
		return err
	}
	for _, f := range fits {
		rec := []string{
			strconv.Itoa(f.Location), strconv.Itoa(f.PinholeID),
			formatFloat(f.XFPMetro), formatFloat(f.YFPMetro),
			formatFloat(f.XFP), formatFloat(f.YFP),
			formatFloat(f.Radius), strconv.Itoa(f.NObs),
		}
		if err := cw.Write(rec); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// WriteCSVFile writes the aggregated device fits to disk.
func WriteCSVFile(path string, fits []DeviceFit) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := WriteCSV(f, fits); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

// ReadCSV reads a device-fit table written by WriteCSV.
func ReadCSV(r io.Reader) ([]DeviceFit, error) {
	cr := csv.NewReader(r)
	header, err := cr.Read()
	if err != nil {
		return nil, fmt.Errorf("read device-fit header: %w", err)
	}
	col := make(map[string]int, len(header))
	for i, name := range header {
		col[name] = i
	}
	for _, required := range csvHeader {
		if _, ok := col[required]; !ok {
			return nil, fmt.Errorf("device-fit table missing column %s", required)
		}
	}

	var fits []DeviceFit
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
		var f DeviceFit
		if f.Location, err = strconv.Atoi(rec[col["LOCATION"]]); err != nil {
			return nil, fmt.Errorf("device-fit line %d: %w", line, err)
		}
		if f.PinholeID, err = strconv.Atoi(rec[col["PINHOLE_ID"]]); err != nil {
			return nil, fmt.Errorf("device-fit line %d: %w", line, err)
		}
		if f.XFPMetro, err = strconv.ParseFloat(rec[col["X_FP_METRO"]], 64); err != nil {
			return nil, fmt.Errorf("device-fit line %d: %w", line, err)
		}
		if f.YFPMetro, err = strconv.ParseFloat(rec[col["Y_FP_METRO"]], 64); err != nil {
			return nil, fmt.Errorf("device-fit line %d: %w", line, err)
		}
		if f.XFP, err = strconv.ParseFloat(rec[col["X_FP"]], 64); err != nil {
			return nil, fmt.Errorf("device-fit line %d: %w", line, err)
		}
		if f.YFP, err = strconv.ParseFloat(rec[col["Y_FP"]], 64); err != nil {
			return nil, fmt.Errorf("device-fit line %d: %w", line, err)
		}
		if f.Radius, err = strconv.ParseFloat(rec[col["RADIUS"]], 64); err != nil {
			return nil, fmt.Errorf("device-fit line %d: %w", line, err)
		}
		if f.NObs, err = strconv.Atoi(rec[col["N_OBS"]]); err != nil {
			return nil, fmt.Errorf("device-fit line %d: %w", line, err)
		}
		fits = append(fits, f)
	}
	return fits, nil
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'g', -1, 64)
}
