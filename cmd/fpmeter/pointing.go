package main

import (
	"encoding/csv"
	"flag"
	"fmt"
	"io"
	"os"
	"strconv"

	"github.com/focalplane-data/fpmeter/internal/pointing"
)

func runPointing(args []string) {
	fs := flag.NewFlagSet("pointing", flag.ExitOnError)
	ra := fs.Float64("ra", 0, "tile centre RA, degrees")
	dec := fs.Float64("dec", 0, "tile centre Dec, degrees")
	ha := fs.Float64("ha", 0, "hour angle of the observation, degrees")
	mjd := fs.Float64("mjd", 0, "MJD of the observation")
	fieldRot := fs.Float64("fieldrot", 0, "requested field rotation, degrees")
	adc1 := fs.Float64("adc1", 0, "ADC prism 1 angle, degrees")
	adc2 := fs.Float64("adc2", 0, "ADC prism 2 angle, degrees")
	targetsPath := fs.String("targets", "", "target list CSV with RA,DEC columns (required)")
	outPath := fs.String("out", "", "output CSV with focal-plane positions")
	cfgPath := fs.String("config", "", "tuning config JSON")
	fs.Parse(args)

	if *targetsPath == "" {
		fs.Usage()
		os.Exit(1)
	}

	raDeg, decDeg, err := readTargets(*targetsPath)
	if err != nil {
		fatalf("read targets: %v", err)
	}

	tile := pointing.TileParams{
		RA: *ra, Dec: *dec, HA: *ha, MJD: *mjd,
		FieldRot: *fieldRot, ADC1: *adc1, ADC2: *adc2,
	}
	cfg := loadConfig(*cfgPath)
	xfp, yfp, res, err := pointing.SolvePointingIterations(tile, raDeg, decDeg, cfg.GetPointingIterations())
	if err != nil {
		fatalf("solve pointing: %v", err)
	}

	fmt.Printf("pointing RA=%.6f Dec=%.6f\n", res.TelRA, res.TelDec)
	fmt.Printf("tile centre residual (%.4f, %.4f) mm\n", res.TileCenterX, res.TileCenterY)
	fmt.Printf("field rotation measured=%.4f deg residual=%.2f arcsec\n",
		res.MeasuredFieldRot, res.FieldRotResidualArcsec)

	if *outPath != "" {
		if err := writeTargets(*outPath, raDeg, decDeg, xfp, yfp); err != nil {
			fatalf("write output: %v", err)
		}
	}
}

// readTargets reads a target list with RA and DEC columns, degrees.
func readTargets(path string) (ra, dec []float64, err error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, nil, err
	}
	defer f.Close()

	cr := csv.NewReader(f)
	header, err := cr.Read()
	if err != nil {
		return nil, nil, fmt.Errorf("read target header: %w", err)
	}
	raCol, decCol := -1, -1
	for i, name := range header {
		switch name {
		case "RA":
			raCol = i
		case "DEC":
			decCol = i
		}
	}
	if raCol < 0 || decCol < 0 {
		return nil, nil, fmt.Errorf("target list needs RA and DEC columns")
	}

	line := 1
	for {
		rec, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, nil, err
		}
		line++
		r, err := strconv.ParseFloat(rec[raCol], 64)
		if err != nil {
			return nil, nil, fmt.Errorf("target line %d: bad RA: %w", line, err)
		}
		d, err := strconv.ParseFloat(rec[decCol], 64)
		if err != nil {
			return nil, nil, fmt.Errorf("target line %d: bad DEC: %w", line, err)
		}
		ra = append(ra, r)
		dec = append(dec, d)
	}
	return ra, dec, nil
}

func writeTargets(path string, ra, dec, xfp, yfp []float64) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	cw := csv.NewWriter(f)
	if err := cw.Write([]string{"RA", "DEC", "X_FP", "Y_FP"}); err != nil {
		return err
	}
	for i := range ra {
		rec := []string{
			strconv.FormatFloat(ra[i], 'g', -1, 64),
			strconv.FormatFloat(dec[i], 'g', -1, 64),
			strconv.FormatFloat(xfp[i], 'g', -1, 64),
			strconv.FormatFloat(yfp[i], 'g', -1, 64),
		}
		if err := cw.Write(rec); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}
