package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/focalplane-data/fpmeter/internal/circles"
	"github.com/focalplane-data/fpmeter/internal/config"
	"github.com/focalplane-data/fpmeter/internal/fiducials"
	"github.com/focalplane-data/fpmeter/internal/fiducialsys"
	"github.com/focalplane-data/fpmeter/internal/fpdb"
	"github.com/focalplane-data/fpmeter/internal/metrology"
	"github.com/focalplane-data/fpmeter/internal/monitor"
	"github.com/focalplane-data/fpmeter/internal/register"
	"github.com/focalplane-data/fpmeter/internal/spots"
	"github.com/focalplane-data/fpmeter/internal/transform"
)

// loadConfig returns the tuning config, or the defaults when no path is
// given.
func loadConfig(path string) *config.TuningConfig {
	if path == "" {
		return config.EmptyTuningConfig()
	}
	cfg, err := config.LoadTuningConfig(path)
	if err != nil {
		fatalf("load config: %v", err)
	}
	return cfg
}

func registrarOptions(cfg *config.TuningConfig) register.Options {
	return register.Options{
		MaxMatchDistanceMM:     cfg.GetMaxMatchDistanceMM(),
		PinholeMaxSeparationMM: cfg.GetPinholeMaxSeparationMM(),
		FitDistortion:          cfg.GetFitDistortion(),
		FixedScale:             cfg.GetFixedScale(),
		FixedRotation:          cfg.GetFixedRotation(),
	}
}

func loadTransform(path string) *transform.FVC2FP {
	if path == "" {
		return transform.Default()
	}
	tr, err := transform.ReadJSONFile(path)
	if err != nil {
		fatalf("load transform: %v", err)
	}
	return tr
}

func runMeasureSpots(args []string) {
	fs := flag.NewFlagSet("measure-spots", flag.ExitOnError)
	spotsPath := fs.String("spots", "", "input spot table CSV (required)")
	metroPath := fs.String("metrology", "", "metrology catalog CSV (required)")
	trPath := fs.String("transform", "", "starting transform JSON (default: nominal)")
	outPath := fs.String("out", "", "output registered spot table CSV")
	saveTrPath := fs.String("save-transform", "", "write the refit transform JSON here")
	cfgPath := fs.String("config", "", "tuning config JSON")
	dbPath := fs.String("db", "", "store the result in this sqlite database")
	plotPath := fs.String("plot", "", "write a focal-plane overview PNG here")
	fs.Parse(args)

	if *spotsPath == "" || *metroPath == "" {
		fs.Usage()
		os.Exit(1)
	}

	table, err := spots.ReadCSVFile(*spotsPath)
	if err != nil {
		fatalf("read spots: %v", err)
	}
	metro, err := metrology.ReadCSVFile(*metroPath)
	if err != nil {
		fatalf("read metrology: %v", err)
	}

	reg := register.New(metro, fiducials.Identifier{})
	reg.Options = registrarOptions(loadConfig(*cfgPath))
	tr := loadTransform(*trPath)

	res, err := reg.MeasureSpots(table, tr)
	if err != nil {
		fatalf("measure spots: %v", err)
	}
	fmt.Printf("registered %d spots: %s\n", len(table), res)

	if *outPath != "" {
		if err := spots.WriteCSVFile(*outPath, table); err != nil {
			fatalf("write spots: %v", err)
		}
	}
	if *saveTrPath != "" {
		if err := tr.WriteJSONFile(*saveTrPath); err != nil {
			fatalf("save transform: %v", err)
		}
	}
	if *plotPath != "" {
		if err := monitor.SaveSpotPlot(*plotPath, table); err != nil {
			fatalf("save plot: %v", err)
		}
	}
	if *dbPath != "" {
		db, err := fpdb.Open(*dbPath)
		if err != nil {
			fatalf("open db: %v", err)
		}
		defer db.Close()
		sess, err := db.NewSession("measure-spots")
		if err != nil {
			fatalf("create session: %v", err)
		}
		if err := db.InsertSpots(sess.ID, 0, table); err != nil {
			fatalf("store spots: %v", err)
		}
		fmt.Printf("stored as session %s\n", sess.ID)
	}
}

func circleOptions(cfg *config.TuningConfig) circles.Options {
	return circles.Options{
		MinObservations: cfg.GetMinObservations(),
		NonMovingStdMM:  cfg.GetNonMovingStdMM(),
		MinRadiusMM:     cfg.GetMinRadiusMM(),
		MaxOffsetMM:     cfg.GetMaxOffsetMM(),
	}
}

func runMeasureCircles(args []string) {
	fs := flag.NewFlagSet("measure-circles", flag.ExitOnError)
	cfgPath := fs.String("config", "", "tuning config JSON")
	outPath := fs.String("out", "", "output device-fit CSV")
	dbPath := fs.String("db", "", "store the result in this sqlite database")
	plotPath := fs.String("plot", "", "write a trace overview PNG here")
	reportPath := fs.String("report", "", "write an interactive HTML offset report here")
	fs.Parse(args)

	if fs.NArg() == 0 {
		fatalf("measure-circles: need registered spot table CSVs as arguments")
	}

	var exposures [][]spots.Spot
	for _, path := range fs.Args() {
		table, err := spots.ReadCSVFile(path)
		if err != nil {
			fatalf("read %s: %v", path, err)
		}
		exposures = append(exposures, table)
	}

	fits := circles.MeasureCirclesOptions(exposures, circleOptions(loadConfig(*cfgPath)))
	fmt.Printf("accepted %d devices from %d exposures\n", len(fits), len(exposures))

	if *outPath != "" {
		if err := circles.WriteCSVFile(*outPath, fits); err != nil {
			fatalf("write fits: %v", err)
		}
	}
	if *plotPath != "" {
		if err := monitor.SaveCirclePlot(*plotPath, exposures, fits); err != nil {
			fatalf("save plot: %v", err)
		}
	}
	if *reportPath != "" {
		if err := monitor.SaveReport(*reportPath, fits); err != nil {
			fatalf("save report: %v", err)
		}
	}
	if *dbPath != "" {
		db, err := fpdb.Open(*dbPath)
		if err != nil {
			fatalf("open db: %v", err)
		}
		defer db.Close()
		sess, err := db.NewSession("measure-circles")
		if err != nil {
			fatalf("create session: %v", err)
		}
		for i, table := range exposures {
			if err := db.InsertSpots(sess.ID, i, table); err != nil {
				fatalf("store exposure %d: %v", i, err)
			}
		}
		if err := db.InsertDeviceFits(sess.ID, fits); err != nil {
			fatalf("store fits: %v", err)
		}
		fmt.Printf("stored as session %s\n", sess.ID)
	}
}

func runFiducialSystematics(args []string) {
	fs := flag.NewFlagSet("fiducial-systematics", flag.ExitOnError)
	metroPath := fs.String("metrology", "", "metrology catalog CSV (required)")
	outPath := fs.String("out", "", "corrected metrology catalog CSV (required)")
	fs.Parse(args)

	if *metroPath == "" || *outPath == "" {
		fs.Usage()
		os.Exit(1)
	}
	if fs.NArg() == 0 {
		fatalf("fiducial-systematics: need registered spot table CSVs as arguments")
	}

	metro, err := metrology.ReadCSVFile(*metroPath)
	if err != nil {
		fatalf("read metrology: %v", err)
	}

	var measurements []fiducialsys.Measurement
	for _, path := range fs.Args() {
		table, err := spots.ReadCSVFile(path)
		if err != nil {
			fatalf("read %s: %v", path, err)
		}
		measurements = append(measurements, fiducialsys.MeasureExposure(table)...)
	}

	corrs := fiducialsys.Aggregate(measurements)
	fmt.Printf("corrections for %d fiducials from %d measurements\n", len(corrs), len(measurements))

	corrected := fiducialsys.Apply(metro, corrs)
	if err := metrology.WriteCSVFile(*outPath, corrected); err != nil {
		fatalf("write corrected metrology: %v", err)
	}
}

func runSessions(args []string) {
	fs := flag.NewFlagSet("sessions", flag.ExitOnError)
	dbPath := fs.String("db", "fpmeter.db", "sqlite database path")
	fs.Parse(args)

	db, err := fpdb.Open(*dbPath)
	if err != nil {
		fatalf("open db: %v", err)
	}
	defer db.Close()

	sessions, err := db.Sessions()
	if err != nil {
		fatalf("list sessions: %v", err)
	}
	for _, s := range sessions {
		fmt.Printf("%s  %-20s %s\n", s.ID, s.Kind, s.CreatedAt.Format("2006-01-02 15:04:05"))
	}
}

func runMigrate(args []string) {
	fs := flag.NewFlagSet("migrate", flag.ExitOnError)
	dbPath := fs.String("db", "fpmeter.db", "sqlite database path")
	fs.Parse(args)

	if fs.NArg() < 1 {
		fatalf("migrate: need an action (up, down, status)")
	}

	db, err := fpdb.Open(*dbPath)
	if err != nil {
		fatalf("open db: %v", err)
	}
	defer db.Close()

	switch action := fs.Arg(0); action {
	case "up":
		if err := db.MigrateUp(); err != nil {
			fatalf("migrate up: %v", err)
		}
	case "down":
		if err := db.MigrateDown(); err != nil {
			fatalf("migrate down: %v", err)
		}
	case "status":
		version, dirty, err := db.MigrateVersion()
		if err != nil {
			fatalf("migrate status: %v", err)
		}
		fmt.Printf("version %d dirty=%v\n", version, dirty)
	default:
		fatalf("migrate: unknown action %q", action)
	}
}
