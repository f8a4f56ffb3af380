// fpmeter is the focal-plane metrology pipeline driver. It registers
// calibration-camera spot tables against the metrology catalog, aggregates
// positioner circle fits across exposures, estimates fiducial systematics,
// and projects sky targets onto the focal plane for a tile.
package main

import (
	"fmt"
	"log"
	"os"

	"github.com/focalplane-data/fpmeter/internal/version"
)

func main() {
	if len(os.Args) < 2 {
		printHelp()
		os.Exit(1)
	}

	cmd := os.Args[1]
	args := os.Args[2:]

	switch cmd {
	case "measure-spots":
		runMeasureSpots(args)
	case "measure-circles":
		runMeasureCircles(args)
	case "fiducial-systematics":
		runFiducialSystematics(args)
	case "pointing":
		runPointing(args)
	case "sessions":
		runSessions(args)
	case "migrate":
		runMigrate(args)
	case "version":
		fmt.Printf("fpmeter %s (%s, built %s)\n", version.Version, version.GitSHA, version.BuildTime)
	case "help", "-h", "--help":
		printHelp()
	default:
		fmt.Fprintf(os.Stderr, "unknown command %q\n\n", cmd)
		printHelp()
		os.Exit(1)
	}
}

func printHelp() {
	fmt.Fprint(os.Stderr, `Usage: fpmeter <command> [flags]

Commands:
  measure-spots         register one exposure's spot table against metrology
  measure-circles       aggregate circle fits over many registered exposures
  fiducial-systematics  estimate and apply per-fiducial metrology corrections
  pointing              project sky targets onto the focal plane for a tile
  sessions              list stored calibration sessions
  migrate               manage the database schema (up, down, status)
  version               print build information

Run 'fpmeter <command> -h' for command flags.
`)
}

// fatalf logs and exits; all commands report fatal errors this way.
func fatalf(format string, v ...interface{}) {
	log.Fatalf(format, v...)
}
