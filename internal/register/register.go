// Package register orchestrates per-exposure spot registration: fiducial
// identification, transform refit, projection to focal-plane mm, and
// matching of the remaining detections against the metrology catalog.
//
// Registration augments the spot table in place; that is the documented
// contract, not a side channel. Each registration pass must own its
// transform copy; a fit for one exposure must not leak into another's.
package register

import (
	"fmt"

	"github.com/focalplane-data/fpmeter/internal/geom"
	"github.com/focalplane-data/fpmeter/internal/metrology"
	"github.com/focalplane-data/fpmeter/internal/monitoring"
	"github.com/focalplane-data/fpmeter/internal/spots"
	"github.com/focalplane-data/fpmeter/internal/transform"
)

// FiducialIdentifier pre-populates location and pinhole id for fiducial
// pinholes. Implemented by the fiducials package; tests substitute fakes.
type FiducialIdentifier interface {
	Identify(table []spots.Spot, tr *transform.FVC2FP, metro *metrology.Catalog, maxSepMM float64) int
}

// Options control one registration pass.
type Options struct {
	// MaxMatchDistanceMM gates the metrology match; spots whose nearest
	// catalog entry is farther remain unmatched. Rejection is not an
	// error: downstream consumers must tolerate unmatched rows.
	MaxMatchDistanceMM float64
	// PinholeMaxSeparationMM is the fiducial pinhole spacing tolerance
	// passed to the identifier.
	PinholeMaxSeparationMM float64
	// FitDistortion additionally fits the polynomial distortion terms
	// during the transform refit.
	FitDistortion bool
	// FixedScale and FixedRotation hold those transform parameters during
	// the refit, for stability on small or degenerate fiducial sets.
	FixedScale    bool
	FixedRotation bool
}

// DefaultOptions are the production registration settings.
func DefaultOptions() Options {
	return Options{
		MaxMatchDistanceMM:     7.0,
		PinholeMaxSeparationMM: 1.5,
		FitDistortion:          true,
	}
}

// Registrar runs registration passes against one metrology catalog.
type Registrar struct {
	Metro      *metrology.Catalog
	Identifier FiducialIdentifier
	Options    Options
}

// New returns a registrar with the given catalog and identifier and
// default options.
func New(metro *metrology.Catalog, id FiducialIdentifier) *Registrar {
	return &Registrar{Metro: metro, Identifier: id, Options: DefaultOptions()}
}

// MeasureSpots registers a raw spot table for one exposure. The table is
// augmented in place; tr is refit in place and must be owned by this pass.
// On return, every row has a focal-plane projection, matched rows carry
// expected positions and device identity, and rows failing the distance
// gate remain unmatched.
func (r *Registrar) MeasureSpots(table []spots.Spot, tr *transform.FVC2FP) (transform.FitResult, error) {
	opt := r.Options

	// Fiducial pinholes anchor the transform refit.
	nfid := r.Identifier.Identify(table, tr, r.Metro, opt.PinholeMaxSeparationMM)

	flags := transform.FitFlags{
		FixedScale:    opt.FixedScale,
		FixedRotation: opt.FixedRotation,
		Distortion:    opt.FitDistortion,
	}
	res, err := tr.FitSpots(table, flags, true)
	if err != nil {
		return res, fmt.Errorf("register: transform refit over %d fiducial pinholes: %w", nfid, err)
	}
	monitoring.Logf("register: transform refit %s", res)

	// Match the still-unmatched detections against the full catalog.
	unmatched := spots.UnmatchedIndices(table)
	matched := 0
	if len(unmatched) > 0 {
		srcX := make([]float64, len(unmatched))
		srcY := make([]float64, len(unmatched))
		for k, i := range unmatched {
			srcX[k] = table[i].XFP
			srcY[k] = table[i].YFP
		}
		tgtX, tgtY := r.Metro.Positions()
		indices, distances := geom.Match(srcX, srcY, tgtX, tgtY)

		for k, i := range unmatched {
			if indices[k] < 0 || distances[k] >= opt.MaxMatchDistanceMM {
				continue
			}
			e := &r.Metro.Entries[indices[k]]
			s := &table[i]
			s.XFPExp = e.XFP
			s.YFPExp = e.YFP
			s.PetalLoc = e.PetalLoc
			s.DeviceLoc = e.DeviceLoc
			s.Location = e.Location
			matched++
		}
	}

	// A direct metrology position beats the catalog-match expected value.
	// Runs even when every spot was pre-matched by the identifier.
	for i := range table {
		if table[i].XFPMetro != 0 {
			table[i].XFPExp = table[i].XFPMetro
		}
		if table[i].YFPMetro != 0 {
			table[i].YFPExp = table[i].YFPMetro
		}
	}

	monitoring.Logf("register: %d fiducial pinholes, %d/%d positioner spots matched (gate %.1f mm)",
		nfid, matched, len(unmatched), opt.MaxMatchDistanceMM)
	return res, nil
}
