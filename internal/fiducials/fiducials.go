// Package fiducials identifies fiducial pinholes in a raw spot table.
//
// Fiducials are fixed reference devices carrying 3-4 illuminated pinholes
// about a millimetre apart. Their tight spacing makes them easy to find
// before the transform is well calibrated: cluster the projected spots by
// proximity, match cluster centroids against the fiducial devices in the
// metrology catalog, then assign individual pinholes within each matched
// cluster. Identified rows get Location, PinholeID and the metrology
// pinhole position; everything else is left untouched for the registrar.
package fiducials

import (
	"math"

	"github.com/focalplane-data/fpmeter/internal/geom"
	"github.com/focalplane-data/fpmeter/internal/metrology"
	"github.com/focalplane-data/fpmeter/internal/monitoring"
	"github.com/focalplane-data/fpmeter/internal/spots"
	"github.com/focalplane-data/fpmeter/internal/transform"
)

// centroidGateMM is the maximum distance between a cluster centroid and a
// fiducial device centroid for an identification. Wider than the pinhole
// separation because the seed transform may be several mm off.
const centroidGateMM = 5.0

// Pinhole count bounds for a plausible fiducial cluster.
const (
	minClusterSize = 3
	maxClusterSize = 5
)

// Identifier identifies fiducial pinholes against metrology. The zero
// value is ready to use.
type Identifier struct{}

// Identify projects the raw spots with the given transform, finds pinhole
// clusters, and writes device identity and metrology positions for the
// identified pinholes onto the table in place. maxSepMM is the maximum
// pinhole-to-pinhole separation within one fiducial. Returns the number of
// pinholes identified.
func (Identifier) Identify(table []spots.Spot, tr *transform.FVC2FP, metro *metrology.Catalog, maxSepMM float64) int {
	if len(table) == 0 || metro.Len() == 0 {
		return 0
	}
	tr.Project(table)

	clusters := clusterByProximity(table, maxSepMM)
	fidX, fidY, fidLoc := fiducialCentroids(metro)
	if len(fidLoc) == 0 {
		return 0
	}

	identified := 0
	for _, cluster := range clusters {
		if len(cluster) < minClusterSize || len(cluster) > maxClusterSize {
			continue
		}
		var cx, cy float64
		for _, i := range cluster {
			cx += table[i].XFP
			cy += table[i].YFP
		}
		cx /= float64(len(cluster))
		cy /= float64(len(cluster))

		idx, dist := geom.Match([]float64{cx}, []float64{cy}, fidX, fidY)
		if idx[0] < 0 || dist[0] > centroidGateMM {
			continue
		}
		identified += assignPinholes(table, cluster, metro, fidLoc[idx[0]])
	}
	monitoring.Logf("fiducials: identified %d pinholes in %d clusters", identified, len(clusters))
	return identified
}

// clusterByProximity groups spot indices whose focal-plane projections lie
// within eps of a chain of neighbours (single linkage). Isolated spots form
// singleton clusters, which the caller discards.
func clusterByProximity(table []spots.Spot, eps float64) [][]int {
	n := len(table)
	visited := make([]bool, n)
	var clusters [][]int
	for i := 0; i < n; i++ {
		if visited[i] {
			continue
		}
		cluster := []int{i}
		visited[i] = true
		for qi := 0; qi < len(cluster); qi++ {
			q := cluster[qi]
			for j := 0; j < n; j++ {
				if visited[j] {
					continue
				}
				if math.Hypot(table[j].XFP-table[q].XFP, table[j].YFP-table[q].YFP) <= eps {
					visited[j] = true
					cluster = append(cluster, j)
				}
			}
		}
		clusters = append(clusters, cluster)
	}
	return clusters
}

// fiducialCentroids returns the centroid position and location of each
// fiducial device in the catalog.
func fiducialCentroids(metro *metrology.Catalog) (x, y []float64, loc []int) {
	sums := make(map[int][3]float64) // location -> {sx, sy, n}
	for _, e := range metro.Fiducials() {
		s := sums[e.Location]
		sums[e.Location] = [3]float64{s[0] + e.XFP, s[1] + e.YFP, s[2] + 1}
	}
	for l, s := range sums {
		x = append(x, s[0]/s[2])
		y = append(y, s[1]/s[2])
		loc = append(loc, l)
	}
	return x, y, loc
}

// assignPinholes matches each spot in the cluster to the nearest metrology
// pinhole of the identified device and writes identity and metrology
// position in place.
func assignPinholes(table []spots.Spot, cluster []int, metro *metrology.Catalog, location int) int {
	var phX, phY []float64
	var entries []*metrology.Entry
	for pid := 1; pid <= 9; pid++ {
		if e, ok := metro.Lookup(location, pid); ok {
			phX = append(phX, e.XFP)
			phY = append(phY, e.YFP)
			entries = append(entries, e)
		}
	}
	if len(entries) == 0 {
		return 0
	}

	assigned := 0
	for _, i := range cluster {
		idx, _ := geom.Match([]float64{table[i].XFP}, []float64{table[i].YFP}, phX, phY)
		e := entries[idx[0]]
		table[i].PetalLoc = e.PetalLoc
		table[i].DeviceLoc = e.DeviceLoc
		table[i].Location = e.Location
		table[i].PinholeID = e.PinholeID
		table[i].XFPMetro = e.XFP
		table[i].YFPMetro = e.YFP
		assigned++
	}
	return assigned
}
