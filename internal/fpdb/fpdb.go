// Package fpdb stores measured spot tables and aggregated device fits in
// a sqlite database, keyed by calibration session.
package fpdb

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"github.com/focalplane-data/fpmeter/internal/circles"
	"github.com/focalplane-data/fpmeter/internal/monitoring"
	"github.com/focalplane-data/fpmeter/internal/spots"
)

type DB struct {
	*sql.DB
}

// Open opens (creating if necessary) the database at path and brings the
// schema up to date.
func Open(path string) (*DB, error) {
	sqldb, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}

	// Writers are serialized through a single connection; sqlite locks the
	// whole file anyway.
	sqldb.SetMaxOpenConns(1)

	db := &DB{sqldb}
	if err := db.MigrateUp(); err != nil {
		sqldb.Close()
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	return db, nil
}

// Session is one calibration run: a sequence of exposures processed with
// the same transform and metrology.
type Session struct {
	ID        string
	Kind      string
	CreatedAt time.Time
}

// NewSession allocates a session row and returns its generated ID.
func (db *DB) NewSession(kind string) (Session, error) {
	s := Session{ID: uuid.NewString(), Kind: kind, CreatedAt: time.Now().UTC()}
	_, err := db.Exec(`INSERT INTO sessions (id, kind, created_at) VALUES (?, ?, ?)`,
		s.ID, s.Kind, s.CreatedAt)
	if err != nil {
		return Session{}, fmt.Errorf("create session: %w", err)
	}
	monitoring.Logf("fpdb: new %s session %s", kind, s.ID)
	return s, nil
}

// Sessions returns all sessions, newest first.
func (db *DB) Sessions() ([]Session, error) {
	rows, err := db.Query(`SELECT id, kind, created_at FROM sessions ORDER BY created_at DESC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Session
	for rows.Next() {
		var s Session
		if err := rows.Scan(&s.ID, &s.Kind, &s.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

// InsertSpots stores a measured spot table for one exposure of a session.
func (db *DB) InsertSpots(sessionID string, exposure int, table []spots.Spot) error {
	tx, err := db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	stmt, err := tx.Prepare(`
		INSERT INTO spots (session_id, exposure, xpix, ypix, flux,
			xfp, yfp, xfp_exp, yfp_exp, xfp_metro, yfp_metro,
			petal_loc, device_loc, location, pinhole_id)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for i := range table {
		s := &table[i]
		if _, err := stmt.Exec(sessionID, exposure, s.XPix, s.YPix, s.Flux,
			s.XFP, s.YFP, s.XFPExp, s.YFPExp, s.XFPMetro, s.YFPMetro,
			s.PetalLoc, s.DeviceLoc, s.Location, s.PinholeID); err != nil {
			return fmt.Errorf("insert spot %d: %w", i, err)
		}
	}
	return tx.Commit()
}

// LoadSpots returns the spot table stored for one exposure, in insertion
// order.
func (db *DB) LoadSpots(sessionID string, exposure int) ([]spots.Spot, error) {
	rows, err := db.Query(`
		SELECT xpix, ypix, flux, xfp, yfp, xfp_exp, yfp_exp,
			xfp_metro, yfp_metro, petal_loc, device_loc, location, pinhole_id
		FROM spots WHERE session_id = ? AND exposure = ? ORDER BY rowid
	`, sessionID, exposure)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var table []spots.Spot
	for rows.Next() {
		var s spots.Spot
		if err := rows.Scan(&s.XPix, &s.YPix, &s.Flux, &s.XFP, &s.YFP,
			&s.XFPExp, &s.YFPExp, &s.XFPMetro, &s.YFPMetro,
			&s.PetalLoc, &s.DeviceLoc, &s.Location, &s.PinholeID); err != nil {
			return nil, err
		}
		table = append(table, s)
	}
	return table, rows.Err()
}

// Exposures returns the distinct exposure numbers stored for a session,
// ascending.
func (db *DB) Exposures(sessionID string) ([]int, error) {
	rows, err := db.Query(`SELECT DISTINCT exposure FROM spots WHERE session_id = ? ORDER BY exposure`, sessionID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []int
	for rows.Next() {
		var e int
		if err := rows.Scan(&e); err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

// InsertDeviceFits stores the aggregated per-device fits for a session.
func (db *DB) InsertDeviceFits(sessionID string, fits []circles.DeviceFit) error {
	tx, err := db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	stmt, err := tx.Prepare(`
		INSERT INTO device_fits (session_id, location, pinhole_id,
			xfp_metro, yfp_metro, xfp, yfp, radius, n_obs)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for _, f := range fits {
		if _, err := stmt.Exec(sessionID, f.Location, f.PinholeID,
			f.XFPMetro, f.YFPMetro, f.XFP, f.YFP, f.Radius, f.NObs); err != nil {
			return fmt.Errorf("insert fit for location %d: %w", f.Location, err)
		}
	}
	return tx.Commit()
}

// LoadDeviceFits returns the stored device fits for a session, ordered by
// location then pinhole.
func (db *DB) LoadDeviceFits(sessionID string) ([]circles.DeviceFit, error) {
	rows, err := db.Query(`
		SELECT location, pinhole_id, xfp_metro, yfp_metro, xfp, yfp, radius, n_obs
		FROM device_fits WHERE session_id = ? ORDER BY location, pinhole_id
	`, sessionID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var fits []circles.DeviceFit
	for rows.Next() {
		var f circles.DeviceFit
		if err := rows.Scan(&f.Location, &f.PinholeID, &f.XFPMetro, &f.YFPMetro,
			&f.XFP, &f.YFP, &f.Radius, &f.NObs); err != nil {
			return nil, err
		}
		fits = append(fits, f)
	}
	return fits, rows.Err()
}
