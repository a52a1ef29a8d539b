// Package store persists sampled memory accesses in SQLite so a run can be
// aggregated again without collecting.
package store

// Copyright (C) 2021-2025 Intel Corporation
// SPDX-License-Identifier: BSD-3-Clause

import (
	"database/sql"
	"fmt"
	"log/slog"
	"path/filepath"
	"time"

	"pmutool/internal/ring"
	"pmutool/internal/sample"
	"pmutool/internal/util"

	_ "github.com/mattn/go-sqlite3"
)

const schema = `
CREATE TABLE IF NOT EXISTS runs (
	id      INTEGER PRIMARY KEY AUTOINCREMENT,
	started TIMESTAMP NOT NULL,
	pmu     TEXT NOT NULL
);
CREATE TABLE IF NOT EXISTS run_events (
	run_id INTEGER NOT NULL REFERENCES runs(id),
	source INTEGER NOT NULL,
	event  TEXT NOT NULL,
	PRIMARY KEY (run_id, source)
);
CREATE TABLE IF NOT EXISTS samples (
	run_id   INTEGER NOT NULL REFERENCES runs(id),
	source   INTEGER NOT NULL,
	ip       INTEGER NOT NULL,
	addr     INTEGER NOT NULL,
	weight   INTEGER NOT NULL,
	data_src INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_samples_run ON samples(run_id);
`

// DB is a sample database.
type DB struct {
	db *sql.DB
}

// Run describes one stored sampling run.
type Run struct {
	ID      int64
	Started time.Time
	PMU     string
	Events  []string // indexed by source
	Samples int64
}

// Open opens or creates the database at path.
func Open(path string) (*DB, error) {
	if err := util.CreateDirectoryIfNotExists(filepath.Dir(path), 0755); err != nil { // #nosec G301
		return nil, err
	}
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to enable WAL mode: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}
	return &DB{db: db}, nil
}

func (d *DB) Close() error { return d.db.Close() }

// NewRun records a run and its events and returns its id.
func (d *DB) NewRun(pmuName string, events []string, started time.Time) (int64, error) {
	tx, err := d.db.Begin()
	if err != nil {
		return 0, err
	}
	defer tx.Rollback()
	res, err := tx.Exec("INSERT INTO runs (started, pmu) VALUES (?, ?)", started.UTC(), pmuName)
	if err != nil {
		return 0, fmt.Errorf("failed to insert run: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, err
	}
	for source, ev := range events {
		if _, err := tx.Exec("INSERT INTO run_events (run_id, source, event) VALUES (?, ?, ?)", id, source, ev); err != nil {
			return 0, fmt.Errorf("failed to insert run event: %w", err)
		}
	}
	return id, tx.Commit()
}

// sqlite integers are signed; the bit pattern is stored unchanged
func toDB(v uint64) int64   { return int64(v) }  // #nosec G115
func fromDB(v int64) uint64 { return uint64(v) } // #nosec G115

// InsertSamples stores records drained from source.
func (d *DB) InsertSamples(runID int64, source int, records []sample.Record) error {
	tx, err := d.db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()
	stmt, err := tx.Prepare("INSERT INTO samples (run_id, source, ip, addr, weight, data_src) VALUES (?, ?, ?, ?, ?, ?)")
	if err != nil {
		return err
	}
	defer stmt.Close()
	for _, r := range records {
		if _, err := stmt.Exec(runID, source, toDB(r.IP), toDB(r.Addr), toDB(r.Weight), toDB(uint64(r.DataSrc))); err != nil {
			return fmt.Errorf("failed to insert sample: %w", err)
		}
	}
	return tx.Commit()
}

// SaveLog stores every sample record in l. Corrupt buffers are stored up to
// the framing error. It returns the number of samples stored.
func (d *DB) SaveLog(runID int64, l *sample.BufferLog) (int, error) {
	total := 0
	err := l.Each(func(b sample.Buffer) error {
		var records []sample.Record
		err := ring.Walk(b.Data, func(hdr ring.Header, payload []byte) error {
			if hdr.Type != ring.RecordSample {
				return nil
			}
			r, err := sample.ParseRecord(payload)
			if err != nil {
				return err
			}
			records = append(records, r)
			return nil
		})
		if err != nil {
			slog.Warn("storing partial sample buffer", slog.Int("source", b.Source), slog.String("error", err.Error()))
		}
		if err := d.InsertSamples(runID, b.Source, records); err != nil {
			return err
		}
		total += len(records)
		return nil
	})
	return total, err
}

// Runs lists the stored runs, oldest first.
func (d *DB) Runs() ([]Run, error) {
	rows, err := d.db.Query(`SELECT r.id, r.started, r.pmu, (SELECT COUNT(*) FROM samples s WHERE s.run_id = r.id) FROM runs r ORDER BY r.id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var runs []Run
	for rows.Next() {
		var r Run
		if err := rows.Scan(&r.ID, &r.Started, &r.PMU, &r.Samples); err != nil {
			return nil, err
		}
		runs = append(runs, r)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	for i := range runs {
		if runs[i].Events, err = d.events(runs[i].ID); err != nil {
			return nil, err
		}
	}
	return runs, nil
}

func (d *DB) events(runID int64) ([]string, error) {
	rows, err := d.db.Query("SELECT event FROM run_events WHERE run_id = ? ORDER BY source", runID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var events []string
	for rows.Next() {
		var ev string
		if err := rows.Scan(&ev); err != nil {
			return nil, err
		}
		events = append(events, ev)
	}
	return events, rows.Err()
}

// LatestRun returns the id of the most recent run.
func (d *DB) LatestRun() (int64, error) {
	var id sql.NullInt64
	if err := d.db.QueryRow("SELECT MAX(id) FROM runs").Scan(&id); err != nil {
		return 0, err
	}
	if !id.Valid {
		return 0, fmt.Errorf("database has no runs")
	}
	return id.Int64, nil
}

// Samples calls fn for every sample of runID in insertion order.
func (d *DB) Samples(runID int64, fn func(source int, r sample.Record) error) error {
	rows, err := d.db.Query("SELECT source, ip, addr, weight, data_src FROM samples WHERE run_id = ? ORDER BY rowid", runID)
	if err != nil {
		return err
	}
	defer rows.Close()
	for rows.Next() {
		var source int
		var ip, addr, weight, dataSrc int64
		if err := rows.Scan(&source, &ip, &addr, &weight, &dataSrc); err != nil {
			return err
		}
		r := sample.Record{IP: fromDB(ip), Addr: fromDB(addr), Weight: fromDB(weight), DataSrc: sample.DataSrc(fromDB(dataSrc))}
		if err := fn(source, r); err != nil {
			return err
		}
	}
	return rows.Err()
}

// Aggregate re-aggregates a stored run.
func (d *DB) Aggregate(runID int64) (*sample.Aggregator, error) {
	a := sample.NewAggregator()
	err := d.Samples(runID, func(_ int, r sample.Record) error {
		a.Add(r)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return a, nil
}
