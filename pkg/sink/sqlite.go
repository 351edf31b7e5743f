// Copyright 2025 walteh LLC
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package sink

import (
	"context"
	"database/sql"
	"os"
	"path/filepath"
	"time"

	"github.com/rs/zerolog"
	"gitlab.com/tozd/go/errors"

	_ "modernc.org/sqlite" // registers the "sqlite" driver
)

const schema = `
CREATE TABLE IF NOT EXISTS failures (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	run_id TEXT NOT NULL,
	source TEXT NOT NULL,
	destination TEXT NOT NULL,
	error TEXT NOT NULL,
	recorded_at DATETIME NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_failures_run ON failures(run_id);
`

// 🗄️ SQLite journals failures into a sqlite database, tagged with a run id
type SQLite struct {
	db    *sql.DB
	runID string
}

// 🏭 OpenSQLite opens or creates the journal at path
func OpenSQLite(ctx context.Context, path string, runID string) (*SQLite, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, errors.Errorf("creating journal directory: %w", err)
	}

	db, err := sql.Open("sqlite", path+"?mode=rwc")
	if err != nil {
		return nil, errors.Errorf("opening journal: %w", err)
	}

	// sqlite allows a single writer
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(time.Hour)

	if _, err := db.ExecContext(ctx, "PRAGMA journal_mode=WAL"); err != nil {
		_ = db.Close()
		return nil, errors.Errorf("enabling WAL: %w", err)
	}
	if _, err := db.ExecContext(ctx, schema); err != nil {
		_ = db.Close()
		return nil, errors.Errorf("creating schema: %w", err)
	}

	return &SQLite{db: db, runID: runID}, nil
}

func (s *SQLite) Record(ctx context.Context, f Failure) {
	at := f.Time
	if at.IsZero() {
		at = time.Now()
	}

	// the run context may already be cancelled; the record still belongs in the journal
	_, err := s.db.ExecContext(context.WithoutCancel(ctx),
		`INSERT INTO failures (run_id, source, destination, error, recorded_at) VALUES (?, ?, ?, ?, ?)`,
		s.runID, f.Source, f.Destination, f.Error, at.UTC())
	if err != nil {
		zerolog.Ctx(ctx).Warn().Err(err).Str("source", f.Source).Msg("journaling failure")
	}
}

// Failures returns every failure journaled for runID, oldest first
func (s *SQLite) Failures(ctx context.Context, runID string) ([]Failure, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT source, destination, error, recorded_at FROM failures WHERE run_id = ? ORDER BY id`, runID)
	if err != nil {
		return nil, errors.Errorf("querying failures: %w", err)
	}
	defer rows.Close()

	var out []Failure
	for rows.Next() {
		var f Failure
		if err := rows.Scan(&f.Source, &f.Destination, &f.Error, &f.Time); err != nil {
			return nil, errors.Errorf("scanning failure: %w", err)
		}
		out = append(out, f)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.Errorf("iterating failures: %w", err)
	}
	return out, nil
}

// Close closes the database
func (s *SQLite) Close() error {
	if err := s.db.Close(); err != nil {
		return errors.Errorf("closing journal: %w", err)
	}
	return nil
}
