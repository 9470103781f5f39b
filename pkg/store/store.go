// Package store keeps fitted equivalent source models in a SQLite database
// so that predictions can be made later without refitting.
package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	_ "modernc.org/sqlite"

	"gravmag/pkg/eqsources"
)

// ErrNotFound is returned when no model has the requested id.
var ErrNotFound = errors.New("store: model not found")

// Record describes a stored model without its payload.
type Record struct {
	ID        string    `db:"id"`
	Kind      string    `db:"kind"`
	Name      string    `db:"name"`
	CreatedAt time.Time `db:"-"`
	Created   string    `db:"created_at"`
	Damping   float64   `db:"damping"`
	Sources   int       `db:"n_sources"`
}

// DB wraps a SQLite connection holding fitted models.
type DB struct {
	conn   *sqlx.DB
	logger *slog.Logger
}

// Open opens or creates a model database at the given path.
func Open(path string, logger *slog.Logger) (*DB, error) {
	if logger == nil {
		logger = slog.Default()
	}
	conn, err := sqlx.Open("sqlite", path+"?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}

	db := &DB{conn: conn, logger: logger}
	if err := db.migrate(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return db, nil
}

// Close closes the database connection.
func (db *DB) Close() error {
	return db.conn.Close()
}

func (db *DB) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS models (
		id TEXT PRIMARY KEY,
		kind TEXT NOT NULL,
		name TEXT NOT NULL,
		created_at TEXT NOT NULL,
		damping REAL NOT NULL,
		n_sources INTEGER NOT NULL,
		payload_json TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_models_created ON models(created_at);
	`
	_, err := db.conn.Exec(schema)
	return err
}

// Save stores a snapshot under a new id and returns the id.
func (db *DB) Save(ctx context.Context, name string, snap eqsources.Snapshot) (string, error) {
	payload, err := json.Marshal(snap)
	if err != nil {
		return "", fmt.Errorf("encode snapshot: %w", err)
	}
	id := uuid.NewString()
	created := time.Now().UTC().Format(time.RFC3339Nano)

	_, err = db.conn.ExecContext(ctx,
		`INSERT INTO models (id, kind, name, created_at, damping, n_sources, payload_json)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		id, snap.Kind, name, created, snap.Damping, snap.Sources(), string(payload),
	)
	if err != nil {
		return "", fmt.Errorf("save model: %w", err)
	}
	db.logger.Info("model saved", "id", id, "kind", snap.Kind, "sources", snap.Sources())
	return id, nil
}

// Load returns the snapshot stored under id.
func (db *DB) Load(ctx context.Context, id string) (eqsources.Snapshot, error) {
	var payload string
	err := db.conn.GetContext(ctx, &payload, "SELECT payload_json FROM models WHERE id = ?", id)
	if errors.Is(err, sql.ErrNoRows) {
		return eqsources.Snapshot{}, fmt.Errorf("%s: %w", id, ErrNotFound)
	}
	if err != nil {
		return eqsources.Snapshot{}, fmt.Errorf("load model %s: %w", id, err)
	}

	var snap eqsources.Snapshot
	if err := json.Unmarshal([]byte(payload), &snap); err != nil {
		return eqsources.Snapshot{}, fmt.Errorf("decode model %s: %w", id, err)
	}
	return snap, nil
}

// LoadModel loads the snapshot stored under id and restores it.
func (db *DB) LoadModel(ctx context.Context, id string) (eqsources.Model, error) {
	snap, err := db.Load(ctx, id)
	if err != nil {
		return nil, err
	}
	return eqsources.Restore(snap)
}

// List returns every stored model, newest first.
func (db *DB) List(ctx context.Context) ([]Record, error) {
	var records []Record
	err := db.conn.SelectContext(ctx, &records,
		"SELECT id, kind, name, created_at, damping, n_sources FROM models ORDER BY created_at DESC, id",
	)
	if err != nil {
		return nil, fmt.Errorf("list models: %w", err)
	}
	for i := range records {
		t, err := time.Parse(time.RFC3339Nano, records[i].Created)
		if err != nil {
			return nil, fmt.Errorf("model %s: bad timestamp %q: %w", records[i].ID, records[i].Created, err)
		}
		records[i].CreatedAt = t
	}
	return records, nil
}

// Delete removes the model stored under id.
func (db *DB) Delete(ctx context.Context, id string) error {
	res, err := db.conn.ExecContext(ctx, "DELETE FROM models WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("delete model %s: %w", id, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("%s: %w", id, ErrNotFound)
	}
	db.logger.Info("model deleted", "id", id)
	return nil
}
