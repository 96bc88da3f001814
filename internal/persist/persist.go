// Package persist implements the persisted Analysis store: a
// SQLite-backed history of Analysis snapshots, each encoded with gob and
// compressed with zstd, so a driver run can resume from the last
// successful compile without recomputing stamps or relations.
package persist

import (
	"bytes"
	"database/sql"
	"encoding/gob"
	"fmt"
	"os"
	"path/filepath"

	"github.com/klauspost/compress/zstd"
	_ "modernc.org/sqlite"

	"incrc/internal/analysis"
	"incrc/internal/logging"
)

// Store is a connection to the on-disk Analysis history, adapted from the
// driver's logging/migration conventions to a single append-only table of
// compressed Snapshot blobs.
type Store struct {
	conn   *sql.DB
	logger *logging.Logger
	dbPath string
}

// Open opens or creates the Analysis database at dbPath.
func Open(dbPath string, logger *logging.Logger) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
		return nil, fmt.Errorf("failed to create analysis db directory: %w", err)
	}

	dbExists := fileExists(dbPath)

	conn, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open analysis database: %w", err)
	}

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA synchronous=NORMAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA temp_store=MEMORY",
	}
	for _, pragma := range pragmas {
		if _, err := conn.Exec(pragma); err != nil {
			conn.Close()
			return nil, fmt.Errorf("failed to set pragma: %w", err)
		}
	}

	store := &Store{
		conn:   conn,
		logger: logger.With(map[string]interface{}{"db": filepath.Base(dbPath)}),
		dbPath: dbPath,
	}

	if !dbExists {
		logger.Info("creating new analysis database", map[string]interface{}{"path": dbPath})
	}
	if err := store.initializeSchema(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to initialize analysis schema: %w", err)
	}
	if err := store.initializeMetricsSchema(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to initialize run metrics schema: %w", err)
	}

	return store, nil
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	if s.conn != nil {
		return s.conn.Close()
	}
	return nil
}

const schemaV1 = `
CREATE TABLE IF NOT EXISTS analysis_snapshots (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	created_at_nanos INTEGER NOT NULL,
	sources_count INTEGER NOT NULL,
	blob BLOB NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_analysis_snapshots_created_at
	ON analysis_snapshots(created_at_nanos);
`

func (s *Store) initializeSchema() error {
	_, err := s.conn.Exec(schemaV1)
	return err
}

// Save encodes a as a compressed gob blob and appends it as the newest
// snapshot. createdAtNanos is supplied by the caller since this package
// never calls time.Now() itself.
func (s *Store) Save(a *analysis.Analysis, createdAtNanos int64) error {
	blob, err := encode(a)
	if err != nil {
		return fmt.Errorf("failed to encode analysis snapshot: %w", err)
	}

	_, err = s.conn.Exec(
		`INSERT INTO analysis_snapshots (created_at_nanos, sources_count, blob) VALUES (?, ?, ?)`,
		createdAtNanos, len(a.Sources()), blob,
	)
	if err != nil {
		return fmt.Errorf("failed to insert analysis snapshot: %w", err)
	}
	return nil
}

// Latest returns the most recently saved Analysis, or (nil, false) if the
// store is empty; the driver treats that as a clean-build starting point.
func (s *Store) Latest() (*analysis.Analysis, bool, error) {
	row := s.conn.QueryRow(`SELECT blob FROM analysis_snapshots ORDER BY id DESC LIMIT 1`)

	var blob []byte
	if err := row.Scan(&blob); err != nil {
		if err == sql.ErrNoRows {
			return nil, false, nil
		}
		return nil, false, fmt.Errorf("failed to read latest analysis snapshot: %w", err)
	}

	a, err := decode(blob)
	if err != nil {
		return nil, false, fmt.Errorf("failed to decode analysis snapshot: %w", err)
	}
	return a, true, nil
}

// Prune deletes every snapshot except the most recent keep rows.
func (s *Store) Prune(keep int) error {
	_, err := s.conn.Exec(
		`DELETE FROM analysis_snapshots WHERE id NOT IN (
			SELECT id FROM analysis_snapshots ORDER BY id DESC LIMIT ?
		)`, keep,
	)
	return err
}

func encode(a *analysis.Analysis) ([]byte, error) {
	var raw bytes.Buffer
	if err := gob.NewEncoder(&raw).Encode(a.Snapshot()); err != nil {
		return nil, err
	}

	enc, err := zstd.NewWriter(nil)
	if err != nil {
		return nil, err
	}
	defer enc.Close()
	return enc.EncodeAll(raw.Bytes(), nil), nil
}

func decode(compressed []byte) (*analysis.Analysis, error) {
	dec, err := zstd.NewReader(nil)
	if err != nil {
		return nil, err
	}
	defer dec.Close()

	raw, err := dec.DecodeAll(compressed, nil)
	if err != nil {
		return nil, err
	}

	var snap analysis.Snapshot
	if err := gob.NewDecoder(bytes.NewReader(raw)).Decode(&snap); err != nil {
		return nil, err
	}
	return analysis.FromSnapshot(snap), nil
}

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}
