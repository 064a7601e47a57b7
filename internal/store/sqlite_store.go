package store

import (
	"database/sql"
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/sqlite"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	_ "modernc.org/sqlite"

	"github.com/cwbudde/routeviz/internal/history"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// SQLiteStore implements Store on a SQLite database. The schema is managed by
// embedded migrations applied when the store is opened.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore opens (or creates) the database at path and migrates it to
// the latest schema.
func NewSQLiteStore(path string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// A single connection serializes writers and keeps :memory: databases
	// shared across calls.
	db.SetMaxOpenConns(1)

	s := &SQLiteStore{db: db}
	if err := s.MigrateUp(); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

// MigrateUp applies all pending migrations.
func (s *SQLiteStore) MigrateUp() error {
	m, err := s.newMigrate()
	if err != nil {
		return err
	}
	// m is not closed: that would close the shared *sql.DB.
	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("migration up failed: %w", err)
	}
	return nil
}

// MigrateVersion returns the current schema version. It is 0 before any
// migration ran.
func (s *SQLiteStore) MigrateVersion() (version uint, dirty bool, err error) {
	m, err := s.newMigrate()
	if err != nil {
		return 0, false, err
	}
	version, dirty, err = m.Version()
	if errors.Is(err, migrate.ErrNilVersion) {
		return 0, false, nil
	}
	return version, dirty, err
}

func (s *SQLiteStore) newMigrate() (*migrate.Migrate, error) {
	src, err := iofs.New(migrationsFS, "migrations")
	if err != nil {
		return nil, fmt.Errorf("failed to open embedded migrations: %w", err)
	}
	driver, err := sqlite.WithInstance(s.db, &sqlite.Config{})
	if err != nil {
		return nil, fmt.Errorf("failed to create sqlite driver: %w", err)
	}
	m, err := migrate.NewWithInstance("iofs", src, "sqlite", driver)
	if err != nil {
		return nil, fmt.Errorf("failed to create migrate instance: %w", err)
	}
	m.Log = migrateLogger{}
	return m, nil
}

// migrateLogger forwards golang-migrate output to slog.
type migrateLogger struct{}

func (migrateLogger) Printf(format string, v ...interface{}) {
	slog.Debug(fmt.Sprintf("[migrate] "+format, v...))
}

func (migrateLogger) Verbose() bool {
	return false
}

// SaveRun replaces the run and its generations in one transaction.
func (s *SQLiteStore) SaveRun(rec *RunRecord, results []history.GenerationResult) (err error) {
	if rec == nil {
		return fmt.Errorf("run record cannot be nil")
	}
	if err := checkID(rec.ID); err != nil {
		return err
	}
	if err := rec.Validate(); err != nil {
		return err
	}

	settings, err := json.Marshal(rec.Settings)
	if err != nil {
		return fmt.Errorf("failed to serialize settings: %w", err)
	}
	pts, err := json.Marshal(rec.Points)
	if err != nil {
		return fmt.Errorf("failed to serialize points: %w", err)
	}
	bestRoute, err := json.Marshal(routeOrEmpty(rec.Best.Route))
	if err != nil {
		return fmt.Errorf("failed to serialize best route: %w", err)
	}

	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		if err != nil {
			tx.Rollback()
		}
	}()

	if _, err = tx.Exec(`DELETE FROM generations WHERE run_id = ?`, rec.ID); err != nil {
		return fmt.Errorf("failed to clear generations: %w", err)
	}
	_, err = tx.Exec(`
		INSERT OR REPLACE INTO runs
			(id, outcome, started_at, ended_at, settings_json, points_json,
			 best_generation, best_distance, best_route_json, generations)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		rec.ID, rec.Outcome, rec.StartedAt.UnixNano(), rec.EndedAt.UnixNano(),
		string(settings), string(pts),
		rec.Best.Generation, rec.Best.Distance, string(bestRoute), rec.Generations,
	)
	if err != nil {
		return fmt.Errorf("failed to insert run: %w", err)
	}

	stmt, err := tx.Prepare(`INSERT INTO generations (run_id, generation, distance, route_json) VALUES (?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("failed to prepare generation insert: %w", err)
	}
	defer stmt.Close()

	for _, r := range results {
		route, mErr := json.Marshal(routeOrEmpty(r.Route))
		if mErr != nil {
			err = fmt.Errorf("failed to serialize route: %w", mErr)
			return err
		}
		if _, err = stmt.Exec(rec.ID, r.Generation, r.Distance, string(route)); err != nil {
			return fmt.Errorf("failed to insert generation %d: %w", r.Generation, err)
		}
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit run: %w", err)
	}
	slog.Debug("Run saved", "run_id", rec.ID, "generations", len(results), "driver", DriverSQLite)
	return nil
}

func routeOrEmpty(route []int) []int {
	if route == nil {
		return []int{}
	}
	return route
}

// LoadRun reads one run row.
func (s *SQLiteStore) LoadRun(id string) (*RunRecord, error) {
	row := s.db.QueryRow(`
		SELECT id, outcome, started_at, ended_at, settings_json, points_json,
		       best_generation, best_distance, best_route_json, generations
		FROM runs WHERE id = ?`, id)

	rec, err := scanRun(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, &NotFoundError{RunID: id}
	}
	if err != nil {
		return nil, err
	}
	return rec, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRun(row rowScanner) (*RunRecord, error) {
	var (
		rec                          RunRecord
		started, ended               int64
		settings, pts, bestRouteJSON string
	)
	err := row.Scan(&rec.ID, &rec.Outcome, &started, &ended, &settings, &pts,
		&rec.Best.Generation, &rec.Best.Distance, &bestRouteJSON, &rec.Generations)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to scan run: %w", err)
	}

	rec.StartedAt = time.Unix(0, started).UTC()
	rec.EndedAt = time.Unix(0, ended).UTC()
	if err := json.Unmarshal([]byte(settings), &rec.Settings); err != nil {
		return nil, fmt.Errorf("failed to decode settings of run %s: %w", rec.ID, err)
	}
	if err := json.Unmarshal([]byte(pts), &rec.Points); err != nil {
		return nil, fmt.Errorf("failed to decode points of run %s: %w", rec.ID, err)
	}
	if err := json.Unmarshal([]byte(bestRouteJSON), &rec.Best.Route); err != nil {
		return nil, fmt.Errorf("failed to decode best route of run %s: %w", rec.ID, err)
	}
	return &rec, nil
}

// LoadHistory reads the generations of a run in order.
func (s *SQLiteStore) LoadHistory(id string) ([]history.GenerationResult, error) {
	if _, err := s.LoadRun(id); err != nil {
		return nil, err
	}

	rows, err := s.db.Query(`
		SELECT generation, distance, route_json FROM generations
		WHERE run_id = ? ORDER BY generation`, id)
	if err != nil {
		return nil, fmt.Errorf("failed to query generations: %w", err)
	}
	defer rows.Close()

	results := []history.GenerationResult{}
	for rows.Next() {
		var r history.GenerationResult
		var route string
		if err := rows.Scan(&r.Generation, &r.Distance, &route); err != nil {
			return nil, fmt.Errorf("failed to scan generation: %w", err)
		}
		if err := json.Unmarshal([]byte(route), &r.Route); err != nil {
			return nil, fmt.Errorf("failed to decode route of generation %d: %w", r.Generation, err)
		}
		results = append(results, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read generations: %w", err)
	}
	return results, nil
}

// ListRuns returns all runs, newest first.
func (s *SQLiteStore) ListRuns() ([]RunInfo, error) {
	rows, err := s.db.Query(`
		SELECT id, outcome, started_at, ended_at, settings_json, points_json,
		       best_generation, best_distance, best_route_json, generations
		FROM runs ORDER BY started_at DESC`)
	if err != nil {
		return nil, fmt.Errorf("failed to query runs: %w", err)
	}
	defer rows.Close()

	infos := []RunInfo{}
	for rows.Next() {
		rec, err := scanRun(rows)
		if err != nil {
			slog.Warn("Failed to load run for listing", "error", err)
			continue
		}
		infos = append(infos, rec.ToInfo())
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read runs: %w", err)
	}
	return infos, nil
}

// DeleteRun removes a run, its generations and artifacts.
func (s *SQLiteStore) DeleteRun(id string) (err error) {
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		if err != nil {
			tx.Rollback()
		}
	}()

	res, err := tx.Exec(`DELETE FROM runs WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to delete run: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to delete run: %w", err)
	}
	if n == 0 {
		err = &NotFoundError{RunID: id}
		return err
	}
	if _, err = tx.Exec(`DELETE FROM generations WHERE run_id = ?`, id); err != nil {
		return fmt.Errorf("failed to delete generations: %w", err)
	}
	if _, err = tx.Exec(`DELETE FROM artifacts WHERE run_id = ?`, id); err != nil {
		return fmt.Errorf("failed to delete artifacts: %w", err)
	}
	if err = tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit delete: %w", err)
	}
	return nil
}

// SaveArtifact stores a named blob for an existing run.
func (s *SQLiteStore) SaveArtifact(id, name string, data []byte) error {
	if err := checkArtifactName(name); err != nil {
		return err
	}
	if _, err := s.LoadRun(id); err != nil {
		return err
	}
	if data == nil {
		data = []byte{}
	}
	_, err := s.db.Exec(`INSERT OR REPLACE INTO artifacts (run_id, name, data) VALUES (?, ?, ?)`, id, name, data)
	if err != nil {
		return fmt.Errorf("failed to save artifact: %w", err)
	}
	return nil
}

// LoadArtifact reads a named blob.
func (s *SQLiteStore) LoadArtifact(id, name string) ([]byte, error) {
	var data []byte
	err := s.db.QueryRow(`SELECT data FROM artifacts WHERE run_id = ? AND name = ?`, id, name).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, &NotFoundError{RunID: id, Artifact: name}
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load artifact: %w", err)
	}
	return data, nil
}

// Close closes the database.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}
