// Package runstore persists the run-lifecycle record of spec.md §3/§6: id,
// name, status, and the config/log/output paths an external orchestrator
// polls via submit/query/fetch. Connection handling follows the teacher's
// WAL-mode SQLite helper.
package runstore

import (
	"fmt"
	"time"

	"epidemsim/internal/errs"
	"github.com/jmoiron/sqlx"
	_ "github.com/mattn/go-sqlite3"
)

// Status is a run's lifecycle state.
type Status string

const (
	Created Status = "CREATED"
	Running Status = "RUNNING"
	Success Status = "SUCCESS"
	Failure Status = "FAILURE"
)

// Run is one row of the run-lifecycle table.
type Run struct {
	ID            string    `db:"id" json:"id"`
	Name          string    `db:"name" json:"name"`
	Status        Status    `db:"status" json:"status"`
	ConfigPath    string    `db:"config_path" json:"config_path"`
	LogPath       string    `db:"log_path" json:"log_path"`
	OutputDir     string    `db:"output_dir" json:"output_dir"`
	ScenarioID    string    `db:"scenario_id" json:"scenario_id,omitempty"`
	AgentConfigID string    `db:"agent_config_id" json:"agent_config_id,omitempty"`
	Runs          int       `db:"runs" json:"runs"`
	CreatedAt     time.Time `db:"created_at" json:"created_at"`
	UpdatedAt     time.Time `db:"updated_at" json:"updated_at"`
}

// Store wraps a SQLite-backed run-lifecycle table.
type Store struct {
	db *sqlx.DB
}

// Open establishes a WAL-mode SQLite connection, mirroring the teacher's
// OpenSQLiteDBOptimized connection string, and ensures the runs table
// exists.
func Open(path string) (*Store, error) {
	dsn := fmt.Sprintf("file:%s?_journal=WAL&_locking=NORMAL&_sync=NORMAL", path)
	db, err := sqlx.Open("sqlite3", dsn)
	if err != nil {
		return nil, errs.Wrap(errs.ErrBadConfig, "opening run store %s: %v", path, err)
	}
	if err := db.Ping(); err != nil {
		return nil, errs.Wrap(errs.ErrBadConfig, "pinging run store %s: %v", path, err)
	}
	s := &Store{db: db}
	if err := s.migrate(); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *Store) migrate() error {
	const schema = `
	create table if not exists runs (
		id text not null primary key,
		name text not null,
		status text not null,
		config_path text not null,
		log_path text not null,
		output_dir text not null,
		scenario_id text not null default '',
		agent_config_id text not null default '',
		runs integer not null default 1,
		created_at datetime not null,
		updated_at datetime not null
	);`
	if _, err := s.db.Exec(schema); err != nil {
		return errs.Wrap(errs.ErrBadConfig, "migrating run store: %v", err)
	}
	return nil
}

// Close releases the underlying database handle.
func (s *Store) Close() error {
	return s.db.Close()
}

// Submit inserts a new run record in CREATED status and returns it.
func (s *Store) Submit(id, name, configPath, logPath, outputDir string, runs int) (*Run, error) {
	now := time.Now().UTC()
	r := &Run{
		ID:         id,
		Name:       name,
		Status:     Created,
		ConfigPath: configPath,
		LogPath:    logPath,
		OutputDir:  outputDir,
		Runs:       runs,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	const q = `insert into runs (id, name, status, config_path, log_path, output_dir, scenario_id, agent_config_id, runs, created_at, updated_at)
		values (:id, :name, :status, :config_path, :log_path, :output_dir, :scenario_id, :agent_config_id, :runs, :created_at, :updated_at)`
	if _, err := s.db.NamedExec(q, r); err != nil {
		return nil, errs.Wrap(errs.ErrBadConfig, "submitting run %s: %v", id, err)
	}
	return r, nil
}

// Transition updates a run's status.
func (s *Store) Transition(id string, status Status) error {
	const q = `update runs set status = ?, updated_at = ? where id = ?`
	res, err := s.db.Exec(q, status, time.Now().UTC(), id)
	if err != nil {
		return errs.Wrap(errs.ErrBadConfig, "transitioning run %s to %s: %v", id, status, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return errs.Wrap(errs.ErrBadConfig, "checking transition result for run %s: %v", id, err)
	}
	if n == 0 {
		return errs.Wrap(errs.ErrBadConfig, "no such run %s", id)
	}
	return nil
}

// Query fetches a run's current record by id.
func (s *Store) Query(id string) (*Run, error) {
	var r Run
	if err := s.db.Get(&r, `select * from runs where id = ?`, id); err != nil {
		return nil, errs.Wrap(errs.ErrBadConfig, "querying run %s: %v", id, err)
	}
	return &r, nil
}

// Fetch returns the artifact directory for a completed run, failing unless
// the run has reached SUCCESS (a FAILURE run is refused as well).
func (s *Store) Fetch(id string) (string, error) {
	r, err := s.Query(id)
	if err != nil {
		return "", err
	}
	if r.Status != Success {
		return "", errs.Wrap(errs.ErrBadConfig, "run %s is not complete (status %s)", id, r.Status)
	}
	return r.OutputDir, nil
}
