// Package importer loads a scenario/agent JSON configuration bundle into
// the SQLite-backed config store, the Go analogue of the source's JSON-to-
// database config import utility. Imports are idempotent: re-importing the same
// named bundle replaces its row rather than duplicating it.
package importer

import (
	"encoding/json"
	"fmt"

	"epidemsim/internal/config"
	"epidemsim/internal/errs"
	"github.com/jmoiron/sqlx"
	_ "github.com/mattn/go-sqlite3"
)

// Importer writes validated config bundles into a WAL-mode SQLite database.
type Importer struct {
	db *sqlx.DB
}

// Open connects to (creating if absent) the config database at path and
// ensures its tables exist.
func Open(path string) (*Importer, error) {
	dsn := fmt.Sprintf("file:%s?_journal=WAL&_locking=NORMAL&_sync=NORMAL", path)
	db, err := sqlx.Open("sqlite3", dsn)
	if err != nil {
		return nil, errs.Wrap(errs.ErrBadConfig, "opening config store %s: %v", path, err)
	}
	im := &Importer{db: db}
	if err := im.migrate(); err != nil {
		return nil, err
	}
	return im, nil
}

func (im *Importer) migrate() error {
	const schema = `
	create table if not exists terrains (
		name text not null primary key,
		body text not null
	);
	create table if not exists scenarios (
		name text not null primary key,
		body text not null
	);
	create table if not exists viruses (
		name text not null primary key,
		body text not null
	);
	create table if not exists preventions (
		name text not null primary key,
		body text not null
	);
	create table if not exists agent_configs (
		name text not null primary key,
		body text not null
	);`
	if _, err := im.db.Exec(schema); err != nil {
		return errs.Wrap(errs.ErrBadConfig, "migrating config store: %v", err)
	}
	return nil
}

// Close releases the underlying database handle.
func (im *Importer) Close() error {
	return im.db.Close()
}

// ImportScenario validates and upserts a full scenario config bundle,
// fanning its sub-records out into their own tables by name.
func (im *Importer) ImportScenario(sc config.ScenarioConfig) error {
	if err := sc.Validate(); err != nil {
		return err
	}
	if err := im.upsert("scenarios", sc.Sim.Name, sc); err != nil {
		return err
	}
	if err := im.upsert("viruses", sc.Virus.Name, sc.Virus); err != nil {
		return err
	}
	if err := im.upsert("preventions", sc.Prevention.Name, sc.Prevention); err != nil {
		return err
	}
	for _, te := range sc.Sim.Terrain {
		if err := im.upsert("terrains", te.Name, te); err != nil {
			return err
		}
	}
	return nil
}

// ImportAgents validates and upserts an agent population config.
func (im *Importer) ImportAgents(ac config.AgentsConfig) error {
	if err := ac.Validate(); err != nil {
		return err
	}
	return im.upsert("agent_configs", ac.Name, ac)
}

// upsert serializes v to JSON and replaces the row keyed by name, giving
// the import idempotence: re-running the same bundle overwrites, never
// duplicates.
func (im *Importer) upsert(table, name string, v interface{}) error {
	body, err := json.Marshal(v)
	if err != nil {
		return errs.Wrap(errs.ErrBadConfig, "marshaling %s/%s: %v", table, name, err)
	}
	q := fmt.Sprintf(`insert into %s (name, body) values (?, ?) on conflict(name) do update set body = excluded.body`, table)
	if _, err := im.db.Exec(q, name, string(body)); err != nil {
		return errs.Wrap(errs.ErrBadConfig, "upserting %s/%s: %v", table, name, err)
	}
	return nil
}

// FetchScenario reads back a previously imported scenario config by name.
func (im *Importer) FetchScenario(name string) (config.ScenarioConfig, error) {
	var body string
	if err := im.db.Get(&body, `select body from scenarios where name = ?`, name); err != nil {
		return config.ScenarioConfig{}, errs.Wrap(errs.ErrBadConfig, "fetching scenario %s: %v", name, err)
	}
	var sc config.ScenarioConfig
	if err := json.Unmarshal([]byte(body), &sc); err != nil {
		return config.ScenarioConfig{}, errs.Wrap(errs.ErrBadConfig, "decoding scenario %s: %v", name, err)
	}
	return sc, nil
}

// FetchAgents reads back a previously imported agent config by name.
func (im *Importer) FetchAgents(name string) (config.AgentsConfig, error) {
	var body string
	if err := im.db.Get(&body, `select body from agent_configs where name = ?`, name); err != nil {
		return config.AgentsConfig{}, errs.Wrap(errs.ErrBadConfig, "fetching agent config %s: %v", name, err)
	}
	var ac config.AgentsConfig
	if err := json.Unmarshal([]byte(body), &ac); err != nil {
		return config.AgentsConfig{}, errs.Wrap(errs.ErrBadConfig, "decoding agent config %s: %v", name, err)
	}
	return ac, nil
}
