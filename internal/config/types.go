// Package config defines the typed shapes of the scenario/agent/virus/
// prevention JSON configuration contract and validates them at load time.
package config

import "regexp"

var slugPattern = regexp.MustCompile(`^[a-z][a-z0-9_]*$`)
var hexPattern = regexp.MustCompile(`^#[0-9a-fA-F]{6}$`)

// TerrainEntry names a pixel-color category on the building raster.
type TerrainEntry struct {
	Name        string  `json:"name"`
	Hex         string  `json:"hex"`
	Walkable    bool    `json:"walkable"`
	Restricted  bool    `json:"restricted"`
	Interactive bool    `json:"interactive"`
	Material    string  `json:"material,omitempty"`
	Access      int     `json:"access"`
}

// SimConfig is the "simulation setup" record of spec.md §3.
type SimConfig struct {
	Name           string         `json:"name"`
	Mapfile        string         `json:"mapfile"`
	XYScale        float64        `json:"xy_scale"`
	TStep          float64        `json:"t_step"`
	SaveResolution int            `json:"save_resolution"`
	MaxIter        int            `json:"max_iter"`
	SaveVerbose    bool           `json:"save_verbose"`
	Terrain        []TerrainEntry `json:"terrain"`
}

// VirusConfig carries the virus's transmission parameters.
type VirusConfig struct {
	Name          string  `json:"name"`
	AttackRate    float64 `json:"attack_rate"`
	InfectionRate float64 `json:"infection_rate"`
	FatalityRate  float64 `json:"fatality_rate"`
}

// PreventionConfig maps mask/vaccine identifiers to protective efficacy.
type PreventionConfig struct {
	Name string               `json:"name"`
	Mask map[string]float64   `json:"mask"`
	Vax  map[string][]float64 `json:"vax"`
}

// ScenarioConfig composes the sim/virus/prevention sub-records.
type ScenarioConfig struct {
	Sim        SimConfig        `json:"sim"`
	Virus      VirusConfig      `json:"virus"`
	Prevention PreventionConfig `json:"prevention"`
}

// AgentInfo is the fixed, config-driven portion of an agent's identity.
type AgentInfo struct {
	MaskType    string            `json:"mask_type"`
	VaxType     string            `json:"vax_type"`
	VaxDoses    int               `json:"vax_doses"`
	Age         *int              `json:"age,omitempty"`
	StartZone   string            `json:"start_zone"`
	WorkZone    string            `json:"work_zone"`
	HomeZone    string            `json:"home_zone"`
	Schedule    map[string]string `json:"schedule"`
	AccessLevel int               `json:"access_level"`
	Urgency     float64           `json:"urgency"`
}

// AgentStateSpec is the seed state for an agent, per spec.md §6 AgentSpec.
type AgentStateSpec struct {
	X      *int   `json:"x,omitempty"`
	Y      *int   `json:"y,omitempty"`
	Status string `json:"status"`
}

// AgentSpec is the full per-agent specification.
type AgentSpec struct {
	Info  AgentInfo      `json:"info"`
	State AgentStateSpec `json:"state"`
}

// AgentsConfig is the top-level "agents" record of the config file.
type AgentsConfig struct {
	Name           string                   `json:"name"`
	Default        AgentSpec                `json:"default"`
	RandomAgents   int                      `json:"random_agents"`
	RandomInfected int                      `json:"random_infected"`
	Custom         []map[string]interface{} `json:"custom"`
}

// Config is the root of the JSON configuration contract of spec.md §6.
type Config struct {
	Scenario ScenarioConfig `json:"scenario"`
	Agents   AgentsConfig   `json:"agents"`
}
