// Package model constructs a Scenario and its Population from config, runs
// the tick loop, and emits per-iteration snapshots plus the end-of-run
// agent metadata summary.
package model

import (
	"math/rand"
	"strings"

	"epidemsim/internal/agent"
	"epidemsim/internal/config"
	"epidemsim/internal/scenario"
)

// Snapshot is one recorded iteration: a Unix timestamp plus the N-agent
// (x, y, z, status) frame spec.md §4.6 describes.
type Snapshot struct {
	Timestamp int64
	Agents    [][4]int16 // per-agent (x, y, z, status_value)
	Virus     []int16    // flattened viral grid, present only when SaveVerbose
}

// AgentSummary is one row of the end-of-run agent_info table.
type AgentSummary struct {
	Age             int
	Sex             string
	LongCovid       bool
	PreventionIndex float64
	Mask            string
	Vax             string
	Infected        bool
	Hospitalized    bool
	Deceased        bool
	Capacity        int
}

// Model owns the Scenario and its Population for the duration of one run.
type Model struct {
	Scenario *scenario.Scenario
	Agents   []*agent.Agent
	Cfg      config.Config

	rng *rand.Rand
}

// New builds a Scenario and population from a validated config. rng drives
// every stochastic draw in construction and simulation, letting callers
// fix a seed for deterministic batch runs.
func New(cfg config.Config, rng *rand.Rand) (*Model, error) {
	sc, err := scenario.Load(cfg.Scenario)
	if err != nil {
		return nil, err
	}
	if err := sc.BuildPathfinder(); err != nil {
		return nil, err
	}

	m := &Model{Scenario: sc, Cfg: cfg, rng: rng}

	for i := 0; i < cfg.Agents.RandomAgents; i++ {
		spec := cfg.Agents.Default
		spec.Info.Urgency = 0.75 + rng.Float64()*0.24
		a, err := m.newAgent(spec)
		if err != nil {
			return nil, err
		}
		m.Agents = append(m.Agents, a)
	}
	for i := 0; i < cfg.Agents.RandomInfected && i < len(m.Agents); i++ {
		m.Agents[i].Infect()
	}

	for _, override := range cfg.Agents.Custom {
		spec, err := config.MergeCustom(cfg.Agents.Default, override)
		if err != nil {
			return nil, err
		}
		a, err := m.newAgent(spec)
		if err != nil {
			return nil, err
		}
		m.Agents = append(m.Agents, a)
	}

	return m, nil
}

func (m *Model) newAgent(spec config.AgentSpec) (*agent.Agent, error) {
	a, err := agent.New(m.Scenario, spec.Info, spec.State, m.rng)
	if err != nil {
		return nil, err
	}
	a.SetPreventionIndex(m.Scenario.Prevention.Index(spec.Info.MaskType, spec.Info.VaxType, spec.Info.VaxDoses))
	return a, nil
}

// Step runs one recorded iteration: save_resolution sub-ticks of
// (every agent's Move, then Scenario.Ventilate), followed by advancing the
// simulated clock by t_step seconds.
func (m *Model) Step() error {
	for i := 0; i < m.Cfg.Scenario.Sim.SaveResolution; i++ {
		for _, a := range m.Agents {
			if err := a.Move(); err != nil {
				return err
			}
		}
		m.Scenario.Ventilate()
	}
	m.Scenario.Advance()
	return nil
}

// Snapshot captures the current frame: every agent's (x, y, z, status) plus
// the viral grid when save_verbose is set.
func (m *Model) Snapshot(timestamp int64) Snapshot {
	frame := make([][4]int16, len(m.Agents))
	for i, a := range m.Agents {
		frame[i] = [4]int16{int16(a.Pos.X), int16(a.Pos.Y), int16(a.Pos.Z), int16(a.Status)}
	}
	snap := Snapshot{Timestamp: timestamp, Agents: frame}
	if m.Cfg.Scenario.Sim.SaveVerbose {
		grid := make([]int16, len(m.Scenario.Field.Grid))
		for i, v := range m.Scenario.Field.Grid {
			grid[i] = int16(v)
		}
		snap.Virus = grid
	}
	return snap
}

// SummarizeAgents builds the end-of-run agent_info rows.
func (m *Model) SummarizeAgents() []AgentSummary {
	out := make([]AgentSummary, len(m.Agents))
	capacity := len(m.Agents)
	for i, a := range m.Agents {
		sex := "M"
		if m.rng.Intn(2) == 1 {
			sex = "F"
		}
		out[i] = AgentSummary{
			Age:             a.Age,
			Sex:             sex,
			LongCovid:       a.LongCovid,
			PreventionIndex: a.PreventionIndex,
			Mask:            maskLabel(a.Info.MaskType),
			Vax:             vaxLabel(a.Info.VaxType, a.Info.VaxDoses),
			Infected:        a.Infected,
			Hospitalized:    a.Hospitalized,
			Deceased:        a.Deceased,
			Capacity:        capacity,
		}
	}
	return out
}

func maskLabel(maskType string) string {
	if maskType == "" || maskType == "NONE" {
		return "nomask"
	}
	return strings.ToLower(maskType)
}

func vaxLabel(vaxType string, doses int) string {
	switch doses {
	case 0:
		return "novax"
	case 1:
		return "1dose"
	default:
		return strings.ToLower(vaxType)
	}
}
