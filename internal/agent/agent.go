// Package agent implements the per-agent state machine: construction,
// schedule-driven movement, droplet-based infection, and the SIR recovery
// progression of spec.md §4.5.
package agent

import (
	"math"
	"math/rand"
	"time"

	"epidemsim/internal/config"
	"epidemsim/internal/errs"
	"epidemsim/internal/grid"
	"epidemsim/internal/stochastic"
	"epidemsim/internal/viral"
)

// ScenarioView is the read-mostly handle an Agent holds on its owning
// Scenario, plus the one mutation an Agent is allowed to perform
// (Contaminate). Breaks the Agent<->Scenario reference cycle: the Model
// owns the concrete Scenario and outlives every Agent.
type ScenarioView interface {
	Now() time.Time
	NowHHMM() string
	CheckSchedule() bool
	TStep() float64
	AttackRate() float64
	InfectionRate() float64
	Pathfind(start, end grid.Cell) ([]grid.Cell, error)
	RandomCellInZone(zone string, rng *rand.Rand) (grid.Cell, error)
	ZoneMask(zone string) (*grid.Mask3D, error)
	VirusLevel(c grid.Cell) float64
	Contaminate(c grid.Cell, amount float64)
}

// timers holds the recovery/quarantine schedule decided by recover()'s
// phase A, nil until assigned.
type timers struct {
	recovery   time.Time
	quarantine time.Time
}

// Agent is one simulated occupant: its fixed identity (info, fixed rolls)
// plus mutable state (status, position, path queue, recovery timers).
type Agent struct {
	Info config.AgentInfo

	Status Status
	Pos    grid.Cell
	Path   []grid.Cell // FIFO queue; head is Path[0]

	Age             int
	Susceptibility  float64
	Severity        float64
	PreventionIndex float64

	Deceased     bool
	Hospitalized bool
	LongCovid    bool
	Infected     bool // ever became infected, for end-of-run summary

	dt               *timers
	lastScheduleTick string // HH:MM at which set_task was last triggered by schedule

	scenario ScenarioView
	rng      *rand.Rand
}

// New constructs an agent from its config spec, resolving an UNKNOWN status
// probabilistically and sampling its fixed SIR rolls.
func New(sv ScenarioView, info config.AgentInfo, state config.AgentStateSpec, rng *rand.Rand) (*Agent, error) {
	a := &Agent{
		Info:     info,
		scenario: sv,
		rng:      rng,
	}

	status, err := ParseStatus(state.Status)
	if err != nil {
		return nil, err
	}
	if status == Unknown {
		if stochastic.Roll(rng, sv.InfectionRate()) {
			status = Infected
		} else {
			status = Susceptible
		}
	}
	a.Status = status
	if status == Infected {
		a.Infected = true
	}

	pos, err := sv.RandomCellInZone(info.StartZone, rng)
	if err != nil {
		return nil, err
	}
	if state.X != nil && state.Y != nil {
		pos = grid.Cell{X: *state.X, Y: *state.Y, Z: pos.Z}
	}
	a.Pos = pos

	age := info.Age
	if age == nil {
		sampled := stochastic.SampleAge(rng)
		age = &sampled
	}
	a.Age = *age
	a.Susceptibility = stochastic.SampleSusceptibility(rng, a.Age)
	a.Severity = stochastic.SampleSeverity(rng, a.Age)

	return a, nil
}

// ParseStatus maps a config status string to a Status value.
func ParseStatus(s string) (Status, error) {
	switch s {
	case "", "UNKNOWN":
		return Unknown, nil
	case "SUSCEPTIBLE":
		return Susceptible, nil
	case "INFECTED":
		return Infected, nil
	case "RECOVERED":
		return Recovered, nil
	case "QUARANTINED":
		return Quarantined, nil
	case "DECEASED":
		return Deceased, nil
	case "HOSPITALIZED":
		return Hospitalized, nil
	default:
		return Unknown, errs.Wrap(errs.ErrBadConfig, "unknown agent status %q", s)
	}
}

// SetPreventionIndex stores the combined mask/vax protection computed by
// the caller (the Model, which owns the Prevention table).
func (a *Agent) SetPreventionIndex(idx float64) {
	a.PreventionIndex = idx
}

// Move runs one sub-tick of agent behavior per spec.md §4.5.
func (a *Agent) Move() error {
	if a.Status.Contagious() {
		a.recover()
	}

	if a.Status != Quarantined && a.Status != Hospitalized && a.Status != Deceased && a.scenario.CheckSchedule() {
		if zone, ok := a.Info.Schedule[a.scenario.NowHHMM()]; ok && a.lastScheduleTick != a.scenario.NowHHMM() {
			a.lastScheduleTick = a.scenario.NowHHMM()
			if err := a.SetTaskZone(zone); err != nil {
				return err
			}
		}
	}

	switch {
	case len(a.Path) > 0:
		a.Pos = a.Path[0]
		a.Path = a.Path[1:]
	case a.inZone("EXIT"):
		return nil // agent has left the simulation; no further motion
	case a.inZone(a.Info.HomeZone):
		if err := a.SetTaskWait(300 / a.scenario.TStep()); err != nil {
			return err
		}
	default:
		if stochastic.Roll(a.rng, 0.5) {
			if err := a.SetTaskZone("OPEN"); err != nil {
				return err
			}
		} else if err := a.SetTaskWait(300 / a.scenario.TStep()); err != nil {
			return err
		}
	}

	if a.Status == Susceptible && a.scenario.VirusLevel(a.Pos) > 1 {
		a.dropletExpose(a.scenario.VirusLevel(a.Pos))
	}
	if a.Status.Contagious() {
		a.dropletSpread()
	}
	return nil
}

func (a *Agent) inZone(zone string) bool {
	m, err := a.scenario.ZoneMask(zone)
	if err != nil {
		return false
	}
	return m.At(a.Pos)
}

// SetTaskWait pushes wait copies of the agent's current position onto its
// path, holding it in place for that many sub-ticks.
func (a *Agent) SetTaskWait(wait float64) error {
	n := int(wait)
	for i := 0; i < n; i++ {
		a.Path = append(a.Path, a.Pos)
	}
	return nil
}

// SetTaskZone resolves a zone keyword to a target cell, pathfinds to it,
// and appends a randomized dwell at the destination.
func (a *Agent) SetTaskZone(zone string) error {
	resolved := zone
	switch zone {
	case "WORK":
		resolved = a.Info.WorkZone
	case "HOME":
		resolved = a.Info.HomeZone
	}

	target, err := a.scenario.RandomCellInZone(resolved, a.rng)
	if err != nil {
		return err
	}
	path, err := a.scenario.Pathfind(a.Pos, target)
	if err != nil {
		return err
	}
	a.Path = append(a.Path, path...)

	waitTimeBase := 3600.0
	if zone == "OPEN" {
		waitTimeBase = 300.0
	}
	waitTime := waitTimeBase / a.scenario.TStep()
	dwell := int(math.Ceil(waitTime * (0.5 + a.rng.Float64()*0.5)))
	for i := 0; i < dwell; i++ {
		a.Path = append(a.Path, target)
	}
	return nil
}

// dropletExpose converts ambient viral level at the agent's cell into an
// infection probability and rolls it.
func (a *Agent) dropletExpose(level float64) {
	p := a.scenario.AttackRate() * (level / viral.Scale) * (a.scenario.TStep() / 3600) * a.Susceptibility
	if stochastic.Roll(a.rng, p) {
		a.Infect()
	}
}

// dropletSpread deposits viral load at the agent's current cell, scaled by
// how much of it this agent's own prevention measures block.
func (a *Agent) dropletSpread() {
	a.scenario.Contaminate(a.Pos, viral.Scale*(1-a.PreventionIndex))
}

// Infect rolls the agent's own prevention index against a fresh exposure;
// used both by droplet-based exposure and by the Model seeding its initial
// infected population.
func (a *Agent) Infect() {
	if stochastic.Uniform(a.rng) > a.PreventionIndex {
		a.Status = Infected
		a.Infected = true
	}
}

// recover runs the two-phase SIR progression of spec.md §4.5.
func (a *Agent) recover() {
	now := a.scenario.Now()

	if a.dt == nil {
		a.dt = &timers{}

		var nDaysQ float64
		if stochastic.Roll(a.rng, 0.17) {
			nDaysQ = 100
		} else {
			nDaysQ = stochastic.LogNormal(a.rng, stochastic.RecoveryPresymptomatic[0], stochastic.RecoveryPresymptomatic[1])
		}

		var nDaysR float64
		switch {
		case stochastic.Roll(a.rng, 0.02):
			a.Deceased = true
			nDaysR = -1
			nDaysQ = stochastic.LogNormal(a.rng, stochastic.RecoveryPresymptomatic[0], stochastic.RecoveryPresymptomatic[1])
		case stochastic.Roll(a.rng, 0.30*a.Severity):
			a.Hospitalized = true
			nDaysR = stochastic.LogNormal(a.rng, stochastic.RecoverySevere[0], stochastic.RecoverySevere[1])
			nDaysQ = stochastic.LogNormal(a.rng, stochastic.RecoveryPresymptomatic[0], stochastic.RecoveryPresymptomatic[1])
		default:
			nDaysR = stochastic.LogNormal(a.rng, stochastic.RecoveryMild[0], stochastic.RecoveryMild[1])
		}

		if stochastic.Roll(a.rng, 0.16) {
			nDaysR *= 3
			a.LongCovid = true
		}

		a.dt.recovery = now.Add(time.Duration(nDaysR * float64(24*time.Hour)))
		a.dt.quarantine = now.Add(time.Duration(nDaysQ * float64(24*time.Hour)))
		return
	}

	if !now.Before(a.dt.quarantine) {
		switch {
		case a.Hospitalized:
			a.Status = Hospitalized
			_ = a.SetTaskZone("EXIT")
		case a.Deceased:
			a.Status = Deceased
			_ = a.SetTaskZone("EXIT")
		case a.Status != Quarantined:
			a.Status = Quarantined
			_ = a.SetTaskZone("HOME")
		}
	}
	if !now.Before(a.dt.recovery) && !a.Deceased {
		a.Status = Recovered
	}
}
