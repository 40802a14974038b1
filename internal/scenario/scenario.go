// Package scenario assembles the terrain masks, path graph/pathfinder, and
// viral field into one Scenario state object: the single read-mostly handle
// Agents and the Model query and (for the viral field) mutate.
package scenario

import (
	"math"
	"math/rand"
	"strings"
	"time"

	"epidemsim/internal/config"
	"epidemsim/internal/errs"
	"epidemsim/internal/grid"
	"epidemsim/internal/pathfinder"
	"epidemsim/internal/pathgraph"
	"epidemsim/internal/terrain"
	"epidemsim/internal/viral"
)

// epoch is the fixed reference start-of-day spec.md §3 requires so that
// schedule-driven behavior is reproducible across runs: 2024-05-01 07:00.
var epoch = time.Date(2024, time.May, 1, 7, 0, 0, 0, time.UTC)

// Prevention resolves a mask/vax pair to a combined prevention index.
type Prevention struct {
	Mask map[string]float64
	Vax  map[string][]float64
}

// Index computes v[doses] + (1-v[doses])*m for the given mask/vax identity.
func (p Prevention) Index(maskType, vaxType string, doses int) float64 {
	m := p.Mask[maskType]
	var v float64
	if doses2, ok := p.Vax[vaxType]; ok && doses >= 0 && doses < len(doses2) {
		v = doses2[doses]
	}
	return v + (1-v)*m
}

// Scenario owns the masks, classic graph, optimized pathfinder cache, and
// viral field for one run, plus the simulated wall clock that drives
// schedule checks. The clock and virus parameters are read through methods
// so that *Scenario satisfies agent.ScenarioView without exposing mutable
// fields directly to agent code.
type Scenario struct {
	Shape grid.Shape
	Masks map[string]*grid.Mask3D
	Idxs  map[string][]grid.Cell

	Classic    *pathgraph.Graph
	Optimized  *pathfinder.Table // nil until built or loaded
	Field      *viral.Field
	Prevention Prevention

	FatalityRate float64 // carried from config; not consulted by recover()

	attackRate    float64
	infectionRate float64
	tStep         float64
	decayFactor   float64
	sigma         float64

	now           time.Time
	nowHHMM       string
	checkSchedule bool
}

// Load builds a Scenario from a scenario config record and its backing map
// assets; the optimized pathfinder is left nil (callers attach a loaded
// cache via AttachPathfinder or build one with BuildPathfinder).
func Load(sc config.ScenarioConfig) (*Scenario, error) {
	loaded, err := terrain.Load(sc.Sim.Mapfile, sc.Sim.Terrain)
	if err != nil {
		return nil, err
	}

	valid := loaded.Masks[terrain.ValidName]
	barrier := loaded.Masks[terrain.BarrierName]
	stairs := loaded.Masks["STAIRS"]
	if stairs == nil {
		stairs = loaded.Masks["stairs"]
	}
	transit := loaded.Masks[terrain.TransitNodesName]

	classic := pathgraph.New(loaded.Shape, valid, stairs, transit)
	field := viral.New(loaded.Shape, barrier)

	return &Scenario{
		Shape: loaded.Shape,
		Masks: loaded.Masks,
		Idxs:  loaded.MaskIdxs,

		Classic: classic,
		Field:   field,
		Prevention: Prevention{
			Mask: sc.Prevention.Mask,
			Vax:  sc.Prevention.Vax,
		},
		FatalityRate: sc.Virus.FatalityRate,

		attackRate:    sc.Virus.AttackRate,
		infectionRate: sc.Virus.InfectionRate,
		tStep:         sc.Sim.TStep,
		decayFactor:   decayFactor(sc.Sim.TStep),
		sigma:         0.459,

		now:           epoch,
		nowHHMM:       epoch.Format("15:04"),
		// True on construction so the very first Move can consult a
		// schedule entry keyed at the scenario's own start time.
		checkSchedule: true,
	}, nil
}

// decayFactor implements spec.md §3: 0.15^(t_step / (3*3600)).
func decayFactor(tStep float64) float64 {
	return math.Pow(0.15, tStep/(3*3600))
}

// AttachPathfinder installs a precomputed optimized pathfinder, typically
// loaded from a cache file by the caller.
func (s *Scenario) AttachPathfinder(t *pathfinder.Table) {
	s.Optimized = t
}

// BuildPathfinder precomputes an optimized pathfinder over the scenario's
// own VALID/transit masks when no cache was supplied.
func (s *Scenario) BuildPathfinder() error {
	valid, ok := s.Masks[terrain.ValidName]
	if !ok {
		return errs.Wrap(errs.ErrUnknownZone, "scenario has no VALID mask")
	}
	var transit []grid.Cell
	if t, ok := s.Masks[terrain.TransitNodesName]; ok {
		transit = t.Indices()
	}
	table, err := pathfinder.Build(s.Classic, valid.Indices(), transit)
	if err != nil {
		return err
	}
	s.Optimized = table
	return nil
}

// Pathfind queries the optimized pathfinder when present, falling back to
// the classic graph otherwise.
func (s *Scenario) Pathfind(start, end grid.Cell) ([]grid.Cell, error) {
	if s.Optimized != nil {
		return s.Optimized.Pathfind(start, end)
	}
	return s.Classic.Pathfind(start, end)
}

// ZoneMask resolves a zone keyword or terrain name to its mask, erroring
// with ErrUnknownZone if absent. An uppercase keyword such as "EXIT" falls
// back to the lowercase terrain name it stands for.
func (s *Scenario) ZoneMask(zone string) (*grid.Mask3D, error) {
	m, ok := s.Masks[zone]
	if !ok {
		m, ok = s.Masks[strings.ToLower(zone)]
	}
	if !ok {
		return nil, errs.Wrap(errs.ErrUnknownZone, "unknown zone %q", zone)
	}
	return m, nil
}

// RandomCellInZone picks a uniformly random cell from the named zone's
// index list, with the same lowercase fallback as ZoneMask.
func (s *Scenario) RandomCellInZone(zone string, rng *rand.Rand) (grid.Cell, error) {
	idxs, ok := s.Idxs[zone]
	if !ok {
		idxs, ok = s.Idxs[strings.ToLower(zone)]
	}
	if !ok || len(idxs) == 0 {
		return grid.Cell{}, errs.Wrap(errs.ErrUnknownZone, "zone %q has no cells", zone)
	}
	return idxs[rng.Intn(len(idxs))], nil
}

// VirusLevel reads the viral concentration at c.
func (s *Scenario) VirusLevel(c grid.Cell) float64 {
	return s.Field.Level(c)
}

// Contaminate is the only mutation an Agent is permitted to perform on the
// Scenario: depositing viral load at its own position.
func (s *Scenario) Contaminate(c grid.Cell, amount float64) {
	s.Field.Contaminate(c, amount)
}

// Ventilate advances the viral field by one sub-tick of diffusion/decay.
func (s *Scenario) Ventilate() {
	s.Field.Ventilate(s.sigma, s.decayFactor, viral.Scale)
}

// Advance moves the simulated clock forward by t_step seconds and flips
// CheckSchedule iff the HH:MM minute field changed.
func (s *Scenario) Advance() {
	prev := s.nowHHMM
	s.now = s.now.Add(time.Duration(s.tStep) * time.Second)
	s.nowHHMM = s.now.Format("15:04")
	s.checkSchedule = prev != s.nowHHMM
}

// Now returns the simulated wall clock.
func (s *Scenario) Now() time.Time { return s.now }

// NowHHMM returns the simulated clock's current "HH:MM" field.
func (s *Scenario) NowHHMM() string { return s.nowHHMM }

// CheckSchedule reports whether the minute field advanced on the last Advance.
func (s *Scenario) CheckSchedule() bool { return s.checkSchedule }

// TStep returns the configured sub-tick duration in seconds.
func (s *Scenario) TStep() float64 { return s.tStep }

// AttackRate returns the virus's per-exposure attack rate.
func (s *Scenario) AttackRate() float64 { return s.attackRate }

// InfectionRate returns the virus's base infection rate, used to resolve an
// UNKNOWN agent's initial status at construction.
func (s *Scenario) InfectionRate() float64 { return s.infectionRate }

// DecayFactor returns the viral field's per-sub-tick decay multiplier.
func (s *Scenario) DecayFactor() float64 { return s.decayFactor }
