package config

import (
	"epidemsim/internal/errs"
)

// knownAgentSpecKeys bounds the one-level-deep dict-merge performed on
// "custom" agent overrides: only "info" and "state" may appear at the top,
// and only known sub-keys may appear within each.
var knownAgentSpecKeys = map[string]map[string]bool{
	"info": {
		"mask_type": true, "vax_type": true, "vax_doses": true, "age": true,
		"start_zone": true, "work_zone": true, "home_zone": true,
		"schedule": true, "access_level": true, "urgency": true,
	},
	"state": {"x": true, "y": true, "status": true},
}

// Validate checks a TerrainEntry's name and hex color against their
// required patterns.
func (t TerrainEntry) Validate() error {
	if !slugPattern.MatchString(t.Name) {
		return errs.Wrap(errs.ErrBadConfig, "terrain name %q does not match slug pattern", t.Name)
	}
	if !hexPattern.MatchString(t.Hex) {
		return errs.Wrap(errs.ErrBadConfig, "terrain %q has malformed hex color %q", t.Name, t.Hex)
	}
	return nil
}

// Validate checks the simulation setup record's bounds and sub-records.
func (s SimConfig) Validate() error {
	if s.Mapfile == "" {
		return errs.Wrap(errs.ErrBadConfig, "sim.mapfile is required")
	}
	if s.XYScale < 1 {
		return errs.Wrap(errs.ErrBadConfig, "sim.xy_scale must be >= 1, got %f", s.XYScale)
	}
	if s.TStep < 1 {
		return errs.Wrap(errs.ErrBadConfig, "sim.t_step must be >= 1, got %f", s.TStep)
	}
	if s.SaveResolution < 1 {
		return errs.Wrap(errs.ErrBadConfig, "sim.save_resolution must be >= 1, got %d", s.SaveResolution)
	}
	if s.MaxIter < 1 {
		return errs.Wrap(errs.ErrBadConfig, "sim.max_iter must be >= 1, got %d", s.MaxIter)
	}
	if len(s.Terrain) == 0 {
		return errs.Wrap(errs.ErrBadConfig, "sim.terrain must list at least one entry")
	}
	for _, t := range s.Terrain {
		if err := t.Validate(); err != nil {
			return err
		}
	}
	return nil
}

func unitInterval(name string, v float64) error {
	if v < 0 || v > 1 {
		return errs.Wrap(errs.ErrBadConfig, "%s must be within [0,1], got %f", name, v)
	}
	return nil
}

// Validate checks the virus's rate parameters are in [0,1].
func (v VirusConfig) Validate() error {
	if err := unitInterval("virus.attack_rate", v.AttackRate); err != nil {
		return err
	}
	if err := unitInterval("virus.infection_rate", v.InfectionRate); err != nil {
		return err
	}
	if err := unitInterval("virus.fatality_rate", v.FatalityRate); err != nil {
		return err
	}
	return nil
}

// Validate checks every mask/vax efficacy value is within [0,1].
func (p PreventionConfig) Validate() error {
	for name, v := range p.Mask {
		if err := unitInterval("prevention.mask."+name, v); err != nil {
			return err
		}
	}
	for name, doses := range p.Vax {
		for i, v := range doses {
			if err := unitInterval("prevention.vax."+name, v); err != nil {
				return errs.Wrap(errs.ErrBadConfig, "prevention.vax.%s[%d]=%f out of range", name, i, v)
			}
		}
	}
	return nil
}

// Validate checks the composed scenario record.
func (s ScenarioConfig) Validate() error {
	if err := s.Sim.Validate(); err != nil {
		return err
	}
	if err := s.Virus.Validate(); err != nil {
		return err
	}
	if err := s.Prevention.Validate(); err != nil {
		return err
	}
	return nil
}

// Validate checks the agent population spec.
func (a AgentsConfig) Validate() error {
	if a.RandomAgents < 0 {
		return errs.Wrap(errs.ErrBadConfig, "agents.random_agents must be >= 0")
	}
	if a.RandomInfected < 0 || a.RandomInfected > a.RandomAgents {
		return errs.Wrap(errs.ErrBadConfig, "agents.random_infected must be within [0, random_agents]")
	}
	for i, custom := range a.Custom {
		for topKey, sub := range custom {
			allowed, ok := knownAgentSpecKeys[topKey]
			if !ok {
				return errs.Wrap(errs.ErrBadConfig, "custom[%d] has unknown top-level key %q", i, topKey)
			}
			subMap, ok := sub.(map[string]interface{})
			if !ok {
				return errs.Wrap(errs.ErrBadConfig, "custom[%d].%s must be an object", i, topKey)
			}
			for k := range subMap {
				if !allowed[k] {
					return errs.Wrap(errs.ErrBadConfig, "custom[%d].%s has unknown key %q", i, topKey, k)
				}
			}
		}
	}
	return nil
}

// Validate checks the whole configuration document.
func (c Config) Validate() error {
	if err := c.Scenario.Validate(); err != nil {
		return err
	}
	if err := c.Agents.Validate(); err != nil {
		return err
	}
	return nil
}
