package config

import (
	"bytes"
	"encoding/json"
	"os"

	"epidemsim/internal/errs"
)

// Load reads and validates a scenario/agent configuration file. Unknown
// top-level keys anywhere in the typed portion of the schema are rejected;
// the "custom" agent overrides are checked separately in Validate since
// they are decoded as free-form maps to support one-level dict-merge.
func Load(path string) (*Config, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, errs.Wrap(errs.ErrBadConfig, "reading config %s: %v", path, err)
	}
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.DisallowUnknownFields()
	var cfg Config
	if err := dec.Decode(&cfg); err != nil {
		return nil, errs.Wrap(errs.ErrBadConfig, "parsing config %s: %v", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}
