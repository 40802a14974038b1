package config

import (
	"encoding/json"

	"epidemsim/internal/errs"
)

// MergeCustom applies a one-level-deep dict-merge of a "custom" agent
// override onto a copy of the default spec: each top-level key present in
// override ("info" or "state") has its sub-keys written over the
// corresponding sub-keys of the default, leaving sibling sub-keys
// untouched.
func MergeCustom(base AgentSpec, override map[string]interface{}) (AgentSpec, error) {
	baseBytes, err := json.Marshal(base)
	if err != nil {
		return AgentSpec{}, errs.Wrap(errs.ErrBadConfig, "marshaling default agent spec: %v", err)
	}
	var baseMap map[string]interface{}
	if err := json.Unmarshal(baseBytes, &baseMap); err != nil {
		return AgentSpec{}, errs.Wrap(errs.ErrBadConfig, "unmarshaling default agent spec: %v", err)
	}
	for topKey, sub := range override {
		subMap, ok := sub.(map[string]interface{})
		if !ok {
			return AgentSpec{}, errs.Wrap(errs.ErrBadConfig, "custom.%s must be an object", topKey)
		}
		target, ok := baseMap[topKey].(map[string]interface{})
		if !ok {
			target = map[string]interface{}{}
		}
		for k, v := range subMap {
			target[k] = v
		}
		baseMap[topKey] = target
	}
	mergedBytes, err := json.Marshal(baseMap)
	if err != nil {
		return AgentSpec{}, errs.Wrap(errs.ErrBadConfig, "marshaling merged agent spec: %v", err)
	}
	var merged AgentSpec
	if err := json.Unmarshal(mergedBytes, &merged); err != nil {
		return AgentSpec{}, errs.Wrap(errs.ErrBadConfig, "unmarshaling merged agent spec: %v", err)
	}
	return merged, nil
}
