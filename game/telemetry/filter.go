package telemetry

import "encoding/json"

// Filter selects bus records by entity and kind. Empty fields match all.
type Filter struct {
	EntityID string `json:"entity,omitempty"`
	Kind     string `json:"kind,omitempty"`
}

// Match decodes just enough of a bus payload to test it and returns the
// record kind.
func (f Filter) Match(payload string) (kind string, ok bool) {
	var head struct {
		EntityID string `json:"entity_id"`
		Kind     string `json:"kind"`
	}
	if err := json.Unmarshal([]byte(payload), &head); err != nil {
		return "", false
	}
	if f.EntityID != "" && head.EntityID != f.EntityID {
		return "", false
	}
	if f.Kind != "" && head.Kind != f.Kind {
		return "", false
	}
	return head.Kind, true
}
