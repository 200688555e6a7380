package objsync

import (
	"encoding/json"
)

// Trace reports what every layer yields for one property, strongest first.
type Trace struct {
	Path   string       `json:"path"`
	Layers []Provenance `json:"layers"`
}

// Provenance is the contribution of one layer to a traced property.
type Provenance struct {
	Scope      Scope  `json:"scope"`
	SnapshotID string `json:"snapshot_id,omitempty"`
	// Path is the data path the layer read, which differs from the property
	// when the layer maps it.
	Path  string `json:"path"`
	Value any    `json:"value,omitempty"`
	Found bool   `json:"found"`
}

// Effective returns the layer whose value the resolver uses.
func (t Trace) Effective() (Provenance, bool) {
	for _, layer := range t.Layers {
		if layer.Found {
			return layer, true
		}
	}
	return Provenance{}, false
}

// Shadowed returns the weaker layers that define the property but lose to
// the effective one.
func (t Trace) Shadowed() []Provenance {
	var out []Provenance
	winner := false
	for _, layer := range t.Layers {
		if !layer.Found {
			continue
		}
		if !winner {
			winner = true
			continue
		}
		out = append(out, layer)
	}
	return out
}

// ToJSON encodes the trace for logs and CLI output.
func (t Trace) ToJSON() ([]byte, error) {
	return json.Marshal(t)
}

// TraceFromJSON decodes a payload produced by ToJSON. Numbers decode as
// float64.
func TraceFromJSON(payload []byte) (Trace, error) {
	var trace Trace
	if err := json.Unmarshal(payload, &trace); err != nil {
		return Trace{}, err
	}
	return trace, nil
}
