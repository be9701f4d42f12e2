package workflow

import (
	"bytes"
	"encoding/json"
)

var knownNodeFields = map[string]bool{
	"id": true, "type": true, "position": true, "params": true,
	"parent_id": true, "muted": true,
}

var knownEdgeFields = map[string]bool{
	"id": true, "source": true, "source_port": true, "target": true,
	"target_port": true, "is_back_edge": true,
}

var knownWorkflowFields = map[string]bool{
	"name": true, "nodes": true, "edges": true,
}

// UnmarshalJSON decodes a node while stashing any field it does not
// recognize into Extra, so that re-encoding preserves it.
func (n *Node) UnmarshalJSON(data []byte) error {
	type shape struct {
		ID       string         `json:"id"`
		Type     string         `json:"type"`
		Position Position       `json:"position"`
		Params   map[string]any `json:"params,omitempty"`
		ParentID *string        `json:"parent_id,omitempty"`
		Muted    bool           `json:"muted,omitempty"`
	}
	var s shape
	// params decodes through a Decoder with UseNumber so a param's numeric
	// values survive as json.Number (losslessly, int or float) rather than
	// collapsing to float64; registry.wrapRunFunc and the loop drivers
	// convert from json.Number at the point they need a concrete type.
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	if err := dec.Decode(&s); err != nil {
		return err
	}
	n.ID, n.Type, n.Position, n.Params, n.ParentID, n.Muted =
		s.ID, s.Type, s.Position, s.Params, s.ParentID, s.Muted
	n.Extra = extraFields(data, knownNodeFields)
	return nil
}

// MarshalJSON re-encodes a node, merging back any fields preserved in Extra.
func (n Node) MarshalJSON() ([]byte, error) {
	type shape struct {
		ID       string         `json:"id"`
		Type     string         `json:"type"`
		Position Position       `json:"position"`
		Params   map[string]any `json:"params,omitempty"`
		ParentID *string        `json:"parent_id,omitempty"`
		Muted    bool           `json:"muted,omitempty"`
	}
	base, err := json.Marshal(shape{n.ID, n.Type, n.Position, n.Params, n.ParentID, n.Muted})
	if err != nil {
		return nil, err
	}
	return mergeExtra(base, n.Extra)
}

func (e *Edge) UnmarshalJSON(data []byte) error {
	type shape struct {
		ID         string `json:"id"`
		Source     string `json:"source"`
		SourcePort string `json:"source_port"`
		Target     string `json:"target"`
		TargetPort string `json:"target_port"`
		IsBackEdge bool   `json:"is_back_edge,omitempty"`
	}
	var s shape
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	e.ID, e.Source, e.SourcePort, e.Target, e.TargetPort, e.IsBackEdge =
		s.ID, s.Source, s.SourcePort, s.Target, s.TargetPort, s.IsBackEdge
	e.Extra = extraFields(data, knownEdgeFields)
	return nil
}

func (e Edge) MarshalJSON() ([]byte, error) {
	type shape struct {
		ID         string `json:"id"`
		Source     string `json:"source"`
		SourcePort string `json:"source_port"`
		Target     string `json:"target"`
		TargetPort string `json:"target_port"`
		IsBackEdge bool   `json:"is_back_edge,omitempty"`
	}
	base, err := json.Marshal(shape{e.ID, e.Source, e.SourcePort, e.Target, e.TargetPort, e.IsBackEdge})
	if err != nil {
		return nil, err
	}
	return mergeExtra(base, e.Extra)
}

func (w *Workflow) UnmarshalJSON(data []byte) error {
	type shape struct {
		Name  string `json:"name"`
		Nodes []Node `json:"nodes"`
		Edges []Edge `json:"edges"`
	}
	var s shape
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	w.Name, w.Nodes, w.Edges = s.Name, s.Nodes, s.Edges
	w.Extra = extraFields(data, knownWorkflowFields)
	return nil
}

func (w Workflow) MarshalJSON() ([]byte, error) {
	type shape struct {
		Name  string `json:"name"`
		Nodes []Node `json:"nodes"`
		Edges []Edge `json:"edges"`
	}
	base, err := json.Marshal(shape{w.Name, w.Nodes, w.Edges})
	if err != nil {
		return nil, err
	}
	return mergeExtra(base, w.Extra)
}

// extraFields decodes data as a flat object and returns every key not in
// known, so a round-trip never silently drops front-end-added fields.
func extraFields(data []byte, known map[string]bool) map[string]json.RawMessage {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil
	}
	var extra map[string]json.RawMessage
	for k, v := range raw {
		if known[k] {
			continue
		}
		if extra == nil {
			extra = make(map[string]json.RawMessage)
		}
		extra[k] = v
	}
	return extra
}

// mergeExtra folds extra's keys into the already-marshaled base object.
func mergeExtra(base []byte, extra map[string]json.RawMessage) ([]byte, error) {
	if len(extra) == 0 {
		return base, nil
	}
	var merged map[string]json.RawMessage
	if err := json.Unmarshal(base, &merged); err != nil {
		return nil, err
	}
	for k, v := range extra {
		merged[k] = v
	}
	return json.Marshal(merged)
}
