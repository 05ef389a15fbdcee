package workflow

import "encoding/json"

// MarshalJSON emits known fields plus any preserved unknown ones.
func (w *Workflow) MarshalJSON() ([]byte, error) {
	out := make(map[string]json.RawMessage, len(w.Extra)+6)
	for k, v := range w.Extra {
		out[k] = v
	}

	fields := map[string]any{
		"workflow_id": w.WorkflowID,
		"scope":       w.Scope,
		"agents":      w.Agents,
		"total_cost":  w.TotalCost,
		"created_at":  w.CreatedAt,
		"updated_at":  w.UpdatedAt,
	}
	for k, v := range fields {
		raw, err := json.Marshal(v)
		if err != nil {
			return nil, err
		}
		out[k] = raw
	}

	return json.Marshal(out)
}

// UnmarshalJSON decodes known fields into Workflow and stashes every
// other top-level key verbatim in Extra so a round-trip save/load
// never drops data a newer version of the orchestrator might have
// written.
func (w *Workflow) UnmarshalJSON(data []byte) error {
	raw := map[string]json.RawMessage{}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	known := []string{"workflow_id", "scope", "agents", "total_cost", "created_at", "updated_at"}

	if v, ok := raw["workflow_id"]; ok {
		if err := json.Unmarshal(v, &w.WorkflowID); err != nil {
			return err
		}
	}
	if v, ok := raw["scope"]; ok {
		if err := json.Unmarshal(v, &w.Scope); err != nil {
			return err
		}
	}
	if v, ok := raw["agents"]; ok {
		if err := json.Unmarshal(v, &w.Agents); err != nil {
			return err
		}
	}
	if v, ok := raw["total_cost"]; ok {
		if err := json.Unmarshal(v, &w.TotalCost); err != nil {
			return err
		}
	}
	if v, ok := raw["created_at"]; ok {
		if err := json.Unmarshal(v, &w.CreatedAt); err != nil {
			return err
		}
	}
	if v, ok := raw["updated_at"]; ok {
		if err := json.Unmarshal(v, &w.UpdatedAt); err != nil {
			return err
		}
	}

	w.Extra = make(map[string]json.RawMessage, len(raw))
	for k, v := range raw {
		if contains(known, k) {
			continue
		}
		w.Extra[k] = v
	}

	return nil
}

func contains(ss []string, s string) bool {
	for _, v := range ss {
		if v == s {
			return true
		}
	}
	return false
}
