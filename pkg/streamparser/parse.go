package streamparser

import (
	"encoding/json"
	"fmt"
)

// rawCall mirrors the `{name, arguments}` shape produced by the
// in-content tool-call convention; arguments is left as
// json.RawMessage so its original formatting is preserved for the
// Candidate's Arguments field.
type rawCall struct {
	Name      string          `json:"name"`
	Arguments json.RawMessage `json:"arguments"`
}

// parseCandidate parses a complete `{...}` object text into a
// Candidate, requiring a non-empty name.
func parseCandidate(objectText string) (Candidate, error) {
	var raw rawCall
	if err := json.Unmarshal([]byte(objectText), &raw); err != nil {
		return Candidate{}, fmt.Errorf("parse tool-call object: %w", err)
	}
	if raw.Name == "" {
		return Candidate{}, fmt.Errorf("tool-call object missing \"name\"")
	}
	return Candidate{Name: raw.Name, Arguments: string(raw.Arguments)}, nil
}
