// Package domain contains core domain types for the decisions client.
package domain

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// Decision is a recorded decision as returned by the analysis service.
// It is created by a submission and mutated at most once, when an outcome is recorded.
type Decision struct {
	ID              string             `json:"id"`
	Timestamp       Timestamp          `json:"timestamp"`
	Context         string             `json:"context"`
	Variants        VariantNames       `json:"variants"`
	Arguments       []Argument         `json:"arguments"`
	Outcome         *string            `json:"outcome,omitempty"`
	SelectedVariant *string            `json:"selected_variant,omitempty"`
	LLMAnalysis     *ReasoningAnalysis `json:"llm_analysis,omitempty"`
	MLScores        map[string]float64 `json:"ml_scores,omitempty"`
}

// HasOutcome returns true once an outcome has been recorded.
func (d *Decision) HasOutcome() bool {
	return d.Outcome != nil && *d.Outcome != ""
}

// HasVariant reports whether name is one of the decision's own variants.
func (d *Decision) HasVariant(name string) bool {
	for _, v := range d.Variants {
		if v == name {
			return true
		}
	}
	return false
}

// Argument is a free-text essay attached to one variant.
type Argument struct {
	ID          string `json:"id,omitempty"`
	VariantName string `json:"variant_name"`
	Type        string `json:"type"`
	Text        string `json:"text"`
}

// ArgumentTypeEssay is the only argument type the client submits.
const ArgumentTypeEssay = "essay"

// VariantNames is the ordered list of variant names of a decision. The
// service returns either plain strings or {"id", "name"} objects.
type VariantNames []string

// UnmarshalJSON accepts both wire shapes.
func (v *VariantNames) UnmarshalJSON(data []byte) error {
	var raw []json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("decode variants: %w", err)
	}

	names := make(VariantNames, 0, len(raw))
	for i, item := range raw {
		var name string
		if err := json.Unmarshal(item, &name); err == nil {
			names = append(names, name)
			continue
		}
		var obj struct {
			Name string `json:"name"`
		}
		if err := json.Unmarshal(item, &obj); err != nil {
			return fmt.Errorf("decode variant %d: %w", i, err)
		}
		names = append(names, obj.Name)
	}
	*v = names
	return nil
}

// Timestamp is a service timestamp. The service emits naive UTC values
// ("2025-01-02T10:00:00.123456"); RFC 3339 values are accepted as well.
type Timestamp struct {
	time.Time
}

var timestampLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02 15:04:05.999999999",
}

// UnmarshalJSON parses any of the accepted layouts. Naive values are UTC.
func (t *Timestamp) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return fmt.Errorf("decode timestamp: %w", err)
	}
	s = strings.TrimSpace(s)
	if s == "" {
		t.Time = time.Time{}
		return nil
	}
	for _, layout := range timestampLayouts {
		if parsed, err := time.Parse(layout, s); err == nil {
			t.Time = parsed.UTC()
			return nil
		}
	}
	return fmt.Errorf("decode timestamp: unsupported format %q", s)
}

// MarshalJSON emits RFC 3339.
func (t Timestamp) MarshalJSON() ([]byte, error) {
	if t.IsZero() {
		return []byte(`""`), nil
	}
	return json.Marshal(t.UTC().Format(time.RFC3339Nano))
}
