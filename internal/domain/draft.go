package domain

import (
	"errors"
	"strings"
	"unicode/utf8"
)

// MinContextLength is the shortest context accepted for analysis.
const MinContextLength = 20

// Local validation failures, caught before any network call.
var (
	ErrContextTooShort   = errors.New("context must be at least 20 characters long to provide a meaningful analysis")
	ErrNoCompleteVariant = errors.New("at least one complete path (title and essay) is required")
	ErrOutcomeRequired   = errors.New("outcome text is required")
	ErrVariantRequired   = errors.New("a selected path is required")
	ErrUnknownVariant    = errors.New("selected path is not one of this decision's paths")
)

// ValidationError is a locally rejected input. Message is user-facing.
type ValidationError struct {
	Err error
}

func (e *ValidationError) Error() string { return e.Err.Error() }
func (e *ValidationError) Unwrap() error { return e.Err }

// Message returns the sentence shown to the user.
func (e *ValidationError) Message() string {
	switch {
	case errors.Is(e.Err, ErrContextTooShort):
		return "Context must be at least 20 characters long to provide a meaningful analysis."
	case errors.Is(e.Err, ErrNoCompleteVariant):
		return "At least one complete path (title and essay) is required."
	case errors.Is(e.Err, ErrOutcomeRequired), errors.Is(e.Err, ErrVariantRequired):
		return "Describe the outcome and pick the path you took."
	case errors.Is(e.Err, ErrUnknownVariant):
		return "Pick one of the paths recorded for this decision."
	}
	return e.Err.Error()
}

// Variant is one path of a draft decision.
type Variant struct {
	Title string `json:"title"`
	Essay string `json:"essay"`
}

// IsComplete reports whether both title and essay are non-blank.
func (v Variant) IsComplete() bool {
	return strings.TrimSpace(v.Title) != "" && strings.TrimSpace(v.Essay) != ""
}

// Draft is a decision being composed, before submission.
type Draft struct {
	Context  string    `json:"context"`
	Variants []Variant `json:"variants"`
}

// DefaultVariantTitle names the i-th path "Path A", "Path B", ...
func DefaultVariantTitle(i int) string {
	return "Path " + string(rune('A'+i%26))
}

// CompleteVariants returns the variants that will be submitted, in order.
func (d Draft) CompleteVariants() []Variant {
	var out []Variant
	for _, v := range d.Variants {
		if v.IsComplete() {
			out = append(out, v)
		}
	}
	return out
}

// Validate applies the local submission rules.
func (d Draft) Validate() error {
	if utf8.RuneCountInString(strings.TrimSpace(d.Context)) < MinContextLength {
		return &ValidationError{Err: ErrContextTooShort}
	}
	if len(d.CompleteVariants()) == 0 {
		return &ValidationError{Err: ErrNoCompleteVariant}
	}
	return nil
}

// Request builds the submission payload from the complete variants only.
// The context is sent as typed; selected_variant is always null at this stage.
func (d Draft) Request() AnalyzeRequest {
	valid := d.CompleteVariants()
	req := AnalyzeRequest{
		Context:   d.Context,
		Variants:  make([]string, 0, len(valid)),
		Arguments: make([]Argument, 0, len(valid)),
	}
	for _, v := range valid {
		req.Variants = append(req.Variants, v.Title)
		req.Arguments = append(req.Arguments, Argument{
			VariantName: v.Title,
			Type:        ArgumentTypeEssay,
			Text:        v.Essay,
		})
	}
	return req
}

// OutcomeForm is the outcome-recording input for one decision.
type OutcomeForm struct {
	Outcome string `json:"outcome"`
	Variant string `json:"selected_variant"`
}

// Validate gates the outcome call: both fields are required and the variant
// must be drawn from the decision's own variants.
func (f OutcomeForm) Validate(d *Decision) error {
	if err := f.ValidateFields(); err != nil {
		return err
	}
	if d == nil || !d.HasVariant(f.Variant) {
		return &ValidationError{Err: ErrUnknownVariant}
	}
	return nil
}

// ValidateFields checks the rules that need no decision: both fields are
// non-blank.
func (f OutcomeForm) ValidateFields() error {
	if strings.TrimSpace(f.Outcome) == "" {
		return &ValidationError{Err: ErrOutcomeRequired}
	}
	if strings.TrimSpace(f.Variant) == "" {
		return &ValidationError{Err: ErrVariantRequired}
	}
	return nil
}

// Update converts the form to the wire payload.
func (f OutcomeForm) Update() OutcomeUpdate {
	return OutcomeUpdate{Outcome: f.Outcome, SelectedVariant: f.Variant}
}
