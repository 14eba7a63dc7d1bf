package domain

import "fmt"

// AnalysisStatus is the server-side progress of an analysis.
type AnalysisStatus string

const (
	StatusPending   AnalysisStatus = "pending"
	StatusAnalyzing AnalysisStatus = "analyzing"
	StatusCompleted AnalysisStatus = "completed"
	StatusFailed    AnalysisStatus = "failed"
)

// IsTerminal returns true for completed and failed.
func (s AnalysisStatus) IsTerminal() bool {
	return s == StatusCompleted || s == StatusFailed
}

// AnalysisResult is the payload of a finished analysis. Treated as immutable.
type AnalysisResult struct {
	MLScores         map[string]float64 `json:"ml_scores,omitempty"`
	LLMAnalysis      *ReasoningAnalysis `json:"llm_analysis,omitempty"`
	RetrievedContext []string           `json:"retrieved_context,omitempty"`
}

// ScoreKey is the ml_scores key for the variant at index i.
func ScoreKey(i int) string {
	return fmt.Sprintf("variant_%d", i)
}

// ScoreFor returns the ML score of the i-th submitted variant.
func (r *AnalysisResult) ScoreFor(i int) (float64, bool) {
	if r == nil || r.MLScores == nil {
		return 0, false
	}
	score, ok := r.MLScores[ScoreKey(i)]
	return score, ok
}

// SimilarDecisions returns at most n retrieved past-decision snippets.
func (r *AnalysisResult) SimilarDecisions(n int) []string {
	if r == nil {
		return nil
	}
	if len(r.RetrievedContext) <= n {
		return r.RetrievedContext
	}
	return r.RetrievedContext[:n]
}

// ReasoningAnalysis is the structured AI commentary on a decision.
type ReasoningAnalysis struct {
	ArgumentQualityComparison map[string]string       `json:"argument_quality_comparison,omitempty"`
	AlignmentWithModelScores  string                  `json:"alignment_with_model_scores,omitempty"`
	DetectedReasoningPatterns string                  `json:"detected_reasoning_patterns,omitempty"`
	KeyWeakPoints             []string                `json:"key_weak_points_to_reconsider,omitempty"`
	FinalNote                 string                  `json:"final_note,omitempty"`
	ScoreDetails              *ScoreDetails           `json:"score_details,omitempty"`
	ConfidenceLevel           string                  `json:"confidence_level,omitempty"`
	SystemicInconsistencies   []SystemicInconsistency `json:"systemic_inconsistencies,omitempty"`
}

// ScoreDetails breaks the confidence level down into 0..1 components.
type ScoreDetails struct {
	LogicStability        float64 `json:"logic_stability"`
	DataGrounding         float64 `json:"data_grounding"`
	HistoricalConsistency float64 `json:"historical_consistency"`
}

// SystemicInconsistency is a detected contradiction with a past decision.
type SystemicInconsistency struct {
	PastDecisionID      string `json:"past_decision_id,omitempty"`
	PastStatement       string `json:"past_statement"`
	CurrentStatement    string `json:"current_statement"`
	ConflictDescription string `json:"conflict_description"`
}

// AnalyzeRequest is the submission payload.
type AnalyzeRequest struct {
	Context         string     `json:"context"`
	Variants        []string   `json:"variants"`
	SelectedVariant *string    `json:"selected_variant"`
	Arguments       []Argument `json:"arguments"`
}

// AnalyzeResponse acknowledges a submission.
type AnalyzeResponse struct {
	DecisionID string         `json:"decision_id"`
	Status     AnalysisStatus `json:"status,omitempty"`
	Message    string         `json:"message,omitempty"`
}

// StatusResponse is one poll of an analysis.
type StatusResponse struct {
	DecisionID string          `json:"decision_id"`
	Status     AnalysisStatus  `json:"status"`
	Results    *AnalysisResult `json:"results,omitempty"`
}

// OutcomeUpdate records what actually happened.
type OutcomeUpdate struct {
	Outcome         string `json:"outcome"`
	SelectedVariant string `json:"selected_variant"`
}
