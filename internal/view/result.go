// Package view renders decisions, analysis results and connectivity states
// for the terminal.
package view

import (
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/ashureev/decisions/internal/domain"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"
)

// maxSimilar is how many retrieved past decisions a result shows.
const maxSimilar = 3

// ConfidenceLabel names a confidence level for display.
func ConfidenceLabel(level string) string {
	switch strings.ToLower(level) {
	case "high":
		return "High confidence"
	case "low":
		return "Low confidence"
	default:
		return "Medium confidence"
	}
}

// ScoreCategory names an ML score on its 0-100 scale.
func ScoreCategory(score float64) string {
	switch {
	case score >= 70:
		return "strong"
	case score >= 40:
		return "moderate"
	default:
		return "weak"
	}
}

// Result writes a finished analysis. variants are the submitted titles in
// order; the i-th one owns the "variant_<i>" score.
func Result(w io.Writer, variants []string, r *domain.AnalysisResult) error {
	p := &printer{w: w}
	if r == nil {
		p.line("No analysis results.")
		return p.err
	}

	p.section("ML scores")
	scores := table.NewWriter()
	scores.SetStyle(table.StyleLight)
	scores.AppendHeader(table.Row{"Path", "Score", ""})
	scores.SetColumnConfigs([]table.ColumnConfig{{Number: 2, Align: text.AlignRight}})
	for i, name := range variants {
		score, ok := r.ScoreFor(i)
		if !ok {
			scores.AppendRow(table.Row{name, "n/a", ""})
			continue
		}
		scores.AppendRow(table.Row{name, fmt.Sprintf("%.1f", score), ScoreCategory(score)})
	}
	p.line(scores.Render())

	if a := r.LLMAnalysis; a != nil {
		reasoning(p, a)
	}

	if similar := r.SimilarDecisions(maxSimilar); len(similar) > 0 {
		p.section("Similar past decisions")
		for _, s := range similar {
			p.bullet(s)
		}
	}
	return p.err
}

func reasoning(p *printer, a *domain.ReasoningAnalysis) {
	if a.ConfidenceLevel != "" {
		p.section(ConfidenceLabel(a.ConfidenceLevel))
		if d := a.ScoreDetails; d != nil {
			p.line(fmt.Sprintf("  Logic stability         %3.0f%%", d.LogicStability*100))
			p.line(fmt.Sprintf("  Data grounding          %3.0f%%", d.DataGrounding*100))
			p.line(fmt.Sprintf("  Historical consistency  %3.0f%%", d.HistoricalConsistency*100))
		}
	}

	if len(a.ArgumentQualityComparison) > 0 {
		p.section("Argument quality")
		keys := make([]string, 0, len(a.ArgumentQualityComparison))
		for k := range a.ArgumentQualityComparison {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			p.bullet(k + ": " + a.ArgumentQualityComparison[k])
		}
	}
	if a.AlignmentWithModelScores != "" {
		p.section("Alignment with model scores")
		p.line(a.AlignmentWithModelScores)
	}
	if a.DetectedReasoningPatterns != "" {
		p.section("Reasoning patterns")
		p.line(a.DetectedReasoningPatterns)
	}
	if len(a.KeyWeakPoints) > 0 {
		p.section("Key weak points")
		for _, wp := range a.KeyWeakPoints {
			p.bullet(wp)
		}
	}
	if len(a.SystemicInconsistencies) > 0 {
		p.section("Inconsistencies with past decisions")
		for _, si := range a.SystemicInconsistencies {
			p.bullet(si.ConflictDescription)
			p.line("    then: " + si.PastStatement)
			p.line("    now:  " + si.CurrentStatement)
		}
	}
	if a.FinalNote != "" {
		p.section("Final note")
		p.line(a.FinalNote)
	}
}

// printer keeps the first write error so renderers can write unconditionally.
type printer struct {
	w   io.Writer
	err error
}

func (p *printer) line(s string) {
	if p.err != nil {
		return
	}
	_, p.err = fmt.Fprintln(p.w, s)
}

func (p *printer) section(title string) {
	p.line("")
	p.line(text.Bold.Sprint(title))
}

func (p *printer) bullet(s string) {
	p.line("  • " + s)
}
