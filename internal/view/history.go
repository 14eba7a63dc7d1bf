package view

import (
	"io"

	"github.com/ashureev/decisions/internal/domain"
	"github.com/jedib0t/go-pretty/v6/table"
)

const dateLayout = "Jan 2, 2006"

// History writes the decision list as a table. The decision whose id equals
// expandedID, if any, is followed by its full details.
func History(w io.Writer, decisions []domain.Decision, expandedID string) error {
	p := &printer{w: w}
	if len(decisions) == 0 {
		p.line("No decisions yet.")
		return p.err
	}

	t := table.NewWriter()
	t.SetStyle(table.StyleLight)
	t.AppendHeader(table.Row{"#", "Date", "ID", "Status", "Context"})
	t.SetColumnConfigs([]table.ColumnConfig{{Number: 5, WidthMax: 60}})
	for i, d := range decisions {
		status := "pending outcome"
		if d.HasOutcome() {
			status = "tracked"
		}
		t.AppendRow(table.Row{i + 1, formatDate(d.Timestamp), d.ID, status, d.Context})
	}
	p.line(t.Render())

	for i := range decisions {
		if decisions[i].ID == expandedID {
			details(p, &decisions[i])
		}
	}
	return p.err
}

func details(p *printer, d *domain.Decision) {
	p.section("Context")
	p.line(d.Context)

	p.section("Paths")
	for _, name := range d.Variants {
		marker := ""
		if d.SelectedVariant != nil && *d.SelectedVariant == name {
			marker = " (chosen)"
		}
		p.bullet(name + marker)
		for _, arg := range d.Arguments {
			if arg.VariantName == name {
				p.line("    " + arg.Text)
			}
		}
	}

	if d.LLMAnalysis != nil {
		reasoning(p, d.LLMAnalysis)
	}

	p.section("Outcome")
	if d.HasOutcome() {
		p.line(*d.Outcome)
	} else {
		p.line("Not recorded yet.")
	}
}

func formatDate(ts domain.Timestamp) string {
	if ts.IsZero() {
		return "-"
	}
	return ts.Format(dateLayout)
}
