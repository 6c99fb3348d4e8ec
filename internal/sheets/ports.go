// Package sheets defines the outbound port used to archive rendered reports
// in a spreadsheet.
package sheets

import (
	"context"
	"strings"
	"time"

	"fintrack/internal/core"
)

// ReportRow is one exported report: the period, its headline totals, the
// largest categories and the rendered text.
type ReportRow struct {
	Kind          string
	Range         core.DateRange
	Income        core.Number
	Expense       core.Number
	Balance       core.Number
	TopCategories []string
	Text          string
	ExportedAt    time.Time
}

// Values returns the row cells in column order A..I. Absent totals are
// written as empty cells.
func (r ReportRow) Values() []any {
	cell := func(n core.Number) any {
		if v, ok := n.Float(); ok {
			return v
		}
		return ""
	}
	start, end := "", ""
	if !r.Range.IsZero() {
		start, end = r.Range.StartParam(), r.Range.EndParam()
	}
	return []any{
		r.ExportedAt.UTC().Format(time.RFC3339),
		r.Kind,
		start,
		end,
		cell(r.Income),
		cell(r.Expense),
		cell(r.Balance),
		strings.Join(r.TopCategories, ", "),
		r.Text,
	}
}

// ReportExporter appends report rows to external storage.
type ReportExporter interface {
	AppendReport(ctx context.Context, row ReportRow) (rowRef string, err error)
}
