// Package report renders fixed-format Vietnamese text reports from
// already fetched dashboard, category and overview data.
//
// Every function here is pure: no I/O and no model inference. A line is only
// emitted when its source value is present and finite, so output never
// contains NaN, Inf or placeholders for missing data.
package report

import (
	"fmt"
	"math"
	"sort"
	"strings"

	"fintrack/internal/core"
)

const (
	// MaxTopCategories is the size of the category ranking in the monthly report.
	MaxTopCategories = 5
	// MaxAnalysisCategories is the size of the ranking in the analysis.
	MaxAnalysisCategories = 3
	// MaxFallbackAlerts caps the synthetic alerts derived from report data.
	MaxFallbackAlerts = 3
)

type rankedCategory struct {
	name   string
	icon   string
	amount float64
}

func (c rankedCategory) label() string {
	if c.icon != "" {
		return c.icon + " " + c.name
	}
	return c.name
}

// rankCategories keeps categories with a finite amount and sorts them by
// amount, largest first. Ties keep their input order.
func rankCategories(cats []core.CategoryTotal) []rankedCategory {
	out := make([]rankedCategory, 0, len(cats))
	for _, c := range cats {
		amount, ok := c.TotalAmount.Float()
		if !ok {
			continue
		}
		name := strings.TrimSpace(c.CategoryName)
		if name == "" {
			name = labelUnnamed
		}
		out = append(out, rankedCategory{name: name, icon: strings.TrimSpace(c.CategoryIcon), amount: amount})
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].amount > out[j].amount })
	return out
}

// TopCategoryNames returns the names of the n largest categories, in rank order.
func TopCategoryNames(cats []core.CategoryTotal, n int) []string {
	ranked := rankCategories(cats)
	if len(ranked) > n {
		ranked = ranked[:n]
	}
	names := make([]string, len(ranked))
	for i, c := range ranked {
		names[i] = c.name
	}
	return names
}

type builder struct {
	lines []string
}

func (b *builder) add(format string, args ...any) {
	b.lines = append(b.lines, fmt.Sprintf(format, args...))
}

func (b *builder) blank() {
	b.lines = append(b.lines, "")
}

func (b *builder) currency(label string, n core.Number) {
	if v, ok := n.Float(); ok {
		b.add("%s: %s", label, FormatCurrency(v))
	}
}

func (b *builder) integer(label string, n core.Number) {
	if v, ok := n.Float(); ok {
		b.add("%s: %s", label, FormatInteger(v))
	}
}

func (b *builder) percent(label string, n core.Number) {
	if v, ok := n.Float(); ok {
		b.add("%s: %s", label, FormatPercent(v))
	}
}

func (b *builder) period(r core.DateRange) {
	if r.IsZero() {
		return
	}
	b.add("%s: %s - %s (%d ngày)", labelPeriod, FormatDate(r.Start), FormatDate(r.End), r.Days)
}

func (b *builder) ranking(cats []core.CategoryTotal, limit int) {
	ranked := rankCategories(cats)
	b.add("%s", labelTopCategories)
	if len(ranked) == 0 {
		b.add("%s", MsgNoCategoryData)
		return
	}
	if len(ranked) > limit {
		ranked = ranked[:limit]
	}
	for i, c := range ranked {
		b.add("%d. %s: %s", i+1, c.label(), FormatCurrency(c.amount))
	}
}

func (b *builder) String() string {
	return strings.Join(b.lines, "\n")
}

// Monthly renders the period summary: totals, period-over-period changes
// and the top spending categories.
func Monthly(in core.ReportInputs) string {
	b := &builder{}
	b.add("%s", titleMonthly)
	b.period(in.Range)

	d := in.Dashboard
	b.currency(labelIncome, d.TotalIncome)
	b.currency(labelExpense, d.TotalExpense)
	b.currency(labelBalance, d.Balance)
	b.currency(labelWalletBalance, d.TotalWalletBalance)
	b.integer(labelWalletCount, d.WalletCount)
	if in.Overview != nil {
		b.integer(labelTransactions, in.Overview.TotalTransactions)
	}
	b.percent(labelIncomeChange, d.IncomeChangePercent)
	b.percent(labelExpenseChange, d.ExpenseChangePercent)

	b.blank()
	b.ranking(in.Categories, MaxTopCategories)
	return b.String()
}

// Analysis renders a shorter spending analysis and, when computable, the
// share of total expense taken by the largest category.
func Analysis(in core.ReportInputs) string {
	b := &builder{}
	b.add("%s", titleAnalysis)
	b.period(in.Range)

	d := in.Dashboard
	b.currency(labelIncome, d.TotalIncome)
	b.currency(labelExpense, d.TotalExpense)
	b.currency(labelBalance, d.Balance)
	b.percent(labelExpenseChange, d.ExpenseChangePercent)

	if top, share, ok := largestShare(in); ok {
		b.add("Danh mục chi nhiều nhất: %s (%s), chiếm %s tổng chi tiêu.",
			top.label(), FormatCurrency(top.amount), FormatPercent(share))
	}

	b.blank()
	b.ranking(in.Categories, MaxAnalysisCategories)
	return b.String()
}

// AlertsFallback derives up to three alert lines from report data for when
// the backend has no live alerts.
func AlertsFallback(in core.ReportInputs) string {
	b := &builder{}
	b.add("%s", titleAlerts)
	b.period(in.Range)

	var alerts []string
	d := in.Dashboard
	if bal, ok := d.Balance.Float(); ok && bal < 0 {
		alerts = append(alerts, fmt.Sprintf("⚠️ Chi tiêu vượt thu nhập: số dư âm %s.", FormatCurrency(bal)))
	}
	if pct, ok := d.ExpenseChangePercent.Float(); ok && pct != 0 {
		if pct > 0 {
			alerts = append(alerts, fmt.Sprintf("📈 Chi tiêu tăng %s so với kỳ trước.", FormatPercent(pct)))
		} else {
			alerts = append(alerts, fmt.Sprintf("📉 Chi tiêu giảm %s so với kỳ trước.", FormatPercent(-pct)))
		}
	}
	if top, share, ok := largestShare(in); ok {
		alerts = append(alerts, fmt.Sprintf("🏷️ Danh mục %q chiếm %s tổng chi tiêu.", top.name, FormatPercent(share)))
	}

	if len(alerts) == 0 {
		b.add("%s", MsgNoAlerts)
		return b.String()
	}
	if len(alerts) > MaxFallbackAlerts {
		alerts = alerts[:MaxFallbackAlerts]
	}
	for _, a := range alerts {
		b.add("%s", a)
	}
	return b.String()
}

// largestShare returns the top category and its percentage of total expense.
// It reports false unless total expense is positive and finite and at least
// one category has a finite amount.
func largestShare(in core.ReportInputs) (rankedCategory, float64, bool) {
	total, ok := in.Dashboard.TotalExpense.Float()
	if !ok || total <= 0 {
		return rankedCategory{}, 0, false
	}
	ranked := rankCategories(in.Categories)
	if len(ranked) == 0 {
		return rankedCategory{}, 0, false
	}
	top := ranked[0]
	share := top.amount / total * 100
	if math.IsInf(share, 0) || math.IsNaN(share) {
		return rankedCategory{}, 0, false
	}
	return top, share, true
}
