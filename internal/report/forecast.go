package report

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"fintrack/internal/core"
)

// Period is a forecast horizon.
type Period string

const (
	PeriodWeek    Period = "week"
	PeriodMonth   Period = "month"
	PeriodQuarter Period = "quarter"
	PeriodYear    Period = "year"
)

// MonthLayout is the format of the base month, e.g. "2024-02".
const MonthLayout = "2006-01"

var (
	ErrInvalidMonth     = errors.New("invalid base month")
	ErrInsufficientData = errors.New("insufficient data")
	ErrUnknownPeriod    = errors.New("unknown forecast period")
)

// ParsePeriod maps a request string to a Period.
func ParsePeriod(s string) (Period, bool) {
	p := Period(strings.ToLower(strings.TrimSpace(s)))
	switch p {
	case PeriodWeek, PeriodMonth, PeriodQuarter, PeriodYear:
		return p, true
	}
	return p, false
}

func (p Period) months() int {
	switch p {
	case PeriodMonth:
		return 1
	case PeriodQuarter:
		return 3
	case PeriodYear:
		return 12
	}
	return 0
}

func (p Period) label() string {
	switch p {
	case PeriodWeek:
		return "7 ngày tới"
	case PeriodMonth:
		return "tháng tới"
	case PeriodQuarter:
		return "quý tới"
	case PeriodYear:
		return "năm tới"
	}
	return string(p)
}

// Projection is the result of a linear spending forecast.
type Projection struct {
	Base         time.Time
	BaseDays     int
	TotalExpense float64
	AverageDaily float64
	Period       Period
	Days         int
	From         time.Time
	To           time.Time
	Projected    float64
}

// Project extrapolates the base month's average daily spend over the period.
// Month, quarter and year horizons use the real lengths of the following
// calendar months.
func Project(month string, totalExpense core.Number, period Period) (Projection, error) {
	base, err := time.Parse(MonthLayout, strings.TrimSpace(month))
	if err != nil {
		return Projection{}, fmt.Errorf("%w: %q", ErrInvalidMonth, month)
	}
	total, ok := totalExpense.Float()
	if !ok || total <= 0 {
		return Projection{}, ErrInsufficientData
	}

	from := time.Date(base.Year(), base.Month()+1, 1, 0, 0, 0, 0, time.UTC)
	var days int
	switch period {
	case PeriodWeek:
		days = 7
	case PeriodMonth, PeriodQuarter, PeriodYear:
		days = daysInNextMonths(base, period.months())
	default:
		return Projection{}, fmt.Errorf("%w: %q", ErrUnknownPeriod, period)
	}

	baseDays := core.DaysIn(base.Year(), base.Month())
	avg := total / float64(baseDays)
	return Projection{
		Base:         base,
		BaseDays:     baseDays,
		TotalExpense: total,
		AverageDaily: avg,
		Period:       period,
		Days:         days,
		From:         from,
		To:           from.AddDate(0, 0, days-1),
		Projected:    avg * float64(days),
	}, nil
}

func daysInNextMonths(base time.Time, n int) int {
	total := 0
	for i := 1; i <= n; i++ {
		m := time.Date(base.Year(), base.Month()+time.Month(i), 1, 0, 0, 0, 0, time.UTC)
		total += core.DaysIn(m.Year(), m.Month())
	}
	return total
}

// Forecast renders the projection as text, or MsgInsufficientData when the
// inputs do not allow one.
func Forecast(month string, totalExpense core.Number, period Period) string {
	p, err := Project(month, totalExpense, period)
	if err != nil {
		return MsgInsufficientData
	}
	b := &builder{}
	b.add("%s", titleForecast)
	b.add("Dựa trên tháng %s: tổng chi %s trong %d ngày", FormatMonth(p.Base), FormatCurrency(p.TotalExpense), p.BaseDays)
	b.add("Chi tiêu trung bình mỗi ngày: %s", FormatCurrency(p.AverageDaily))
	b.add("Dự báo %s (%d ngày, %s - %s): %s",
		p.Period.label(), p.Days, FormatDate(p.From), FormatDate(p.To), FormatCurrency(p.Projected))
	return b.String()
}
