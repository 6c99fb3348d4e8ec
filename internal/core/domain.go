package core

import "time"

type (
	// Dashboard is the payload of GET /financial-dashboard.
	Dashboard struct {
		TotalIncome          Number `json:"totalIncome"`
		TotalExpense         Number `json:"totalExpense"`
		Balance              Number `json:"balance"`
		IncomeChangePercent  Number `json:"incomeChangePercent"`
		ExpenseChangePercent Number `json:"expenseChangePercent"`
		TotalWalletBalance   Number `json:"totalWalletBalance"`
		WalletCount          Number `json:"walletCount"`
	}

	// CategoryTotal is one row of GET /category/expense-report.
	CategoryTotal struct {
		CategoryName string `json:"categoryName"`
		CategoryIcon string `json:"categoryIcon"`
		TotalAmount  Number `json:"totalAmount"`
	}

	// Overview is the payload of GET /stats-overview.
	Overview struct {
		TotalTransactions Number `json:"totalTransactions"`
	}

	// ReportInputs bundles everything the report formatters need.
	// Overview is optional.
	ReportInputs struct {
		Range      DateRange       `json:"-"`
		Dashboard  Dashboard       `json:"dashboard"`
		Categories []CategoryTotal `json:"categories"`
		Overview   *Overview       `json:"overview,omitempty"`
	}

	// BudgetSuggestion is the payload of GET /suggest-budget. The backend
	// answers either with an object or with a bare string; Text carries the
	// string form.
	BudgetSuggestion struct {
		CategoryID string `json:"categoryId"`
		Amount     Number `json:"amount"`
		Text       string `json:"text,omitempty"`
		Raw        any    `json:"raw,omitempty"`
	}
)

// Role identifies who authored a chat turn.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Turn is a single chat message kept in the conversation history.
type Turn struct {
	Role Role      `json:"role"`
	Text string    `json:"text"`
	At   time.Time `json:"at"`
}

// Valid reports whether the role is known.
func (r Role) Valid() bool {
	return r == RoleUser || r == RoleAssistant
}
