package domain

// ============================================================
// Yearly statements
// ============================================================

// TotalRowLabel marks the synthetic row that closes each program's
// series in a statement.
const TotalRowLabel = "TOTAL"

// StatementRow is one line of a yearly statement: a movement's total
// columns plus the running balances after applying it. A TOTAL row
// carries the summed columns and the final running balances of its
// program; its Month is zero.
type StatementRow struct {
	Program        string  `json:"program"`
	Month          int     `json:"month,omitempty"`
	Credit         float64 `json:"credit"`
	Interest       float64 `json:"interest"`
	Debit          float64 `json:"debit"`
	RunningCusteio float64 `json:"running_custeio"`
	RunningCapital float64 `json:"running_capital"`
	RunningTotal   float64 `json:"running_total"`
}

// IsTotal reports whether the row closes a program series.
func (r StatementRow) IsTotal() bool {
	return r.Program == TotalRowLabel
}
