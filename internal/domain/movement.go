package domain

import (
	"fmt"
	"time"
)

// ============================================================
// Movements (period records)
// ============================================================

// Movement is the atomic ledger entry: one program's finalized record
// for one monthly period. At most one movement exists per
// (program, year, month). Field names follow the persisted document
// contract; ano is optional on legacy records and omitted when zero.
type Movement struct {
	Program         string  `json:"programa"`
	Month           int     `json:"mes_num"`
	Year            int     `json:"ano,omitempty"`
	CreditCapital   float64 `json:"credito_capital"`
	CreditCusteio   float64 `json:"credito_custeio"`
	DebitCapital    float64 `json:"debito_capital"`
	DebitCusteio    float64 `json:"debito_custeio"`
	InterestCapital float64 `json:"rendimento_capital"`
	InterestCusteio float64 `json:"rendimento_custeio"`
	TotalCredit     float64 `json:"total_credito"`
	TotalDebit      float64 `json:"total_debito"`
	TotalInterest   float64 `json:"total_rendimento"`
}

// EffectiveYear resolves the year a movement counts against. Legacy
// records carry no year and assume the current calendar year.
func (m Movement) EffectiveYear() int {
	if m.Year == 0 {
		return time.Now().Year()
	}
	return m.Year
}

// Before reports whether the movement falls strictly before the period
// (year, month).
func (m Movement) Before(year, month int) bool {
	y := m.EffectiveYear()
	return y < year || (y == year && m.Month < month)
}

// InPeriod reports whether the movement belongs to exactly (year, month).
func (m Movement) InPeriod(year, month int) bool {
	return m.EffectiveYear() == year && m.Month == month
}

// Delta returns the movement's net effect on the given balance
// component: credit plus interest minus debit.
func (m Movement) Delta(kind ResourceKind) float64 {
	switch kind {
	case Capital:
		return m.CreditCapital + m.InterestCapital - m.DebitCapital
	case Custeio:
		return m.CreditCusteio + m.InterestCusteio - m.DebitCusteio
	default:
		return m.TotalCredit + m.TotalInterest - m.TotalDebit
	}
}

// Validate checks the structural invariants of a stored movement.
func (m Movement) Validate() error {
	if m.Program == "" {
		return &ErrValidation{Field: "programa", Message: "movement without a program"}
	}
	if m.Month < 1 || m.Month > 12 {
		return &ErrValidation{Field: "mes_num", Message: fmt.Sprintf("month %d out of range", m.Month)}
	}
	return nil
}

// FinalizeTotals recomputes the derived total columns from the
// capital and custeio pairs. Every code path that builds a movement
// goes through here; totals are never computed anywhere else.
func FinalizeTotals(m *Movement) {
	m.TotalCredit = m.CreditCapital + m.CreditCusteio
	m.TotalDebit = m.DebitCapital + m.DebitCusteio
	m.TotalInterest = m.InterestCapital + m.InterestCusteio
}

// MovementInput is the user-entered raw delta set for one program in
// one period, before interest allocation.
type MovementInput struct {
	CreditCapital float64 `json:"credit_capital"`
	CreditCusteio float64 `json:"credit_custeio"`
	DebitCapital  float64 `json:"debit_capital"`
	DebitCusteio  float64 `json:"debit_custeio"`
}

// PeriodResult is the outcome of saving one period: the finalized
// movements and whether they reached the durable store.
type PeriodResult struct {
	Movements []Movement `json:"movements"`
	Durable   bool       `json:"durable"`
}

// PeriodSnapshot is the stored state of one period, used to seed the
// entry form when a month is revisited.
type PeriodSnapshot struct {
	Movements     []Movement `json:"movements"`
	InterestTotal float64    `json:"interest_total"`
}
