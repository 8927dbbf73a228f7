package ledger

import (
	"sort"

	"github.com/sme-tools/pdde-ledger/internal/domain"
)

// BuildStatement produces the yearly statement rows for one program,
// or for every program of the account when program is
// domain.AllPrograms. Running balances are seeded with the balance
// carried into January of the target year, then updated per movement
// in ascending month order. Months without a movement yield no row.
// Each program with at least one row is closed by a synthetic TOTAL
// row carrying the summed columns and the final running balances.
//
// The running balance after any row equals ResolveBalance for the
// following month, so statements and balance lookups can never
// disagree.
func BuildStatement(acct *domain.Account, program string, year int) []domain.StatementRow {
	programs := []string{program}
	if program == domain.AllPrograms {
		programs = acct.Programs
	}

	rows := []domain.StatementRow{}
	for _, prog := range programs {
		runningCapital := ResolveBalance(acct, prog, domain.Capital, 1, year)
		runningCusteio := ResolveBalance(acct, prog, domain.Custeio, 1, year)

		var movs []domain.Movement
		for _, m := range acct.Movements {
			if m.Program == prog && m.EffectiveYear() == year {
				movs = append(movs, m)
			}
		}
		sort.SliceStable(movs, func(i, j int) bool { return movs[i].Month < movs[j].Month })

		var sumCredit, sumInterest, sumDebit float64
		for _, m := range movs {
			runningCapital += m.Delta(domain.Capital)
			runningCusteio += m.Delta(domain.Custeio)
			rows = append(rows, domain.StatementRow{
				Program:        prog,
				Month:          m.Month,
				Credit:         m.TotalCredit,
				Interest:       m.TotalInterest,
				Debit:          m.TotalDebit,
				RunningCusteio: runningCusteio,
				RunningCapital: runningCapital,
				RunningTotal:   runningCapital + runningCusteio,
			})
			sumCredit += m.TotalCredit
			sumInterest += m.TotalInterest
			sumDebit += m.TotalDebit
		}
		if len(movs) > 0 {
			rows = append(rows, domain.StatementRow{
				Program:        domain.TotalRowLabel,
				Credit:         sumCredit,
				Interest:       sumInterest,
				Debit:          sumDebit,
				RunningCusteio: runningCusteio,
				RunningCapital: runningCapital,
				RunningTotal:   runningCapital + runningCusteio,
			})
		}
	}
	return rows
}
