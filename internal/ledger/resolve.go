// Package ledger implements the grant accounting core: balance
// reconstruction, proportional interest allocation, period replacement
// and yearly statement aggregation. Everything here is a pure
// computation over domain values; persistence and locking belong to
// the service layer.
package ledger

import "github.com/sme-tools/pdde-ledger/internal/domain"

// ResolveBalance reconstructs the balance of one program's resource
// component accumulated strictly before the period (year, month): the
// opening balance component plus credit+interest-debit of every
// earlier movement of that program. Movements without a year count
// against the current calendar year.
//
// There is no stored running balance to drift from; every call walks
// the full history. The result is not clamped and may be negative.
func ResolveBalance(acct *domain.Account, program string, kind domain.ResourceKind, month, year int) float64 {
	balance := acct.OpeningBalances[program].Component(kind)
	for _, m := range acct.Movements {
		if m.Program != program || !m.Before(year, month) {
			continue
		}
		balance += m.Delta(kind)
	}
	return balance
}
