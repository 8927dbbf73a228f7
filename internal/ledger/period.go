package ledger

import "github.com/sme-tools/pdde-ledger/internal/domain"

// ReplacePeriod removes every movement of (year, month) across all
// programs and appends movs in their place. Saving a period always
// supersedes the whole period: a program present in the old period but
// absent from movs loses its entry. Replacing with an identical set is
// a no-op in effect, so re-saving is idempotent.
func ReplacePeriod(acct *domain.Account, year, month int, movs []domain.Movement) {
	kept := acct.Movements[:0]
	for _, m := range acct.Movements {
		if !m.InPeriod(year, month) {
			kept = append(kept, m)
		}
	}
	acct.Movements = append(kept, movs...)
}
