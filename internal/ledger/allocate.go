package ledger

import (
	"fmt"
	"math"
	"sort"

	"github.com/sme-tools/pdde-ledger/internal/domain"
)

// Allocate computes the finalized movement set for one account period.
// For each entered program it derives the pre-interest base
//
//	base = max(0, prior balance + credit - debit)
//
// per component, then splits the bank-reported interest figure across
// components in proportion to base / account total. When every base is
// zero or negative the shares are all zero and the interest is
// dropped; that is the defined outcome of an account with no positive
// balance, not an error.
//
// One movement is emitted per entered program, in program name order,
// with totals derived once via domain.FinalizeTotals. Allocate never
// touches the account; committing the result is ReplacePeriod's job.
func Allocate(acct *domain.Account, month, year int, bankInterest float64, input map[string]domain.MovementInput) ([]domain.Movement, error) {
	if month < 1 || month > 12 {
		return nil, &domain.ErrValidation{Field: "month", Message: fmt.Sprintf("month %d out of range", month)}
	}
	if year < 1 {
		return nil, &domain.ErrValidation{Field: "year", Message: "year is required"}
	}
	if len(input) == 0 {
		return nil, &domain.ErrValidation{Field: "entries", Message: "at least one program entry is required"}
	}

	programs := make([]string, 0, len(input))
	for prog := range input {
		programs = append(programs, prog)
	}
	sort.Strings(programs)

	type base struct {
		capital float64
		custeio float64
	}
	bases := make(map[string]base, len(input))
	accountTotal := 0.0

	for _, prog := range programs {
		in := input[prog]
		if !acct.HasProgram(prog) {
			return nil, &domain.ErrValidation{Field: "program", Message: fmt.Sprintf("account does not track program %q", prog)}
		}
		if in.CreditCapital < 0 || in.CreditCusteio < 0 || in.DebitCapital < 0 || in.DebitCusteio < 0 {
			return nil, &domain.ErrValidation{Field: prog, Message: "credits and debits must not be negative"}
		}
		b := base{
			capital: math.Max(0, ResolveBalance(acct, prog, domain.Capital, month, year)+in.CreditCapital-in.DebitCapital),
			custeio: math.Max(0, ResolveBalance(acct, prog, domain.Custeio, month, year)+in.CreditCusteio-in.DebitCusteio),
		}
		bases[prog] = b
		accountTotal += b.capital + b.custeio
	}

	movements := make([]domain.Movement, 0, len(programs))
	for _, prog := range programs {
		in := input[prog]
		var shareCapital, shareCusteio float64
		if accountTotal > 0 {
			shareCapital = bases[prog].capital / accountTotal
			shareCusteio = bases[prog].custeio / accountTotal
		}
		m := domain.Movement{
			Program:         prog,
			Month:           month,
			Year:            year,
			CreditCapital:   in.CreditCapital,
			CreditCusteio:   in.CreditCusteio,
			DebitCapital:    in.DebitCapital,
			DebitCusteio:    in.DebitCusteio,
			InterestCapital: bankInterest * shareCapital,
			InterestCusteio: bankInterest * shareCusteio,
		}
		domain.FinalizeTotals(&m)
		movements = append(movements, m)
	}
	return movements, nil
}

// AllocatedInterest sums the interest columns of an allocation result.
// When it differs from the figure handed to Allocate the remainder was
// dropped for lack of a positive base.
func AllocatedInterest(movs []domain.Movement) float64 {
	total := 0.0
	for _, m := range movs {
		total += m.TotalInterest
	}
	return total
}
