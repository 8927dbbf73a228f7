package domain

// ============================================================
// Accounts and programs
// ============================================================

// ResourceKind selects which component of a balance an operation
// applies to. Grant money is earmarked as either capital (equipment,
// permanent goods) or custeio (consumables, services).
type ResourceKind string

const (
	Capital ResourceKind = "Capital"
	Custeio ResourceKind = "Custeio"
	Total   ResourceKind = "Total"
)

// ParseResourceKind converts a wire value into a ResourceKind.
func ParseResourceKind(s string) (ResourceKind, error) {
	switch ResourceKind(s) {
	case Capital, Custeio, Total:
		return ResourceKind(s), nil
	}
	return "", &ErrValidation{Field: "resource_kind", Message: "must be Capital, Custeio or Total"}
}

// AllPrograms selects every program of an account in statement calls.
const AllPrograms = "ALL"

// OpeningBalance is the manually entered starting position of one
// program, predating any tracked movement.
type OpeningBalance struct {
	Capital float64 `json:"Capital"`
	Custeio float64 `json:"Custeio"`
}

// Component returns the balance component matching kind. Total is the
// sum of both components.
func (b OpeningBalance) Component(kind ResourceKind) float64 {
	switch kind {
	case Capital:
		return b.Capital
	case Custeio:
		return b.Custeio
	default:
		return b.Capital + b.Custeio
	}
}

// Account is one tracked school bank account: the funding programs it
// participates in, their opening balances and the full movement
// history. Field names follow the persisted document contract.
type Account struct {
	Programs        []string                  `json:"programs"`
	OpeningBalances map[string]OpeningBalance `json:"saldosIniciais"`
	Movements       []Movement                `json:"movimentacoes"`
}

// NewAccount returns an empty account with all collections
// materialized, so a freshly registered account persists as
// {"programs":[],"saldosIniciais":{},"movimentacoes":[]}.
func NewAccount() *Account {
	return &Account{
		Programs:        []string{},
		OpeningBalances: map[string]OpeningBalance{},
		Movements:       []Movement{},
	}
}

// HasProgram reports whether the account participates in program.
func (a *Account) HasProgram(program string) bool {
	for _, p := range a.Programs {
		if p == program {
			return true
		}
	}
	return false
}

// Normalize materializes optional collections after decoding and
// validates the structural invariants of every stored movement. It is
// called at the store boundary on every read.
func (a *Account) Normalize() error {
	if a.Programs == nil {
		a.Programs = []string{}
	}
	if a.OpeningBalances == nil {
		a.OpeningBalances = map[string]OpeningBalance{}
	}
	if a.Movements == nil {
		a.Movements = []Movement{}
	}
	for i := range a.Movements {
		if err := a.Movements[i].Validate(); err != nil {
			return err
		}
	}
	return nil
}
