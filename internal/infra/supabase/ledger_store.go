package supabase

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"

	"github.com/sme-tools/pdde-ledger/internal/domain"
)

// ============================================================
// Accounts: ledger documents via PostgREST (implements
// port.LedgerStore)
// ============================================================

// accountRow maps the pdde_accounts table: the account name plus the
// whole ledger document as jsonb.
type accountRow struct {
	Name string          `json:"name"`
	Doc  json.RawMessage `json:"doc"`
}

// LoadAllAccounts fetches and validates every account document.
func (c *Client) LoadAllAccounts(ctx context.Context) (map[string]*domain.Account, error) {
	ctx, span := tracer.Start(ctx, "Supabase.LoadAllAccounts")
	defer span.End()

	accounts := make(map[string]*domain.Account)

	err := c.execute(ctx, "supabase/ledger", func() error {
		body, err := c.doRequest(ctx, http.MethodGet, accountsTable+"?select=name,doc&order=name.asc", nil, "")
		if err != nil {
			return err
		}
		rows, err := decodeRows[accountRow](body)
		if err != nil {
			return err
		}

		loaded := make(map[string]*domain.Account, len(rows))
		for _, row := range rows {
			var acct domain.Account
			if err := json.Unmarshal(row.Doc, &acct); err != nil {
				return fmt.Errorf("account %q: malformed document: %w", row.Name, err)
			}
			if err := acct.Normalize(); err != nil {
				return fmt.Errorf("account %q: %w", row.Name, err)
			}
			loaded[row.Name] = &acct
		}
		accounts = loaded
		return nil
	})
	if err != nil {
		return nil, err
	}

	c.logger.Info("supabase: accounts loaded", zap.Int("count", len(accounts)))
	span.SetAttributes(attribute.Int("accounts.count", len(accounts)))
	return accounts, nil
}

// SaveAccount upserts the whole document for name.
func (c *Client) SaveAccount(ctx context.Context, name string, acct *domain.Account) error {
	ctx, span := tracer.Start(ctx, "Supabase.SaveAccount")
	defer span.End()
	span.SetAttributes(attribute.String("account.name", name))

	return c.execute(ctx, "supabase/ledger", func() error {
		payload := map[string]any{"name": name, "doc": acct}
		_, err := c.doRequest(ctx, http.MethodPost, accountsTable+"?on_conflict=name", payload, preferUpsert)
		return err
	})
}

// DeleteAccount removes the document for name. Deleting an account
// that is not stored is a no-op.
func (c *Client) DeleteAccount(ctx context.Context, name string) error {
	ctx, span := tracer.Start(ctx, "Supabase.DeleteAccount")
	defer span.End()
	span.SetAttributes(attribute.String("account.name", name))

	return c.execute(ctx, "supabase/ledger", func() error {
		_, err := c.doRequest(ctx, http.MethodDelete, accountsTable+"?"+eqFilter("name", name), nil, "")
		return err
	})
}
