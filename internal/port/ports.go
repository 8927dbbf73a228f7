// Package port defines the interfaces (ports) for external
// dependencies. Following hexagonal architecture, these ports decouple
// the service layer from concrete store implementations.
package port

import (
	"context"

	"github.com/sme-tools/pdde-ledger/internal/domain"
)

// LedgerStore persists account documents keyed by account name. The
// service layer holds the working set in memory; the store is the
// durable copy. Writes are whole-document: an account is always saved
// with its full program list, opening balances and movement history.
type LedgerStore interface {
	// LoadAllAccounts returns every stored account, normalized.
	LoadAllAccounts(ctx context.Context) (map[string]*domain.Account, error)
	// SaveAccount upserts the document for name.
	SaveAccount(ctx context.Context, name string, acct *domain.Account) error
	// DeleteAccount removes the document for name. Deleting a missing
	// account is not an error.
	DeleteAccount(ctx context.Context, name string) error
	// Ping reports whether the store is reachable.
	Ping(ctx context.Context) error
}

// PurchaseOrderStore persists purchase orders keyed by id.
type PurchaseOrderStore interface {
	LoadAllPurchaseOrders(ctx context.Context) ([]domain.PurchaseOrder, error)
	SavePurchaseOrder(ctx context.Context, po *domain.PurchaseOrder) error
	DeletePurchaseOrder(ctx context.Context, id string) error
}

// AttachmentStore holds one small receipt blob per purchase order.
type AttachmentStore interface {
	PutAttachment(ctx context.Context, orderID string, att *domain.Attachment) error
	// GetAttachment returns the stored blob, or ErrNotFound when the
	// order has none.
	GetAttachment(ctx context.Context, orderID string) (*domain.Attachment, error)
	DeleteAttachment(ctx context.Context, orderID string) error
}

// Cache provides generic caching with TTL.
type Cache[T any] interface {
	Get(key string) (T, bool)
	Set(key string, value T)
	Delete(key string)
	// DeletePrefix evicts every key starting with prefix. Used to drop
	// all cached statements of an account after a write.
	DeletePrefix(prefix string)
}
