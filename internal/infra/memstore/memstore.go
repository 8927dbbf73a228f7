// Package memstore keeps ledger documents in process memory. It backs
// STORE_BACKEND=memory, where every change is session-only and lost on
// restart, and doubles as the store for service tests.
package memstore

import (
	"context"
	"encoding/json"
	"sync"

	"github.com/sme-tools/pdde-ledger/internal/domain"
)

// Store implements port.LedgerStore, port.PurchaseOrderStore and
// port.AttachmentStore without any durable backing.
type Store struct {
	mu          sync.RWMutex
	accounts    map[string][]byte
	orders      map[string][]byte
	attachments map[string]domain.Attachment
}

// New creates an empty in-memory store.
func New() *Store {
	return &Store{
		accounts:    make(map[string][]byte),
		orders:      make(map[string][]byte),
		attachments: make(map[string]domain.Attachment),
	}
}

// Ping always succeeds; memory is never unreachable.
func (s *Store) Ping(ctx context.Context) error {
	return nil
}

// LoadAllAccounts returns deep copies of every stored account.
func (s *Store) LoadAllAccounts(ctx context.Context) (map[string]*domain.Account, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	accounts := make(map[string]*domain.Account, len(s.accounts))
	for name, doc := range s.accounts {
		var acct domain.Account
		if err := json.Unmarshal(doc, &acct); err != nil {
			return nil, &domain.ErrExternalService{Service: "memstore/ledger", Err: err}
		}
		if err := acct.Normalize(); err != nil {
			return nil, err
		}
		accounts[name] = &acct
	}
	return accounts, nil
}

// SaveAccount stores a snapshot of the document for name.
func (s *Store) SaveAccount(ctx context.Context, name string, acct *domain.Account) error {
	doc, err := json.Marshal(acct)
	if err != nil {
		return &domain.ErrExternalService{Service: "memstore/ledger", Err: err}
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.accounts[name] = doc
	return nil
}

// DeleteAccount removes the document for name.
func (s *Store) DeleteAccount(ctx context.Context, name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.accounts, name)
	return nil
}

// LoadAllPurchaseOrders returns copies of every stored order.
func (s *Store) LoadAllPurchaseOrders(ctx context.Context) ([]domain.PurchaseOrder, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	orders := make([]domain.PurchaseOrder, 0, len(s.orders))
	for _, doc := range s.orders {
		var po domain.PurchaseOrder
		if err := json.Unmarshal(doc, &po); err != nil {
			return nil, &domain.ErrExternalService{Service: "memstore/purchase_orders", Err: err}
		}
		if po.Status == "" {
			po.Status = domain.OrderStatusIssued
		}
		orders = append(orders, po)
	}
	return orders, nil
}

// SavePurchaseOrder stores a snapshot of the order.
func (s *Store) SavePurchaseOrder(ctx context.Context, po *domain.PurchaseOrder) error {
	doc, err := json.Marshal(po)
	if err != nil {
		return &domain.ErrExternalService{Service: "memstore/purchase_orders", Err: err}
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.orders[po.ID] = doc
	return nil
}

// DeletePurchaseOrder removes the order.
func (s *Store) DeletePurchaseOrder(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.orders, id)
	return nil
}

// PutAttachment stores or replaces a receipt blob.
func (s *Store) PutAttachment(ctx context.Context, orderID string, att *domain.Attachment) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	data := make([]byte, len(att.Data))
	copy(data, att.Data)
	s.attachments[orderID] = domain.Attachment{
		Filename:    att.Filename,
		ContentType: att.ContentType,
		Data:        data,
	}
	return nil
}

// GetAttachment fetches a receipt blob.
func (s *Store) GetAttachment(ctx context.Context, orderID string) (*domain.Attachment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	att, ok := s.attachments[orderID]
	if !ok {
		return nil, &domain.ErrNotFound{Resource: "attachment", ID: orderID}
	}
	out := domain.Attachment{
		Filename:    att.Filename,
		ContentType: att.ContentType,
		Data:        make([]byte, len(att.Data)),
	}
	copy(out.Data, att.Data)
	return &out, nil
}

// DeleteAttachment removes a receipt blob.
func (s *Store) DeleteAttachment(ctx context.Context, orderID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.attachments, orderID)
	return nil
}
