package service

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"

	"github.com/sme-tools/pdde-ledger/internal/domain"
	"github.com/sme-tools/pdde-ledger/internal/infra/observability"
	"github.com/sme-tools/pdde-ledger/internal/infra/resilience"
	"github.com/sme-tools/pdde-ledger/internal/port"
)

var orderTracer = otel.Tracer("service/purchase_orders")

const issueDateLayout = "2006-01-02"

// AccountDirectory answers existence questions about accounts and
// their programs. LedgerService implements it; purchase orders refuse
// to reference accounts the ledger does not know.
type AccountDirectory interface {
	HasAccount(name string) bool
	HasAccountProgram(account, program string) bool
}

// PurchaseOrderService keeps the purchase order registry in memory,
// mirrored to its store the same way LedgerService mirrors accounts.
// Orders never touch balances; the ledger sees their money only when
// the school types the debit into a period.
type PurchaseOrderService struct {
	store       port.PurchaseOrderStore
	attachments port.AttachmentStore
	directory   AccountDirectory
	bulkhead    *resilience.Bulkhead
	maxBytes    int64
	metrics     *observability.Metrics
	logger      *zap.Logger

	mu     sync.RWMutex
	orders map[string]*domain.PurchaseOrder
}

// NewPurchaseOrderService creates the registry; call Load to hydrate.
func NewPurchaseOrderService(store port.PurchaseOrderStore, attachments port.AttachmentStore, directory AccountDirectory, bulkhead *resilience.Bulkhead, maxAttachmentBytes int64, metrics *observability.Metrics, logger *zap.Logger) *PurchaseOrderService {
	return &PurchaseOrderService{
		store:       store,
		attachments: attachments,
		directory:   directory,
		bulkhead:    bulkhead,
		maxBytes:    maxAttachmentBytes,
		metrics:     metrics,
		logger:      logger,
		orders:      make(map[string]*domain.PurchaseOrder),
	}
}

// MaxAttachmentBytes returns the receipt size cap.
func (s *PurchaseOrderService) MaxAttachmentBytes() int64 {
	return s.maxBytes
}

// Load replaces the registry with the store's contents.
func (s *PurchaseOrderService) Load(ctx context.Context) error {
	ctx, span := orderTracer.Start(ctx, "PurchaseOrderService.Load")
	defer span.End()

	if err := s.bulkhead.Acquire(ctx); err != nil {
		return err
	}
	defer s.bulkhead.Release()

	orders, err := s.store.LoadAllPurchaseOrders(ctx)
	if err != nil {
		s.metrics.IncrStoreError("purchase_orders")
		s.logger.Warn("purchase orders: load failed, keeping in-memory registry", zap.Error(err))
		return err
	}

	byID := make(map[string]*domain.PurchaseOrder, len(orders))
	for i := range orders {
		byID[orders[i].ID] = &orders[i]
	}

	s.mu.Lock()
	s.orders = byID
	s.mu.Unlock()

	span.SetAttributes(attribute.Int("orders.count", len(orders)))
	s.logger.Info("purchase orders: registry hydrated", zap.Int("orders", len(orders)))
	return nil
}

// List returns the orders of one account, optionally narrowed to a
// program and an issue year, sorted by issue date then number.
func (s *PurchaseOrderService) List(ctx context.Context, account, program string, year int) []domain.PurchaseOrder {
	_, span := orderTracer.Start(ctx, "PurchaseOrderService.List")
	defer span.End()
	span.SetAttributes(attribute.String("account.name", account))

	s.mu.RLock()
	defer s.mu.RUnlock()

	out := []domain.PurchaseOrder{}
	for _, po := range s.orders {
		if po.Account != account {
			continue
		}
		if program != "" && po.Program != program {
			continue
		}
		if year != 0 {
			t, err := time.Parse(issueDateLayout, po.IssueDate)
			if err != nil || t.Year() != year {
				continue
			}
		}
		out = append(out, *po)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].IssueDate != out[j].IssueDate {
			return out[i].IssueDate < out[j].IssueDate
		}
		return out[i].Number < out[j].Number
	})
	return out
}

// Get returns a copy of one order.
func (s *PurchaseOrderService) Get(ctx context.Context, id string) (*domain.PurchaseOrder, error) {
	_, span := orderTracer.Start(ctx, "PurchaseOrderService.Get")
	defer span.End()
	span.SetAttributes(attribute.String("order.id", id))

	s.mu.RLock()
	defer s.mu.RUnlock()

	po, ok := s.orders[id]
	if !ok {
		return nil, &domain.ErrNotFound{Resource: "purchase order", ID: id}
	}
	out := *po
	return &out, nil
}

// Create validates and registers a new order. ID and timestamps are
// assigned here; the caller fills the descriptive fields.
func (s *PurchaseOrderService) Create(ctx context.Context, po *domain.PurchaseOrder) (*domain.PurchaseOrder, bool, error) {
	ctx, span := orderTracer.Start(ctx, "PurchaseOrderService.Create")
	defer span.End()
	span.SetAttributes(
		attribute.String("account.name", po.Account),
		attribute.String("program", po.Program),
	)

	if err := s.validate(po); err != nil {
		return nil, false, err
	}
	if po.Status == "" {
		po.Status = domain.OrderStatusIssued
	}

	now := time.Now().UTC()
	po.ID = uuid.NewString()
	po.HasReceipt = false
	po.CreatedAt = now
	po.UpdatedAt = now

	s.mu.Lock()
	defer s.mu.Unlock()

	s.orders[po.ID] = po
	durable := s.persistOrder(ctx, po)

	s.logger.Info("purchase orders: created",
		zap.String("id", po.ID),
		zap.String("account", po.Account),
		zap.String("number", po.Number),
		zap.Bool("durable", durable),
	)
	out := *po
	return &out, durable, nil
}

// Update applies the non-nil fields of upd to an order.
func (s *PurchaseOrderService) Update(ctx context.Context, id string, upd domain.PurchaseOrderUpdate) (*domain.PurchaseOrder, bool, error) {
	ctx, span := orderTracer.Start(ctx, "PurchaseOrderService.Update")
	defer span.End()
	span.SetAttributes(attribute.String("order.id", id))

	s.mu.Lock()
	defer s.mu.Unlock()

	po, ok := s.orders[id]
	if !ok {
		return nil, false, &domain.ErrNotFound{Resource: "purchase order", ID: id}
	}

	if upd.Status != nil && !domain.ValidOrderStatus(*upd.Status) {
		return nil, false, &domain.ErrValidation{Field: "status", Message: fmt.Sprintf("unknown status %q", *upd.Status)}
	}
	if upd.Amount != nil && *upd.Amount < 0 {
		return nil, false, &domain.ErrValidation{Field: "amount", Message: "amount must not be negative"}
	}
	if upd.IssueDate != nil {
		if _, err := time.Parse(issueDateLayout, *upd.IssueDate); err != nil {
			return nil, false, &domain.ErrValidation{Field: "issue_date", Message: "expected YYYY-MM-DD"}
		}
	}
	if upd.Supplier != nil && strings.TrimSpace(*upd.Supplier) == "" {
		return nil, false, &domain.ErrValidation{Field: "supplier", Message: "supplier is required"}
	}

	if upd.Supplier != nil {
		po.Supplier = *upd.Supplier
	}
	if upd.Description != nil {
		po.Description = *upd.Description
	}
	if upd.Amount != nil {
		po.Amount = *upd.Amount
	}
	if upd.Status != nil {
		po.Status = *upd.Status
	}
	if upd.IssueDate != nil {
		po.IssueDate = *upd.IssueDate
	}
	po.UpdatedAt = time.Now().UTC()

	durable := s.persistOrder(ctx, po)
	s.logger.Info("purchase orders: updated", zap.String("id", id), zap.Bool("durable", durable))
	out := *po
	return &out, durable, nil
}

// Delete removes an order and, best effort, its receipt.
func (s *PurchaseOrderService) Delete(ctx context.Context, id string) (bool, error) {
	ctx, span := orderTracer.Start(ctx, "PurchaseOrderService.Delete")
	defer span.End()
	span.SetAttributes(attribute.String("order.id", id))

	s.mu.Lock()
	defer s.mu.Unlock()

	po, ok := s.orders[id]
	if !ok {
		return false, &domain.ErrNotFound{Resource: "purchase order", ID: id}
	}
	delete(s.orders, id)

	durable := true
	if err := s.store.DeletePurchaseOrder(ctx, id); err != nil {
		durable = false
		s.metrics.IncrStoreError("purchase_orders")
		s.logger.Error("purchase orders: removed in memory but not in store", zap.String("id", id), zap.Error(err))
	}
	if po.HasReceipt {
		if err := s.attachments.DeleteAttachment(ctx, id); err != nil {
			s.metrics.IncrStoreError("attachments")
			s.logger.Warn("purchase orders: orphaned receipt", zap.String("id", id), zap.Error(err))
		}
	}
	s.logger.Info("purchase orders: deleted", zap.String("id", id), zap.Bool("durable", durable))
	return durable, nil
}

// validate checks a new order against the ledger directory and the
// field rules shared with Update.
func (s *PurchaseOrderService) validate(po *domain.PurchaseOrder) error {
	if !s.directory.HasAccount(po.Account) {
		return &domain.ErrNotFound{Resource: "account", ID: po.Account}
	}
	if !s.directory.HasAccountProgram(po.Account, po.Program) {
		return &domain.ErrNotFound{Resource: "program", ID: po.Program}
	}
	if strings.TrimSpace(po.Number) == "" {
		return &domain.ErrValidation{Field: "number", Message: "order number is required"}
	}
	if strings.TrimSpace(po.Supplier) == "" {
		return &domain.ErrValidation{Field: "supplier", Message: "supplier is required"}
	}
	if po.Amount < 0 {
		return &domain.ErrValidation{Field: "amount", Message: "amount must not be negative"}
	}
	if po.Resource != domain.Capital && po.Resource != domain.Custeio {
		return &domain.ErrValidation{Field: "resource_kind", Message: "must be Capital or Custeio"}
	}
	if po.Status != "" && !domain.ValidOrderStatus(po.Status) {
		return &domain.ErrValidation{Field: "status", Message: fmt.Sprintf("unknown status %q", po.Status)}
	}
	if _, err := time.Parse(issueDateLayout, po.IssueDate); err != nil {
		return &domain.ErrValidation{Field: "issue_date", Message: "expected YYYY-MM-DD"}
	}
	return nil
}

// persistOrder writes one order document. The caller must hold the
// write lock.
func (s *PurchaseOrderService) persistOrder(ctx context.Context, po *domain.PurchaseOrder) bool {
	if err := s.bulkhead.Acquire(ctx); err != nil {
		s.metrics.IncrStoreError("purchase_orders")
		s.logger.Error("purchase orders: not durably saved", zap.String("id", po.ID), zap.Error(err))
		return false
	}
	defer s.bulkhead.Release()

	if err := s.store.SavePurchaseOrder(ctx, po); err != nil {
		s.metrics.IncrStoreError("purchase_orders")
		s.logger.Error("purchase orders: not durably saved", zap.String("id", po.ID), zap.Error(err))
		return false
	}
	return true
}
