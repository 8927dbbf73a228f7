package service

import (
	"context"

	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"

	"github.com/sme-tools/pdde-ledger/internal/domain"
)

// AttachReceipt stores the scanned receipt for an order and marks the
// order. Oversized files are rejected before anything is written.
func (s *PurchaseOrderService) AttachReceipt(ctx context.Context, id string, att *domain.Attachment) (bool, error) {
	ctx, span := orderTracer.Start(ctx, "PurchaseOrderService.AttachReceipt")
	defer span.End()
	span.SetAttributes(
		attribute.String("order.id", id),
		attribute.Int("receipt.bytes", len(att.Data)),
	)

	if int64(len(att.Data)) > s.maxBytes {
		return false, &domain.ErrLimitExceeded{
			LimitType: "attachment_size",
			Limit:     float64(s.maxBytes),
			Current:   float64(len(att.Data)),
		}
	}
	if len(att.Data) == 0 {
		return false, &domain.ErrValidation{Field: "file", Message: "receipt is empty"}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	po, ok := s.orders[id]
	if !ok {
		return false, &domain.ErrNotFound{Resource: "purchase order", ID: id}
	}

	if err := s.attachments.PutAttachment(ctx, id, att); err != nil {
		s.metrics.IncrStoreError("attachments")
		s.logger.Error("purchase orders: receipt not saved", zap.String("id", id), zap.Error(err))
		return false, err
	}

	po.HasReceipt = true
	durable := s.persistOrder(ctx, po)
	s.logger.Info("purchase orders: receipt attached",
		zap.String("id", id),
		zap.String("filename", att.Filename),
		zap.Int("bytes", len(att.Data)),
	)
	return durable, nil
}

// Receipt returns the stored receipt for an order.
func (s *PurchaseOrderService) Receipt(ctx context.Context, id string) (*domain.Attachment, error) {
	ctx, span := orderTracer.Start(ctx, "PurchaseOrderService.Receipt")
	defer span.End()
	span.SetAttributes(attribute.String("order.id", id))

	s.mu.RLock()
	_, ok := s.orders[id]
	s.mu.RUnlock()
	if !ok {
		return nil, &domain.ErrNotFound{Resource: "purchase order", ID: id}
	}

	att, err := s.attachments.GetAttachment(ctx, id)
	if err != nil {
		return nil, err
	}
	return att, nil
}

// DeleteReceipt removes the stored receipt and clears the order flag.
func (s *PurchaseOrderService) DeleteReceipt(ctx context.Context, id string) (bool, error) {
	ctx, span := orderTracer.Start(ctx, "PurchaseOrderService.DeleteReceipt")
	defer span.End()
	span.SetAttributes(attribute.String("order.id", id))

	s.mu.Lock()
	defer s.mu.Unlock()

	po, ok := s.orders[id]
	if !ok {
		return false, &domain.ErrNotFound{Resource: "purchase order", ID: id}
	}
	if !po.HasReceipt {
		return false, &domain.ErrNotFound{Resource: "receipt", ID: id}
	}

	if err := s.attachments.DeleteAttachment(ctx, id); err != nil {
		s.metrics.IncrStoreError("attachments")
		s.logger.Error("purchase orders: receipt not deleted", zap.String("id", id), zap.Error(err))
		return false, err
	}

	po.HasReceipt = false
	durable := s.persistOrder(ctx, po)
	s.logger.Info("purchase orders: receipt removed", zap.String("id", id), zap.Bool("durable", durable))
	return durable, nil
}
