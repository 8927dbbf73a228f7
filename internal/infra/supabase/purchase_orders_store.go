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
// Purchase orders: registry documents via PostgREST (implements
// port.PurchaseOrderStore)
// ============================================================

// orderRow maps the pdde_purchase_orders table.
type orderRow struct {
	ID  string          `json:"id"`
	Doc json.RawMessage `json:"doc"`
}

// LoadAllPurchaseOrders fetches every stored purchase order.
func (c *Client) LoadAllPurchaseOrders(ctx context.Context) ([]domain.PurchaseOrder, error) {
	ctx, span := tracer.Start(ctx, "Supabase.LoadAllPurchaseOrders")
	defer span.End()

	var orders []domain.PurchaseOrder

	err := c.execute(ctx, "supabase/purchase_orders", func() error {
		body, err := c.doRequest(ctx, http.MethodGet, ordersTable+"?select=id,doc&order=id.asc", nil, "")
		if err != nil {
			return err
		}
		rows, err := decodeRows[orderRow](body)
		if err != nil {
			return err
		}

		loaded := make([]domain.PurchaseOrder, 0, len(rows))
		for _, row := range rows {
			var po domain.PurchaseOrder
			if err := json.Unmarshal(row.Doc, &po); err != nil {
				return fmt.Errorf("purchase order %q: malformed document: %w", row.ID, err)
			}
			if po.Status == "" {
				po.Status = domain.OrderStatusIssued
			}
			loaded = append(loaded, po)
		}
		orders = loaded
		return nil
	})
	if err != nil {
		return nil, err
	}

	c.logger.Info("supabase: purchase orders loaded", zap.Int("count", len(orders)))
	span.SetAttributes(attribute.Int("orders.count", len(orders)))
	return orders, nil
}

// SavePurchaseOrder upserts the order document by id.
func (c *Client) SavePurchaseOrder(ctx context.Context, po *domain.PurchaseOrder) error {
	ctx, span := tracer.Start(ctx, "Supabase.SavePurchaseOrder")
	defer span.End()
	span.SetAttributes(attribute.String("order.id", po.ID))

	return c.execute(ctx, "supabase/purchase_orders", func() error {
		payload := map[string]any{"id": po.ID, "doc": po}
		_, err := c.doRequest(ctx, http.MethodPost, ordersTable+"?on_conflict=id", payload, preferUpsert)
		return err
	})
}

// DeletePurchaseOrder removes the order document.
func (c *Client) DeletePurchaseOrder(ctx context.Context, id string) error {
	ctx, span := tracer.Start(ctx, "Supabase.DeletePurchaseOrder")
	defer span.End()
	span.SetAttributes(attribute.String("order.id", id))

	return c.execute(ctx, "supabase/purchase_orders", func() error {
		_, err := c.doRequest(ctx, http.MethodDelete, ordersTable+"?"+eqFilter("id", id), nil, "")
		return err
	})
}
