package supabase

import (
	"context"
	"encoding/base64"
	"fmt"
	"net/http"

	"go.opentelemetry.io/otel/attribute"

	"github.com/sme-tools/pdde-ledger/internal/domain"
)

// ============================================================
// Receipt attachments: one blob per purchase order (implements
// port.AttachmentStore)
// ============================================================

// attachmentRow maps the pdde_attachments table. Blobs are capped by
// config and stored base64 in a text column.
type attachmentRow struct {
	OrderID     string `json:"order_id"`
	Filename    string `json:"filename"`
	ContentType string `json:"content_type"`
	ContentB64  string `json:"content_b64"`
}

// PutAttachment stores or replaces the receipt of a purchase order.
func (c *Client) PutAttachment(ctx context.Context, orderID string, att *domain.Attachment) error {
	ctx, span := tracer.Start(ctx, "Supabase.PutAttachment")
	defer span.End()
	span.SetAttributes(attribute.String("order.id", orderID))

	return c.execute(ctx, "supabase/attachments", func() error {
		payload := attachmentRow{
			OrderID:     orderID,
			Filename:    att.Filename,
			ContentType: att.ContentType,
			ContentB64:  base64.StdEncoding.EncodeToString(att.Data),
		}
		_, err := c.doRequest(ctx, http.MethodPost, attachmentsTable+"?on_conflict=order_id", payload, preferUpsert)
		return err
	})
}

// GetAttachment fetches the receipt of a purchase order.
func (c *Client) GetAttachment(ctx context.Context, orderID string) (*domain.Attachment, error) {
	ctx, span := tracer.Start(ctx, "Supabase.GetAttachment")
	defer span.End()
	span.SetAttributes(attribute.String("order.id", orderID))

	var att *domain.Attachment

	err := c.execute(ctx, "supabase/attachments", func() error {
		path := attachmentsTable + "?" + eqFilter("order_id", orderID) + "&limit=1"
		body, err := c.doRequest(ctx, http.MethodGet, path, nil, "")
		if err != nil {
			return err
		}
		rows, err := decodeRows[attachmentRow](body)
		if err != nil {
			return err
		}
		if len(rows) == 0 {
			return &domain.ErrNotFound{Resource: "attachment", ID: orderID}
		}

		data, err := base64.StdEncoding.DecodeString(rows[0].ContentB64)
		if err != nil {
			return fmt.Errorf("attachment %q: corrupt content: %w", orderID, err)
		}
		att = &domain.Attachment{
			Filename:    rows[0].Filename,
			ContentType: rows[0].ContentType,
			Data:        data,
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return att, nil
}

// DeleteAttachment removes the receipt of a purchase order, if any.
func (c *Client) DeleteAttachment(ctx context.Context, orderID string) error {
	ctx, span := tracer.Start(ctx, "Supabase.DeleteAttachment")
	defer span.End()
	span.SetAttributes(attribute.String("order.id", orderID))

	return c.execute(ctx, "supabase/attachments", func() error {
		_, err := c.doRequest(ctx, http.MethodDelete, attachmentsTable+"?"+eqFilter("order_id", orderID), nil, "")
		return err
	})
}
