// Package sqlite persists ledger documents in a local SQLite file.
// This is the default backend: schools run the tool on a single
// machine and a file under data/ survives restarts without any
// external service.
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"

	"github.com/sme-tools/pdde-ledger/internal/domain"

	_ "modernc.org/sqlite"
)

var tracer = otel.Tracer("sqlite")

// Store implements port.LedgerStore, port.PurchaseOrderStore and
// port.AttachmentStore over one database file.
type Store struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewStore opens (or creates) the database file and migrates the
// schema.
func NewStore(dbPath string, logger *zap.Logger) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	if err := RunMigrations(dbPath); err != nil {
		return nil, err
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	logger.Info("sqlite: store ready", zap.String("path", dbPath))
	return &Store{db: db, logger: logger}, nil
}

// Close releases the database handle.
func (s *Store) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

// Ping reports whether the database file is still usable.
func (s *Store) Ping(ctx context.Context) error {
	if err := s.db.PingContext(ctx); err != nil {
		return &domain.ErrExternalService{Service: "sqlite", Err: err}
	}
	return nil
}

// ============================================================
// Accounts (port.LedgerStore)
// ============================================================

// LoadAllAccounts reads and validates every account document.
func (s *Store) LoadAllAccounts(ctx context.Context) (map[string]*domain.Account, error) {
	ctx, span := tracer.Start(ctx, "SQLite.LoadAllAccounts")
	defer span.End()

	rows, err := s.db.QueryContext(ctx, `SELECT name, doc FROM accounts ORDER BY name`)
	if err != nil {
		return nil, &domain.ErrExternalService{Service: "sqlite/ledger", Err: err}
	}
	defer rows.Close()

	accounts := make(map[string]*domain.Account)
	for rows.Next() {
		var name, doc string
		if err := rows.Scan(&name, &doc); err != nil {
			return nil, &domain.ErrExternalService{Service: "sqlite/ledger", Err: err}
		}
		var acct domain.Account
		if err := json.Unmarshal([]byte(doc), &acct); err != nil {
			return nil, &domain.ErrExternalService{
				Service: "sqlite/ledger",
				Err:     fmt.Errorf("account %q: malformed document: %w", name, err),
			}
		}
		if err := acct.Normalize(); err != nil {
			return nil, &domain.ErrExternalService{
				Service: "sqlite/ledger",
				Err:     fmt.Errorf("account %q: %w", name, err),
			}
		}
		accounts[name] = &acct
	}
	if err := rows.Err(); err != nil {
		return nil, &domain.ErrExternalService{Service: "sqlite/ledger", Err: err}
	}

	s.logger.Info("sqlite: accounts loaded", zap.Int("count", len(accounts)))
	span.SetAttributes(attribute.Int("accounts.count", len(accounts)))
	return accounts, nil
}

// SaveAccount upserts the whole document for name.
func (s *Store) SaveAccount(ctx context.Context, name string, acct *domain.Account) error {
	ctx, span := tracer.Start(ctx, "SQLite.SaveAccount")
	defer span.End()
	span.SetAttributes(attribute.String("account.name", name))

	doc, err := json.Marshal(acct)
	if err != nil {
		return &domain.ErrExternalService{Service: "sqlite/ledger", Err: err}
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO accounts (name, doc) VALUES (?, ?)
		 ON CONFLICT(name) DO UPDATE SET doc = excluded.doc`,
		name, string(doc),
	)
	if err != nil {
		return &domain.ErrExternalService{Service: "sqlite/ledger", Err: err}
	}
	return nil
}

// DeleteAccount removes the document for name; missing rows are fine.
func (s *Store) DeleteAccount(ctx context.Context, name string) error {
	ctx, span := tracer.Start(ctx, "SQLite.DeleteAccount")
	defer span.End()
	span.SetAttributes(attribute.String("account.name", name))

	if _, err := s.db.ExecContext(ctx, `DELETE FROM accounts WHERE name = ?`, name); err != nil {
		return &domain.ErrExternalService{Service: "sqlite/ledger", Err: err}
	}
	return nil
}

// ============================================================
// Purchase orders (port.PurchaseOrderStore)
// ============================================================

// LoadAllPurchaseOrders reads every stored purchase order.
func (s *Store) LoadAllPurchaseOrders(ctx context.Context) ([]domain.PurchaseOrder, error) {
	ctx, span := tracer.Start(ctx, "SQLite.LoadAllPurchaseOrders")
	defer span.End()

	rows, err := s.db.QueryContext(ctx, `SELECT id, doc FROM purchase_orders ORDER BY id`)
	if err != nil {
		return nil, &domain.ErrExternalService{Service: "sqlite/purchase_orders", Err: err}
	}
	defer rows.Close()

	orders := []domain.PurchaseOrder{}
	for rows.Next() {
		var id, doc string
		if err := rows.Scan(&id, &doc); err != nil {
			return nil, &domain.ErrExternalService{Service: "sqlite/purchase_orders", Err: err}
		}
		var po domain.PurchaseOrder
		if err := json.Unmarshal([]byte(doc), &po); err != nil {
			return nil, &domain.ErrExternalService{
				Service: "sqlite/purchase_orders",
				Err:     fmt.Errorf("purchase order %q: malformed document: %w", id, err),
			}
		}
		if po.Status == "" {
			po.Status = domain.OrderStatusIssued
		}
		orders = append(orders, po)
	}
	if err := rows.Err(); err != nil {
		return nil, &domain.ErrExternalService{Service: "sqlite/purchase_orders", Err: err}
	}

	span.SetAttributes(attribute.Int("orders.count", len(orders)))
	return orders, nil
}

// SavePurchaseOrder upserts the order document by id.
func (s *Store) SavePurchaseOrder(ctx context.Context, po *domain.PurchaseOrder) error {
	ctx, span := tracer.Start(ctx, "SQLite.SavePurchaseOrder")
	defer span.End()
	span.SetAttributes(attribute.String("order.id", po.ID))

	doc, err := json.Marshal(po)
	if err != nil {
		return &domain.ErrExternalService{Service: "sqlite/purchase_orders", Err: err}
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO purchase_orders (id, doc) VALUES (?, ?)
		 ON CONFLICT(id) DO UPDATE SET doc = excluded.doc`,
		po.ID, string(doc),
	)
	if err != nil {
		return &domain.ErrExternalService{Service: "sqlite/purchase_orders", Err: err}
	}
	return nil
}

// DeletePurchaseOrder removes the order document.
func (s *Store) DeletePurchaseOrder(ctx context.Context, id string) error {
	ctx, span := tracer.Start(ctx, "SQLite.DeletePurchaseOrder")
	defer span.End()
	span.SetAttributes(attribute.String("order.id", id))

	if _, err := s.db.ExecContext(ctx, `DELETE FROM purchase_orders WHERE id = ?`, id); err != nil {
		return &domain.ErrExternalService{Service: "sqlite/purchase_orders", Err: err}
	}
	return nil
}

// ============================================================
// Receipt attachments (port.AttachmentStore)
// ============================================================

// PutAttachment stores or replaces the receipt of a purchase order.
func (s *Store) PutAttachment(ctx context.Context, orderID string, att *domain.Attachment) error {
	ctx, span := tracer.Start(ctx, "SQLite.PutAttachment")
	defer span.End()
	span.SetAttributes(attribute.String("order.id", orderID))

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO attachments (order_id, filename, content_type, content) VALUES (?, ?, ?, ?)
		 ON CONFLICT(order_id) DO UPDATE SET
		   filename = excluded.filename,
		   content_type = excluded.content_type,
		   content = excluded.content`,
		orderID, att.Filename, att.ContentType, att.Data,
	)
	if err != nil {
		return &domain.ErrExternalService{Service: "sqlite/attachments", Err: err}
	}
	return nil
}

// GetAttachment fetches the receipt of a purchase order.
func (s *Store) GetAttachment(ctx context.Context, orderID string) (*domain.Attachment, error) {
	ctx, span := tracer.Start(ctx, "SQLite.GetAttachment")
	defer span.End()
	span.SetAttributes(attribute.String("order.id", orderID))

	var att domain.Attachment
	err := s.db.QueryRowContext(ctx,
		`SELECT filename, content_type, content FROM attachments WHERE order_id = ?`,
		orderID,
	).Scan(&att.Filename, &att.ContentType, &att.Data)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, &domain.ErrNotFound{Resource: "attachment", ID: orderID}
	}
	if err != nil {
		return nil, &domain.ErrExternalService{Service: "sqlite/attachments", Err: err}
	}
	return &att, nil
}

// DeleteAttachment removes the receipt of a purchase order, if any.
func (s *Store) DeleteAttachment(ctx context.Context, orderID string) error {
	ctx, span := tracer.Start(ctx, "SQLite.DeleteAttachment")
	defer span.End()
	span.SetAttributes(attribute.String("order.id", orderID))

	if _, err := s.db.ExecContext(ctx, `DELETE FROM attachments WHERE order_id = ?`, orderID); err != nil {
		return &domain.ErrExternalService{Service: "sqlite/attachments", Err: err}
	}
	return nil
}
