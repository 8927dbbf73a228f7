package handler

import (
	"errors"
	"io"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"

	"github.com/sme-tools/pdde-ledger/internal/domain"
	"github.com/sme-tools/pdde-ledger/internal/service"
)

// ============================================================
// Purchase Orders Handlers
// ============================================================

// multipartOverhead is headroom on top of the attachment cap for the
// multipart envelope itself.
const multipartOverhead = 16 << 10

type createPurchaseOrderRequest struct {
	Account      string  `json:"account" validate:"required,min=1"`
	Program      string  `json:"program" validate:"required,min=1"`
	Number       string  `json:"number" validate:"required,min=1"`
	Supplier     string  `json:"supplier" validate:"required,min=1"`
	Description  string  `json:"description"`
	Amount       float64 `json:"amount" validate:"gte=0"`
	ResourceKind string  `json:"resource_kind" validate:"required,oneof=Capital Custeio"`
	Status       string  `json:"status" validate:"omitempty,oneof=emitido liquidado pago cancelado"`
	IssueDate    string  `json:"issue_date" validate:"required,datetime=2006-01-02"`
}

type updatePurchaseOrderRequest struct {
	Supplier    *string  `json:"supplier" validate:"omitempty,min=1"`
	Description *string  `json:"description"`
	Amount      *float64 `json:"amount" validate:"omitempty,gte=0"`
	Status      *string  `json:"status" validate:"omitempty,oneof=emitido liquidado pago cancelado"`
	IssueDate   *string  `json:"issue_date" validate:"omitempty,datetime=2006-01-02"`
}

// purchaseOrderResponse pairs an order with the durability of the
// write that produced it.
type purchaseOrderResponse struct {
	*domain.PurchaseOrder
	Durable bool `json:"durable"`
}

func listPurchaseOrdersHandler(svc *service.PurchaseOrderService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "GET /v1/purchase-orders")
		defer span.End()

		account := r.URL.Query().Get("account")
		if account == "" {
			writeError(w, http.StatusBadRequest, "account is required")
			return
		}
		program := r.URL.Query().Get("program")
		year, err := queryInt(r, "year", 0)
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		span.SetAttributes(attribute.String("account.name", account))

		orders := svc.List(ctx, account, program, year)
		writeJSON(w, http.StatusOK, domain.ListResponse[domain.PurchaseOrder]{Data: orders, Total: len(orders)})
	}
}

func createPurchaseOrderHandler(svc *service.PurchaseOrderService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "POST /v1/purchase-orders")
		defer span.End()

		var req createPurchaseOrderRequest
		if !decodeAndValidate(w, r, &req) {
			return
		}
		span.SetAttributes(
			attribute.String("account.name", req.Account),
			attribute.String("program", req.Program),
		)

		created, durable, err := svc.Create(ctx, &domain.PurchaseOrder{
			Account:     req.Account,
			Program:     req.Program,
			Number:      req.Number,
			Supplier:    req.Supplier,
			Description: req.Description,
			Amount:      req.Amount,
			Resource:    domain.ResourceKind(req.ResourceKind),
			Status:      req.Status,
			IssueDate:   req.IssueDate,
		})
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeJSON(w, http.StatusCreated, purchaseOrderResponse{PurchaseOrder: created, Durable: durable})
	}
}

func getPurchaseOrderHandler(svc *service.PurchaseOrderService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "GET /v1/purchase-orders/{orderId}")
		defer span.End()

		orderID := chi.URLParam(r, "orderId")
		span.SetAttributes(attribute.String("order.id", orderID))

		order, err := svc.Get(ctx, orderID)
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeJSON(w, http.StatusOK, order)
	}
}

func updatePurchaseOrderHandler(svc *service.PurchaseOrderService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "PATCH /v1/purchase-orders/{orderId}")
		defer span.End()

		orderID := chi.URLParam(r, "orderId")
		span.SetAttributes(attribute.String("order.id", orderID))

		var req updatePurchaseOrderRequest
		if !decodeAndValidate(w, r, &req) {
			return
		}

		updated, durable, err := svc.Update(ctx, orderID, domain.PurchaseOrderUpdate{
			Supplier:    req.Supplier,
			Description: req.Description,
			Amount:      req.Amount,
			Status:      req.Status,
			IssueDate:   req.IssueDate,
		})
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeJSON(w, http.StatusOK, purchaseOrderResponse{PurchaseOrder: updated, Durable: durable})
	}
}

func deletePurchaseOrderHandler(svc *service.PurchaseOrderService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "DELETE /v1/purchase-orders/{orderId}")
		defer span.End()

		orderID := chi.URLParam(r, "orderId")
		span.SetAttributes(attribute.String("order.id", orderID))

		durable, err := svc.Delete(ctx, orderID)
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeJSON(w, http.StatusOK, domain.SuccessResponse{
			Message: "purchase order deleted",
			ID:      orderID,
			Durable: boolPtr(durable),
		})
	}
}

// ============================================================
// Receipt upload / download
// ============================================================

func attachReceiptHandler(svc *service.PurchaseOrderService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "PUT /v1/purchase-orders/{orderId}/receipt")
		defer span.End()

		orderID := chi.URLParam(r, "orderId")
		span.SetAttributes(attribute.String("order.id", orderID))

		limit := svc.MaxAttachmentBytes() + multipartOverhead
		r.Body = http.MaxBytesReader(w, r.Body, limit)
		if err := r.ParseMultipartForm(limit); err != nil {
			var tooLarge *http.MaxBytesError
			if errors.As(err, &tooLarge) {
				writeError(w, http.StatusRequestEntityTooLarge, "receipt exceeds the attachment size limit")
				return
			}
			writeError(w, http.StatusBadRequest, "invalid multipart form")
			return
		}

		file, header, err := r.FormFile("file")
		if err != nil {
			writeError(w, http.StatusBadRequest, "file field is required")
			return
		}
		defer file.Close()

		data, err := io.ReadAll(file)
		if err != nil {
			writeError(w, http.StatusBadRequest, "could not read uploaded file")
			return
		}

		durable, err := svc.AttachReceipt(ctx, orderID, &domain.Attachment{
			Filename:    header.Filename,
			ContentType: header.Header.Get("Content-Type"),
			Data:        data,
		})
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeJSON(w, http.StatusOK, domain.SuccessResponse{
			Message: "receipt attached",
			ID:      orderID,
			Durable: boolPtr(durable),
		})
	}
}

func getReceiptHandler(svc *service.PurchaseOrderService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "GET /v1/purchase-orders/{orderId}/receipt")
		defer span.End()

		orderID := chi.URLParam(r, "orderId")
		span.SetAttributes(attribute.String("order.id", orderID))

		att, err := svc.Receipt(ctx, orderID)
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}

		contentType := att.ContentType
		if contentType == "" {
			contentType = "application/octet-stream"
		}
		w.Header().Set("Content-Type", contentType)
		w.Header().Set("Content-Disposition", `attachment; filename="`+att.Filename+`"`)
		w.Header().Set("Content-Length", strconv.Itoa(len(att.Data)))
		w.WriteHeader(http.StatusOK)
		w.Write(att.Data)
	}
}

func deleteReceiptHandler(svc *service.PurchaseOrderService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "DELETE /v1/purchase-orders/{orderId}/receipt")
		defer span.End()

		orderID := chi.URLParam(r, "orderId")
		span.SetAttributes(attribute.String("order.id", orderID))

		durable, err := svc.DeleteReceipt(ctx, orderID)
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeJSON(w, http.StatusOK, domain.SuccessResponse{
			Message: "receipt removed",
			ID:      orderID,
			Durable: boolPtr(durable),
		})
	}
}
