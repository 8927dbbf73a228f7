package handler

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"

	"github.com/sme-tools/pdde-ledger/internal/domain"
	"github.com/sme-tools/pdde-ledger/internal/service"
)

// ============================================================
// Statements Handler
// ============================================================

func statementHandler(svc *service.LedgerService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "GET /v1/accounts/{account}/statement")
		defer span.End()

		name := chi.URLParam(r, "account")

		program := r.URL.Query().Get("program")
		if program == "" {
			program = domain.AllPrograms
		}
		year, err := queryInt(r, "year", time.Now().Year())
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		span.SetAttributes(
			attribute.String("account.name", name),
			attribute.String("program", program),
			attribute.Int("statement.year", year),
		)

		rows, err := svc.Statement(ctx, name, program, year)
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeJSON(w, http.StatusOK, domain.ListResponse[domain.StatementRow]{Data: rows, Total: len(rows)})
	}
}
