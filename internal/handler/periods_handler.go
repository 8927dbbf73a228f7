package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"

	"github.com/sme-tools/pdde-ledger/internal/domain"
	"github.com/sme-tools/pdde-ledger/internal/service"
)

// ============================================================
// Periods Handlers
// ============================================================

type periodEntry struct {
	CreditCapital float64 `json:"credit_capital" validate:"gte=0"`
	CreditCusteio float64 `json:"credit_custeio" validate:"gte=0"`
	DebitCapital  float64 `json:"debit_capital" validate:"gte=0"`
	DebitCusteio  float64 `json:"debit_custeio" validate:"gte=0"`
}

type savePeriodRequest struct {
	BankInterest float64                `json:"bank_interest"`
	Entries      map[string]periodEntry `json:"entries" validate:"required,min=1,dive"`
}

func savePeriodHandler(svc *service.LedgerService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "PUT /v1/accounts/{account}/periods/{year}/{month}")
		defer span.End()

		name := chi.URLParam(r, "account")
		year, err := pathInt(chi.URLParam(r, "year"), "year")
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		month, err := pathInt(chi.URLParam(r, "month"), "month")
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		span.SetAttributes(
			attribute.String("account.name", name),
			attribute.Int("period.year", year),
			attribute.Int("period.month", month),
		)

		var req savePeriodRequest
		if !decodeAndValidate(w, r, &req) {
			return
		}

		entries := make(map[string]domain.MovementInput, len(req.Entries))
		for program, e := range req.Entries {
			entries[program] = domain.MovementInput{
				CreditCapital: e.CreditCapital,
				CreditCusteio: e.CreditCusteio,
				DebitCapital:  e.DebitCapital,
				DebitCusteio:  e.DebitCusteio,
			}
		}

		result, err := svc.SavePeriod(ctx, name, month, year, req.BankInterest, entries)
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeJSON(w, http.StatusOK, result)
	}
}

func getPeriodHandler(svc *service.LedgerService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "GET /v1/accounts/{account}/periods/{year}/{month}")
		defer span.End()

		name := chi.URLParam(r, "account")
		year, err := pathInt(chi.URLParam(r, "year"), "year")
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		month, err := pathInt(chi.URLParam(r, "month"), "month")
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		span.SetAttributes(
			attribute.String("account.name", name),
			attribute.Int("period.year", year),
			attribute.Int("period.month", month),
		)

		snapshot, err := svc.GetPeriod(ctx, name, month, year)
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeJSON(w, http.StatusOK, snapshot)
	}
}

func yearsHandler(svc *service.LedgerService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "GET /v1/years")
		defer span.End()

		years := svc.Years(ctx)
		writeJSON(w, http.StatusOK, domain.ListResponse[int]{Data: years, Total: len(years)})
	}
}
