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
// Accounts Handlers
// ============================================================

type createAccountRequest struct {
	Name string `json:"name" validate:"required,min=1"`
}

type renameAccountRequest struct {
	NewName string `json:"new_name" validate:"required,min=1"`
}

type addProgramRequest struct {
	Program string `json:"program" validate:"required,min=1"`
}

type openingBalanceRequest struct {
	Capital float64 `json:"Capital"`
	Custeio float64 `json:"Custeio"`
}

// accountResponse pairs the registry key with the account document.
type accountResponse struct {
	Name string `json:"name"`
	*domain.Account
}

type balanceResponse struct {
	Account string              `json:"account"`
	Program string              `json:"program"`
	Kind    domain.ResourceKind `json:"kind"`
	Month   int                 `json:"month"`
	Year    int                 `json:"year"`
	Balance float64             `json:"balance"`
}

func listAccountsHandler(svc *service.LedgerService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "GET /v1/accounts")
		defer span.End()

		names := svc.ListAccounts(ctx)
		writeJSON(w, http.StatusOK, domain.ListResponse[string]{Data: names, Total: len(names)})
	}
}

func createAccountHandler(svc *service.LedgerService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "POST /v1/accounts")
		defer span.End()

		var req createAccountRequest
		if !decodeAndValidate(w, r, &req) {
			return
		}
		span.SetAttributes(attribute.String("account.name", req.Name))

		durable, err := svc.RegisterAccount(ctx, req.Name)
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeJSON(w, http.StatusCreated, domain.SuccessResponse{
			Message: "account registered",
			ID:      req.Name,
			Durable: boolPtr(durable),
		})
	}
}

func getAccountHandler(svc *service.LedgerService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "GET /v1/accounts/{account}")
		defer span.End()

		name := chi.URLParam(r, "account")
		span.SetAttributes(attribute.String("account.name", name))

		acct, err := svc.GetAccount(ctx, name)
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeJSON(w, http.StatusOK, accountResponse{Name: name, Account: acct})
	}
}

func deleteAccountHandler(svc *service.LedgerService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "DELETE /v1/accounts/{account}")
		defer span.End()

		name := chi.URLParam(r, "account")
		span.SetAttributes(attribute.String("account.name", name))

		durable, err := svc.DeleteAccount(ctx, name)
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeJSON(w, http.StatusOK, domain.SuccessResponse{
			Message: "account deleted",
			ID:      name,
			Durable: boolPtr(durable),
		})
	}
}

func renameAccountHandler(svc *service.LedgerService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "POST /v1/accounts/{account}/rename")
		defer span.End()

		name := chi.URLParam(r, "account")
		span.SetAttributes(attribute.String("account.name", name))

		var req renameAccountRequest
		if !decodeAndValidate(w, r, &req) {
			return
		}

		durable, err := svc.RenameAccount(ctx, name, req.NewName)
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeJSON(w, http.StatusOK, domain.SuccessResponse{
			Message: "account renamed",
			ID:      req.NewName,
			Durable: boolPtr(durable),
		})
	}
}

func addProgramHandler(svc *service.LedgerService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "POST /v1/accounts/{account}/programs")
		defer span.End()

		name := chi.URLParam(r, "account")
		span.SetAttributes(attribute.String("account.name", name))

		var req addProgramRequest
		if !decodeAndValidate(w, r, &req) {
			return
		}

		durable, err := svc.AddProgram(ctx, name, req.Program)
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeJSON(w, http.StatusCreated, domain.SuccessResponse{
			Message: "program added",
			ID:      req.Program,
			Durable: boolPtr(durable),
		})
	}
}

func setOpeningBalanceHandler(svc *service.LedgerService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "PUT /v1/accounts/{account}/programs/{program}/opening-balance")
		defer span.End()

		name := chi.URLParam(r, "account")
		program := chi.URLParam(r, "program")
		span.SetAttributes(
			attribute.String("account.name", name),
			attribute.String("program", program),
		)

		// Opening balances may be negative: an account can start the
		// tracked window overdrawn.
		var req openingBalanceRequest
		if !decodeAndValidate(w, r, &req) {
			return
		}

		durable, err := svc.SetOpeningBalance(ctx, name, program, req.Capital, req.Custeio)
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeJSON(w, http.StatusOK, domain.SuccessResponse{
			Message: "opening balance set",
			ID:      program,
			Durable: boolPtr(durable),
		})
	}
}

func priorBalanceHandler(svc *service.LedgerService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "GET /v1/accounts/{account}/balance")
		defer span.End()

		name := chi.URLParam(r, "account")
		span.SetAttributes(attribute.String("account.name", name))

		program := r.URL.Query().Get("program")
		if program == "" {
			writeError(w, http.StatusBadRequest, "program is required")
			return
		}

		kind := domain.Total
		if v := r.URL.Query().Get("kind"); v != "" {
			parsed, err := domain.ParseResourceKind(v)
			if err != nil {
				handleServiceError(w, err, logger)
				return
			}
			kind = parsed
		}

		month, err := queryInt(r, "month", 0)
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		if month == 0 {
			writeError(w, http.StatusBadRequest, "month is required")
			return
		}
		year, err := queryInt(r, "year", time.Now().Year())
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}

		balance, err := svc.PriorBalance(ctx, name, program, kind, month, year)
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeJSON(w, http.StatusOK, balanceResponse{
			Account: name,
			Program: program,
			Kind:    kind,
			Month:   month,
			Year:    year,
			Balance: balance,
		})
	}
}
