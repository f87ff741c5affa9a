package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"
	"github.com/trogers1052/fund-tracker/internal/kafka"
	"github.com/trogers1052/fund-tracker/internal/models"
	"github.com/trogers1052/fund-tracker/internal/portfolio"
)

// Handler holds dependencies for HTTP handlers
type Handler struct {
	service  *portfolio.Service
	producer *kafka.Producer
}

// NewHandler creates a new Handler. producer may be nil.
func NewHandler(service *portfolio.Service, producer *kafka.Producer) *Handler {
	return &Handler{
		service:  service,
		producer: producer,
	}
}

// GetHoldings handles GET /holdings?cutoff_date=YYYY-MM-DD
func (h *Handler) GetHoldings(w http.ResponseWriter, r *http.Request) {
	var cutoff *time.Time
	if raw := r.URL.Query().Get("cutoff_date"); raw != "" {
		parsed, err := time.Parse("2006-01-02", raw)
		if err != nil {
			http.Error(w, "invalid cutoff_date", http.StatusBadRequest)
			return
		}
		cutoff = &parsed
	}

	holdings, skipped, err := h.service.ComputeHoldings(r.Context(), cutoff)
	if err != nil {
		respondError(w, err)
		return
	}
	if holdings == nil {
		holdings = []*models.Holding{}
	}
	if skipped == nil {
		skipped = []models.SkippedFund{}
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"holdings": holdings,
		"skipped":  skipped,
	})
}

// GetTransactions handles GET /transactions with optional filters
func (h *Handler) GetTransactions(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filter := models.TransactionFilter{
		FundCode: q.Get("fund_code"),
		Type:     q.Get("transaction_type"),
	}
	if raw := q.Get("start_date"); raw != "" {
		parsed, err := time.Parse("2006-01-02", raw)
		if err != nil {
			http.Error(w, "invalid start_date", http.StatusBadRequest)
			return
		}
		filter.StartDate = &parsed
	}
	if raw := q.Get("end_date"); raw != "" {
		parsed, err := time.Parse("2006-01-02", raw)
		if err != nil {
			http.Error(w, "invalid end_date", http.StatusBadRequest)
			return
		}
		filter.EndDate = &parsed
	}

	transactions, err := h.service.Transactions(filter)
	if err != nil {
		respondError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, transactions)
}

// RecordTransaction handles POST /transactions
func (h *Handler) RecordTransaction(w http.ResponseWriter, r *http.Request) {
	var input models.TransactionInput
	if err := json.NewDecoder(r.Body).Decode(&input); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}

	tx, err := h.service.RecordTransaction(r.Context(), input)
	if err != nil {
		respondError(w, err)
		return
	}

	if h.producer != nil {
		if err := h.producer.PublishTransactionRecorded(r.Context(), tx); err != nil {
			slog.Warn("failed to publish transaction event", "error", err)
		}
	}

	respondJSON(w, http.StatusCreated, tx)
}

// UpdateTransaction handles PUT /transactions/{id}
func (h *Handler) UpdateTransaction(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.Atoi(mux.Vars(r)["id"])
	if err != nil {
		http.Error(w, "invalid transaction id", http.StatusBadRequest)
		return
	}

	var input models.TransactionInput
	if err := json.NewDecoder(r.Body).Decode(&input); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}

	tx, err := h.service.UpdateTransaction(r.Context(), id, input)
	if err != nil {
		respondError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, tx)
}

// DeleteTransaction handles DELETE /transactions/{id}
func (h *Handler) DeleteTransaction(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.Atoi(mux.Vars(r)["id"])
	if err != nil {
		http.Error(w, "invalid transaction id", http.StatusBadRequest)
		return
	}

	tx, err := h.service.Transaction(id)
	if err != nil {
		respondError(w, err)
		return
	}

	if err := h.service.DeleteTransaction(id); err != nil {
		respondError(w, err)
		return
	}

	if h.producer != nil {
		if err := h.producer.PublishTransactionDeleted(r.Context(), tx); err != nil {
			slog.Warn("failed to publish transaction event", "error", err)
		}
	}

	w.WriteHeader(http.StatusNoContent)
}

// GetFunds handles GET /funds
func (h *Handler) GetFunds(w http.ResponseWriter, r *http.Request) {
	funds, err := h.service.FundSettings()
	if err != nil {
		respondError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, funds)
}

// SaveFund handles POST /funds
func (h *Handler) SaveFund(w http.ResponseWriter, r *http.Request) {
	var fund models.Fund
	if err := json.NewDecoder(r.Body).Decode(&fund); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}

	if err := h.service.SaveFundSettings(&fund); err != nil {
		respondError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, fund)
}

// GetFund handles GET /funds/{code}
func (h *Handler) GetFund(w http.ResponseWriter, r *http.Request) {
	code := mux.Vars(r)["code"]

	fund, err := h.service.FundInfo(r.Context(), code)
	if err != nil {
		respondError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, fund)
}

// DeleteFund handles DELETE /funds/{code}
func (h *Handler) DeleteFund(w http.ResponseWriter, r *http.Request) {
	code := mux.Vars(r)["code"]

	if err := h.service.DeleteFund(code); err != nil {
		respondError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// GetCurrentNav handles GET /funds/{code}/nav
func (h *Handler) GetCurrentNav(w http.ResponseWriter, r *http.Request) {
	code := mux.Vars(r)["code"]

	nav, err := h.service.ResolveCurrentNav(r.Context(), code)
	if err != nil {
		respondError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, nav)
}

// GetHistoricalNav handles GET /funds/{code}/nav/{date}
func (h *Handler) GetHistoricalNav(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	code := vars["code"]

	date, err := time.Parse("2006-01-02", vars["date"])
	if err != nil {
		http.Error(w, "invalid date", http.StatusBadRequest)
		return
	}

	nav, err := h.service.ResolveHistoricalNav(r.Context(), code, date)
	if err != nil {
		respondError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, nav)
}

// RefreshNavs handles POST /navs/refresh
func (h *Handler) RefreshNavs(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Codes []string `json:"fund_codes"`
	}
	if r.Body != nil && r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "invalid request body", http.StatusBadRequest)
			return
		}
	}

	result, quotes, err := h.service.RefreshAllNavs(r.Context(), req.Codes)
	if err != nil {
		respondError(w, err)
		return
	}

	if h.producer != nil {
		for _, q := range quotes {
			if err := h.producer.PublishNavUpdated(r.Context(), q); err != nil {
				slog.Warn("failed to publish nav event", "fund", q.FundCode, "error", err)
			}
		}
	}

	respondJSON(w, http.StatusOK, result)
}

// HealthCheck handles GET /health
func (h *Handler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]string{"status": "healthy"})
}

func respondError(w http.ResponseWriter, err error) {
	http.Error(w, err.Error(), statusForError(err))
}

func statusForError(err error) int {
	switch {
	case errors.Is(err, models.ErrValidation):
		return http.StatusBadRequest
	case errors.Is(err, models.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, models.ErrIntegrity):
		return http.StatusConflict
	case errors.Is(err, models.ErrUnavailable):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

func respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}
