package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/ucsindex/engine/internal/audit"
	"github.com/ucsindex/engine/internal/cache"
	"github.com/ucsindex/engine/internal/calendar"
	"github.com/ucsindex/engine/internal/dependency"
	"github.com/ucsindex/engine/internal/domain"
	"github.com/ucsindex/engine/internal/quote"
	"github.com/ucsindex/engine/internal/recalc"
)

const (
	maxBodyBytes     = 1 << 20
	maxAuditRangeDay = 366
	defaultUser      = "api"
)

var validate = validator.New()

// Handler provides HTTP endpoints for the recalculation engine.
type Handler struct {
	registry *dependency.Registry
	quotes   quote.Repository
	cache    cache.Cache
	recalc   *recalc.Service
	audits   audit.Repository
	gate     *calendar.Gate
}

// NewHandler creates a new API handler. quoteCache may be nil.
func NewHandler(registry *dependency.Registry, quotes quote.Repository, quoteCache cache.Cache, svc *recalc.Service, audits audit.Repository, gate *calendar.Gate) *Handler {
	return &Handler{
		registry: registry,
		quotes:   quotes,
		cache:    quoteCache,
		recalc:   svc,
		audits:   audits,
		gate:     gate,
	}
}

type assetsResponse struct {
	Version string                   `json:"version"`
	Assets  []domain.AssetDependency `json:"assets"`
}

// ListAssets handles GET /api/v1/assets.
func (h *Handler) ListAssets(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, assetsResponse{Version: h.registry.Version(), Assets: h.registry.All()})
}

// ListQuotes handles GET /api/v1/quotes/{date}.
func (h *Handler) ListQuotes(w http.ResponseWriter, r *http.Request) {
	date, ok := pathDate(w, r)
	if !ok {
		return
	}

	quotes, err := h.quotes.ListByDate(r.Context(), date)
	if err != nil {
		slog.Error("failed to list quotes", "date", domain.FormatISODate(date), "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	if quotes == nil {
		quotes = []domain.Quote{}
	}
	writeJSON(w, http.StatusOK, quotes)
}

// GetQuote handles GET /api/v1/quotes/{date}/{assetId}.
func (h *Handler) GetQuote(w http.ResponseWriter, r *http.Request) {
	date, ok := pathDate(w, r)
	if !ok {
		return
	}
	assetID := r.PathValue("assetId")
	if _, ok := h.registry.Get(assetID); !ok {
		writeError(w, http.StatusNotFound, fmt.Sprintf("unknown asset %q", assetID))
		return
	}

	if h.cache != nil {
		if q, ok := h.cache.Get(r.Context(), date, assetID); ok {
			writeJSON(w, http.StatusOK, q)
			return
		}
	}

	q, err := h.quotes.Get(r.Context(), assetID, date)
	if err != nil {
		if errors.Is(err, quote.ErrNotFound) {
			writeError(w, http.StatusNotFound, "quote not found for date")
			return
		}
		slog.Error("failed to get quote", "asset", assetID, "date", domain.FormatISODate(date), "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	if h.cache != nil {
		h.cache.Set(r.Context(), q)
	}
	writeJSON(w, http.StatusOK, q)
}

type planRequest struct {
	TargetDate string   `json:"targetDate" validate:"required"`
	Assets     []string `json:"assets" validate:"required,min=1,dive,required"`
}

// PlanRecalculation handles POST /api/v1/recalculations/plan.
func (h *Handler) PlanRecalculation(w http.ResponseWriter, r *http.Request) {
	var req planRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}
	date, err := domain.ParseDate(req.TargetDate)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	preview, err := h.recalc.Preview(req.Assets, date)
	if err != nil {
		var invalid *domain.InvalidEditError
		if errors.As(err, &invalid) {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		slog.Error("failed to plan recalculation", "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	writeJSON(w, http.StatusOK, preview)
}

type executeRequest struct {
	TargetDate string        `json:"targetDate" validate:"required"`
	Edits      []recalc.Edit `json:"edits" validate:"required,min=1,dive"`
	User       string        `json:"user" validate:"max=200"`
}

// ExecuteRecalculation handles POST /api/v1/recalculations. The body is always the
// recalculation result; the status code reflects the failure class.
func (h *Handler) ExecuteRecalculation(w http.ResponseWriter, r *http.Request) {
	var req executeRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}
	date, err := domain.ParseDate(req.TargetDate)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	user := req.User
	if user == "" {
		user = defaultUser
	}

	res, err := h.recalc.Execute(r.Context(), recalc.Request{
		TargetDate: date,
		Edits:      req.Edits,
		User:       user,
	}, nil)
	writeJSON(w, statusFor(err), res)
}

func statusFor(err error) int {
	var (
		invalid  *domain.InvalidEditError
		conflict *domain.TransactionConflictError
		missing  *domain.MissingInputError
	)
	switch {
	case err == nil:
		return http.StatusOK
	case errors.As(err, &invalid):
		return http.StatusBadRequest
	case errors.As(err, &conflict):
		return http.StatusConflict
	case errors.As(err, &missing):
		return http.StatusUnprocessableEntity
	default:
		return http.StatusInternalServerError
	}
}

// ListAudit handles GET /api/v1/audit?from=YYYY-MM-DD&to=YYYY-MM-DD. to defaults to from.
func (h *Handler) ListAudit(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	from, err := domain.ParseDate(q.Get("from"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid or missing from: "+err.Error())
		return
	}
	to := from
	if raw := q.Get("to"); raw != "" {
		if to, err = domain.ParseDate(raw); err != nil {
			writeError(w, http.StatusBadRequest, "invalid to: "+err.Error())
			return
		}
	}
	if to.Before(from) {
		writeError(w, http.StatusBadRequest, "to must not be before from")
		return
	}
	if to.Sub(from) > maxAuditRangeDay*24*time.Hour {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("range must not exceed %d days", maxAuditRangeDay))
		return
	}

	entries, err := h.audits.List(r.Context(), from, to)
	if err != nil {
		slog.Error("failed to list audit entries", "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	if entries == nil {
		entries = []domain.AuditLogEntry{}
	}
	writeJSON(w, http.StatusOK, entries)
}

// ValidateBusinessDay handles POST /api/v1/business-day/validate. An empty body checks today.
func (h *Handler) ValidateBusinessDay(w http.ResponseWriter, r *http.Request) {
	var req calendar.Request
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	writeJSON(w, http.StatusOK, h.gate.Check(r.Context(), req))
}

func pathDate(w http.ResponseWriter, r *http.Request) (time.Time, bool) {
	date, err := domain.ParseDate(r.PathValue("date"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid date format, expected YYYY-MM-DD")
		return time.Time{}, false
	}
	return date, true
}

type validationErrorResponse struct {
	Error  string            `json:"error"`
	Fields map[string]string `json:"fields,omitempty"`
}

func decodeAndValidate(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(v); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return false
	}
	if err := validate.Struct(v); err != nil {
		var verrs validator.ValidationErrors
		if !errors.As(err, &verrs) {
			writeError(w, http.StatusBadRequest, err.Error())
			return false
		}
		fields := make(map[string]string, len(verrs))
		for _, fe := range verrs {
			fields[fe.Namespace()] = fe.Tag()
		}
		writeJSON(w, http.StatusBadRequest, validationErrorResponse{Error: "validation failed", Fields: fields})
		return false
	}
	return true
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	data, err := json.Marshal(v)
	if err != nil {
		slog.Error("failed to marshal JSON response", "error", err)
		http.Error(w, `{"error":"internal error"}`, http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if _, err := w.Write(data); err != nil {
		slog.Warn("failed to write HTTP response body", "error", err)
		return
	}
	_, _ = w.Write([]byte("\n"))
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
