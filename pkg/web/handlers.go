package web

import (
	"bytes"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/shopspring/decimal"

	"github.com/geniass/pricecompare/pkg/compare"
	"github.com/geniass/pricecompare/pkg/service"
)

type handlers struct {
	svc         Service
	defaultUser int64
	base        BaseContext
	logger      *slog.Logger
}

type productResponse struct {
	Title      string              `json:"title"`
	Price      decimal.NullDecimal `json:"price"`
	Rating     float64             `json:"rating"`
	ProductURL string              `json:"product_url"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	data, err := json.Marshal(v)
	if err != nil {
		http.Error(w, `{"error":"internal server error"}`, http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	w.Write(data)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

// statusFor maps service and comparison errors to a status code and a
// message safe to show to clients.
func statusFor(err error) (int, string) {
	switch {
	case errors.Is(err, service.ErrInvalidIdentifier):
		return http.StatusBadRequest, "not a valid product identifier or link"
	case errors.Is(err, compare.ErrItemNotFound):
		return http.StatusNotFound, "product not found"
	case errors.Is(err, service.ErrDailyLimitReached):
		return http.StatusTooManyRequests, "daily search limit reached, try again tomorrow"
	case errors.Is(err, compare.ErrComparisonFailed):
		return http.StatusBadGateway, "failed to fetch price comparison"
	default:
		return http.StatusInternalServerError, "internal server error"
	}
}

// fail logs err and returns the response it maps to.
func (h *handlers) fail(r *http.Request, err error) (int, string) {
	status, msg := statusFor(err)
	level := slog.LevelInfo
	if status >= http.StatusInternalServerError {
		level = slog.LevelError
	}
	h.logger.Log(r.Context(), level, "request failed",
		slog.String("path", r.URL.Path),
		slog.Int("status", status),
		slog.String("error", err.Error()),
	)
	return status, msg
}

// userID reads the user_id query parameter, falling back to the default
// user.
func (h *handlers) userID(r *http.Request) (int64, bool) {
	v := r.URL.Query().Get("user_id")
	if v == "" {
		return h.defaultUser, true
	}
	id, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		return 0, false
	}
	return id, true
}

func (h *handlers) health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":    "ok",
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	})
}

// GET /price-comparison/{id}
func (h *handlers) priceComparison(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.userID(r)
	if !ok {
		writeError(w, http.StatusBadRequest, "user_id must be an integer")
		return
	}

	cmp, err := h.svc.ComparePrices(r.Context(), userID, r.PathValue("id"))
	if err != nil {
		status, msg := h.fail(r, err)
		writeError(w, status, msg)
		return
	}
	writeJSON(w, http.StatusOK, cmp)
}

// GET /product/{id}
func (h *handlers) product(w http.ResponseWriter, r *http.Request) {
	p, err := h.svc.ProductDetails(r.Context(), r.PathValue("id"))
	if err != nil {
		status, msg := h.fail(r, err)
		writeError(w, status, msg)
		return
	}
	writeJSON(w, http.StatusOK, productResponse{
		Title:      p.Title,
		Price:      p.Price,
		Rating:     p.Rating,
		ProductURL: p.URL,
	})
}

// GET /search_history?user_id=
func (h *handlers) searchHistory(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.userID(r)
	if !ok {
		writeError(w, http.StatusBadRequest, "user_id must be an integer")
		return
	}

	records, err := h.svc.History(r.Context(), userID)
	if err != nil {
		h.fail(r, err)
		writeError(w, http.StatusInternalServerError, "failed to fetch search history")
		return
	}
	if len(records) == 0 {
		writeError(w, http.StatusNotFound, "no search history found")
		return
	}
	writeJSON(w, http.StatusOK, records)
}

func (h *handlers) home(w http.ResponseWriter, r *http.Request) {
	h.page(w, r, http.StatusOK, func(buf *bytes.Buffer) error {
		return RenderHome(buf, h.base)
	})
}

// GET /compare?q= and GET /compare/{id}
func (h *handlers) comparePage(w http.ResponseWriter, r *http.Request) {
	query := r.PathValue("id")
	if query == "" {
		query = r.URL.Query().Get("q")
	}

	userID, ok := h.userID(r)
	if !ok {
		h.errorPage(w, r, http.StatusBadRequest, "user_id must be an integer")
		return
	}

	cmp, err := h.svc.ComparePrices(r.Context(), userID, query)
	if err != nil {
		status, msg := h.fail(r, err)
		h.errorPage(w, r, status, msg)
		return
	}

	remaining, err := h.svc.Remaining(r.Context(), userID)
	if err != nil {
		h.fail(r, err)
		remaining = -1
	}

	h.page(w, r, http.StatusOK, func(buf *bytes.Buffer) error {
		return RenderComparison(buf, ComparisonContext{
			BaseContext: h.base,
			Comparison:  *cmp,
			Remaining:   remaining,
		})
	})
}

// GET /history?user_id=
func (h *handlers) historyPage(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.userID(r)
	if !ok {
		h.errorPage(w, r, http.StatusBadRequest, "user_id must be an integer")
		return
	}

	records, err := h.svc.History(r.Context(), userID)
	if err != nil {
		h.fail(r, err)
		h.errorPage(w, r, http.StatusInternalServerError, "failed to fetch search history")
		return
	}

	h.page(w, r, http.StatusOK, func(buf *bytes.Buffer) error {
		return RenderHistory(buf, HistoryContext{
			BaseContext: h.base,
			UserID:      userID,
			Records:     records,
		})
	})
}

func (h *handlers) errorPage(w http.ResponseWriter, r *http.Request, status int, msg string) {
	h.page(w, r, status, func(buf *bytes.Buffer) error {
		return RenderError(buf, h.base, status, msg)
	})
}

// page renders into a buffer first so a template error can still become a
// 500.
func (h *handlers) page(w http.ResponseWriter, r *http.Request, status int, fn func(buf *bytes.Buffer) error) {
	var buf bytes.Buffer
	if err := fn(&buf); err != nil {
		h.logger.ErrorContext(r.Context(), "render page", slog.String("path", r.URL.Path), slog.String("error", err.Error()))
		w.WriteHeader(http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	buf.WriteTo(w)
}
