package httpapi

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/roach88/pensionledger/internal/engine"
	"github.com/roach88/pensionledger/internal/ir"
	"github.com/roach88/pensionledger/internal/queryir"
)

// Headers an upstream ordering substrate may set to fix the transaction id
// and commit time. X-Tx-Timestamp is RFC 3339.
const (
	HeaderTxID      = "X-Tx-Id"
	HeaderTimestamp = "X-Tx-Timestamp"
)

// DefaultTimeout bounds each request, lock wait included.
const DefaultTimeout = 30 * time.Second

// Handler serves the pension routes.
type Handler struct {
	engine *engine.Engine
	logger *slog.Logger
}

// New creates a Handler.
func New(e *engine.Engine, logger *slog.Logger) *Handler {
	return &Handler{engine: e, logger: logger}
}

// NewRouter builds the full relay: pension routes, /healthz and, when
// gatherer is non-nil, /metrics.
func NewRouter(h *Handler, gatherer prometheus.Gatherer) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(accessLog(h.logger))
	r.Use(middleware.Timeout(DefaultTimeout))

	r.Get("/healthz", h.handleHealth)
	if gatherer != nil {
		r.Handle("/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))
	}
	h.Register(r)
	return r
}

// Register mounts the pension routes on r.
func (h *Handler) Register(r chi.Router) {
	r.Route("/pensions", func(r chi.Router) {
		r.Get("/", h.handleList)
		r.Post("/", h.handleCreate)
		r.Route("/{id}", func(r chi.Router) {
			r.Get("/", h.handleRead)
			r.Put("/", h.handleUpdate)
			r.Delete("/", h.handleDelete)
			r.Post("/contribute", h.handleDelta(engine.KindContribute))
			r.Post("/withdraw", h.handleDelta(engine.KindWithdraw))
			r.Get("/history", h.handleHistory)
			r.Get("/audit", h.handleAudit)
		})
	})
}

type createRequest struct {
	ID            string     `json:"id"`
	RecipientName string     `json:"recipientName"`
	Amount        *ir.Amount `json:"amount"`
	Status        string     `json:"status"`
}

type updateRequest struct {
	RecipientName string     `json:"recipientName"`
	Amount        *ir.Amount `json:"amount"`
	Status        string     `json:"status"`
}

type deltaRequest struct {
	Amount *ir.Amount `json:"amount"`
}

func (h *Handler) handleHealth(w http.ResponseWriter, r *http.Request) {
	if _, err := h.engine.List(r.Context()); err != nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// handleList accepts status, name, minAmount, maxAmount and limit query
// parameters. Malformed values are InvalidArgument or InvalidAmount.
func (h *Handler) handleList(w http.ResponseWriter, r *http.Request) {
	c, err := listCriteria(r.URL.Query())
	if err != nil {
		h.fail(w, r, err)
		return
	}
	records, err := h.engine.Find(r.Context(), c.Select())
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, records)
}

// listCriteria reads the GET /pensions query. status may repeat or hold a
// comma-separated list.
func listCriteria(q url.Values) (queryir.Criteria, error) {
	c := queryir.Criteria{Search: q.Get("search"), NameContains: q.Get("name")}
	for _, param := range q["status"] {
		for _, raw := range strings.Split(param, ",") {
			if raw = strings.TrimSpace(raw); raw == "" {
				continue
			}
			status, err := ir.ParseStatus(raw)
			if err != nil {
				return c, err
			}
			c.Statuses = append(c.Statuses, status)
		}
	}
	var err error
	if c.MinAmount, err = amountParam(q, "minAmount"); err != nil {
		return c, err
	}
	if c.MaxAmount, err = amountParam(q, "maxAmount"); err != nil {
		return c, err
	}
	if c.UpdatedFrom, err = timeParam(q, "updatedFrom"); err != nil {
		return c, err
	}
	if c.UpdatedTo, err = timeParam(q, "updatedTo"); err != nil {
		return c, err
	}
	if raw := q.Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil {
			return c, &ir.Error{Code: ir.CodeInvalidArgument, Message: fmt.Sprintf("limit %q is not an integer", raw)}
		}
		c.Limit = n
	}
	return c, nil
}

func amountParam(q url.Values, name string) (*ir.Amount, error) {
	raw := q.Get(name)
	if raw == "" {
		return nil, nil
	}
	a, err := ir.ParseAmount(raw)
	if err != nil {
		return nil, err
	}
	return &a, nil
}

func timeParam(q url.Values, name string) (*time.Time, error) {
	raw := q.Get(name)
	if raw == "" {
		return nil, nil
	}
	t, err := ir.ParseTimestamp(raw)
	if err != nil {
		return nil, ir.Errorf(ir.CodeInvalidArgument, "", "%s: %v", name, err)
	}
	return &t, nil
}

func (h *Handler) handleRead(w http.ResponseWriter, r *http.Request) {
	rec, err := h.engine.Read(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, rec)
}

func (h *Handler) handleHistory(w http.ResponseWriter, r *http.Request) {
	entries, err := h.engine.History(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, entries)
}

// handleAudit answers 200 whether or not the chain verifies; validity is
// in the body.
func (h *Handler) handleAudit(w http.ResponseWriter, r *http.Request) {
	result, err := h.engine.Audit(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (h *Handler) handleCreate(w http.ResponseWriter, r *http.Request) {
	var body createRequest
	if !h.decode(w, r, &body) {
		return
	}
	if body.ID == "" || body.RecipientName == "" || body.Amount == nil || body.Status == "" {
		badRequest(w, "missing required fields: id, recipientName, amount, status")
		return
	}

	req, ok := h.request(w, r, engine.KindCreate, body.ID)
	if !ok {
		return
	}
	req.Fields = engine.Fields{RecipientName: body.RecipientName, Amount: *body.Amount, Status: ir.Status(body.Status)}
	h.submit(w, r, req, http.StatusCreated)
}

func (h *Handler) handleUpdate(w http.ResponseWriter, r *http.Request) {
	var body updateRequest
	if !h.decode(w, r, &body) {
		return
	}
	if body.RecipientName == "" || body.Amount == nil || body.Status == "" {
		badRequest(w, "missing required fields: recipientName, amount, status")
		return
	}

	req, ok := h.request(w, r, engine.KindUpdate, chi.URLParam(r, "id"))
	if !ok {
		return
	}
	req.Fields = engine.Fields{RecipientName: body.RecipientName, Amount: *body.Amount, Status: ir.Status(body.Status)}
	h.submit(w, r, req, http.StatusOK)
}

func (h *Handler) handleDelta(kind engine.Kind) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var body deltaRequest
		if !h.decode(w, r, &body) {
			return
		}
		if body.Amount == nil {
			badRequest(w, "missing required field: amount")
			return
		}

		req, ok := h.request(w, r, kind, chi.URLParam(r, "id"))
		if !ok {
			return
		}
		req.Delta = *body.Amount
		h.submit(w, r, req, http.StatusOK)
	}
}

func (h *Handler) handleDelete(w http.ResponseWriter, r *http.Request) {
	req, ok := h.request(w, r, engine.KindDelete, chi.URLParam(r, "id"))
	if !ok {
		return
	}
	h.submit(w, r, req, http.StatusOK)
}

// request builds the engine request skeleton from the path and the
// substrate headers.
func (h *Handler) request(w http.ResponseWriter, r *http.Request, kind engine.Kind, key string) (engine.Request, bool) {
	req := engine.Request{Kind: kind, Key: key, TxID: r.Header.Get(HeaderTxID)}
	if raw := r.Header.Get(HeaderTimestamp); raw != "" {
		ts, err := time.Parse(time.RFC3339Nano, raw)
		if err != nil {
			badRequest(w, fmt.Sprintf("%s %q is not an RFC 3339 timestamp", HeaderTimestamp, raw))
			return engine.Request{}, false
		}
		req.Timestamp = ts
	}
	return req, true
}

func (h *Handler) submit(w http.ResponseWriter, r *http.Request, req engine.Request, status int) {
	receipt, err := h.engine.Submit(r.Context(), req)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, status, receipt)
}

func (h *Handler) decode(w http.ResponseWriter, r *http.Request, v any) bool {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		h.logger.WarnContext(r.Context(), "invalid request body",
			"request_id", middleware.GetReqID(r.Context()),
			"path", r.URL.Path,
			"error", err,
		)
		if ir.CodeOf(err) != "" {
			writeError(w, err)
		} else {
			badRequest(w, "invalid request body: "+err.Error())
		}
		return false
	}
	return true
}

func (h *Handler) fail(w http.ResponseWriter, r *http.Request, err error) {
	if ir.CodeOf(err) == "" {
		h.logger.ErrorContext(r.Context(), "request failed",
			"request_id", middleware.GetReqID(r.Context()),
			"path", r.URL.Path,
			"error", err,
		)
	}
	writeError(w, err)
}

// accessLog logs one line per request.
func accessLog(logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			next.ServeHTTP(ww, r)
			logger.InfoContext(r.Context(), "http request",
				"request_id", middleware.GetReqID(r.Context()),
				"method", r.Method,
				"path", r.URL.Path,
				"status", ww.Status(),
				"duration_ms", time.Since(start).Milliseconds(),
			)
		})
	}
}
