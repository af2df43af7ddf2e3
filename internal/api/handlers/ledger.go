package handlers

import (
	"errors"
	"net/http"
	"time"

	"github.com/dvloznov/ledger-analytics/internal/alerts"
	"github.com/dvloznov/ledger-analytics/internal/api/middleware"
	"github.com/dvloznov/ledger-analytics/internal/compare"
	"github.com/dvloznov/ledger-analytics/internal/evolution"
	"github.com/dvloznov/ledger-analytics/internal/ledger"
	"github.com/dvloznov/ledger-analytics/internal/ratios"
	"github.com/dvloznov/ledger-analytics/internal/share"
	"github.com/dvloznov/ledger-analytics/internal/store"
	"github.com/dvloznov/ledger-analytics/internal/taxonomy"
	"github.com/rs/zerolog"
)

// LedgerHandler answers analytical queries from the current snapshot.
type LedgerHandler struct {
	holder     *store.Holder
	table      *taxonomy.Table
	thresholds alerts.Thresholds
	log        zerolog.Logger
}

// NewLedgerHandler creates a new ledger handler.
func NewLedgerHandler(holder *store.Holder, table *taxonomy.Table, thresholds alerts.Thresholds, log zerolog.Logger) *LedgerHandler {
	return &LedgerHandler{
		holder:     holder,
		table:      table,
		thresholds: thresholds,
		log:        log,
	}
}

// Register adds the ledger routes to mux.
func (h *LedgerHandler) Register(mux *http.ServeMux) {
	mux.HandleFunc("GET /api/status", h.Status)
	mux.HandleFunc("GET /api/entities", h.ListEntities)
	mux.HandleFunc("GET /api/periods", h.ListPeriods)
	mux.HandleFunc("GET /api/accounts", h.ListAccounts)
	mux.HandleFunc("GET /api/categories", h.ListCategories)
	mux.HandleFunc("GET /api/comparison", h.Comparison)
	mux.HandleFunc("GET /api/ratios", h.Ratios)
	mux.HandleFunc("GET /api/share", h.Share)
	mux.HandleFunc("GET /api/share/series", h.ShareSeries)
	mux.HandleFunc("GET /api/alerts", h.Alerts)
	mux.HandleFunc("GET /api/evolution", h.Evolution)
	mux.HandleFunc("GET /health", h.Health)
}

// snapshot returns the current snapshot or answers 503.
func (h *LedgerHandler) snapshot(w http.ResponseWriter) *store.Snapshot {
	snap := h.holder.Current()
	if snap == nil {
		middleware.WriteError(w, http.StatusServiceUnavailable, "no data available")
	}
	return snap
}

// respond writes data, or the no-data marker when err is ledger.ErrNoData.
func (h *LedgerHandler) respond(w http.ResponseWriter, r *http.Request, data interface{}, err error) {
	if errors.Is(err, ledger.ErrNoData) {
		middleware.WriteJSON(w, http.StatusOK, map[string]interface{}{
			"no_data": true,
			"message": err.Error(),
		})
		return
	}
	if err != nil {
		log := h.log.With().Str("request_id", middleware.RequestIDFrom(r.Context())).Logger()
		log.Error().Err(err).Str("path", r.URL.Path).Msg("Query failed")
		middleware.WriteError(w, http.StatusInternalServerError, "Query failed")
		return
	}
	middleware.WriteJSON(w, http.StatusOK, data)
}

// Health handles GET /health
func (h *LedgerHandler) Health(w http.ResponseWriter, r *http.Request) {
	body := map[string]interface{}{
		"status": "healthy",
		"time":   time.Now().Format(time.RFC3339),
	}
	if snap := h.holder.Current(); snap != nil {
		body["load_id"] = snap.Meta().LoadID
		body["records"] = snap.Len()
	} else {
		body["status"] = "waiting_for_data"
	}
	middleware.WriteJSON(w, http.StatusOK, body)
}

// Status handles GET /api/status
func (h *LedgerHandler) Status(w http.ResponseWriter, r *http.Request) {
	snap := h.snapshot(w)
	if snap == nil {
		return
	}
	meta := snap.Meta()
	loaded, total := meta.Coverage()
	middleware.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"meta":           meta,
		"records":        snap.Len(),
		"sources_loaded": loaded,
		"sources_total":  total,
	})
}

// ListEntities handles GET /api/entities
func (h *LedgerHandler) ListEntities(w http.ResponseWriter, r *http.Request) {
	snap := h.snapshot(w)
	if snap == nil {
		return
	}

	q := r.URL.Query()
	entities := snap.Entities()
	if q.Get("period") != "" {
		p, err := period(q, "period", ledger.Period{})
		if err != nil {
			middleware.WriteError(w, http.StatusBadRequest, err.Error())
			return
		}
		entities = snap.EntitiesAt(p)
	}

	middleware.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"entities": entities,
		"count":    len(entities),
	})
}

// ListPeriods handles GET /api/periods
func (h *LedgerHandler) ListPeriods(w http.ResponseWriter, r *http.Request) {
	snap := h.snapshot(w)
	if snap == nil {
		return
	}
	periods := snap.Periods()
	middleware.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"periods": periods,
		"count":   len(periods),
	})
}

// ListAccounts handles GET /api/accounts
func (h *LedgerHandler) ListAccounts(w http.ResponseWriter, r *http.Request) {
	snap := h.snapshot(w)
	if snap == nil {
		return
	}
	accounts := snap.Accounts(tagFilter(r.URL.Query()))
	middleware.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"accounts": accounts,
		"count":    len(accounts),
	})
}

// ListCategories handles GET /api/categories
func (h *LedgerHandler) ListCategories(w http.ResponseWriter, r *http.Request) {
	snap := h.snapshot(w)
	if snap == nil {
		return
	}
	categories := snap.Categories(tagFilter(r.URL.Query()))
	middleware.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"categories": categories,
		"count":      len(categories),
	})
}

func (h *LedgerHandler) compareRequest(w http.ResponseWriter, r *http.Request, snap *store.Snapshot) (compare.Request, bool) {
	q := r.URL.Query()
	p, err := period(q, "period", latest(snap))
	if err != nil {
		middleware.WriteError(w, http.StatusBadRequest, err.Error())
		return compare.Request{}, false
	}
	accounts, err := accountFilter(q)
	if err != nil {
		middleware.WriteError(w, http.StatusBadRequest, err.Error())
		return compare.Request{}, false
	}
	return compare.Request{Period: p, Entities: list(q, "entity"), Accounts: accounts}, true
}

// Comparison handles GET /api/comparison
func (h *LedgerHandler) Comparison(w http.ResponseWriter, r *http.Request) {
	snap := h.snapshot(w)
	if snap == nil {
		return
	}
	req, ok := h.compareRequest(w, r, snap)
	if !ok {
		return
	}
	result, err := compare.Compare(snap, req)
	h.respond(w, r, result, err)
}

// Ratios handles GET /api/ratios
func (h *LedgerHandler) Ratios(w http.ResponseWriter, r *http.Request) {
	snap := h.snapshot(w)
	if snap == nil {
		return
	}
	req, ok := h.compareRequest(w, r, snap)
	if !ok {
		return
	}
	// Ratios need the totalizers whatever accounts the caller selected.
	req.Accounts = store.Filter{}
	result, err := compare.Compare(snap, req)
	if err != nil {
		h.respond(w, r, nil, err)
		return
	}
	h.respond(w, r, ratios.Compute(result, h.table.RatioCodes), nil)
}

// Share handles GET /api/share
func (h *LedgerHandler) Share(w http.ResponseWriter, r *http.Request) {
	snap := h.snapshot(w)
	if snap == nil {
		return
	}
	q := r.URL.Query()
	p, err := period(q, "period", latest(snap))
	if err != nil {
		middleware.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}
	accounts, err := accountFilter(q)
	if err != nil {
		middleware.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}
	if !accounts.HasAccountCriteria() {
		middleware.WriteError(w, http.StatusBadRequest, "an account selection is required")
		return
	}

	result, err := share.AtPeriod(snap, share.Request{Period: p, Accounts: accounts, Entities: list(q, "entity")})
	h.respond(w, r, result, err)
}

// ShareSeries handles GET /api/share/series
func (h *LedgerHandler) ShareSeries(w http.ResponseWriter, r *http.Request) {
	snap := h.snapshot(w)
	if snap == nil {
		return
	}
	q := r.URL.Query()
	from, err := period(q, "from", ledger.Period{})
	if err != nil {
		middleware.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}
	to, err := period(q, "to", ledger.Period{})
	if err != nil {
		middleware.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}
	accounts, err := accountFilter(q)
	if err != nil {
		middleware.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}
	if !accounts.HasAccountCriteria() {
		middleware.WriteError(w, http.StatusBadRequest, "an account selection is required")
		return
	}

	series, err := share.BuildSeries(snap, share.SeriesRequest{
		From:     from,
		To:       to,
		Accounts: accounts,
		Entities: list(q, "entity"),
	})
	h.respond(w, r, series, err)
}

// Alerts handles GET /api/alerts
func (h *LedgerHandler) Alerts(w http.ResponseWriter, r *http.Request) {
	snap := h.snapshot(w)
	if snap == nil {
		return
	}
	p, err := period(r.URL.Query(), "period", latest(snap))
	if err != nil {
		middleware.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}

	found, err := alerts.Scan(snap, p, h.table.RatioCodes, h.thresholds)
	if err != nil {
		h.respond(w, r, nil, err)
		return
	}
	if found == nil {
		found = []alerts.Alert{}
	}
	h.respond(w, r, map[string]interface{}{
		"period":     p,
		"thresholds": h.thresholds,
		"alerts":     found,
		"count":      len(found),
	}, nil)
}

// Evolution handles GET /api/evolution
func (h *LedgerHandler) Evolution(w http.ResponseWriter, r *http.Request) {
	snap := h.snapshot(w)
	if snap == nil {
		return
	}
	q := r.URL.Query()
	entities, codes := list(q, "entity"), list(q, "account")
	if len(entities) == 0 || len(codes) == 0 {
		middleware.WriteError(w, http.StatusBadRequest, "entity and account are required")
		return
	}

	table, err := evolution.Build(snap, entities, codes)
	h.respond(w, r, table, err)
}
