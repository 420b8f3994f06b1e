package api

import (
	"net/http"
	"strconv"
	"time"

	"github.com/pv/assetcache/internal/journal"
	"github.com/pv/assetcache/internal/logger"
)

// GetJournalEvents возвращает события из журнала с пагинацией и фильтрами
// GET /api/journal?kind=js&state=failed&from=...&to=...&limit=100&offset=0
func (h *Handlers) GetJournalEvents(w http.ResponseWriter, r *http.Request) {
	if h.journalR == nil {
		h.writeError(w, http.StatusNotFound, "journal not configured")
		return
	}

	q := r.URL.Query()
	params := journal.QueryParams{
		Kind:  q.Get("kind"),
		State: q.Get("state"),
	}

	// from/to в формате RFC3339 или Unix timestamp
	if fromStr := q.Get("from"); fromStr != "" {
		if t, ok := parseTime(fromStr); ok {
			params.From = t
		}
	}
	if toStr := q.Get("to"); toStr != "" {
		if t, ok := parseTime(toStr); ok {
			params.To = t
		}
	}

	if limitStr := q.Get("limit"); limitStr != "" {
		if l, err := strconv.Atoi(limitStr); err == nil && l > 0 {
			params.Limit = l
		}
	}
	if params.Limit == 0 {
		params.Limit = 100 // default
	}
	if params.Limit > 1000 {
		params.Limit = 1000 // max
	}

	if offsetStr := q.Get("offset"); offsetStr != "" {
		if o, err := strconv.Atoi(offsetStr); err == nil && o >= 0 {
			params.Offset = o
		}
	}

	resp, err := h.journalR.Query(r.Context(), params)
	if err != nil {
		logger.Error("failed to query journal", "error", err)
		h.writeError(w, http.StatusInternalServerError, "query failed: "+err.Error())
		return
	}

	h.writeJSON(w, resp)
}

// parseTime парсит время из строки (RFC3339 или Unix timestamp в секундах/миллисекундах)
func parseTime(s string) (time.Time, bool) {
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t, true
	}
	ts, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return time.Time{}, false
	}
	if ts > 1e12 {
		return time.UnixMilli(ts), true
	}
	return time.Unix(ts, 0), true
}
