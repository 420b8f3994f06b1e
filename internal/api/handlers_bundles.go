package api

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/pv/assetcache/internal/assets"
	"github.com/pv/assetcache/internal/minify"
)

type attributeJSON struct {
	Name  string      `json:"name"`
	Value interface{} `json:"value"`
}

// BundleRequest тело POST /api/bundles
type BundleRequest struct {
	Kind       string          `json:"kind"` // js или css
	Files      []string        `json:"files"`
	Attributes []attributeJSON `json:"attributes,omitempty"`
	Mode       string          `json:"mode,omitempty"` // tag, url, raw
	FullURL    bool            `json:"fullUrl,omitempty"`
}

// BundleResponse ответ POST /api/bundles
type BundleResponse struct {
	Kind     string   `json:"kind"`
	Minified bool     `json:"minified"`
	Filename string   `json:"filename,omitempty"`
	URL      string   `json:"url,omitempty"`
	State    string   `json:"state"`
	Hit      bool     `json:"hit"`
	Files    []string `json:"files"`
	Markup   string   `json:"markup"`
}

// BuildBundle собирает бандл и возвращает разметку
// POST /api/bundles
func (h *Handlers) BuildBundle(w http.ResponseWriter, r *http.Request) {
	var req BundleRequest
	if !h.decodeJSONBody(w, r, &req) {
		return
	}

	kind, err := assets.ParseKind(req.Kind)
	if err != nil {
		h.writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if len(req.Files) == 0 {
		h.writeError(w, http.StatusBadRequest, "files are required")
		return
	}
	mode, err := minify.ParseOutputMode(req.Mode)
	if err != nil {
		h.writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	attrs := make(minify.Attributes, 0, len(req.Attributes))
	for _, a := range req.Attributes {
		attrs = append(attrs, minify.Attribute{Name: a.Name, Value: a.Value})
	}

	bundle, err := h.assets.Build(kind, req.Files, attrs)
	if err != nil {
		h.writeError(w, buildErrorStatus(err), err.Error())
		return
	}

	opts := assets.RenderOptions{Mode: mode, FullURL: req.FullURL, RequestRoot: requestRoot(r)}
	resp := BundleResponse{
		Kind:     string(bundle.Kind),
		Minified: bundle.Minified,
		Filename: bundle.Filename,
		URL:      bundle.URL(opts),
		State:    assets.StateBypassed,
		Files:    bundle.Files.Relative(),
		Markup:   bundle.Render(opts),
	}
	if bundle.Result != nil {
		resp.State = bundle.Result.State.String()
		resp.Hit = bundle.Result.Hit()
	}
	h.writeJSON(w, resp)
}

// buildErrorStatus переводит ошибку сборки в HTTP статус
func buildErrorStatus(err error) int {
	switch {
	case errors.Is(err, minify.ErrMissingSourceFile):
		return http.StatusBadRequest
	case errors.Is(err, minify.ErrMinification):
		return http.StatusUnprocessableEntity
	default:
		return http.StatusInternalServerError
	}
}

// GetBuilds возвращает последние сборки
// GET /api/builds?limit=50
func (h *Handlers) GetBuilds(w http.ResponseWriter, r *http.Request) {
	limit := 50
	if limitStr := r.URL.Query().Get("limit"); limitStr != "" {
		if l, err := strconv.Atoi(limitStr); err == nil && l > 0 {
			limit = l
		}
	}
	if limit > 1000 {
		limit = 1000
	}

	records, err := h.storage.Latest(limit)
	if err != nil {
		h.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	h.writeJSON(w, map[string]interface{}{
		"builds": records,
		"count":  len(records),
	})
}
