package api

import (
	"mime"
	"net/http"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/pv/assetcache/internal/precompress"
)

// StaticHandler отдаёт файлы public директории. Для собранных бандлов
// предпочитает предсжатые .br / .gz копии, если клиент их принимает.
type StaticHandler struct {
	root string
}

func NewStaticHandler(root string) *StaticHandler {
	return &StaticHandler{root: root}
}

// siblingOrder порядок предпочтения предсжатых копий
var siblingOrder = []string{".br", ".gz"}

func (s *StaticHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	clean := path.Clean("/" + r.URL.Path)
	full := filepath.Join(s.root, filepath.FromSlash(clean))

	info, err := os.Stat(full)
	if err != nil || info.IsDir() {
		http.NotFound(w, r)
		return
	}

	w.Header().Add("Vary", "Accept-Encoding")
	accepted := acceptedEncodings(r.Header.Get("Accept-Encoding"))
	for _, suffix := range siblingOrder {
		enc := precompress.Encoding(suffix)
		if !accepted[enc] {
			continue
		}
		if s.serveSibling(w, r, full+suffix, enc, filepath.Ext(full)) {
			return
		}
	}

	http.ServeFile(w, r, full)
}

func (s *StaticHandler) serveSibling(w http.ResponseWriter, r *http.Request, path, encoding, ext string) bool {
	f, err := os.Open(path)
	if err != nil {
		return false
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil || info.IsDir() {
		return false
	}

	ct := mime.TypeByExtension(ext)
	if ct == "" {
		ct = "application/octet-stream"
	}
	w.Header().Set("Content-Type", ct)
	w.Header().Set("Content-Encoding", encoding)
	http.ServeContent(w, r, "", info.ModTime(), f)
	return true
}

// acceptedEncodings разбирает Accept-Encoding, отбрасывая q=0
func acceptedEncodings(header string) map[string]bool {
	out := make(map[string]bool)
	for _, part := range strings.Split(header, ",") {
		name, params, _ := strings.Cut(strings.TrimSpace(part), ";")
		name = strings.ToLower(strings.TrimSpace(name))
		if name == "" {
			continue
		}
		if q, ok := strings.CutPrefix(strings.TrimSpace(params), "q="); ok && strings.Trim(q, "0.") == "" {
			continue
		}
		out[name] = true
	}
	return out
}
