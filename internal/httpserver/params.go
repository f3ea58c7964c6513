package httpserver

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
)

func pathID(r *http.Request, name string) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, name), 10, 64)
	return id, err == nil && id > 0
}

// queryInt returns def when the parameter is absent.
func queryInt(r *http.Request, name string, def int) (int, bool) {
	v := r.URL.Query().Get(name)
	if v == "" {
		return def, true
	}
	n, err := strconv.Atoi(v)
	return n, err == nil
}

func queryPage(r *http.Request) (page, limit int, field string, ok bool) {
	if page, ok = queryInt(r, "page", 1); !ok || page < 1 {
		return 0, 0, "page", false
	}
	if limit, ok = queryInt(r, "limit", 0); !ok || limit < 0 {
		return 0, 0, "limit", false
	}
	return page, limit, "", true
}
