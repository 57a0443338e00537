package dav

import (
	"errors"
	"net/http"

	"github.com/samber/mo"
	"go.uber.org/zap"

	"github.com/kalamarcito/dav/internal/access"
	"github.com/kalamarcito/dav/internal/store"
)

// Report handles the REPORT verb. Only the sync-collection report is
// supported.
func (h *Handler) Report(w http.ResponseWriter, r *http.Request) {
	col := h.loadCollection(w, r)
	if col == nil {
		return
	}
	if !hasPrivilege(access.CollectionACL(col), col.Principal, access.PrivRead) {
		http.Error(w, "forbidden", http.StatusForbidden)
		return
	}

	body, err := readDAVBody(r)
	if err != nil {
		if errors.Is(err, errRequestTooLarge) {
			http.Error(w, "request body too large", http.StatusRequestEntityTooLarge)
			return
		}
		http.Error(w, "failed to read request body", http.StatusBadRequest)
		return
	}

	var req reportRequest
	if err := safeUnmarshalXML(body, &req); err != nil {
		http.Error(w, "malformed report body", http.StatusBadRequest)
		return
	}
	if req.XMLName.Space != "DAV:" || req.XMLName.Local != "sync-collection" {
		http.Error(w, "unsupported report", http.StatusForbidden)
		return
	}
	h.syncCollection(w, r, col, &req)
}

func (h *Handler) syncCollection(w http.ResponseWriter, r *http.Request, col *store.Collection, req *reportRequest) {
	// Only direct members are synchronized.
	switch req.SyncLevel {
	case "", "1":
	default:
		http.Error(w, "unsupported sync level", http.StatusBadRequest)
		return
	}

	clientToken := mo.None[int64]()
	if req.SyncToken != "" {
		n, err := parseSyncToken(req.SyncToken)
		if err != nil {
			writeDAVError(w, http.StatusForbidden, "valid-sync-token")
			return
		}
		clientToken = mo.Some(n)
	}

	limit := mo.None[int]()
	if h.cfg.SyncLimit > 0 {
		limit = mo.Some(h.cfg.SyncLimit)
	}
	if req.Limit != nil && req.Limit.NResults > 0 {
		if lim, ok := limit.Get(); !ok || req.Limit.NResults < lim {
			limit = mo.Some(req.Limit.NResults)
		}
	}

	report, err := h.store.Objects.GetSyncDelta(r.Context(), col.Ref, clientToken, 1, limit)
	if err != nil {
		switch {
		case errors.Is(err, store.ErrSyncTokenExpired):
			writeDAVError(w, http.StatusForbidden, "valid-sync-token")
		case errors.Is(err, store.ErrTooManyResults):
			writeDAVError(w, http.StatusRequestEntityTooLarge, "number-of-matches-within-limits")
		case errors.Is(err, store.ErrNotFound):
			http.Error(w, "collection not found", http.StatusNotFound)
		default:
			h.log.Error("sync delta", zap.String("ref", col.Ref.String()), zap.Error(err))
			http.Error(w, "internal server error", http.StatusInternalServerError)
		}
		return
	}

	ms := &multistatus{SyncToken: buildSyncToken(report.Token)}
	base := h.collectionPath(col)

	live := append(append([]string{}, report.Added...), report.Modified...)
	etags := map[string]string{}
	if len(live) > 0 {
		objs, err := h.store.Objects.GetObjects(r.Context(), col.Ref, live)
		if err != nil {
			h.log.Error("load changed objects", zap.String("ref", col.Ref.String()), zap.Error(err))
			http.Error(w, "internal server error", http.StatusInternalServerError)
			return
		}
		for _, obj := range objs {
			etags[obj.URI] = obj.ETag
		}
	}

	for _, uri := range live {
		resp := response{Href: base + uri}
		p := prop{GetContentType: contentTypeFor(col.Kind)}
		if etag, ok := etags[uri]; ok {
			p.GetETag = `"` + etag + `"`
		}
		resp.Propstat = []propstat{{Prop: p, Status: "HTTP/1.1 200 OK"}}
		ms.Response = append(ms.Response, resp)
	}
	for _, uri := range report.Deleted {
		ms.Response = append(ms.Response, response{
			Href:   base + uri,
			Status: "HTTP/1.1 404 Not Found",
		})
	}

	writeMultistatus(w, ms)
}
