package dav

import (
	"errors"
	"net/http"

	"github.com/samber/mo"
	"go.uber.org/zap"

	"github.com/kalamarcito/dav/internal/access"
	"github.com/kalamarcito/dav/internal/store"
)

// Post handles share-management requests in the calendarserver sharing
// dialect. Any other POST body shape is not handled here.
func (h *Handler) Post(w http.ResponseWriter, r *http.Request) {
	col := h.loadCollection(w, r)
	if col == nil {
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

	var req shareRequest
	if err := safeUnmarshalXML(body, &req); err != nil ||
		req.XMLName.Space != "http://calendarserver.org/ns/" || req.XMLName.Local != "share" {
		http.Error(w, "unsupported request body", http.StatusUnsupportedMediaType)
		return
	}

	if !hasPrivilege(access.CollectionACL(col), col.Principal, access.PrivShare) {
		http.Error(w, "forbidden", http.StatusForbidden)
		return
	}

	desired := desiredSharees(&req)
	if len(desired) == 0 {
		w.WriteHeader(http.StatusOK)
		return
	}

	if err := h.store.Sharees.ApplySharees(r.Context(), col.Ref.CollectionID, desired); err != nil {
		h.log.Error("apply sharees",
			zap.Int64("collection_id", col.Ref.CollectionID),
			zap.Int("desired", len(desired)),
			zap.Error(err))
		http.Error(w, "internal server error", http.StatusInternalServerError)
		return
	}
	w.WriteHeader(http.StatusOK)
}

// desiredSharees translates the wire request into the reconciler's desired
// list: each set entry carries the requested access and property overrides,
// each remove entry becomes a no-access marker.
func desiredSharees(req *shareRequest) []store.Sharee {
	var desired []store.Sharee
	for _, set := range req.Set {
		if set.Href == "" {
			continue
		}
		s := store.Sharee{Href: set.Href, Access: store.AccessRead}
		if set.ReadWrite != nil {
			s.Access = store.AccessReadWrite
		}
		if name := firstNonEmpty(set.CommonName, set.Summary); name != "" {
			s.Properties.DisplayName = mo.Some(name)
		}
		desired = append(desired, s)
	}
	for _, rem := range req.Remove {
		if rem.Href == "" {
			continue
		}
		desired = append(desired, store.Sharee{Href: rem.Href, Access: store.AccessNoAccess})
	}
	return desired
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
