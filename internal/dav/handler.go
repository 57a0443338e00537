// Package dav implements the WebDAV-facing surface: object CRUD, PROPFIND
// and PROPPATCH property plumbing, the sync-collection REPORT, and
// share-management POST handling.
package dav

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/kalamarcito/dav/internal/access"
	"github.com/kalamarcito/dav/internal/auth"
	"github.com/kalamarcito/dav/internal/config"
	"github.com/kalamarcito/dav/internal/store"
)

type Handler struct {
	cfg   *config.Config
	store *store.Store
	log   *zap.Logger
}

func NewHandler(cfg *config.Config, st *store.Store, log *zap.Logger) *Handler {
	return &Handler{cfg: cfg, store: st, log: log}
}

// Options advertises DAV compliance classes and supported verbs.
func (h *Handler) Options(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("DAV", "1, 3, access-control, calendar-access, addressbook, calendarserver-sharing")
	w.Header().Set("Allow", "OPTIONS, GET, PUT, DELETE, MKCOL, PROPFIND, PROPPATCH, REPORT, POST")
	w.WriteHeader(http.StatusOK)
}

// loadCollection resolves the {ref} URL parameter to the authenticated
// principal's collection instance. Writes the error response itself and
// returns nil when the request cannot proceed.
func (h *Handler) loadCollection(w http.ResponseWriter, r *http.Request) *store.Collection {
	user, ok := auth.UserFromContext(r.Context())
	if !ok {
		http.Error(w, "authentication required", http.StatusUnauthorized)
		return nil
	}

	ref, err := store.ParseCollectionRef(chi.URLParam(r, "ref"))
	if err != nil {
		http.Error(w, "malformed collection reference", http.StatusBadRequest)
		return nil
	}

	col, err := h.store.Collections.GetInstance(r.Context(), ref)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			http.Error(w, "collection not found", http.StatusNotFound)
			return nil
		}
		h.log.Error("load collection", zap.String("ref", ref.String()), zap.Error(err))
		http.Error(w, "internal server error", http.StatusInternalServerError)
		return nil
	}

	// Each principal addresses a shared collection through their own
	// instance; someone else's instance is indistinguishable from absent.
	if col.Principal != user.PrincipalURI() {
		http.Error(w, "collection not found", http.StatusNotFound)
		return nil
	}
	return col
}

func (h *Handler) collectionPath(col *store.Collection) string {
	return "/dav/collections/" + col.Ref.String() + "/"
}

func contentTypeFor(kind store.CollectionKind) string {
	if kind == store.KindAddressBook {
		return "text/vcard; charset=utf-8"
	}
	return "text/calendar; charset=utf-8"
}

// MkCol creates a fresh collection owned by the authenticated principal.
// The URL segment is used as the instance slug; the canonical location of
// the new collection is returned in the Location header.
func (h *Handler) MkCol(w http.ResponseWriter, r *http.Request) {
	user, ok := auth.UserFromContext(r.Context())
	if !ok {
		http.Error(w, "authentication required", http.StatusUnauthorized)
		return
	}

	slug := chi.URLParam(r, "ref")
	if slug == "" {
		http.Error(w, "missing collection name", http.StatusBadRequest)
		return
	}

	kind := store.KindCalendar
	if r.URL.Query().Get("kind") == "addressbook" {
		kind = store.KindAddressBook
	}

	ref, err := h.store.Collections.CreateInstance(r.Context(), user.PrincipalURI(), slug, store.InstanceProperties{
		DisplayName: slug,
		Kind:        kind,
		Access:      store.AccessNotShared,
	})
	if err != nil {
		h.log.Error("create collection", zap.String("slug", slug), zap.Error(err))
		http.Error(w, "internal server error", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Location", "/dav/collections/"+ref.String()+"/")
	w.WriteHeader(http.StatusCreated)
}

// DeleteCollection removes the principal's instance. For a sharee this is
// "declining" the share; for the last remaining instance it tears down the
// collection with its objects and change log.
func (h *Handler) DeleteCollection(w http.ResponseWriter, r *http.Request) {
	col := h.loadCollection(w, r)
	if col == nil {
		return
	}

	if err := h.store.Collections.DeleteInstance(r.Context(), col.Ref); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			http.Error(w, "collection not found", http.StatusNotFound)
			return
		}
		h.log.Error("delete collection", zap.String("ref", col.Ref.String()), zap.Error(err))
		http.Error(w, "internal server error", http.StatusInternalServerError)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// GetObject serves one calendar object or contact card.
func (h *Handler) GetObject(w http.ResponseWriter, r *http.Request) {
	col := h.loadCollection(w, r)
	if col == nil {
		return
	}
	if !hasPrivilege(access.ObjectACL(col), col.Principal, access.PrivRead) {
		http.Error(w, "forbidden", http.StatusForbidden)
		return
	}

	uri := chi.URLParam(r, "object")
	obj, err := h.store.Objects.GetObject(r.Context(), col.Ref, uri)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			http.Error(w, "object not found", http.StatusNotFound)
			return
		}
		h.log.Error("get object", zap.String("uri", uri), zap.Error(err))
		http.Error(w, "internal server error", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", contentTypeFor(col.Kind))
	w.Header().Set("ETag", `"`+obj.ETag+`"`)
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(obj.Data)
}

// PutObject creates or replaces one object. Every successful write lands a
// change-log entry and advances the collection's sync token.
func (h *Handler) PutObject(w http.ResponseWriter, r *http.Request) {
	col := h.loadCollection(w, r)
	if col == nil {
		return
	}

	uri := chi.URLParam(r, "object")
	body, err := readDAVBody(r)
	if err != nil {
		if errors.Is(err, errRequestTooLarge) {
			http.Error(w, "request body too large", http.StatusRequestEntityTooLarge)
			return
		}
		http.Error(w, "failed to read request body", http.StatusBadRequest)
		return
	}
	if len(body) == 0 {
		http.Error(w, "empty body", http.StatusBadRequest)
		return
	}

	existing, err := h.store.Objects.GetObject(r.Context(), col.Ref, uri)
	if err != nil && !errors.Is(err, store.ErrNotFound) {
		h.log.Error("lookup object", zap.String("uri", uri), zap.Error(err))
		http.Error(w, "internal server error", http.StatusInternalServerError)
		return
	}

	if r.Header.Get("If-None-Match") == "*" && existing != nil {
		http.Error(w, "object already exists", http.StatusPreconditionFailed)
		return
	}
	if match := r.Header.Get("If-Match"); match != "" {
		if existing == nil || match != `"`+existing.ETag+`"` {
			http.Error(w, "etag mismatch", http.StatusPreconditionFailed)
			return
		}
	}

	var summary *store.ObjectSummary
	if existing == nil {
		if !hasPrivilege(access.CollectionACL(col), col.Principal, access.PrivBind, access.PrivWrite) {
			http.Error(w, "forbidden", http.StatusForbidden)
			return
		}
		summary, err = h.store.Objects.CreateObject(r.Context(), col.Ref, uri, body)
	} else {
		if !hasPrivilege(access.ObjectACL(col), col.Principal, access.PrivWriteContent, access.PrivWrite) {
			http.Error(w, "forbidden", http.StatusForbidden)
			return
		}
		summary, err = h.store.Objects.UpdateObject(r.Context(), col.Ref, uri, body)
	}
	if err != nil {
		h.log.Error("store object", zap.String("uri", uri), zap.Error(err))
		http.Error(w, "internal server error", http.StatusInternalServerError)
		return
	}

	w.Header().Set("ETag", `"`+summary.ETag+`"`)
	if existing == nil {
		w.WriteHeader(http.StatusCreated)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// DeleteObject removes one object, logging the deletion for sync clients.
func (h *Handler) DeleteObject(w http.ResponseWriter, r *http.Request) {
	col := h.loadCollection(w, r)
	if col == nil {
		return
	}
	if !hasPrivilege(access.CollectionACL(col), col.Principal, access.PrivUnbind, access.PrivWrite) {
		http.Error(w, "forbidden", http.StatusForbidden)
		return
	}

	uri := chi.URLParam(r, "object")
	if match := r.Header.Get("If-Match"); match != "" {
		existing, err := h.store.Objects.GetObject(r.Context(), col.Ref, uri)
		if err != nil && !errors.Is(err, store.ErrNotFound) {
			h.log.Error("lookup object", zap.String("uri", uri), zap.Error(err))
			http.Error(w, "internal server error", http.StatusInternalServerError)
			return
		}
		if existing == nil || match != `"`+existing.ETag+`"` {
			http.Error(w, "etag mismatch", http.StatusPreconditionFailed)
			return
		}
	}

	if err := h.store.Objects.DeleteObject(r.Context(), col.Ref, uri); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			http.Error(w, "object not found", http.StatusNotFound)
			return
		}
		h.log.Error("delete object", zap.String("uri", uri), zap.Error(err))
		http.Error(w, "internal server error", http.StatusInternalServerError)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
