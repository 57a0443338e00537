package dav

import (
	"errors"
	"net/http"
	"strconv"

	"go.uber.org/zap"

	"github.com/kalamarcito/dav/internal/access"
	"github.com/kalamarcito/dav/internal/auth"
	"github.com/kalamarcito/dav/internal/store"
)

var elem = &struct{}{}

// PropfindHome lists every collection instance visible to the principal,
// owned and shared alike.
func (h *Handler) PropfindHome(w http.ResponseWriter, r *http.Request) {
	user, ok := auth.UserFromContext(r.Context())
	if !ok {
		http.Error(w, "authentication required", http.StatusUnauthorized)
		return
	}

	cols, err := h.store.Collections.ListInstances(r.Context(), user.PrincipalURI())
	if err != nil {
		h.log.Error("list collections", zap.String("principal", user.PrincipalURI()), zap.Error(err))
		http.Error(w, "internal server error", http.StatusInternalServerError)
		return
	}

	ms := &multistatus{}
	ms.Response = append(ms.Response, response{
		Href: "/dav/collections/",
		Propstat: []propstat{{
			Prop: prop{
				ResourceType:         &resourceType{Collection: elem},
				CurrentUserPrincipal: &hrefProp{Href: "/" + user.PrincipalURI() + "/"},
			},
			Status: "HTTP/1.1 200 OK",
		}},
	})
	for i := range cols {
		col := &cols[i]
		ms.Response = append(ms.Response, response{
			Href: h.collectionPath(col),
			Propstat: []propstat{{
				Prop:   h.collectionProps(r, col, false),
				Status: "HTTP/1.1 200 OK",
			}},
		})
	}
	writeMultistatus(w, ms)
}

// Propfind returns the properties of one collection and, at Depth 1, its
// member objects.
func (h *Handler) Propfind(w http.ResponseWriter, r *http.Request) {
	col := h.loadCollection(w, r)
	if col == nil {
		return
	}
	if !hasPrivilege(access.CollectionACL(col), col.Principal, access.PrivRead) {
		http.Error(w, "forbidden", http.StatusForbidden)
		return
	}

	// An empty PROPFIND body means allprop; the body is otherwise only
	// sanity checked, the property set returned is fixed.
	if body, err := readDAVBody(r); err == nil && len(body) > 0 {
		var req propfindRequest
		if err := safeUnmarshalXML(body, &req); err != nil {
			http.Error(w, "malformed propfind body", http.StatusBadRequest)
			return
		}
	} else if err != nil {
		http.Error(w, "failed to read request body", http.StatusBadRequest)
		return
	}

	ms := &multistatus{}
	ms.Response = append(ms.Response, response{
		Href: h.collectionPath(col),
		Propstat: []propstat{{
			Prop:   h.collectionProps(r, col, true),
			Status: "HTTP/1.1 200 OK",
		}},
	})

	if r.Header.Get("Depth") == "1" {
		objects, err := h.store.Objects.ListObjects(r.Context(), col.Ref)
		if err != nil {
			h.log.Error("list objects", zap.String("ref", col.Ref.String()), zap.Error(err))
			http.Error(w, "internal server error", http.StatusInternalServerError)
			return
		}
		base := h.collectionPath(col)
		for _, obj := range objects {
			ms.Response = append(ms.Response, response{
				Href: base + obj.URI,
				Propstat: []propstat{{
					Prop: prop{
						GetETag:          `"` + obj.ETag + `"`,
						GetContentType:   contentTypeFor(col.Kind),
						GetContentLength: strconv.FormatInt(obj.Size, 10),
					},
					Status: "HTTP/1.1 200 OK",
				}},
			})
		}
	}
	writeMultistatus(w, ms)
}

// collectionProps assembles the property set for a collection instance.
// The sharee list is only attached for the owner of a shared collection,
// and only when includeInvite is set.
func (h *Handler) collectionProps(r *http.Request, col *store.Collection, includeInvite bool) prop {
	rt := &resourceType{Collection: elem}
	if col.Kind == store.KindAddressBook {
		rt.AddressBook = elem
	} else {
		rt.Calendar = elem
	}
	switch {
	case col.Access == store.AccessSharedOwner:
		rt.SharedOwner = elem
	case col.Access.IsSharee():
		rt.Shared = elem
	}

	acl := access.CollectionACL(col)
	p := prop{
		DisplayName:             col.DisplayName,
		ResourceType:            rt,
		SyncToken:               buildSyncToken(col.SyncToken),
		CTag:                    buildSyncToken(col.SyncToken),
		Owner:                   &hrefProp{Href: "/" + col.Principal + "/"},
		CurrentUserPrivilegeSet: privilegeSet(acl, col.Principal),
		SupportedReportSet: &supportedReportSet{
			Reports: []supportedReport{{Report: reportType{SyncCollection: elem}}},
		},
	}

	if includeInvite && col.Access == store.AccessSharedOwner {
		sharees, err := h.store.Sharees.ListSharees(r.Context(), col.Ref.CollectionID)
		if err != nil {
			h.log.Error("list sharees", zap.Int64("collection_id", col.Ref.CollectionID), zap.Error(err))
		} else if len(sharees) > 0 {
			p.Invite = inviteProperty(sharees)
		}
	}
	return p
}

func inviteProperty(sharees []store.Sharee) *inviteProp {
	inv := &inviteProp{}
	for _, s := range sharees {
		u := inviteUser{
			Href:       s.Href,
			CommonName: s.Properties.DisplayName.OrElse(""),
		}
		if s.Access == store.AccessReadWrite {
			u.ReadWriteAccess = elem
		} else {
			u.ReadAccess = elem
		}
		switch s.Status.OrElse(store.InviteNoResponse) {
		case store.InviteAccepted:
			u.StatusAccepted = elem
		case store.InviteInvalid:
			u.StatusInvalid = elem
		default:
			u.StatusNoResponse = elem
		}
		inv.Users = append(inv.Users, u)
	}
	return inv
}

// Proppatch handles property updates. The only mutation honored on this
// surface is stripping the shared-owner marker from the resourcetype, which
// unshares the collection by revoking every sharee. Everything else in the
// derived property set is protected.
func (h *Handler) Proppatch(w http.ResponseWriter, r *http.Request) {
	col := h.loadCollection(w, r)
	if col == nil {
		return
	}

	body, err := readDAVBody(r)
	if err != nil {
		http.Error(w, "failed to read request body", http.StatusBadRequest)
		return
	}
	var req proppatchRequest
	if err := safeUnmarshalXML(body, &req); err != nil {
		http.Error(w, "malformed proppatch body", http.StatusBadRequest)
		return
	}

	var rtUpdate *resourceTypeUpdate
	if req.Set != nil && req.Set.Prop.ResourceType != nil {
		rtUpdate = req.Set.Prop.ResourceType
	}
	removingRT := req.Remove != nil && req.Remove.Prop.ResourceType != nil

	unshare := col.Access == store.AccessSharedOwner &&
		(removingRT || (rtUpdate != nil && rtUpdate.SharedOwner == nil))

	ms := &multistatus{}
	if unshare {
		if !hasPrivilege(access.CollectionACL(col), col.Principal, access.PrivShare) {
			http.Error(w, "forbidden", http.StatusForbidden)
			return
		}
		if err := h.revokeAllSharees(r, col); err != nil {
			h.log.Error("unshare collection", zap.String("ref", col.Ref.String()), zap.Error(err))
			http.Error(w, "internal server error", http.StatusInternalServerError)
			return
		}
		ms.Response = append(ms.Response, response{
			Href: h.collectionPath(col),
			Propstat: []propstat{{
				Prop:   prop{ResourceType: &resourceType{}},
				Status: "HTTP/1.1 200 OK",
			}},
		})
		writeMultistatus(w, ms)
		return
	}

	// No writable property matched; report the whole update as failed
	// against a protected set.
	ms.Response = append(ms.Response, response{
		Href: h.collectionPath(col),
		Propstat: []propstat{{
			Prop:   prop{},
			Status: "HTTP/1.1 403 Forbidden",
		}},
	})
	writeMultistatus(w, ms)
}

func (h *Handler) revokeAllSharees(r *http.Request, col *store.Collection) error {
	sharees, err := h.store.Sharees.ListSharees(r.Context(), col.Ref.CollectionID)
	if err != nil {
		return err
	}
	if len(sharees) == 0 {
		return nil
	}
	desired := make([]store.Sharee, 0, len(sharees))
	for _, s := range sharees {
		desired = append(desired, store.Sharee{Href: s.Href, Access: store.AccessNoAccess})
	}
	err = h.store.Sharees.ApplySharees(r.Context(), col.Ref.CollectionID, desired)
	if err != nil && !errors.Is(err, store.ErrNotFound) {
		return err
	}
	return nil
}
