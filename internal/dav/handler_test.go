package dav

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/samber/mo"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/kalamarcito/dav/internal/auth"
	"github.com/kalamarcito/dav/internal/config"
	"github.com/kalamarcito/dav/internal/store"
)

const alice = "principals/users/alice"

func init() {
	for _, method := range []string{"PROPFIND", "PROPPATCH", "MKCOL", "REPORT"} {
		chi.RegisterMethod(method)
	}
}

// fakeCollections serves a fixed instance set.
type fakeCollections struct {
	instances map[store.CollectionRef]*store.Collection
	deleted   []store.CollectionRef
}

func (f *fakeCollections) ListInstances(_ context.Context, principal string) ([]store.Collection, error) {
	var out []store.Collection
	for _, col := range f.instances {
		if col.Principal == principal {
			out = append(out, *col)
		}
	}
	return out, nil
}

func (f *fakeCollections) GetInstance(_ context.Context, ref store.CollectionRef) (*store.Collection, error) {
	if col, ok := f.instances[ref]; ok {
		c := *col
		return &c, nil
	}
	return nil, store.ErrNotFound
}

func (f *fakeCollections) CreateInstance(_ context.Context, principal, slug string, props store.InstanceProperties) (store.CollectionRef, error) {
	ref := store.CollectionRef{CollectionID: 99, InstanceID: 990}
	f.instances[ref] = &store.Collection{
		Ref: ref, Principal: principal, URI: slug,
		DisplayName: props.DisplayName, Kind: props.Kind,
		Access: props.Access, SyncToken: 1,
	}
	return ref, nil
}

func (f *fakeCollections) DeleteInstance(_ context.Context, ref store.CollectionRef) error {
	if _, ok := f.instances[ref]; !ok {
		return store.ErrNotFound
	}
	delete(f.instances, ref)
	f.deleted = append(f.deleted, ref)
	return nil
}

// fakeObjects is an in-memory object repository with a real change counter.
type fakeObjects struct {
	objects   map[string]*store.Object
	syncToken int64
	report    *store.DeltaResult
	deltaErr  error

	lastClientToken mo.Option[int64]
	lastLimit       mo.Option[int]
}

func newFakeObjects() *fakeObjects {
	return &fakeObjects{objects: map[string]*store.Object{}, syncToken: 1}
}

func (f *fakeObjects) ListObjects(context.Context, store.CollectionRef) ([]store.ObjectSummary, error) {
	var out []store.ObjectSummary
	for _, o := range f.objects {
		out = append(out, store.ObjectSummary{URI: o.URI, ETag: o.ETag, Size: o.Size})
	}
	return out, nil
}

func (f *fakeObjects) GetObject(_ context.Context, _ store.CollectionRef, uri string) (*store.Object, error) {
	if o, ok := f.objects[uri]; ok {
		return o, nil
	}
	return nil, store.ErrNotFound
}

func (f *fakeObjects) GetObjects(_ context.Context, _ store.CollectionRef, uris []string) ([]store.Object, error) {
	var out []store.Object
	for _, uri := range uris {
		if o, ok := f.objects[uri]; ok {
			out = append(out, *o)
		}
	}
	return out, nil
}

func (f *fakeObjects) CreateObject(_ context.Context, ref store.CollectionRef, uri string, data []byte) (*store.ObjectSummary, error) {
	o := &store.Object{CollectionID: ref.CollectionID, URI: uri, Data: data, ETag: "etag-" + uri, Size: int64(len(data))}
	f.objects[uri] = o
	f.syncToken++
	return &store.ObjectSummary{URI: uri, ETag: o.ETag, Size: o.Size}, nil
}

func (f *fakeObjects) UpdateObject(_ context.Context, ref store.CollectionRef, uri string, data []byte) (*store.ObjectSummary, error) {
	o, ok := f.objects[uri]
	if !ok {
		return nil, store.ErrNotFound
	}
	o.Data = data
	o.ETag = o.ETag + "'"
	o.Size = int64(len(data))
	f.syncToken++
	return &store.ObjectSummary{URI: uri, ETag: o.ETag, Size: o.Size}, nil
}

func (f *fakeObjects) DeleteObject(_ context.Context, _ store.CollectionRef, uri string) error {
	if _, ok := f.objects[uri]; !ok {
		return store.ErrNotFound
	}
	delete(f.objects, uri)
	f.syncToken++
	return nil
}

func (f *fakeObjects) GetSyncDelta(_ context.Context, _ store.CollectionRef, clientToken mo.Option[int64], _ int, limit mo.Option[int]) (*store.DeltaResult, error) {
	f.lastClientToken = clientToken
	f.lastLimit = limit
	if f.deltaErr != nil {
		return nil, f.deltaErr
	}
	return f.report, nil
}

// fakeSharees records reconciliation requests and mirrors the store's
// contract: the desired list is applied to the stored one and the owner
// instance's access level tracks whether any sharee remains.
type fakeSharees struct {
	collections *fakeCollections
	stored      []store.Sharee
	applied     [][]store.Sharee
}

func (f *fakeSharees) ListSharees(context.Context, int64) ([]store.Sharee, error) {
	return f.stored, nil
}

func (f *fakeSharees) ApplySharees(_ context.Context, collectionID int64, desired []store.Sharee) error {
	f.applied = append(f.applied, desired)
	for _, want := range desired {
		if want.Access == store.AccessNoAccess {
			for i := range f.stored {
				if f.stored[i].Href == want.Href {
					f.stored = append(f.stored[:i], f.stored[i+1:]...)
					break
				}
			}
			continue
		}
		updated := false
		for i := range f.stored {
			if f.stored[i].Href == want.Href {
				f.stored[i] = want
				updated = true
				break
			}
		}
		if !updated {
			f.stored = append(f.stored, want)
		}
	}

	target := store.AccessNotShared
	if len(f.stored) > 0 {
		target = store.AccessSharedOwner
	}
	for _, col := range f.collections.instances {
		if col.Ref.CollectionID == collectionID && !col.Access.IsSharee() {
			col.Access = target
		}
	}
	return nil
}

type fixture struct {
	handler     *Handler
	collections *fakeCollections
	objects     *fakeObjects
	sharees     *fakeSharees
	router      chi.Router
}

var ownerRef = store.CollectionRef{CollectionID: 1, InstanceID: 10}

func newFixture(t *testing.T, cols ...*store.Collection) *fixture {
	t.Helper()

	fc := &fakeCollections{instances: map[store.CollectionRef]*store.Collection{}}
	for _, col := range cols {
		fc.instances[col.Ref] = col
	}
	fo := newFakeObjects()
	fs := &fakeSharees{collections: fc}

	st := &store.Store{Collections: fc, Objects: fo, Sharees: fs}
	h := NewHandler(&config.Config{SyncLimit: 0}, st, zap.NewNop())

	r := chi.NewRouter()
	r.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
			user := &store.User{ID: 1, Username: "alice"}
			next.ServeHTTP(w, req.WithContext(auth.WithUser(req.Context(), user)))
		})
	})
	r.MethodFunc("PROPFIND", "/dav/", h.PropfindHome)
	r.MethodFunc("MKCOL", "/dav/collections/{ref}", h.MkCol)
	r.MethodFunc("PROPFIND", "/dav/collections/{ref}/", h.Propfind)
	r.MethodFunc("PROPPATCH", "/dav/collections/{ref}/", h.Proppatch)
	r.MethodFunc("REPORT", "/dav/collections/{ref}/", h.Report)
	r.Post("/dav/collections/{ref}/", h.Post)
	r.Delete("/dav/collections/{ref}/", h.DeleteCollection)
	r.Get("/dav/collections/{ref}/{object}", h.GetObject)
	r.Put("/dav/collections/{ref}/{object}", h.PutObject)
	r.Delete("/dav/collections/{ref}/{object}", h.DeleteObject)

	return &fixture{handler: h, collections: fc, objects: fo, sharees: fs, router: r}
}

func ownedCalendar() *store.Collection {
	return &store.Collection{
		Ref:         ownerRef,
		Principal:   alice,
		URI:         "work",
		DisplayName: "Work",
		Kind:        store.KindCalendar,
		Access:      store.AccessSharedOwner,
		SyncToken:   5,
	}
}

func readOnlyShare() *store.Collection {
	col := ownedCalendar()
	col.Access = store.AccessRead
	col.Permissions = 0
	return col
}

func (f *fixture) do(method, path, body string, headers ...string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}
	w := httptest.NewRecorder()
	f.router.ServeHTTP(w, req)
	return w
}

func TestPutCreatesObject(t *testing.T) {
	f := newFixture(t, ownedCalendar())

	w := f.do(http.MethodPut, "/dav/collections/1-10/a.ics", "BEGIN:VCALENDAR")
	assert.Equal(t, http.StatusCreated, w.Code)
	assert.NotEmpty(t, w.Header().Get("ETag"))
	assert.Contains(t, f.objects.objects, "a.ics")
}

func TestPutUpdatesObject(t *testing.T) {
	f := newFixture(t, ownedCalendar())
	_, err := f.objects.CreateObject(context.Background(), ownerRef, "a.ics", []byte("v1"))
	require.NoError(t, err)

	w := f.do(http.MethodPut, "/dav/collections/1-10/a.ics", "v2")
	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Equal(t, []byte("v2"), f.objects.objects["a.ics"].Data)
}

func TestPutReadOnlyShareeForbidden(t *testing.T) {
	f := newFixture(t, readOnlyShare())

	w := f.do(http.MethodPut, "/dav/collections/1-10/a.ics", "BEGIN:VCALENDAR")
	assert.Equal(t, http.StatusForbidden, w.Code)
	assert.NotContains(t, f.objects.objects, "a.ics")
}

// A legacy read-write instance with bitmask zero gets the full write set.
func TestPutLegacyReadWriteShareeAllowed(t *testing.T) {
	col := ownedCalendar()
	col.Access = store.AccessReadWrite
	col.Permissions = 0
	f := newFixture(t, col)

	w := f.do(http.MethodPut, "/dav/collections/1-10/a.ics", "BEGIN:VCALENDAR")
	assert.Equal(t, http.StatusCreated, w.Code)
}

// The create bit alone does not allow replacing an existing object.
func TestPutContentRequiresWriteBit(t *testing.T) {
	col := ownedCalendar()
	col.Access = store.AccessReadWrite
	col.Permissions = store.PermCreate
	f := newFixture(t, col)

	w := f.do(http.MethodPut, "/dav/collections/1-10/a.ics", "v1")
	assert.Equal(t, http.StatusCreated, w.Code)

	w = f.do(http.MethodPut, "/dav/collections/1-10/a.ics", "v2")
	assert.Equal(t, http.StatusForbidden, w.Code)
}

func TestPutIfMatchMismatch(t *testing.T) {
	f := newFixture(t, ownedCalendar())
	_, err := f.objects.CreateObject(context.Background(), ownerRef, "a.ics", []byte("v1"))
	require.NoError(t, err)

	w := f.do(http.MethodPut, "/dav/collections/1-10/a.ics", "v2", "If-Match", `"stale"`)
	assert.Equal(t, http.StatusPreconditionFailed, w.Code)
}

func TestGetObject(t *testing.T) {
	f := newFixture(t, ownedCalendar())
	_, err := f.objects.CreateObject(context.Background(), ownerRef, "a.ics", []byte("BEGIN:VCALENDAR"))
	require.NoError(t, err)

	w := f.do(http.MethodGet, "/dav/collections/1-10/a.ics", "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "BEGIN:VCALENDAR", w.Body.String())
	assert.Contains(t, w.Header().Get("Content-Type"), "text/calendar")
}

func TestGetObjectNotFound(t *testing.T) {
	f := newFixture(t, ownedCalendar())

	w := f.do(http.MethodGet, "/dav/collections/1-10/missing.ics", "")
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestDeleteObjectReadOnlyShareeForbidden(t *testing.T) {
	f := newFixture(t, readOnlyShare())
	_, err := f.objects.CreateObject(context.Background(), ownerRef, "a.ics", []byte("v1"))
	require.NoError(t, err)

	w := f.do(http.MethodDelete, "/dav/collections/1-10/a.ics", "")
	assert.Equal(t, http.StatusForbidden, w.Code)
	assert.Contains(t, f.objects.objects, "a.ics")
}

func TestMalformedRefRejectedBeforeStorage(t *testing.T) {
	f := newFixture(t, ownedCalendar())

	w := f.do(http.MethodGet, "/dav/collections/bogus/a.ics", "")
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

// Another principal's instance is indistinguishable from a missing one.
func TestForeignInstanceLooksAbsent(t *testing.T) {
	col := ownedCalendar()
	col.Principal = "principals/users/mallory"
	f := newFixture(t, col)

	w := f.do(http.MethodGet, "/dav/collections/1-10/a.ics", "")
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestReportSyncCollection(t *testing.T) {
	f := newFixture(t, ownedCalendar())
	f.objects.report = &store.DeltaResult{
		Token:    9,
		Added:    []string{"new.ics"},
		Modified: []string{"changed.ics"},
		Deleted:  []string{"gone.ics"},
	}
	_, err := f.objects.CreateObject(context.Background(), ownerRef, "new.ics", []byte("x"))
	require.NoError(t, err)
	_, err = f.objects.CreateObject(context.Background(), ownerRef, "changed.ics", []byte("y"))
	require.NoError(t, err)

	body := `<?xml version="1.0"?><d:sync-collection xmlns:d="DAV:"><d:sync-token>data:,3</d:sync-token><d:sync-level>1</d:sync-level></d:sync-collection>`
	w := f.do("REPORT", "/dav/collections/1-10/", body)

	require.Equal(t, http.StatusMultiStatus, w.Code)
	assert.Equal(t, mo.Some[int64](3), f.objects.lastClientToken)

	out := w.Body.String()
	assert.Contains(t, out, "<d:sync-token>data:,9</d:sync-token>")
	assert.Contains(t, out, "/dav/collections/1-10/new.ics")
	assert.Contains(t, out, "/dav/collections/1-10/changed.ics")
	assert.Contains(t, out, "/dav/collections/1-10/gone.ics")
	assert.Contains(t, out, "HTTP/1.1 404 Not Found")
}

func TestReportInitialSyncSendsAbsentToken(t *testing.T) {
	f := newFixture(t, ownedCalendar())
	f.objects.report = &store.DeltaResult{Token: 5}

	body := `<?xml version="1.0"?><d:sync-collection xmlns:d="DAV:"><d:sync-level>1</d:sync-level></d:sync-collection>`
	w := f.do("REPORT", "/dav/collections/1-10/", body)

	require.Equal(t, http.StatusMultiStatus, w.Code)
	assert.True(t, f.objects.lastClientToken.IsAbsent())
}

func TestReportExpiredTokenDemandsResync(t *testing.T) {
	f := newFixture(t, ownedCalendar())
	f.objects.deltaErr = store.ErrSyncTokenExpired

	body := `<?xml version="1.0"?><d:sync-collection xmlns:d="DAV:"><d:sync-token>data:,99</d:sync-token></d:sync-collection>`
	w := f.do("REPORT", "/dav/collections/1-10/", body)

	assert.Equal(t, http.StatusForbidden, w.Code)
	assert.Contains(t, w.Body.String(), "valid-sync-token")
}

func TestReportGarbageTokenDemandsResync(t *testing.T) {
	f := newFixture(t, ownedCalendar())

	body := `<?xml version="1.0"?><d:sync-collection xmlns:d="DAV:"><d:sync-token>opaque-junk</d:sync-token></d:sync-collection>`
	w := f.do("REPORT", "/dav/collections/1-10/", body)

	assert.Equal(t, http.StatusForbidden, w.Code)
	assert.Contains(t, w.Body.String(), "valid-sync-token")
}

func TestReportTooManyResults(t *testing.T) {
	f := newFixture(t, ownedCalendar())
	f.objects.deltaErr = store.ErrTooManyResults

	body := `<?xml version="1.0"?><d:sync-collection xmlns:d="DAV:"><d:sync-token>data:,1</d:sync-token><d:limit><d:nresults>2</d:nresults></d:limit></d:sync-collection>`
	w := f.do("REPORT", "/dav/collections/1-10/", body)

	assert.Equal(t, http.StatusRequestEntityTooLarge, w.Code)
	assert.Contains(t, w.Body.String(), "number-of-matches-within-limits")
	assert.Equal(t, mo.Some(2), f.objects.lastLimit)
}

func TestReportUnsupportedSyncLevel(t *testing.T) {
	f := newFixture(t, ownedCalendar())

	body := `<?xml version="1.0"?><d:sync-collection xmlns:d="DAV:"><d:sync-level>infinite</d:sync-level></d:sync-collection>`
	w := f.do("REPORT", "/dav/collections/1-10/", body)

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

const shareBody = `<?xml version="1.0" encoding="utf-8"?>
<cs:share xmlns:d="DAV:" xmlns:cs="http://calendarserver.org/ns/">
  <cs:set>
    <d:href>mailto:bob@example.com</d:href>
    <cs:common-name>Bob</cs:common-name>
    <cs:read-write/>
  </cs:set>
  <cs:remove>
    <d:href>mailto:carol@example.com</d:href>
  </cs:remove>
</cs:share>`

func TestPostShareTranslatesToDesiredList(t *testing.T) {
	f := newFixture(t, ownedCalendar())

	w := f.do(http.MethodPost, "/dav/collections/1-10/", shareBody)
	require.Equal(t, http.StatusOK, w.Code)

	require.Len(t, f.sharees.applied, 1)
	desired := f.sharees.applied[0]
	require.Len(t, desired, 2)
	assert.Equal(t, "mailto:bob@example.com", desired[0].Href)
	assert.Equal(t, store.AccessReadWrite, desired[0].Access)
	assert.Equal(t, mo.Some("Bob"), desired[0].Properties.DisplayName)
	assert.True(t, desired[0].Status.IsAbsent(), "wire requests carry no explicit status")
	assert.Equal(t, "mailto:carol@example.com", desired[1].Href)
	assert.Equal(t, store.AccessNoAccess, desired[1].Access)
}

// Sharing a collection that has never been shared must promote the owner's
// instance, so the shared-owner marker, the invite list, and the unshare
// translation all become reachable; revoking the last sharee demotes it
// again.
func TestPostShareLifecyclePromotesAndDemotesOwner(t *testing.T) {
	col := ownedCalendar()
	col.Access = store.AccessNotShared
	f := newFixture(t, col)

	w := f.do(http.MethodPost, "/dav/collections/1-10/", shareBody)
	require.Equal(t, http.StatusOK, w.Code)

	w = f.do("PROPFIND", "/dav/collections/1-10/", "", "Depth", "0")
	require.Equal(t, http.StatusMultiStatus, w.Code)
	out := w.Body.String()
	assert.Contains(t, out, "<cs:shared-owner></cs:shared-owner>")
	assert.Contains(t, out, "mailto:bob@example.com")

	// With the marker in place, stripping it revokes the sharee.
	unshare := `<?xml version="1.0"?>
<d:propertyupdate xmlns:d="DAV:" xmlns:cal="urn:ietf:params:xml:ns:caldav">
  <d:set><d:prop><d:resourcetype><d:collection/><cal:calendar/></d:resourcetype></d:prop></d:set>
</d:propertyupdate>`
	w = f.do("PROPPATCH", "/dav/collections/1-10/", unshare)
	require.Equal(t, http.StatusMultiStatus, w.Code)

	require.Len(t, f.sharees.applied, 2)
	revoked := f.sharees.applied[1]
	require.Len(t, revoked, 1)
	assert.Equal(t, store.AccessNoAccess, revoked[0].Access)

	w = f.do("PROPFIND", "/dav/collections/1-10/", "", "Depth", "0")
	out = w.Body.String()
	assert.NotContains(t, out, "cs:shared-owner")
	assert.NotContains(t, out, "mailto:bob@example.com")
}

func TestPostShareRequiresSharePrivilege(t *testing.T) {
	f := newFixture(t, readOnlyShare())

	w := f.do(http.MethodPost, "/dav/collections/1-10/", shareBody)
	assert.Equal(t, http.StatusForbidden, w.Code)
	assert.Empty(t, f.sharees.applied)
}

func TestPostNonShareBodyUnhandled(t *testing.T) {
	f := newFixture(t, ownedCalendar())

	w := f.do(http.MethodPost, "/dav/collections/1-10/", `<other xmlns="urn:x">x</other>`)
	assert.Equal(t, http.StatusUnsupportedMediaType, w.Code)
	assert.Empty(t, f.sharees.applied)
}

func TestPropfindOwnedCollection(t *testing.T) {
	f := newFixture(t, ownedCalendar())
	f.sharees.stored = []store.Sharee{{
		Href:       "mailto:bob@example.com",
		Access:     store.AccessReadWrite,
		Status:     mo.Some(store.InviteAccepted),
		Properties: store.ShareeProperties{DisplayName: mo.Some("Bob")},
	}}

	w := f.do("PROPFIND", "/dav/collections/1-10/", "", "Depth", "0")
	require.Equal(t, http.StatusMultiStatus, w.Code)

	out := w.Body.String()
	assert.Contains(t, out, "<cs:shared-owner></cs:shared-owner>")
	assert.Contains(t, out, "<d:sync-token>data:,5</d:sync-token>")
	assert.Contains(t, out, "mailto:bob@example.com")
	assert.Contains(t, out, "cs:invite-accepted")
	assert.Contains(t, out, "<d:share></d:share>")
}

func TestPropfindShareeSeesSharedMarkerNotInvites(t *testing.T) {
	f := newFixture(t, readOnlyShare())
	f.sharees.stored = []store.Sharee{{Href: "mailto:bob@example.com", Access: store.AccessRead}}

	w := f.do("PROPFIND", "/dav/collections/1-10/", "", "Depth", "0")
	require.Equal(t, http.StatusMultiStatus, w.Code)

	out := w.Body.String()
	assert.Contains(t, out, "<cs:shared></cs:shared>")
	assert.NotContains(t, out, "cs:invite>")
	assert.NotContains(t, out, "<d:share></d:share>")
}

// Stripping the shared-owner marker from the resourcetype revokes every
// sharee.
func TestProppatchUnshareRevokesAllSharees(t *testing.T) {
	f := newFixture(t, ownedCalendar())
	f.sharees.stored = []store.Sharee{
		{Href: "mailto:bob@example.com", Access: store.AccessRead},
		{Href: "mailto:carol@example.com", Access: store.AccessReadWrite},
	}

	body := `<?xml version="1.0"?>
<d:propertyupdate xmlns:d="DAV:" xmlns:cal="urn:ietf:params:xml:ns:caldav">
  <d:set><d:prop><d:resourcetype><d:collection/><cal:calendar/></d:resourcetype></d:prop></d:set>
</d:propertyupdate>`
	w := f.do("PROPPATCH", "/dav/collections/1-10/", body)
	require.Equal(t, http.StatusMultiStatus, w.Code)

	require.Len(t, f.sharees.applied, 1)
	desired := f.sharees.applied[0]
	require.Len(t, desired, 2)
	for _, s := range desired {
		assert.Equal(t, store.AccessNoAccess, s.Access)
	}
}

func TestProppatchKeepingMarkerIsNoop(t *testing.T) {
	f := newFixture(t, ownedCalendar())
	f.sharees.stored = []store.Sharee{{Href: "mailto:bob@example.com", Access: store.AccessRead}}

	body := `<?xml version="1.0"?>
<d:propertyupdate xmlns:d="DAV:" xmlns:cs="http://calendarserver.org/ns/">
  <d:set><d:prop><d:resourcetype><d:collection/><cs:shared-owner/></d:resourcetype></d:prop></d:set>
</d:propertyupdate>`
	w := f.do("PROPPATCH", "/dav/collections/1-10/", body)
	require.Equal(t, http.StatusMultiStatus, w.Code)
	assert.Empty(t, f.sharees.applied)
}

func TestDeleteCollection(t *testing.T) {
	f := newFixture(t, ownedCalendar())

	w := f.do(http.MethodDelete, "/dav/collections/1-10/", "")
	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Equal(t, []store.CollectionRef{ownerRef}, f.collections.deleted)
}

func TestMkColCreatesCollection(t *testing.T) {
	f := newFixture(t)

	w := f.do("MKCOL", "/dav/collections/personal", "")
	assert.Equal(t, http.StatusCreated, w.Code)
	assert.Equal(t, "/dav/collections/99-990/", w.Header().Get("Location"))
}

func TestSyncTokenRoundTrip(t *testing.T) {
	n, err := parseSyncToken(buildSyncToken(42))
	require.NoError(t, err)
	assert.Equal(t, int64(42), n)

	n, err = parseSyncToken("17")
	require.NoError(t, err)
	assert.Equal(t, int64(17), n)

	_, err = parseSyncToken("data:,xyz")
	assert.Error(t, err)
}

func TestSafeUnmarshalRejectsDoctype(t *testing.T) {
	payload := `<?xml version="1.0"?><!DOCTYPE share [<!ENTITY x SYSTEM "file:///etc/passwd">]><cs:share xmlns:cs="http://calendarserver.org/ns/"/>`
	var req shareRequest
	assert.Error(t, safeUnmarshalXML([]byte(payload), &req))
}
