package dav

import (
	"bytes"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/kalamarcito/dav/internal/access"
)

const maxBodySize = 10 << 20 // 10 MB

var errRequestTooLarge = errors.New("request body too large")

// syncTokenPrefix keeps wire tokens opaque-looking while staying trivially
// parseable on the way back in.
const syncTokenPrefix = "data:,"

func buildSyncToken(n int64) string {
	return syncTokenPrefix + strconv.FormatInt(n, 10)
}

// parseSyncToken accepts tokens with or without the prefix. Anything
// non-numeric is reported as unparseable so the caller can demand a resync.
func parseSyncToken(s string) (int64, error) {
	s = strings.TrimSpace(strings.TrimPrefix(s, syncTokenPrefix))
	n, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("malformed sync token %q", s)
	}
	return n, nil
}

// readDAVBody reads a request body with a size cap.
func readDAVBody(r *http.Request) ([]byte, error) {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxBodySize+1))
	if err != nil {
		return nil, err
	}
	if len(body) > maxBodySize {
		return nil, errRequestTooLarge
	}
	return body, nil
}

// safeUnmarshalXML parses client XML with external entity expansion
// disabled. DOCTYPE declarations are rejected outright.
func safeUnmarshalXML(data []byte, v any) error {
	decoder := xml.NewDecoder(bytes.NewReader(data))
	decoder.Entity = map[string]string{}
	decoder.CharsetReader = func(charset string, input io.Reader) (io.Reader, error) {
		return nil, fmt.Errorf("unsupported charset: %s", charset)
	}

	for {
		tok, err := decoder.Token()
		if err == io.EOF {
			break
		}
		if err != nil {
			return err
		}
		if _, ok := tok.(xml.Directive); ok {
			return errors.New("XML directives are not allowed")
		}
		if start, ok := tok.(xml.StartElement); ok {
			return decoder.DecodeElement(v, &start)
		}
	}
	return errors.New("no XML element found")
}

func writeMultistatus(w http.ResponseWriter, ms *multistatus) {
	ms.XmlnsD = "DAV:"
	ms.XmlnsC = "urn:ietf:params:xml:ns:caldav"
	ms.XmlnsA = "urn:ietf:params:xml:ns:carddav"
	if ms.XmlnsCS == "" {
		ms.XmlnsCS = "http://calendarserver.org/ns/"
	}

	w.Header().Set("Content-Type", "application/xml; charset=utf-8")
	w.WriteHeader(http.StatusMultiStatus)
	_, _ = w.Write([]byte(xml.Header))
	_ = xml.NewEncoder(w).Encode(ms)
}

// writeDAVError emits an RFC 3253 style error body carrying a single
// precondition element.
func writeDAVError(w http.ResponseWriter, status int, precondition string) {
	w.Header().Set("Content-Type", "application/xml; charset=utf-8")
	w.WriteHeader(status)
	fmt.Fprintf(w, "%s<d:error xmlns:d=\"DAV:\"><d:%s/></d:error>", xml.Header, precondition)
}

// hasPrivilege reports whether the ACL grants any of the wanted privileges
// to the principal, directly or through the authenticated sentinel.
func hasPrivilege(acl []access.ACE, principal string, wanted ...access.Privilege) bool {
	for _, ace := range acl {
		if ace.Principal != principal && ace.Principal != access.PrincipalAuthenticated {
			continue
		}
		for _, p := range wanted {
			if ace.Privilege == p {
				return true
			}
		}
	}
	return false
}

// privilegeSet renders the privileges an ACL grants to one principal.
func privilegeSet(acl []access.ACE, principal string) *currentUserPrivilegeSet {
	marker := &struct{}{}
	set := &currentUserPrivilegeSet{}
	seen := map[access.Privilege]bool{}
	for _, ace := range acl {
		if ace.Principal != principal && ace.Principal != access.PrincipalAuthenticated {
			continue
		}
		if seen[ace.Privilege] {
			continue
		}
		seen[ace.Privilege] = true
		var p privilege
		switch ace.Privilege {
		case access.PrivRead:
			p.Read = marker
		case access.PrivWrite:
			p.Write = marker
		case access.PrivWriteContent:
			p.WriteContent = marker
		case access.PrivWriteProperties:
			p.WriteProperties = marker
		case access.PrivBind:
			p.Bind = marker
		case access.PrivUnbind:
			p.Unbind = marker
		case access.PrivShare:
			p.Share = marker
		case access.PrivReadFreeBusy:
			p.ReadFreeBusy = marker
		}
		set.Privileges = append(set.Privileges, p)
	}
	return set
}
