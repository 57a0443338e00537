// Package access derives the protected ACL for collection instances and
// their member objects from the instance's access level and permission
// bitmask. Derivation is a total, stateless function over the instance.
package access

import (
	"github.com/kalamarcito/dav/internal/store"
)

// Privilege names one grantable DAV privilege.
type Privilege string

const (
	PrivRead            Privilege = "read"
	PrivReadFreeBusy    Privilege = "read-free-busy"
	PrivWrite           Privilege = "write"
	PrivWriteContent    Privilege = "write-content"
	PrivWriteProperties Privilege = "write-properties"
	PrivBind            Privilege = "bind"
	PrivUnbind          Privilege = "unbind"
	PrivShare           Privilege = "share"
)

// PrincipalAuthenticated is the sentinel principal matching any
// authenticated party.
const PrincipalAuthenticated = "{DAV:}authenticated"

// ACE is one access-control entry. Every derived entry is protected:
// clients cannot revoke it through ACL manipulation.
type ACE struct {
	Principal string
	Privilege Privilege
	Protected bool
}

// ownerGrants is the ordered rule table for owner-class access levels.
// Sharee-class levels get no base grants; their write-class privileges come
// from the bitmask refinement pass below.
var ownerGrants = map[store.AccessLevel][]Privilege{
	store.AccessNotShared:   {PrivShare, PrivWrite},
	store.AccessSharedOwner: {PrivShare, PrivWrite},
}

// bitGrants maps each permission bit to the privilege it unlocks at the
// collection level, applied as an independent second pass.
var bitGrants = []struct {
	bit  store.PermissionBits
	priv Privilege
}{
	{store.PermWrite, PrivWriteContent},
	{store.PermCreate, PrivBind},
	{store.PermDelete, PrivUnbind},
}

// CollectionACL derives the ordered ACE list for the collection itself.
func CollectionACL(col *store.Collection) []ACE {
	var acl []ACE
	writeProxy := col.Principal + "/calendar-proxy-write"
	readProxy := col.Principal + "/calendar-proxy-read"

	for _, priv := range ownerGrants[col.Access] {
		acl = appendGrant(acl, priv, col.Principal, writeProxy)
	}
	if col.Access.IsSharee() {
		bits := col.Permissions.Effective(col.Access)
		for _, g := range bitGrants {
			if bits&g.bit != 0 {
				acl = appendGrant(acl, g.priv, col.Principal, writeProxy)
			}
		}
	}
	if col.Access == store.AccessNoAccess {
		return acl
	}

	acl = appendGrant(acl, PrivWriteProperties, col.Principal)
	acl = appendGrant(acl, PrivRead, col.Principal, writeProxy, readProxy)
	if col.Kind == store.KindCalendar {
		acl = appendGrant(acl, PrivReadFreeBusy, PrincipalAuthenticated)
	}
	return acl
}

// ObjectACL derives the ACE list inherited by every object inside the
// collection. It is the same classification, narrower: bind and unbind are
// collection-scoped operations, so only write-content survives from the
// bitmask even when the create/delete bits are set.
func ObjectACL(col *store.Collection) []ACE {
	var acl []ACE
	writeProxy := col.Principal + "/calendar-proxy-write"
	readProxy := col.Principal + "/calendar-proxy-read"

	if len(ownerGrants[col.Access]) > 0 {
		acl = appendGrant(acl, PrivWrite, col.Principal, writeProxy)
	}
	if col.Access.IsSharee() {
		if col.Permissions.Effective(col.Access)&store.PermWrite != 0 {
			acl = appendGrant(acl, PrivWriteContent, col.Principal, writeProxy)
		}
	}
	if col.Access == store.AccessNoAccess {
		return acl
	}

	acl = appendGrant(acl, PrivRead, col.Principal, writeProxy, readProxy)
	return acl
}

func appendGrant(acl []ACE, priv Privilege, principals ...string) []ACE {
	for _, p := range principals {
		acl = append(acl, ACE{Principal: p, Privilege: priv, Protected: true})
	}
	return acl
}
