package store

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/samber/mo"

	"github.com/kalamarcito/dav/internal/delta"
)

// AccessLevel classifies what a principal may do with one collection instance.
type AccessLevel int

const (
	AccessNotShared AccessLevel = iota
	AccessSharedOwner
	AccessRead
	AccessReadWrite
	AccessNoAccess
)

func (a AccessLevel) String() string {
	switch a {
	case AccessNotShared:
		return "not-shared"
	case AccessSharedOwner:
		return "shared-owner"
	case AccessRead:
		return "read"
	case AccessReadWrite:
		return "read-write"
	case AccessNoAccess:
		return "no-access"
	default:
		return fmt.Sprintf("access(%d)", int(a))
	}
}

// IsSharee reports whether the level describes a sharee-originated instance,
// as opposed to the owner's own instance.
func (a AccessLevel) IsSharee() bool {
	return a == AccessRead || a == AccessReadWrite
}

// PermissionBits refines write-class grants for Read/ReadWrite instances.
// A zero value under ReadWrite is a legacy sentinel meaning "grant all".
type PermissionBits uint8

const (
	PermWrite PermissionBits = 1 << iota
	PermCreate
	PermDelete

	PermAll = PermWrite | PermCreate | PermDelete
)

// Effective applies the legacy default: a ReadWrite grant stored before
// fine-grained bits existed carries bitmask zero and must behave as full write.
func (p PermissionBits) Effective(level AccessLevel) PermissionBits {
	if level == AccessReadWrite && p == 0 {
		return PermAll
	}
	return p
}

// InviteStatus tracks a sharee's invitation state. There is no deferred
// invitation workflow: resolvable sharees are accepted synchronously.
type InviteStatus string

const (
	InviteNoResponse InviteStatus = "noresponse"
	InviteAccepted   InviteStatus = "accepted"
	InviteInvalid    InviteStatus = "invalid"
)

// CollectionKind distinguishes calendars from address books. Only calendars
// carry the free-busy read grant.
type CollectionKind int

const (
	KindCalendar CollectionKind = iota
	KindAddressBook
)

func (k CollectionKind) String() string {
	if k == KindAddressBook {
		return "addressbook"
	}
	return "calendar"
}

// CollectionRef identifies one instance of a collection: the stable
// collection identity plus the per-principal instance identity.
type CollectionRef struct {
	CollectionID int64
	InstanceID   int64
}

func (r CollectionRef) String() string {
	return strconv.FormatInt(r.CollectionID, 10) + "-" + strconv.FormatInt(r.InstanceID, 10)
}

// ParseCollectionRef parses the "<collection>-<instance>" composite form.
// Malformed refs fail before any storage access.
func ParseCollectionRef(s string) (CollectionRef, error) {
	head, tail, found := strings.Cut(s, "-")
	if !found {
		return CollectionRef{}, fmt.Errorf("%w: %q", ErrInvalidRef, s)
	}
	cid, err := strconv.ParseInt(head, 10, 64)
	if err != nil {
		return CollectionRef{}, fmt.Errorf("%w: %q", ErrInvalidRef, s)
	}
	iid, err := strconv.ParseInt(tail, 10, 64)
	if err != nil {
		return CollectionRef{}, fmt.Errorf("%w: %q", ErrInvalidRef, s)
	}
	return CollectionRef{CollectionID: cid, InstanceID: iid}, nil
}

// Collection is one principal's view of a calendar or address book.
type Collection struct {
	Ref              CollectionRef
	Principal        string
	URI              string
	DisplayName      string
	Description      *string
	Kind             CollectionKind
	Access           AccessLevel
	Permissions      PermissionBits
	SyncToken        int64
	ShareResourceURI string
	CreatedAt        time.Time
}

// ShareeProperties is the closed set of per-sharee property overrides.
type ShareeProperties struct {
	DisplayName mo.Option[string]
}

// Merge layers desired values on top of the receiver: desired values win on
// collision, existing values without a desired counterpart are retained.
func (p ShareeProperties) Merge(desired ShareeProperties) ShareeProperties {
	out := p
	if v, ok := desired.DisplayName.Get(); ok {
		out.DisplayName = mo.Some(v)
	}
	return out
}

// Sharee is a pending or active collaborator on a collection. In a desired
// list an absent Status means "keep whatever is stored"; in a stored list the
// Status is always present.
type Sharee struct {
	Href       string
	Principal  mo.Option[string]
	Access     AccessLevel
	Status     mo.Option[InviteStatus]
	Properties ShareeProperties
}

// ChangeOp tags one change-log entry. The numeric values are persisted.
type ChangeOp = delta.Op

const (
	OpAdded    = delta.OpAdded
	OpModified = delta.OpModified
	OpDeleted  = delta.OpDeleted
)

// ChangeLogEntry is one append-only record of an object mutation.
type ChangeLogEntry struct {
	CollectionID int64
	ObjectURI    string
	Token        int64
	Op           ChangeOp
}

// ObjectSummary carries object metadata without the payload.
type ObjectSummary struct {
	URI        string
	ETag       string
	Size       int64
	ModifiedAt time.Time
}

// Object is a stored calendar object or contact card.
type Object struct {
	ID           int64
	CollectionID int64
	URI          string
	Data         []byte
	ETag         string
	Size         int64
	ModifiedAt   time.Time
}

// DeltaResult reports the changes between a client token and current state.
type DeltaResult = delta.Report

// InstanceProperties are the caller-settable attributes of a new instance.
type InstanceProperties struct {
	DisplayName      string
	Description      *string
	Kind             CollectionKind
	Access           AccessLevel
	Permissions      PermissionBits
	ShareHref        string
	ShareDisplayName mo.Option[string]
	ShareStatus      InviteStatus
}

// User is an account that can own collections and authenticate DAV clients.
type User struct {
	ID           int64
	Username     string
	PrimaryEmail string
	CreatedAt    time.Time
	LastLoginAt  time.Time
}

// PrincipalURI returns the canonical principal path for the user.
func (u *User) PrincipalURI() string {
	return "principals/users/" + u.Username
}

// AppPassword is a per-client credential for DAV access.
type AppPassword struct {
	ID         int64
	UserID     int64
	Label      string
	TokenHash  string
	CreatedAt  time.Time
	ExpiresAt  *time.Time
	RevokedAt  *time.Time
	LastUsedAt *time.Time
}
