package store

import (
	"context"

	"github.com/samber/mo"
)

// CollectionRepository manages collection instances.
type CollectionRepository interface {
	// ListInstances returns every instance (owned or shared) visible to a
	// principal.
	ListInstances(ctx context.Context, principal string) ([]Collection, error)
	GetInstance(ctx context.Context, ref CollectionRef) (*Collection, error)
	// CreateInstance creates a new collection with one instance for the
	// principal, or a sharee instance when props carry a sharee access level.
	CreateInstance(ctx context.Context, principal, slug string, props InstanceProperties) (CollectionRef, error)
	// DeleteInstance removes one instance. The underlying collection row,
	// its objects, and its change log are dropped only when no other
	// instance references it.
	DeleteInstance(ctx context.Context, ref CollectionRef) error
}

// ObjectRepository handles member objects. Every mutating call appends a
// change-log entry and advances the collection's sync token in the same
// transaction.
type ObjectRepository interface {
	ListObjects(ctx context.Context, ref CollectionRef) ([]ObjectSummary, error)
	GetObject(ctx context.Context, ref CollectionRef, uri string) (*Object, error)
	GetObjects(ctx context.Context, ref CollectionRef, uris []string) ([]Object, error)
	CreateObject(ctx context.Context, ref CollectionRef, uri string, data []byte) (*ObjectSummary, error)
	UpdateObject(ctx context.Context, ref CollectionRef, uri string, data []byte) (*ObjectSummary, error)
	DeleteObject(ctx context.Context, ref CollectionRef, uri string) error
	// GetSyncDelta computes the change report between clientToken and the
	// collection's current state within one consistent snapshot. An absent
	// clientToken means initial sync. Returns ErrSyncTokenExpired when the
	// collection's token cannot be established and ErrTooManyResults when
	// limit is set and exceeded.
	GetSyncDelta(ctx context.Context, ref CollectionRef, clientToken mo.Option[int64], syncLevel int, limit mo.Option[int]) (*DeltaResult, error)
}

// InviteTx is the transactional surface the sharing reconciler mutates.
// CurrentInvites only ever returns sharee-originated instances; the owner's
// own instance is categorically invisible to the reconciler.
type InviteTx interface {
	CurrentInvites(ctx context.Context, collectionID int64) ([]Sharee, error)
	InsertInvite(ctx context.Context, collectionID int64, inv Sharee, slug string) error
	UpdateInvite(ctx context.Context, collectionID int64, inv Sharee) error
	RevokeInvite(ctx context.Context, collectionID int64, href string) error
}

// ShareeReconciler reconciles a desired sharee list against the stored one.
// Implemented by the sharing package; injected to keep the dependency
// direction pointing at the store.
type ShareeReconciler interface {
	Reconcile(ctx context.Context, tx InviteTx, collectionID int64, desired []Sharee) error
}

// ShareeRepository exposes the sharee list and the reconciliation entry point.
type ShareeRepository interface {
	ListSharees(ctx context.Context, collectionID int64) ([]Sharee, error)
	// ApplySharees runs the reconciler against the stored sharee list
	// inside a single transaction.
	ApplySharees(ctx context.Context, collectionID int64, desired []Sharee) error
}

// UserRepository defines persistence operations for users.
type UserRepository interface {
	GetByUsername(ctx context.Context, username string) (*User, error)
	GetByEmail(ctx context.Context, email string) (*User, error)
}

// AppPasswordRepository handles Basic Auth token storage.
type AppPasswordRepository interface {
	FindValidByUser(ctx context.Context, userID int64) ([]AppPassword, error)
	TouchLastUsed(ctx context.Context, id int64) error
}
