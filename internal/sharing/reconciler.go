// Package sharing reconciles a desired sharee list against the stored one,
// emitting the minimal set of insert, update, and revoke operations.
package sharing

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/samber/mo"
	"go.uber.org/zap"

	"github.com/kalamarcito/dav/internal/store"
)

// PrincipalResolver turns a sharee href into a principal URI. It reports
// ok=false when the party is unknown; resolution failure is never an error
// at this layer, it degrades the sharee to the invalid invite status.
type PrincipalResolver interface {
	Resolve(ctx context.Context, href string) (principal string, ok bool)
}

// Reconciler applies a desired sharee list to a collection's stored
// instances. It implements store.ShareeReconciler.
type Reconciler struct {
	resolver PrincipalResolver
	log      *zap.Logger
}

func NewReconciler(resolver PrincipalResolver, log *zap.Logger) *Reconciler {
	return &Reconciler{resolver: resolver, log: log}
}

// Reconcile processes the desired sharees in input order against the stored
// invite list. The caller supplies tx scoped to one transaction; concurrent
// reconciliations of the same collection serialize at the storage layer.
//
// Owner instances are never a target: tx only exposes sharee-originated
// instances, and revokes are constrained to read/read-write rows.
func (r *Reconciler) Reconcile(ctx context.Context, tx store.InviteTx, collectionID int64, desired []store.Sharee) error {
	current, err := tx.CurrentInvites(ctx, collectionID)
	if err != nil {
		return fmt.Errorf("list current invites: %w", err)
	}

	byHref := make(map[string]store.Sharee, len(current))
	for _, inv := range current {
		byHref[inv.Href] = inv
	}

	for _, want := range desired {
		// No-access is a revoke instruction, never a stored state.
		if want.Access == store.AccessNoAccess {
			if err := tx.RevokeInvite(ctx, collectionID, want.Href); err != nil {
				return fmt.Errorf("revoke %s: %w", want.Href, err)
			}
			delete(byHref, want.Href)
			continue
		}

		principal, resolved := r.resolver.Resolve(ctx, want.Href)
		// A sharee that cannot be resolved can never be accepted; a
		// resolvable one is accepted on the spot, there is no deferred
		// invitation round-trip.
		computed := store.InviteInvalid
		if resolved {
			computed = store.InviteAccepted
			want.Principal = mo.Some(principal)
		} else {
			want.Principal = mo.None[string]()
			r.log.Debug("sharee principal unresolved",
				zap.Int64("collection_id", collectionID),
				zap.String("href", want.Href))
		}

		if existing, ok := byHref[want.Href]; ok {
			if err := r.updateExisting(ctx, tx, collectionID, existing, want, computed); err != nil {
				return err
			}
			continue
		}

		status := computed
		if status == "" {
			status = store.InviteNoResponse
		}
		ins := store.Sharee{
			Href:       want.Href,
			Principal:  want.Principal,
			Access:     want.Access,
			Status:     mo.Some(status),
			Properties: want.Properties,
		}
		if err := tx.InsertInvite(ctx, collectionID, ins, uuid.NewString()); err != nil {
			return fmt.Errorf("insert %s: %w", want.Href, err)
		}
		byHref[want.Href] = ins
	}
	return nil
}

func (r *Reconciler) updateExisting(ctx context.Context, tx store.InviteTx, collectionID int64, existing, want store.Sharee, computed store.InviteStatus) error {
	// An explicitly absent status in the desired entry keeps whatever is
	// stored instead of the computed default.
	status := computed
	if _, supplied := want.Status.Get(); !supplied {
		status = existing.Status.OrElse(computed)
	}
	merged := existing.Properties.Merge(want.Properties)

	if existing.Access == want.Access && existing.Status == mo.Some(status) && existing.Properties == merged {
		return nil // already at the desired state
	}

	upd := store.Sharee{
		Href:       want.Href,
		Principal:  existing.Principal,
		Access:     want.Access,
		Status:     mo.Some(status),
		Properties: merged,
	}
	if err := tx.UpdateInvite(ctx, collectionID, upd); err != nil {
		return fmt.Errorf("update %s: %w", want.Href, err)
	}
	return nil
}
