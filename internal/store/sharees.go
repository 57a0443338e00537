package store

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/samber/mo"

	"github.com/kalamarcito/dav/internal/metrics"
)

// shareeRepo implements ShareeRepository. The reconciliation algorithm
// itself lives in the sharing package; this repository provides the
// transactional storage surface it runs against.
type shareeRepo struct {
	pool       PgxPool
	reconciler ShareeReconciler
}

// shareeQuery selects sharee-originated instances only. The owner's own
// instance (not-shared/shared-owner) is never visible through this path.
const shareeQuery = `SELECT share_href, principal, access, share_display_name, share_invite_status
FROM collection_instances
WHERE collection_id = $1 AND access IN ($2, $3)
ORDER BY id`

func scanSharees(rows pgx.Rows) ([]Sharee, error) {
	var out []Sharee
	for rows.Next() {
		var (
			href, displayName, status *string
			principal                 *string
			access                    int16
		)
		if err := rows.Scan(&href, &principal, &access, &displayName, &status); err != nil {
			return nil, err
		}
		s := Sharee{Access: AccessLevel(access)}
		if principal != nil {
			s.Principal = mo.Some(*principal)
		}
		// Instances stored before explicit hrefs existed carry none; fall
		// back to an encoded principal URI so the sharee stays addressable.
		switch {
		case href != nil && *href != "":
			s.Href = *href
		case principal != nil:
			s.Href = "principal:" + *principal
		}
		if displayName != nil {
			s.Properties.DisplayName = mo.Some(*displayName)
		}
		if status != nil && *status != "" {
			s.Status = mo.Some(InviteStatus(*status))
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

func (r *shareeRepo) ListSharees(ctx context.Context, collectionID int64) ([]Sharee, error) {
	defer observeDB(ctx, "db.sharees.list")()

	rows, err := r.pool.Query(ctx, shareeQuery, collectionID, int16(AccessRead), int16(AccessReadWrite))
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanSharees(rows)
}

// ApplySharees runs the reconciler inside one transaction, so the
// read-then-write sequence cannot interleave with a concurrent
// reconciliation of the same collection.
func (r *shareeRepo) ApplySharees(ctx context.Context, collectionID int64, desired []Sharee) (err error) {
	defer observeDB(ctx, "db.sharees.apply")()
	defer func() {
		outcome := "ok"
		if err != nil {
			outcome = "error"
		}
		metrics.CountReconciliation(outcome)
	}()

	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback(ctx)
			return
		}
		if e := tx.Commit(ctx); e != nil {
			err = e
		}
	}()

	if err = r.reconciler.Reconcile(ctx, &inviteTx{tx: tx}, collectionID, desired); err != nil {
		return err
	}
	return syncOwnerAccess(ctx, tx, collectionID)
}

// syncOwnerAccess keeps the owner instance's access level in step with the
// sharee list: shared-owner while at least one sharee instance exists,
// back to not-shared once the last one is revoked. The invite property, the
// shared resourcetype marker, and the unshare translation all key on this
// level.
func syncOwnerAccess(ctx context.Context, tx pgx.Tx, collectionID int64) error {
	var sharees int
	err := tx.QueryRow(ctx,
		`SELECT COUNT(*) FROM collection_instances WHERE collection_id = $1 AND access IN ($2, $3)`,
		collectionID, int16(AccessRead), int16(AccessReadWrite)).Scan(&sharees)
	if err != nil {
		return err
	}

	target := AccessNotShared
	if sharees > 0 {
		target = AccessSharedOwner
	}
	_, err = tx.Exec(ctx,
		`UPDATE collection_instances SET access = $2
WHERE collection_id = $1 AND access IN ($3, $4)`,
		collectionID, int16(target), int16(AccessNotShared), int16(AccessSharedOwner))
	return err
}

// inviteTx adapts a pgx transaction to the reconciler's storage surface.
type inviteTx struct {
	tx pgx.Tx
}

func (t *inviteTx) CurrentInvites(ctx context.Context, collectionID int64) ([]Sharee, error) {
	rows, err := t.tx.Query(ctx, shareeQuery, collectionID, int16(AccessRead), int16(AccessReadWrite))
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanSharees(rows)
}

func (t *inviteTx) InsertInvite(ctx context.Context, collectionID int64, inv Sharee, slug string) error {
	const q = `INSERT INTO collection_instances
(collection_id, principal, uri, display_name, description, access, permissions,
 share_href, share_display_name, share_invite_status)
VALUES ($1, $2, $3, $4, NULL, $5, 0, $6, $7, $8)`

	var principal *string
	if p, ok := inv.Principal.Get(); ok {
		principal = &p
	}
	var displayName *string
	if d, ok := inv.Properties.DisplayName.Get(); ok {
		displayName = &d
	}
	status := inv.Status.OrElse(InviteNoResponse)

	_, err := t.tx.Exec(ctx, q,
		collectionID, principal, slug, displayNameOr(displayName, inv.Href),
		int16(inv.Access), inv.Href, displayName, string(status))
	return err
}

func (t *inviteTx) UpdateInvite(ctx context.Context, collectionID int64, inv Sharee) error {
	const q = `UPDATE collection_instances
SET access = $3,
    share_display_name = COALESCE($4, share_display_name),
    share_invite_status = $5
WHERE collection_id = $1 AND share_href = $2 AND access IN ($6, $7)`

	var displayName *string
	if d, ok := inv.Properties.DisplayName.Get(); ok {
		displayName = &d
	}
	status := inv.Status.OrElse(InviteNoResponse)

	_, err := t.tx.Exec(ctx, q,
		collectionID, inv.Href, int16(inv.Access), displayName, string(status),
		int16(AccessRead), int16(AccessReadWrite))
	return err
}

func (t *inviteTx) RevokeInvite(ctx context.Context, collectionID int64, href string) error {
	const q = `DELETE FROM collection_instances
WHERE collection_id = $1 AND share_href = $2 AND access IN ($3, $4)`
	_, err := t.tx.Exec(ctx, q, collectionID, href, int16(AccessRead), int16(AccessReadWrite))
	return err
}

func displayNameOr(name *string, fallback string) string {
	if name != nil && *name != "" {
		return *name
	}
	return fallback
}
