package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// collectionRepo implements CollectionRepository.
type collectionRepo struct {
	pool PgxPool
}

const instanceColumns = `ci.collection_id, ci.id, COALESCE(ci.principal, ''), ci.uri,
	ci.display_name, ci.description, c.kind, ci.access, ci.permissions,
	c.sync_token, c.share_resource_uri, ci.created_at`

func scanInstance(row pgx.Row) (*Collection, error) {
	var col Collection
	var kind, access, perms int16
	if err := row.Scan(
		&col.Ref.CollectionID, &col.Ref.InstanceID, &col.Principal, &col.URI,
		&col.DisplayName, &col.Description, &kind, &access, &perms,
		&col.SyncToken, &col.ShareResourceURI, &col.CreatedAt,
	); err != nil {
		return nil, err
	}
	col.Kind = CollectionKind(kind)
	col.Access = AccessLevel(access)
	col.Permissions = PermissionBits(perms)
	return &col, nil
}

func (r *collectionRepo) ListInstances(ctx context.Context, principal string) ([]Collection, error) {
	defer observeDB(ctx, "db.collections.list_instances")()

	q := `SELECT ` + instanceColumns + `
FROM collection_instances ci
JOIN collections c ON c.id = ci.collection_id
WHERE ci.principal = $1
ORDER BY ci.id`
	rows, err := r.pool.Query(ctx, q, principal)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Collection
	for rows.Next() {
		col, err := scanInstance(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *col)
	}
	return out, rows.Err()
}

func (r *collectionRepo) GetInstance(ctx context.Context, ref CollectionRef) (*Collection, error) {
	defer observeDB(ctx, "db.collections.get_instance")()

	q := `SELECT ` + instanceColumns + `
FROM collection_instances ci
JOIN collections c ON c.id = ci.collection_id
WHERE ci.collection_id = $1 AND ci.id = $2`
	col, err := scanInstance(r.pool.QueryRow(ctx, q, ref.CollectionID, ref.InstanceID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return col, nil
}

// CreateInstance creates the underlying collection and the owner's instance
// in one transaction. Sharee instances are created by the reconciler, never
// through this path.
func (r *collectionRepo) CreateInstance(ctx context.Context, principal, slug string, props InstanceProperties) (ref CollectionRef, err error) {
	defer observeDB(ctx, "db.collections.create_instance")()

	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return CollectionRef{}, err
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

	shareURI := "urn:uuid:" + uuid.NewString()
	const insCollection = `INSERT INTO collections (kind, sync_token, share_resource_uri)
VALUES ($1, 1, $2) RETURNING id`
	if err = tx.QueryRow(ctx, insCollection, int16(props.Kind), shareURI).Scan(&ref.CollectionID); err != nil {
		return CollectionRef{}, fmt.Errorf("create collection: %w", err)
	}

	const insInstance = `INSERT INTO collection_instances
(collection_id, principal, uri, display_name, description, access, permissions)
VALUES ($1, $2, $3, $4, $5, $6, $7) RETURNING id`
	if err = tx.QueryRow(ctx, insInstance,
		ref.CollectionID, principal, slug, props.DisplayName, props.Description,
		int16(props.Access), int16(props.Permissions),
	).Scan(&ref.InstanceID); err != nil {
		return CollectionRef{}, fmt.Errorf("create instance: %w", err)
	}
	return ref, nil
}

// DeleteInstance removes one instance; the underlying collection with its
// objects and change log goes away only when no instance references it.
func (r *collectionRepo) DeleteInstance(ctx context.Context, ref CollectionRef) (err error) {
	defer observeDB(ctx, "db.collections.delete_instance")()

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

	tag, err := tx.Exec(ctx,
		`DELETE FROM collection_instances WHERE collection_id = $1 AND id = $2`,
		ref.CollectionID, ref.InstanceID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}

	var remaining int
	if err = tx.QueryRow(ctx,
		`SELECT COUNT(*) FROM collection_instances WHERE collection_id = $1`,
		ref.CollectionID).Scan(&remaining); err != nil {
		return err
	}
	if remaining == 0 {
		// Cascades to objects and change_log rows.
		if _, err = tx.Exec(ctx, `DELETE FROM collections WHERE id = $1`, ref.CollectionID); err != nil {
			return err
		}
	}
	return nil
}
