package store

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/samber/mo"

	"github.com/kalamarcito/dav/internal/delta"
)

// objectRepo implements ObjectRepository.
type objectRepo struct {
	pool PgxPool
}

func etagFor(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}

// appendChange records one object mutation and advances the collection's
// sync token. The log row carries the token value current at mutation time;
// the bump happens after, inside the same transaction. FOR UPDATE on the
// collection row serializes concurrent mutations of the same collection so
// the token sequence stays gap-free.
func appendChange(ctx context.Context, tx pgx.Tx, collectionID int64, uri string, op ChangeOp) error {
	var token int64
	err := tx.QueryRow(ctx,
		`SELECT sync_token FROM collections WHERE id = $1 FOR UPDATE`,
		collectionID).Scan(&token)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return ErrNotFound
		}
		return err
	}
	if _, err := tx.Exec(ctx,
		`INSERT INTO change_log (collection_id, object_uri, token, op) VALUES ($1, $2, $3, $4)`,
		collectionID, uri, token, int16(op)); err != nil {
		return err
	}
	if _, err := tx.Exec(ctx,
		`UPDATE collections SET sync_token = sync_token + 1 WHERE id = $1`,
		collectionID); err != nil {
		return err
	}
	return nil
}

func (r *objectRepo) ListObjects(ctx context.Context, ref CollectionRef) ([]ObjectSummary, error) {
	defer observeDB(ctx, "db.objects.list")()

	const q = `SELECT uri, etag, size, modified_at FROM objects WHERE collection_id = $1 ORDER BY id`
	rows, err := r.pool.Query(ctx, q, ref.CollectionID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []ObjectSummary
	for rows.Next() {
		var s ObjectSummary
		if err := rows.Scan(&s.URI, &s.ETag, &s.Size, &s.ModifiedAt); err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

func (r *objectRepo) GetObject(ctx context.Context, ref CollectionRef, uri string) (*Object, error) {
	defer observeDB(ctx, "db.objects.get")()

	const q = `SELECT id, collection_id, uri, data, etag, size, modified_at
FROM objects WHERE collection_id = $1 AND uri = $2`
	var o Object
	err := r.pool.QueryRow(ctx, q, ref.CollectionID, uri).Scan(
		&o.ID, &o.CollectionID, &o.URI, &o.Data, &o.ETag, &o.Size, &o.ModifiedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &o, nil
}

func (r *objectRepo) GetObjects(ctx context.Context, ref CollectionRef, uris []string) ([]Object, error) {
	defer observeDB(ctx, "db.objects.get_many")()

	const q = `SELECT id, collection_id, uri, data, etag, size, modified_at
FROM objects WHERE collection_id = $1 AND uri = ANY($2)`
	rows, err := r.pool.Query(ctx, q, ref.CollectionID, uris)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Object
	for rows.Next() {
		var o Object
		if err := rows.Scan(&o.ID, &o.CollectionID, &o.URI, &o.Data, &o.ETag, &o.Size, &o.ModifiedAt); err != nil {
			return nil, err
		}
		out = append(out, o)
	}
	return out, rows.Err()
}

func (r *objectRepo) CreateObject(ctx context.Context, ref CollectionRef, uri string, data []byte) (sum *ObjectSummary, err error) {
	defer observeDB(ctx, "db.objects.create")()

	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return nil, err
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

	s := ObjectSummary{URI: uri, ETag: etagFor(data), Size: int64(len(data))}
	const ins = `INSERT INTO objects (collection_id, uri, data, etag, size, modified_at)
VALUES ($1, $2, $3, $4, $5, NOW()) RETURNING modified_at`
	if err = tx.QueryRow(ctx, ins, ref.CollectionID, uri, data, s.ETag, s.Size).Scan(&s.ModifiedAt); err != nil {
		return nil, fmt.Errorf("insert object: %w", err)
	}
	if err = appendChange(ctx, tx, ref.CollectionID, uri, OpAdded); err != nil {
		return nil, err
	}
	return &s, nil
}

func (r *objectRepo) UpdateObject(ctx context.Context, ref CollectionRef, uri string, data []byte) (sum *ObjectSummary, err error) {
	defer observeDB(ctx, "db.objects.update")()

	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return nil, err
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

	s := ObjectSummary{URI: uri, ETag: etagFor(data), Size: int64(len(data))}
	const upd = `UPDATE objects SET data = $3, etag = $4, size = $5, modified_at = NOW()
WHERE collection_id = $1 AND uri = $2 RETURNING modified_at`
	if err = tx.QueryRow(ctx, upd, ref.CollectionID, uri, data, s.ETag, s.Size).Scan(&s.ModifiedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("update object: %w", err)
	}
	if err = appendChange(ctx, tx, ref.CollectionID, uri, OpModified); err != nil {
		return nil, err
	}
	return &s, nil
}

func (r *objectRepo) DeleteObject(ctx context.Context, ref CollectionRef, uri string) (err error) {
	defer observeDB(ctx, "db.objects.delete")()

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
		`DELETE FROM objects WHERE collection_id = $1 AND uri = $2`,
		ref.CollectionID, uri)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return appendChange(ctx, tx, ref.CollectionID, uri, OpDeleted)
}

// GetSyncDelta computes the delta report within a single repeatable-read
// snapshot, so the current token and the log rows it brackets cannot drift
// apart under concurrent mutations.
func (r *objectRepo) GetSyncDelta(ctx context.Context, ref CollectionRef, clientToken mo.Option[int64], syncLevel int, limit mo.Option[int]) (result *DeltaResult, err error) {
	defer observeDB(ctx, "db.objects.sync_delta")()

	if syncLevel != 1 {
		return nil, fmt.Errorf("unsupported sync level %d: only direct members are supported", syncLevel)
	}

	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.RepeatableRead, AccessMode: pgx.ReadOnly})
	if err != nil {
		return nil, err
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

	var current int64
	err = tx.QueryRow(ctx, `SELECT sync_token FROM collections WHERE id = $1`, ref.CollectionID).Scan(&current)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrSyncTokenExpired
		}
		return nil, err
	}

	since, haveToken := clientToken.Get()
	if !haveToken {
		live, lerr := listObjectURIs(ctx, tx, ref.CollectionID)
		if lerr != nil {
			return nil, lerr
		}
		return delta.Build(current, clientToken, live, nil, limit)
	}
	if since < 1 || since > current {
		// The client holds a token this collection never issued or whose
		// history is gone; a full resync is the only safe answer.
		return nil, ErrSyncTokenExpired
	}

	const q = `SELECT object_uri, token, op FROM change_log
WHERE collection_id = $1 AND token >= $2 AND token < $3
ORDER BY token ASC`
	rows, err := tx.Query(ctx, q, ref.CollectionID, since, current)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var entries []delta.Entry
	for rows.Next() {
		var e delta.Entry
		var op int16
		if err = rows.Scan(&e.URI, &e.Token, &op); err != nil {
			return nil, err
		}
		e.Op = delta.Op(op)
		entries = append(entries, e)
	}
	if err = rows.Err(); err != nil {
		return nil, err
	}
	return delta.Build(current, clientToken, nil, entries, limit)
}

func listObjectURIs(ctx context.Context, tx pgx.Tx, collectionID int64) ([]string, error) {
	rows, err := tx.Query(ctx, `SELECT uri FROM objects WHERE collection_id = $1 ORDER BY id`, collectionID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var uris []string
	for rows.Next() {
		var uri string
		if err := rows.Scan(&uri); err != nil {
			return nil, err
		}
		uris = append(uris, uri)
	}
	return uris, rows.Err()
}
