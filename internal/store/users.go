package store

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
)

// userRepo implements UserRepository.
type userRepo struct {
	pool PgxPool
}

const userColumns = `id, username, primary_email, created_at, last_login_at`

func (r *userRepo) GetByUsername(ctx context.Context, username string) (*User, error) {
	defer observeDB(ctx, "db.users.get_by_username")()
	return r.getUser(ctx, `SELECT `+userColumns+` FROM users WHERE username = $1`, username)
}

func (r *userRepo) GetByEmail(ctx context.Context, email string) (*User, error) {
	defer observeDB(ctx, "db.users.get_by_email")()
	return r.getUser(ctx, `SELECT `+userColumns+` FROM users WHERE primary_email = $1`, email)
}

func (r *userRepo) getUser(ctx context.Context, q, arg string) (*User, error) {
	var u User
	err := r.pool.QueryRow(ctx, q, arg).Scan(
		&u.ID, &u.Username, &u.PrimaryEmail, &u.CreatedAt, &u.LastLoginAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &u, nil
}

// appPasswordRepo implements AppPasswordRepository.
type appPasswordRepo struct {
	pool PgxPool
}

func (r *appPasswordRepo) FindValidByUser(ctx context.Context, userID int64) ([]AppPassword, error) {
	defer observeDB(ctx, "db.app_passwords.find_valid")()

	const q = `SELECT id, user_id, label, token_hash, created_at, expires_at, revoked_at, last_used_at
FROM app_passwords
WHERE user_id = $1 AND revoked_at IS NULL AND (expires_at IS NULL OR expires_at > NOW())`
	rows, err := r.pool.Query(ctx, q, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []AppPassword
	for rows.Next() {
		var p AppPassword
		if err := rows.Scan(&p.ID, &p.UserID, &p.Label, &p.TokenHash,
			&p.CreatedAt, &p.ExpiresAt, &p.RevokedAt, &p.LastUsedAt); err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

func (r *appPasswordRepo) TouchLastUsed(ctx context.Context, id int64) error {
	defer observeDB(ctx, "db.app_passwords.touch")()
	_, err := r.pool.Exec(ctx, `UPDATE app_passwords SET last_used_at = NOW() WHERE id = $1`, id)
	return err
}
