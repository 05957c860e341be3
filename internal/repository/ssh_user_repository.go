package repository

import (
	"context"

	"github.com/fzheng/SigmaPilot/internal/domain"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"go.opentelemetry.io/otel/trace"
)

// SSHUserRepository backs public-key auth for the terminal dashboard. Users
// are enrolled by fingerprint; unknown fingerprints are rejected at the
// ssh layer.
type SSHUserRepository struct {
	pool   PgxPool
	tracer trace.Tracer
}

func NewSSHUserRepository(pool PgxPool, tracer trace.Tracer) *SSHUserRepository {
	return &SSHUserRepository{pool: pool, tracer: tracer}
}

func (r *SSHUserRepository) GetByFingerprint(ctx context.Context, fingerprint string) (*domain.SSHUser, error) {
	_, span := r.tracer.Start(ctx, "ssh-user-repo.get-by-fingerprint")
	defer span.End()

	row := r.pool.QueryRow(ctx, `
SELECT id, username, fingerprint, created_at, last_login_at
FROM ssh_users
WHERE fingerprint = $1`,
		fingerprint)

	var out domain.SSHUser
	var lastLogin pgtype.Timestamptz
	if err := row.Scan(&out.ID, &out.Username, &out.Fingerprint, &out.CreatedAt, &lastLogin); err != nil {
		return nil, err
	}
	out.CreatedAt = out.CreatedAt.UTC()
	if lastLogin.Valid {
		t := lastLogin.Time.UTC()
		out.LastLoginAt = &t
	}
	return &out, nil
}

func (r *SSHUserRepository) Insert(ctx context.Context, username, fingerprint string) (*domain.SSHUser, error) {
	_, span := r.tracer.Start(ctx, "ssh-user-repo.insert")
	defer span.End()

	row := r.pool.QueryRow(ctx, `
INSERT INTO ssh_users (username, fingerprint)
VALUES ($1, $2)
RETURNING id, username, fingerprint, created_at, last_login_at`,
		username, fingerprint)

	var out domain.SSHUser
	var lastLogin pgtype.Timestamptz
	if err := row.Scan(&out.ID, &out.Username, &out.Fingerprint, &out.CreatedAt, &lastLogin); err != nil {
		return nil, err
	}
	out.CreatedAt = out.CreatedAt.UTC()
	if lastLogin.Valid {
		t := lastLogin.Time.UTC()
		out.LastLoginAt = &t
	}
	return &out, nil
}

func (r *SSHUserRepository) TouchLogin(ctx context.Context, id int64) error {
	_, span := r.tracer.Start(ctx, "ssh-user-repo.touch-login")
	defer span.End()

	tag, err := r.pool.Exec(ctx, `UPDATE ssh_users SET last_login_at = NOW() WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}
