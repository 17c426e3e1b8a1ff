package session

import (
	"context"
	"database/sql"
)

type postgresRepository struct {
	db *sql.DB
}

// NewPostgresRepository creates a new PostgreSQL session repository.
func NewPostgresRepository(db *sql.DB) Repository {
	return &postgresRepository{db: db}
}

func (r *postgresRepository) GetByShop(ctx context.Context, shop string) (*Session, error) {
	s := &Session{}
	query := `
		SELECT id, shop, access_token, scope, created_at, updated_at
		FROM sessions
		WHERE shop = $1
	`
	err := r.db.QueryRowContext(ctx, query, shop).Scan(
		&s.ID,
		&s.Shop,
		&s.AccessToken,
		&s.Scope,
		&s.CreatedAt,
		&s.UpdatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return s, nil
}

func (r *postgresRepository) Upsert(ctx context.Context, s *Session) error {
	query := `
		INSERT INTO sessions (id, shop, access_token, scope)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (shop) DO UPDATE
		SET access_token = EXCLUDED.access_token,
		    scope = EXCLUDED.scope,
		    updated_at = NOW()
	`
	_, err := r.db.ExecContext(ctx, query, s.ID, s.Shop, s.AccessToken, s.Scope)
	return err
}

func (r *postgresRepository) DeleteByShop(ctx context.Context, shop string) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM sessions WHERE shop = $1`, shop)
	return err
}
