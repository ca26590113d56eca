package database

import (
	"context"
	"database/sql"
	"errors"

	"github.com/xavierca1/prospect-agent/internal/entity"
)

const identityColumns = `id, name, company, email, website, active, created_at`

type IdentityRepository struct {
	DB *sql.DB
}

func NewIdentityRepository(db *sql.DB) *IdentityRepository {
	return &IdentityRepository{DB: db}
}

func (r *IdentityRepository) FindByID(ctx context.Context, id string) (*entity.Identity, error) {
	row := r.DB.QueryRowContext(ctx, `SELECT `+identityColumns+` FROM identities WHERE id = $1`, id)
	return scanIdentity(row)
}

// FirstActive returns the oldest active identity.
func (r *IdentityRepository) FirstActive(ctx context.Context) (*entity.Identity, error) {
	row := r.DB.QueryRowContext(ctx, `SELECT `+identityColumns+` FROM identities
		WHERE active = TRUE
		ORDER BY created_at ASC
		LIMIT 1`)
	return scanIdentity(row)
}

func scanIdentity(row *sql.Row) (*entity.Identity, error) {
	var (
		i       entity.Identity
		email   sql.NullString
		website sql.NullString
	)
	err := row.Scan(&i.ID, &i.Name, &i.Company, &email, &website, &i.Active, &i.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, entity.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	i.Email = email.String
	i.Website = website.String
	return &i, nil
}
