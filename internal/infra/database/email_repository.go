package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/xavierca1/prospect-agent/internal/entity"
)

const emailColumns = `id, contact_id, object, content, cta, footer, status, sent_at, used_domain, error, created_at`

type EmailRepository struct {
	DB *sql.DB
}

func NewEmailRepository(db *sql.DB) *EmailRepository {
	return &EmailRepository{DB: db}
}

func (r *EmailRepository) Create(ctx context.Context, e *entity.Email) error {
	query := `
		INSERT INTO emails (id, contact_id, object, content, cta, footer, status, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`
	_, err := r.DB.ExecContext(ctx, query,
		e.ID,
		e.ContactID,
		e.Object,
		e.Content,
		e.CTA,
		e.Footer,
		e.Status,
		e.CreatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return entity.ErrDraftAlreadyExists
		}
		log.Printf("[database] insert email for contact %s: %v", e.ContactID, err)
		return err
	}
	return nil
}

func (r *EmailRepository) FindLatestByContact(ctx context.Context, contactID string, includeErrored bool) (*entity.Email, error) {
	query := `SELECT ` + emailColumns + ` FROM emails
		WHERE contact_id = $1 AND ($2 OR status <> 'error')
		ORDER BY created_at DESC
		LIMIT 1`

	var (
		e          entity.Email
		status     string
		sentAt     sql.NullTime
		usedDomain sql.NullString
		errMsg     sql.NullString
	)
	err := r.DB.QueryRowContext(ctx, query, contactID, includeErrored).Scan(
		&e.ID,
		&e.ContactID,
		&e.Object,
		&e.Content,
		&e.CTA,
		&e.Footer,
		&status,
		&sentAt,
		&usedDomain,
		&errMsg,
		&e.CreatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, entity.ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	e.Status = entity.EmailStatus(status)
	if sentAt.Valid {
		t := sentAt.Time
		e.SentAt = &t
	}
	e.UsedDomain = nullString(usedDomain)
	e.Error = nullString(errMsg)
	return &e, nil
}

func (r *EmailRepository) MarkSent(ctx context.Context, id, usedDomain string, sentAt time.Time) error {
	res, err := r.DB.ExecContext(ctx, `
		UPDATE emails SET status = 'sent', sent_at = $1, used_domain = $2, error = NULL
		WHERE id = $3 AND status <> 'sent'
	`, sentAt, usedDomain, id)
	if err != nil {
		return fmt.Errorf("mark email %s sent: %w", id, err)
	}
	return expectOneRow(res, id)
}

func (r *EmailRepository) MarkError(ctx context.Context, id, message string) error {
	res, err := r.DB.ExecContext(ctx, `
		UPDATE emails SET status = 'error', error = $1
		WHERE id = $2 AND status <> 'sent'
	`, message, id)
	if err != nil {
		return fmt.Errorf("mark email %s error: %w", id, err)
	}
	return expectOneRow(res, id)
}

func expectOneRow(res sql.Result, id string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("email %s: %w", id, entity.ErrNotFound)
	}
	return nil
}
