package database

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/lib/pq"
	"github.com/xavierca1/prospect-agent/internal/entity"
)

const uniqueViolation = "23505"

// DefaultPageSize mirrors the per-request row cap of hosted Postgres REST gateways.
const DefaultPageSize = 1000

const contactColumns = `id, email, status, source_query, additional_data, persona, identity_id, note,
	lease_owner, lease_expires_at, created_at, updated_at`

// filterable columns for ContactQuery filters
var contactFilterColumns = map[string]bool{
	"email":        true,
	"status":       true,
	"source_query": true,
	"note":         true,
	"persona":      true,
}

type ContactRepository struct {
	DB       *sql.DB
	PageSize int
}

// NewContactRepository falls back to DefaultPageSize when pageSize is not positive.
func NewContactRepository(db *sql.DB, pageSize int) *ContactRepository {
	if pageSize <= 0 {
		pageSize = DefaultPageSize
	}
	return &ContactRepository{DB: db, PageSize: pageSize}
}

func (r *ContactRepository) Create(ctx context.Context, c *entity.Contact) error {
	data, err := json.Marshal(c.AdditionalData)
	if err != nil {
		return fmt.Errorf("encode additional_data: %w", err)
	}

	query := `
		INSERT INTO contacts (id, email, status, source_query, additional_data, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`
	_, err = r.DB.ExecContext(ctx, query,
		c.ID,
		c.Email,
		c.Status,
		c.SourceQuery,
		data,
		c.CreatedAt,
		c.UpdatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return entity.ErrEmailAlreadyExists
		}
		log.Printf("[database] insert contact %s: %v", c.Email, err)
		return err
	}
	return nil
}

func (r *ContactRepository) FindByID(ctx context.Context, id string) (*entity.Contact, error) {
	row := r.DB.QueryRowContext(ctx, `SELECT `+contactColumns+` FROM contacts WHERE id = $1`, id)
	return scanContact(row)
}

func (r *ContactRepository) FindByEmail(ctx context.Context, email string) (*entity.Contact, error) {
	row := r.DB.QueryRowContext(ctx, `SELECT `+contactColumns+` FROM contacts WHERE email = $1`,
		strings.ToLower(strings.TrimSpace(email)))
	return scanContact(row)
}

// Find pages through the result set PageSize rows at a time until q.Limit
// rows are collected or the table is exhausted.
func (r *ContactRepository) Find(ctx context.Context, q entity.ContactQuery) ([]*entity.Contact, error) {
	where, args, err := buildContactWhere(q)
	if err != nil {
		return nil, err
	}

	order := "DESC"
	if q.Ascending {
		order = "ASC"
	}
	pageSize := r.PageSize
	if pageSize <= 0 {
		pageSize = DefaultPageSize
	}

	var out []*entity.Contact
	offset := 0
	for {
		want := pageSize
		if q.Limit > 0 {
			remaining := q.Limit - len(out)
			if remaining <= 0 {
				break
			}
			if remaining < want {
				want = remaining
			}
		}

		query := fmt.Sprintf(`SELECT %s FROM contacts %s ORDER BY created_at %s, id %s LIMIT %d OFFSET %d`,
			contactColumns, where, order, order, want, offset)
		page, err := r.queryContacts(ctx, query, args...)
		if err != nil {
			return nil, err
		}
		out = append(out, page...)
		offset += len(page)
		if len(page) < want {
			break
		}
	}
	return out, nil
}

func buildContactWhere(q entity.ContactQuery) (string, []any, error) {
	var clauses []string
	var args []any

	if len(q.Statuses) > 0 {
		statuses := make([]string, len(q.Statuses))
		for i, s := range q.Statuses {
			statuses[i] = string(s)
		}
		args = append(args, pq.Array(statuses))
		clauses = append(clauses, fmt.Sprintf("status = ANY($%d)", len(args)))
	}

	for _, f := range q.Filters {
		if !contactFilterColumns[f.Column] {
			return "", nil, fmt.Errorf("unsupported filter column %q", f.Column)
		}
		args = append(args, f.Value)
		switch f.Op {
		case entity.OpEq:
			clauses = append(clauses, fmt.Sprintf("%s = $%d", f.Column, len(args)))
		case entity.OpILike:
			clauses = append(clauses, fmt.Sprintf("%s ILIKE $%d", f.Column, len(args)))
		default:
			return "", nil, fmt.Errorf("unsupported filter operator %q", f.Op)
		}
	}

	if len(clauses) == 0 {
		return "", args, nil
	}
	return "WHERE " + strings.Join(clauses, " AND "), args, nil
}

// UpdateStatus applies u as a compare-and-set on the current status.
// additional_data is merged with jsonb ||; identity_id is only written when unset.
// Moving to verified replaces the note.
func (r *ContactRepository) UpdateStatus(ctx context.Context, u entity.StatusUpdate) (*entity.Contact, error) {
	if err := u.Check(); err != nil {
		return nil, err
	}

	patch := u.Patch.AdditionalData
	if patch == nil {
		patch = entity.AdditionalData{}
	}
	if err := patch.Validate(); err != nil {
		return nil, err
	}
	data, err := json.Marshal(patch)
	if err != nil {
		return nil, fmt.Errorf("encode additional_data: %w", err)
	}

	query := `
		UPDATE contacts SET
			status = $1,
			note = CASE WHEN $1 = 'verified' THEN $2 ELSE COALESCE($2, note) END,
			persona = COALESCE($3, persona),
			identity_id = COALESCE(identity_id, $4),
			additional_data = additional_data || $5::jsonb,
			lease_owner = NULL,
			lease_expires_at = NULL,
			updated_at = NOW()
		WHERE id = $6 AND status = $7
		RETURNING ` + contactColumns

	row := r.DB.QueryRowContext(ctx, query,
		u.To,
		u.Patch.Note,
		u.Patch.Persona,
		u.Patch.IdentityID,
		data,
		u.ID,
		u.From,
	)
	c, err := scanContact(row)
	if errors.Is(err, entity.ErrNotFound) {
		return nil, r.conflictOrMissing(ctx, u.ID)
	}
	return c, err
}

// Claim moves the contact into processing under a lease held by owner.
func (r *ContactRepository) Claim(ctx context.Context, id string, from entity.Status, owner string, expiresAt time.Time) (*entity.Contact, error) {
	if !entity.CanTransition(entity.StageDispatch, from, entity.StatusProcessing) {
		return nil, &entity.IllegalTransitionError{Stage: entity.StageDispatch, From: from, To: entity.StatusProcessing}
	}

	query := `
		UPDATE contacts SET
			status = 'processing',
			lease_owner = $1,
			lease_expires_at = $2,
			updated_at = NOW()
		WHERE id = $3 AND status = $4
		RETURNING ` + contactColumns

	c, err := scanContact(r.DB.QueryRowContext(ctx, query, owner, expiresAt, id, from))
	if errors.Is(err, entity.ErrNotFound) {
		return nil, r.conflictOrMissing(ctx, id)
	}
	return c, err
}

// ReclaimExpired returns processing contacts whose lease ended (or that never
// had one) to ready.
func (r *ContactRepository) ReclaimExpired(ctx context.Context, now time.Time) (int, error) {
	query := `
		UPDATE contacts SET
			status = 'ready',
			lease_owner = NULL,
			lease_expires_at = NULL,
			updated_at = NOW()
		WHERE status = 'processing'
			AND (lease_expires_at IS NULL OR lease_expires_at < $1)
	`
	res, err := r.DB.ExecContext(ctx, query, now)
	if err != nil {
		return 0, fmt.Errorf("reclaim expired leases: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, err
	}
	return int(n), nil
}

func (r *ContactRepository) CountByStatus(ctx context.Context) (map[entity.Status]int, error) {
	rows, err := r.DB.QueryContext(ctx, `SELECT status, COUNT(*) FROM contacts GROUP BY status`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	counts := make(map[entity.Status]int)
	for rows.Next() {
		var status string
		var n int
		if err := rows.Scan(&status, &n); err != nil {
			return nil, err
		}
		counts[entity.Status(status)] = n
	}
	return counts, rows.Err()
}

func (r *ContactRepository) conflictOrMissing(ctx context.Context, id string) error {
	var status string
	err := r.DB.QueryRowContext(ctx, `SELECT status FROM contacts WHERE id = $1`, id).Scan(&status)
	if errors.Is(err, sql.ErrNoRows) {
		return entity.ErrNotFound
	}
	if err != nil {
		return err
	}
	return fmt.Errorf("%w: contact %s is %s", entity.ErrStatusConflict, id, status)
}

func (r *ContactRepository) queryContacts(ctx context.Context, query string, args ...any) ([]*entity.Contact, error) {
	rows, err := r.DB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*entity.Contact
	for rows.Next() {
		c, err := scanContact(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanContact(s scanner) (*entity.Contact, error) {
	var (
		c              entity.Contact
		status         string
		data           []byte
		persona        sql.NullString
		identityID     sql.NullString
		note           sql.NullString
		leaseOwner     sql.NullString
		leaseExpiresAt sql.NullTime
	)

	err := s.Scan(
		&c.ID,
		&c.Email,
		&status,
		&c.SourceQuery,
		&data,
		&persona,
		&identityID,
		&note,
		&leaseOwner,
		&leaseExpiresAt,
		&c.CreatedAt,
		&c.UpdatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, entity.ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	c.Status = entity.Status(status)
	c.AdditionalData = entity.AdditionalData{}
	if len(data) > 0 {
		if err := json.Unmarshal(data, &c.AdditionalData); err != nil {
			return nil, fmt.Errorf("decode additional_data for %s: %w", c.ID, err)
		}
	}
	c.Persona = nullString(persona)
	c.IdentityID = nullString(identityID)
	c.Note = nullString(note)
	c.LeaseOwner = nullString(leaseOwner)
	if leaseExpiresAt.Valid {
		t := leaseExpiresAt.Time
		c.LeaseExpiresAt = &t
	}
	return &c, nil
}

func nullString(ns sql.NullString) *string {
	if !ns.Valid {
		return nil
	}
	s := ns.String
	return &s
}

func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && pqErr.Code == uniqueViolation
}
