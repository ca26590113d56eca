// Package memstore keeps contacts, emails and identities in memory with the
// same contracts as the Postgres repositories. Used by tests and --dry-run.
package memstore

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/xavierca1/prospect-agent/internal/entity"
)

type Store struct {
	mu         sync.Mutex
	contacts   map[string]*entity.Contact
	emails     map[string]*entity.Email
	identities map[string]*entity.Identity
	now        func() time.Time
}

func New() *Store {
	return &Store{
		contacts:   make(map[string]*entity.Contact),
		emails:     make(map[string]*entity.Email),
		identities: make(map[string]*entity.Identity),
		now:        func() time.Time { return time.Now().UTC() },
	}
}

// Contacts, Emails and Identities expose the three repository views of the store.
func (s *Store) Contacts() *ContactRepository   { return &ContactRepository{s} }
func (s *Store) Emails() *EmailRepository       { return &EmailRepository{s} }
func (s *Store) Identities() *IdentityRepository { return &IdentityRepository{s} }

func (s *Store) AddIdentity(i *entity.Identity) {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *i
	s.identities[i.ID] = &cp
}

type ContactRepository struct{ s *Store }

func (r *ContactRepository) Create(ctx context.Context, c *entity.Contact) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, existing := range r.s.contacts {
		if existing.Email == c.Email {
			return entity.ErrEmailAlreadyExists
		}
	}
	r.s.contacts[c.ID] = cloneContact(c)
	return nil
}

func (r *ContactRepository) FindByID(ctx context.Context, id string) (*entity.Contact, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	c, ok := r.s.contacts[id]
	if !ok {
		return nil, entity.ErrNotFound
	}
	return cloneContact(c), nil
}

func (r *ContactRepository) FindByEmail(ctx context.Context, email string) (*entity.Contact, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	email = strings.ToLower(strings.TrimSpace(email))
	for _, c := range r.s.contacts {
		if c.Email == email {
			return cloneContact(c), nil
		}
	}
	return nil, entity.ErrNotFound
}

func (r *ContactRepository) Find(ctx context.Context, q entity.ContactQuery) ([]*entity.Contact, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	var out []*entity.Contact
	for _, c := range r.s.contacts {
		ok, err := matches(c, q)
		if err != nil {
			return nil, err
		}
		if ok {
			out = append(out, cloneContact(c))
		}
	}

	sort.SliceStable(out, func(i, j int) bool {
		a, b := out[i], out[j]
		if !a.CreatedAt.Equal(b.CreatedAt) {
			if q.Ascending {
				return a.CreatedAt.Before(b.CreatedAt)
			}
			return a.CreatedAt.After(b.CreatedAt)
		}
		if q.Ascending {
			return a.ID < b.ID
		}
		return a.ID > b.ID
	})

	if q.Limit > 0 && len(out) > q.Limit {
		out = out[:q.Limit]
	}
	return out, nil
}

func matches(c *entity.Contact, q entity.ContactQuery) (bool, error) {
	if len(q.Statuses) > 0 {
		found := false
		for _, s := range q.Statuses {
			if c.Status == s {
				found = true
				break
			}
		}
		if !found {
			return false, nil
		}
	}
	for _, f := range q.Filters {
		var value string
		switch f.Column {
		case "email":
			value = c.Email
		case "status":
			value = string(c.Status)
		case "source_query":
			value = c.SourceQuery
		case "note":
			value = deref(c.Note)
		case "persona":
			value = deref(c.Persona)
		default:
			return false, fmt.Errorf("unsupported filter column %q", f.Column)
		}
		switch f.Op {
		case entity.OpEq:
			if value != f.Value {
				return false, nil
			}
		case entity.OpILike:
			if !ilike(value, f.Value) {
				return false, nil
			}
		default:
			return false, fmt.Errorf("unsupported filter operator %q", f.Op)
		}
	}
	return true, nil
}

// ilike supports the % wildcard only.
func ilike(value, pattern string) bool {
	value = strings.ToLower(value)
	parts := strings.Split(strings.ToLower(pattern), "%")
	if len(parts) == 1 {
		return value == parts[0]
	}
	if !strings.HasPrefix(value, parts[0]) {
		return false
	}
	value = value[len(parts[0]):]
	last := parts[len(parts)-1]
	for _, p := range parts[1 : len(parts)-1] {
		idx := strings.Index(value, p)
		if idx < 0 {
			return false
		}
		value = value[idx+len(p):]
	}
	return strings.HasSuffix(value, last)
}

func (r *ContactRepository) UpdateStatus(ctx context.Context, u entity.StatusUpdate) (*entity.Contact, error) {
	if err := u.Check(); err != nil {
		return nil, err
	}
	if err := u.Patch.AdditionalData.Validate(); err != nil {
		return nil, err
	}

	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	c, ok := r.s.contacts[u.ID]
	if !ok {
		return nil, entity.ErrNotFound
	}
	if c.Status != u.From {
		return nil, fmt.Errorf("%w: contact %s is %s", entity.ErrStatusConflict, u.ID, c.Status)
	}

	c.Status = u.To
	switch {
	case u.Patch.Note != nil:
		c.Note = ptr(*u.Patch.Note)
	case u.To == entity.StatusVerified:
		c.Note = nil
	}
	if u.Patch.Persona != nil {
		c.Persona = ptr(*u.Patch.Persona)
	}
	if c.IdentityID == nil && u.Patch.IdentityID != nil {
		c.IdentityID = ptr(*u.Patch.IdentityID)
	}
	c.AdditionalData = c.AdditionalData.Merge(u.Patch.AdditionalData)
	c.LeaseOwner = nil
	c.LeaseExpiresAt = nil
	c.UpdatedAt = r.s.now()
	return cloneContact(c), nil
}

func (r *ContactRepository) Claim(ctx context.Context, id string, from entity.Status, owner string, expiresAt time.Time) (*entity.Contact, error) {
	if !entity.CanTransition(entity.StageDispatch, from, entity.StatusProcessing) {
		return nil, &entity.IllegalTransitionError{Stage: entity.StageDispatch, From: from, To: entity.StatusProcessing}
	}

	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	c, ok := r.s.contacts[id]
	if !ok {
		return nil, entity.ErrNotFound
	}
	if c.Status != from {
		return nil, fmt.Errorf("%w: contact %s is %s", entity.ErrStatusConflict, id, c.Status)
	}
	c.Status = entity.StatusProcessing
	c.LeaseOwner = ptr(owner)
	exp := expiresAt
	c.LeaseExpiresAt = &exp
	c.UpdatedAt = r.s.now()
	return cloneContact(c), nil
}

func (r *ContactRepository) ReclaimExpired(ctx context.Context, now time.Time) (int, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	n := 0
	for _, c := range r.s.contacts {
		if c.Status != entity.StatusProcessing {
			continue
		}
		if c.LeaseExpiresAt != nil && !c.LeaseExpiresAt.Before(now) {
			continue
		}
		c.Status = entity.StatusReady
		c.LeaseOwner = nil
		c.LeaseExpiresAt = nil
		c.UpdatedAt = r.s.now()
		n++
	}
	return n, nil
}

func (r *ContactRepository) CountByStatus(ctx context.Context) (map[entity.Status]int, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	counts := make(map[entity.Status]int)
	for _, c := range r.s.contacts {
		counts[c.Status]++
	}
	return counts, nil
}

type EmailRepository struct{ s *Store }

func (r *EmailRepository) Create(ctx context.Context, e *entity.Email) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if _, ok := r.s.contacts[e.ContactID]; !ok {
		return fmt.Errorf("contact %s: %w", e.ContactID, entity.ErrNotFound)
	}
	for _, existing := range r.s.emails {
		if existing.ContactID == e.ContactID && existing.Status != entity.EmailError {
			return entity.ErrDraftAlreadyExists
		}
	}
	cp := *e
	r.s.emails[e.ID] = &cp
	return nil
}

func (r *EmailRepository) FindLatestByContact(ctx context.Context, contactID string, includeErrored bool) (*entity.Email, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var latest *entity.Email
	for _, e := range r.s.emails {
		if e.ContactID != contactID {
			continue
		}
		if e.Status == entity.EmailError && !includeErrored {
			continue
		}
		if latest == nil || e.CreatedAt.After(latest.CreatedAt) {
			latest = e
		}
	}
	if latest == nil {
		return nil, entity.ErrNotFound
	}
	cp := *latest
	return &cp, nil
}

func (r *EmailRepository) MarkSent(ctx context.Context, id, usedDomain string, sentAt time.Time) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	e, ok := r.s.emails[id]
	if !ok || e.Status == entity.EmailSent {
		return fmt.Errorf("email %s: %w", id, entity.ErrNotFound)
	}
	e.Status = entity.EmailSent
	t := sentAt
	e.SentAt = &t
	e.UsedDomain = ptr(usedDomain)
	e.Error = nil
	return nil
}

func (r *EmailRepository) MarkError(ctx context.Context, id, message string) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	e, ok := r.s.emails[id]
	if !ok || e.Status == entity.EmailSent {
		return fmt.Errorf("email %s: %w", id, entity.ErrNotFound)
	}
	e.Status = entity.EmailError
	e.Error = ptr(message)
	return nil
}

// ByContact returns every email row of a contact, oldest first.
func (r *EmailRepository) ByContact(contactID string) []*entity.Email {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var out []*entity.Email
	for _, e := range r.s.emails {
		if e.ContactID == contactID {
			cp := *e
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out
}

type IdentityRepository struct{ s *Store }

func (r *IdentityRepository) FindByID(ctx context.Context, id string) (*entity.Identity, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	i, ok := r.s.identities[id]
	if !ok {
		return nil, entity.ErrNotFound
	}
	cp := *i
	return &cp, nil
}

func (r *IdentityRepository) FirstActive(ctx context.Context) (*entity.Identity, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var first *entity.Identity
	for _, i := range r.s.identities {
		if !i.Active {
			continue
		}
		if first == nil || i.CreatedAt.Before(first.CreatedAt) ||
			(i.CreatedAt.Equal(first.CreatedAt) && i.ID < first.ID) {
			first = i
		}
	}
	if first == nil {
		return nil, entity.ErrNotFound
	}
	cp := *first
	return &cp, nil
}

func cloneContact(c *entity.Contact) *entity.Contact {
	cp := *c
	cp.AdditionalData = entity.AdditionalData{}.Merge(c.AdditionalData)
	return &cp
}

func ptr(s string) *string { return &s }

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
