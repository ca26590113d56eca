package entity

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Well-known additional_data keys written by the stages.
const (
	MetaTitle             = "title"
	MetaDescription       = "description"
	MetaURL               = "url"
	MetaWeb               = "web"
	MetaPersona           = "persona"
	MetaWebExcerpt        = "web_excerpt"
	MetaMotivations       = "motivations"
	MetaInterlocutorQuery = "interlocutor_query"
	MetaInterlocutor      = "interlocutor"
	MetaActiveIdentityID  = "active_identity_id"
)

// AdditionalData is the open metadata bag accumulated by the stages.
// Values are restricted to strings, numbers and nested maps of the same.
type AdditionalData map[string]any

// Merge returns a copy of d overlaid with patch. Keys absent from patch are kept.
func (d AdditionalData) Merge(patch AdditionalData) AdditionalData {
	out := make(AdditionalData, len(d)+len(patch))
	for k, v := range d {
		out[k] = v
	}
	for k, v := range patch {
		out[k] = v
	}
	return out
}

// String returns the value at key when it is a string.
func (d AdditionalData) String(key string) string {
	if v, ok := d[key].(string); ok {
		return v
	}
	return ""
}

// Validate rejects value shapes outside the allowed set.
func (d AdditionalData) Validate() error {
	return validateMetaMap(d, "")
}

func validateMetaMap(m map[string]any, prefix string) error {
	for k, v := range m {
		switch val := v.(type) {
		case string, float64, float32, int, int64, bool, nil:
		case map[string]any:
			if err := validateMetaMap(val, prefix+k+"."); err != nil {
				return err
			}
		case AdditionalData:
			if err := validateMetaMap(val, prefix+k+"."); err != nil {
				return err
			}
		default:
			return fmt.Errorf("additional_data.%s%s: unsupported value type %T", prefix, k, v)
		}
	}
	return nil
}

type Contact struct {
	ID             string         `json:"id"`
	Email          string         `json:"email"`
	Status         Status         `json:"status"`
	SourceQuery    string         `json:"source_query"`
	AdditionalData AdditionalData `json:"additional_data"`
	Persona        *string        `json:"persona,omitempty"`
	IdentityID     *string        `json:"identity_id,omitempty"`
	Note           *string        `json:"note,omitempty"`
	LeaseOwner     *string        `json:"lease_owner,omitempty"`
	LeaseExpiresAt *time.Time     `json:"lease_expires_at,omitempty"`
	CreatedAt      time.Time      `json:"created_at"`
	UpdatedAt      time.Time      `json:"updated_at"`
}

// NewContact builds a "new" contact for a discovered address.
func NewContact(email, sourceQuery string, data AdditionalData) (*Contact, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" {
		return nil, fmt.Errorf("email is required")
	}
	if data == nil {
		data = AdditionalData{}
	}
	if err := data.Validate(); err != nil {
		return nil, err
	}
	now := time.Now().UTC()
	return &Contact{
		ID:             uuid.New().String(),
		Email:          email,
		Status:         StatusNew,
		SourceQuery:    sourceQuery,
		AdditionalData: data,
		CreatedAt:      now,
		UpdatedAt:      now,
	}, nil
}

// Transition moves the contact to `to` if the table allows it for stage.
func (c *Contact) Transition(stage Stage, to Status) error {
	if !CanTransition(stage, c.Status, to) {
		return &IllegalTransitionError{Stage: stage, From: c.Status, To: to}
	}
	c.Status = to
	c.UpdatedAt = time.Now().UTC()
	return nil
}

func (c *Contact) PersonaText() string {
	if c.Persona != nil {
		return *c.Persona
	}
	return c.AdditionalData.String(MetaPersona)
}

// ContactPatch carries the optional columns written together with a status change.
type ContactPatch struct {
	Note           *string
	Persona        *string
	IdentityID     *string
	AdditionalData AdditionalData // merged, never replaces
}

// StatusUpdate is a compare-and-set on the contact's current status.
type StatusUpdate struct {
	ID    string
	Stage Stage
	From  Status
	To    Status
	Patch ContactPatch
}

func (u StatusUpdate) Check() error {
	if !CanTransition(u.Stage, u.From, u.To) {
		return &IllegalTransitionError{Stage: u.Stage, From: u.From, To: u.To}
	}
	return nil
}

// FilterOp is the comparison applied by a ContactFilter.
type FilterOp string

const (
	OpEq    FilterOp = "eq"
	OpILike FilterOp = "ilike"
)

type ContactFilter struct {
	Column string
	Op     FilterOp
	Value  string
}

// ContactQuery selects contacts. Limit <= 0 means unlimited; the store pages
// past its per-request row cap transparently.
type ContactQuery struct {
	Statuses  []Status
	Filters   []ContactFilter
	Limit     int
	Ascending bool
}

type ContactRepositoryInterface interface {
	Create(ctx context.Context, c *Contact) error
	FindByID(ctx context.Context, id string) (*Contact, error)
	FindByEmail(ctx context.Context, email string) (*Contact, error)
	Find(ctx context.Context, q ContactQuery) ([]*Contact, error)
	UpdateStatus(ctx context.Context, u StatusUpdate) (*Contact, error)
	Claim(ctx context.Context, id string, from Status, owner string, expiresAt time.Time) (*Contact, error)
	ReclaimExpired(ctx context.Context, now time.Time) (int, error)
	CountByStatus(ctx context.Context) (map[Status]int, error)
}
