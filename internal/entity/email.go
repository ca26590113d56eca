package entity

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
)

type EmailStatus string

const (
	EmailDraft EmailStatus = "draft"
	EmailSent  EmailStatus = "sent"
	EmailError EmailStatus = "error"
)

// Email is a drafted or sent outbound message. One live (non-error) row per contact.
type Email struct {
	ID         string      `json:"id"`
	ContactID  string      `json:"contact_id"`
	Object     string      `json:"object"`
	Content    string      `json:"content"`
	CTA        string      `json:"cta"`
	Footer     string      `json:"footer"`
	Status     EmailStatus `json:"status"`
	SentAt     *time.Time  `json:"sent_at,omitempty"`
	UsedDomain *string     `json:"used_domain,omitempty"`
	Error      *string     `json:"error,omitempty"`
	CreatedAt  time.Time   `json:"created_at"`
}

func NewDraft(contactID, object, content, cta, footer string) *Email {
	return &Email{
		ID:        uuid.New().String(),
		ContactID: contactID,
		Object:    object,
		Content:   content,
		CTA:       cta,
		Footer:    footer,
		Status:    EmailDraft,
		CreatedAt: time.Now().UTC(),
	}
}

// Body merges content, call to action and footer as plain text.
func (e *Email) Body() string {
	parts := make([]string, 0, 3)
	for _, p := range []string{e.Content, e.CTA, e.Footer} {
		if p = strings.TrimSpace(p); p != "" {
			parts = append(parts, p)
		}
	}
	return strings.Join(parts, "\n\n")
}

type EmailRepositoryInterface interface {
	Create(ctx context.Context, e *Email) error
	// FindLatestByContact ignores rows in EmailError unless includeErrored is set.
	FindLatestByContact(ctx context.Context, contactID string, includeErrored bool) (*Email, error)
	MarkSent(ctx context.Context, id, usedDomain string, sentAt time.Time) error
	MarkError(ctx context.Context, id, message string) error
}
