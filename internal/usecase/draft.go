package usecase

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"strings"

	"github.com/google/uuid"
	"github.com/xavierca1/prospect-agent/internal/classifier"
	"github.com/xavierca1/prospect-agent/internal/config"
	"github.com/xavierca1/prospect-agent/internal/entity"
)

const noIdentity = "(no identity)"

type DraftOptions struct {
	Limit config.Limit
	// Template skips copywriting: contacts advance to ready with no stored
	// email and dispatch composes the static template at send time.
	Template bool
}

type DraftUseCase struct {
	Contacts   entity.ContactRepositoryInterface
	Emails     entity.EmailRepositoryInterface
	Identities entity.IdentityRepositoryInterface
	Generator  Generator
	Events     StatusPublisher
	Opts       DraftOptions
}

func NewDraftUseCase(
	contacts entity.ContactRepositoryInterface,
	emails entity.EmailRepositoryInterface,
	identities entity.IdentityRepositoryInterface,
	gen Generator,
	events StatusPublisher,
	opts DraftOptions,
) *DraftUseCase {
	return &DraftUseCase{
		Contacts:   contacts,
		Emails:     emails,
		Identities: identities,
		Generator:  gen,
		Events:     events,
		Opts:       opts,
	}
}

func (uc *DraftUseCase) Stage() entity.Stage { return entity.StageDraft }

func (uc *DraftUseCase) Execute(ctx context.Context, in RunInput) (*Summary, error) {
	limit := in.limit(uc.Opts.Limit)
	summary := newSummary(entity.StageDraft, uuid.NewString(), limit)
	defer summary.finish()

	if uc.Generator == nil && !uc.Opts.Template {
		return summary, &ConfigError{Message: "no generation backend configured"}
	}

	candidates, err := uc.Contacts.Find(ctx, entity.ContactQuery{
		Statuses:  []entity.Status{entity.StatusEnriched},
		Ascending: true,
	})
	if err != nil {
		return summary, fmt.Errorf("select contacts to draft: %w", err)
	}
	contacts := make([]*entity.Contact, 0, len(candidates))
	for _, c := range candidates {
		if classifier.IsMediaFile(c.Email) {
			continue
		}
		if !limit.IsUnlimited() && len(contacts) >= limit.Int() {
			break
		}
		contacts = append(contacts, c)
	}
	summary.Selected = len(contacts)
	log.Printf("[draft] contacts to draft: %d (limit: %s, template: %t)", len(contacts), limit, uc.Opts.Template)

	for i, c := range contacts {
		if err := ctx.Err(); err != nil {
			summary.Aborted = err.Error()
			return summary, err
		}
		progress := fmt.Sprintf("[%d/%d]", i+1, len(contacts))

		created, err := uc.draft(ctx, c, summary.RunID)
		if err != nil {
			log.Printf("[draft] %s ❌ %s: %v", progress, c.Email, err)
			summary.Errors++
			contactErrors.WithLabelValues(string(entity.StageDraft)).Inc()
			continue
		}
		if !created {
			summary.Skipped++
			summary.reason("draft exists")
			log.Printf("[draft] %s %s already has a draft", progress, c.Email)
			continue
		}
		summary.Processed++
		log.Printf("[draft] %s %s ready", progress, c.Email)
	}
	return summary, nil
}

// draft writes one Email row and advances the contact to ready. It reports
// false when a live draft already existed; the contact is still advanced so a
// half-finished earlier run converges.
func (uc *DraftUseCase) draft(ctx context.Context, c *entity.Contact, runID string) (bool, error) {
	_, err := uc.Emails.FindLatestByContact(ctx, c.ID, false)
	if err == nil {
		_, err := moveContact(ctx, uc.Contacts, uc.Events, runID, c, entity.StageDraft, entity.StatusReady, entity.ContactPatch{})
		return false, err
	}
	if !errors.Is(err, entity.ErrNotFound) {
		return false, fmt.Errorf("lookup draft: %w", err)
	}

	identity := uc.resolveIdentity(ctx, c)
	if uc.Opts.Template {
		if _, err := moveContact(ctx, uc.Contacts, uc.Events, runID, c, entity.StageDraft, entity.StatusReady, identityPatch(c, identity)); err != nil {
			return false, err
		}
		return true, nil
	}
	tmpl := baseTemplate.Fill(senderTokens(identity))

	system, user := copywritePrompt.Render(map[string]string{
		"template_object":  tmpl.Object,
		"template_content": tmpl.Content,
		"template_cta":     tmpl.CTA,
		"template_footer":  tmpl.Footer,
		"persona":          c.PersonaText(),
		"identity_data":    identityData(identity),
	})
	raw, err := uc.Generator.Complete(ctx, system, user, copywritePrompt.Temperature, copywritePrompt.MaxTokens)
	if err != nil {
		return false, &TechnicalError{Code: "generation", Message: "copywriting failed", Err: err}
	}

	var written EmailTemplate
	if err := decodeModelJSON(copywritePrompt.Name, raw, &written); err != nil {
		return false, err
	}
	written = written.orElse(tmpl)

	email := entity.NewDraft(c.ID, written.Object, written.Content, written.CTA, written.Footer)

	tx := NewTransaction()
	tx.AddOperation("create draft", func(ctx context.Context) error {
		return uc.Emails.Create(ctx, email)
	})
	tx.AddCompensation("abandon draft", func(ctx context.Context) error {
		return uc.Emails.MarkError(ctx, email.ID, "abandoned")
	})
	tx.AddOperation("advance contact", func(ctx context.Context) error {
		_, err := moveContact(ctx, uc.Contacts, uc.Events, runID, c, entity.StageDraft, entity.StatusReady, identityPatch(c, identity))
		return err
	})
	tx.AddCompensation("advance contact", nil)

	if err := tx.Execute(ctx); err != nil {
		if errors.Is(err, entity.ErrDraftAlreadyExists) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

// resolveIdentity tries the linked identity, the identity recorded at enrich
// time, then the first active one. The placeholder has no ID.
func (uc *DraftUseCase) resolveIdentity(ctx context.Context, c *entity.Contact) *entity.Identity {
	if uc.Identities != nil {
		candidates := make([]string, 0, 2)
		if c.IdentityID != nil {
			candidates = append(candidates, *c.IdentityID)
		}
		if id := c.AdditionalData.String(entity.MetaActiveIdentityID); id != "" {
			candidates = append(candidates, id)
		}
		for _, id := range candidates {
			identity, err := uc.Identities.FindByID(ctx, id)
			if err == nil {
				return identity
			}
			log.Printf("[draft] ⚠️ identity %s for %s: %v", id, c.Email, err)
		}
		if identity, err := uc.Identities.FirstActive(ctx); err == nil {
			return identity
		}
	}
	return &entity.Identity{Name: noIdentity, Company: noIdentity}
}

// identityPatch links the identity only when the contact has none yet.
func identityPatch(c *entity.Contact, identity *entity.Identity) entity.ContactPatch {
	if c.IdentityID != nil || identity == nil || identity.ID == "" {
		return entity.ContactPatch{}
	}
	return entity.ContactPatch{IdentityID: strPtr(identity.ID)}
}

func senderTokens(identity *entity.Identity) map[string]string {
	return map[string]string{
		"sender_fullname": identity.Name,
		"sender_website":  identity.Website,
		"sender_company":  identity.Company,
	}
}

func identityData(identity *entity.Identity) string {
	b, _ := json.Marshal(map[string]string{
		"name":    identity.Name,
		"company": identity.Company,
		"email":   identity.Email,
		"website": identity.Website,
	})
	return string(b)
}

// orElse fills blank fields from fallback.
func (t EmailTemplate) orElse(fallback EmailTemplate) EmailTemplate {
	pick := func(v, d string) string {
		if strings.TrimSpace(v) == "" {
			return d
		}
		return strings.TrimSpace(v)
	}
	return EmailTemplate{
		Object:  pick(t.Object, fallback.Object),
		Content: pick(t.Content, fallback.Content),
		CTA:     pick(t.CTA, fallback.CTA),
		Footer:  pick(t.Footer, fallback.Footer),
	}
}
