package usecase

import (
	"context"
	"errors"
	"fmt"
	"html"
	"log"
	netmail "net/mail"
	"net/url"
	"strings"
	"time"
	"unicode"

	"github.com/google/uuid"
	"github.com/xavierca1/prospect-agent/internal/config"
	"github.com/xavierca1/prospect-agent/internal/entity"
	"github.com/xavierca1/prospect-agent/internal/infra/mail"
)

// Dispatch modes.
const (
	DispatchStoredDraft = "draft"
	DispatchTemplate    = "template"
)

const DefaultLeaseTTL = 10 * time.Minute

type DispatchOptions struct {
	Limit       config.Limit
	Mode        string
	LeaseTTL    time.Duration
	RetryErrors bool
}

type DispatchUseCase struct {
	Contacts   entity.ContactRepositoryInterface
	Emails     entity.EmailRepositoryInterface
	Identities entity.IdentityRepositoryInterface
	Delivery   DeliveryProvider
	Events     StatusPublisher
	Opts       DispatchOptions

	Now func() time.Time
}

func NewDispatchUseCase(
	contacts entity.ContactRepositoryInterface,
	emails entity.EmailRepositoryInterface,
	identities entity.IdentityRepositoryInterface,
	delivery DeliveryProvider,
	events StatusPublisher,
	opts DispatchOptions,
) *DispatchUseCase {
	if opts.Mode == "" {
		opts.Mode = DispatchStoredDraft
	}
	if opts.LeaseTTL <= 0 {
		opts.LeaseTTL = DefaultLeaseTTL
	}
	return &DispatchUseCase{
		Contacts:   contacts,
		Emails:     emails,
		Identities: identities,
		Delivery:   delivery,
		Events:     events,
		Opts:       opts,
		Now:        func() time.Time { return time.Now().UTC() },
	}
}

func (uc *DispatchUseCase) Stage() entity.Stage { return entity.StageDispatch }

type dispatchOutcome int

const (
	outcomeSent dispatchOutcome = iota
	outcomeFailed
	outcomeRolledBack
	outcomeAlreadySent
)

func (uc *DispatchUseCase) Execute(ctx context.Context, in RunInput) (*Summary, error) {
	limit := in.limit(uc.Opts.Limit)
	summary := newSummary(entity.StageDispatch, uuid.NewString(), limit)
	defer summary.finish()

	if uc.Delivery == nil {
		return summary, &ConfigError{Message: "no delivery provider configured"}
	}
	if uc.Opts.Mode != DispatchStoredDraft && uc.Opts.Mode != DispatchTemplate {
		return summary, &ConfigError{Message: fmt.Sprintf("unknown dispatch mode %q", uc.Opts.Mode)}
	}

	if zeroLimit(uc.Stage(), limit) {
		return summary, nil
	}

	domains, err := uc.Delivery.ListVerifiedDomains(ctx)
	if err != nil {
		return summary, &ConfigError{Message: "cannot list verified sending domains", Err: err}
	}
	if len(domains) == 0 {
		return summary, &ConfigError{Message: "no verified sending domain"}
	}
	log.Printf("[dispatch] verified sending domains: %s", strings.Join(domains, ", "))

	reclaimed, err := uc.Contacts.ReclaimExpired(ctx, uc.Now())
	if err != nil {
		return summary, fmt.Errorf("reclaim expired leases: %w", err)
	}
	if reclaimed > 0 {
		log.Printf("[dispatch] 🔄 %d expired lease(s) returned to ready", reclaimed)
	}

	statuses := []entity.Status{entity.StatusReady}
	if uc.Opts.RetryErrors {
		statuses = append(statuses, entity.StatusError)
	}
	contacts, err := uc.Contacts.Find(ctx, entity.ContactQuery{Statuses: statuses, Limit: limit.Int(), Ascending: true})
	if err != nil {
		return summary, fmt.Errorf("select contacts to dispatch: %w", err)
	}
	summary.Selected = len(contacts)
	log.Printf("[dispatch] contacts to dispatch: %d (limit: %s, mode: %s)", len(contacts), limit, uc.Opts.Mode)

	next := 0
	for i, c := range contacts {
		if err := ctx.Err(); err != nil {
			summary.Aborted = err.Error()
			return summary, err
		}
		progress := fmt.Sprintf("[%d/%d]", i+1, len(contacts))
		domain := domains[next%len(domains)]

		outcome, err := uc.dispatch(ctx, c, domain, summary.RunID)
		switch {
		case err != nil && outcome != outcomeFailed:
			log.Printf("[dispatch] %s ❌ %s: %v", progress, c.Email, err)
			summary.Errors++
			contactErrors.WithLabelValues(string(entity.StageDispatch)).Inc()
		case outcome == outcomeFailed:
			next++
			log.Printf("[dispatch] %s ❌ %s not sent: %v", progress, c.Email, err)
			summary.Errors++
			summary.reason("delivery failed")
			contactErrors.WithLabelValues(string(entity.StageDispatch)).Inc()
		case outcome == outcomeRolledBack:
			summary.RolledBack++
			summary.reason("no draft")
			log.Printf("[dispatch] %s ↩️ %s has no draft, back to enriched", progress, c.Email)
		case outcome == outcomeAlreadySent:
			summary.Skipped++
			summary.reason("already sent")
			log.Printf("[dispatch] %s %s was already sent, marked processed", progress, c.Email)
		default:
			next++
			summary.Processed++
			log.Printf("[dispatch] %s ✅ %s sent via %s", progress, c.Email, domain)
		}
	}
	return summary, nil
}

// dispatch sends one contact's email. outcomeFailed means the contact and its
// draft were moved to error; any other outcome with a non-nil error left the
// contact untouched.
func (uc *DispatchUseCase) dispatch(ctx context.Context, c *entity.Contact, domain, runID string) (dispatchOutcome, error) {
	identity, idErr := uc.senderIdentity(ctx, c)

	var email *entity.Email
	var err error
	if uc.Opts.Mode == DispatchTemplate && idErr == nil {
		email, err = uc.composeFromTemplate(ctx, c, identity)
	} else {
		email, err = uc.Emails.FindLatestByContact(ctx, c.ID, c.Status == entity.StatusError)
	}
	if errors.Is(err, entity.ErrNotFound) {
		if _, err := moveContact(ctx, uc.Contacts, uc.Events, runID, c, entity.StageDispatch, entity.StatusEnriched, entity.ContactPatch{}); err != nil {
			return outcomeRolledBack, fmt.Errorf("roll back to enriched: %w", err)
		}
		return outcomeRolledBack, nil
	}
	if err != nil {
		return outcomeSent, fmt.Errorf("load draft: %w", err)
	}

	if email.Status == entity.EmailSent {
		return uc.settleSent(ctx, c, runID)
	}

	if idErr != nil {
		return uc.fail(ctx, c, email, runID, idErr)
	}

	claimed, err := uc.Contacts.Claim(ctx, c.ID, c.Status, runID, uc.Now().Add(uc.Opts.LeaseTTL))
	if err != nil {
		return outcomeSent, fmt.Errorf("claim: %w", err)
	}
	publishStatus(ctx, uc.Events, runID, entity.StageDispatch, c.Status, claimed)

	msg := mail.Message{
		From:    senderAddress(identity, domain),
		To:      c.Email,
		Subject: email.Object,
		Text:    email.Body(),
		HTML:    htmlBody(email.Body()),
	}
	if err := msg.Err(); err != nil {
		return uc.fail(ctx, claimed, email, runID, err)
	}

	providerID, err := uc.Delivery.Send(ctx, msg)
	if err != nil {
		return uc.fail(ctx, claimed, email, runID, err)
	}
	emailsSent.WithLabelValues(domain).Inc()

	if err := uc.Emails.MarkSent(ctx, email.ID, domain, uc.Now()); err != nil {
		log.Printf("[dispatch] ⚠️ %s delivered (id %s) but email row not updated: %v", c.Email, providerID, err)
	}
	if _, err := moveContact(ctx, uc.Contacts, uc.Events, runID, claimed, entity.StageDispatch, entity.StatusProcessed, entity.ContactPatch{}); err != nil {
		return outcomeSent, fmt.Errorf("delivered but not marked processed: %w", err)
	}
	return outcomeSent, nil
}

// settleSent converges a contact whose email already went out in an earlier
// run that could not record the processed status.
func (uc *DispatchUseCase) settleSent(ctx context.Context, c *entity.Contact, runID string) (dispatchOutcome, error) {
	claimed, err := uc.Contacts.Claim(ctx, c.ID, c.Status, runID, uc.Now().Add(uc.Opts.LeaseTTL))
	if err != nil {
		return outcomeSent, fmt.Errorf("claim: %w", err)
	}
	publishStatus(ctx, uc.Events, runID, entity.StageDispatch, c.Status, claimed)
	if _, err := moveContact(ctx, uc.Contacts, uc.Events, runID, claimed, entity.StageDispatch, entity.StatusProcessed, entity.ContactPatch{}); err != nil {
		return outcomeSent, fmt.Errorf("already sent but not marked processed: %w", err)
	}
	return outcomeAlreadySent, nil
}

// fail moves the contact to error and records the cause on the email row.
func (uc *DispatchUseCase) fail(ctx context.Context, c *entity.Contact, email *entity.Email, runID string, cause error) (dispatchOutcome, error) {
	if err := uc.Emails.MarkError(ctx, email.ID, cause.Error()); err != nil {
		log.Printf("[dispatch] ⚠️ email %s not marked error: %v", email.ID, err)
	}
	if _, err := moveContact(ctx, uc.Contacts, uc.Events, runID, c, entity.StageDispatch, entity.StatusError, entity.ContactPatch{}); err != nil {
		return outcomeSent, fmt.Errorf("%v; contact not moved to error: %w", cause, err)
	}
	return outcomeFailed, cause
}

// senderIdentity resolves the identity linked at draft time, falling back to
// the enrich-time identity and the first active one.
func (uc *DispatchUseCase) senderIdentity(ctx context.Context, c *entity.Contact) (*entity.Identity, error) {
	if uc.Identities == nil {
		return nil, &DomainError{Code: "no_identity", Message: "no sender identity"}
	}
	for _, id := range []*string{c.IdentityID, strPtr(c.AdditionalData.String(entity.MetaActiveIdentityID))} {
		if id == nil || *id == "" {
			continue
		}
		if identity, err := uc.Identities.FindByID(ctx, *id); err == nil {
			return identity, nil
		}
	}
	identity, err := uc.Identities.FirstActive(ctx)
	if err != nil {
		return nil, &DomainError{Code: "no_identity", Message: "no sender identity"}
	}
	return identity, nil
}

// composeFromTemplate stores an email built from the static template, reusing
// the live row when one already exists.
func (uc *DispatchUseCase) composeFromTemplate(ctx context.Context, c *entity.Contact, identity *entity.Identity) (*entity.Email, error) {
	if existing, err := uc.Emails.FindLatestByContact(ctx, c.ID, false); err == nil {
		return existing, nil
	} else if !errors.Is(err, entity.ErrNotFound) {
		return nil, err
	}

	tokens := senderTokens(identity)
	tokens["intitulé du poste"] = c.SourceQuery
	tokens["company"] = identity.Company
	if interlocutor, ok := c.AdditionalData[entity.MetaInterlocutor].(map[string]any); ok {
		if company, ok := interlocutor["company"].(string); ok && company != "" {
			tokens["company"] = company
		}
	}
	tokens["nom du réseau/site internet"] = siteName(c.AdditionalData.String(entity.MetaURL))

	tmpl := baseTemplate.Fill(tokens)
	email := entity.NewDraft(c.ID, tmpl.Object, tmpl.Content, tmpl.CTA, tmpl.Footer)
	if err := uc.Emails.Create(ctx, email); err != nil {
		return nil, err
	}
	return email, nil
}

// senderAddress builds "Name <company.name@domain>".
func senderAddress(identity *entity.Identity, domain string) string {
	local := localPart(identity.Company)
	if local == "" {
		local = localPart(identity.Name)
	}
	if local == "" {
		local = "contact"
	}
	addr := netmail.Address{Name: identity.Name, Address: local + "@" + domain}
	return addr.String()
}

// localPart lower-cases s and joins its words with dots, dropping anything
// outside [a-z0-9._-].
func localPart(s string) string {
	words := strings.Fields(strings.ToLower(s))
	var b strings.Builder
	for i, w := range words {
		if i > 0 {
			b.WriteByte('.')
		}
		for _, r := range w {
			if r < unicode.MaxASCII && (unicode.IsLetter(r) || unicode.IsDigit(r) || r == '-' || r == '_' || r == '.') {
				b.WriteRune(r)
			}
		}
	}
	return strings.Trim(b.String(), ".")
}

// htmlBody renders blank-line separated paragraphs as <p> and single line
// breaks as <br>.
func htmlBody(text string) string {
	var b strings.Builder
	for _, para := range strings.Split(strings.ReplaceAll(text, "\r\n", "\n"), "\n\n") {
		para = strings.TrimSpace(para)
		if para == "" {
			continue
		}
		lines := strings.Split(para, "\n")
		for i, l := range lines {
			lines[i] = html.EscapeString(strings.TrimSpace(l))
		}
		b.WriteString("<p>")
		b.WriteString(strings.Join(lines, "<br>"))
		b.WriteString("</p>")
	}
	return b.String()
}

func siteName(raw string) string {
	u, err := url.Parse(raw)
	if err != nil || u.Host == "" {
		return "internet"
	}
	return strings.TrimPrefix(strings.ToLower(u.Hostname()), "www.")
}
