package usecase

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"strings"

	"github.com/google/uuid"
	"github.com/xavierca1/prospect-agent/internal/config"
	"github.com/xavierca1/prospect-agent/internal/entity"
	"github.com/xavierca1/prospect-agent/internal/infra/integration/search"
	"github.com/xavierca1/prospect-agent/internal/infra/integration/webpage"
)

const noWebContent = "(no content)"

type EnrichOptions struct {
	Limit config.Limit
	// From is the source status: verified, or new to skip the Verify stage.
	From         entity.Status
	CharsBudget  int
	Interlocutor bool
}

type EnrichUseCase struct {
	Contacts   entity.ContactRepositoryInterface
	Identities entity.IdentityRepositoryInterface
	Fetcher    PageFetcher
	Generator  Generator
	Search     SearchBackend
	Events     StatusPublisher
	Opts       EnrichOptions
}

func NewEnrichUseCase(
	contacts entity.ContactRepositoryInterface,
	identities entity.IdentityRepositoryInterface,
	fetcher PageFetcher,
	gen Generator,
	backend SearchBackend,
	events StatusPublisher,
	opts EnrichOptions,
) *EnrichUseCase {
	if opts.From == "" {
		opts.From = entity.StatusVerified
	}
	return &EnrichUseCase{
		Contacts:   contacts,
		Identities: identities,
		Fetcher:    fetcher,
		Generator:  gen,
		Search:     backend,
		Events:     events,
		Opts:       opts,
	}
}

func (uc *EnrichUseCase) Stage() entity.Stage { return entity.StageEnrich }

// Interlocutor is the ideal client picked for a contact.
type Interlocutor struct {
	Interlocutor string `json:"interlocutor"`
	Company      string `json:"company"`
	SourceURL    string `json:"source_url"`
	Localisation string `json:"localisation,omitempty"`
}

func (i Interlocutor) metadata() map[string]any {
	m := map[string]any{
		"interlocutor": i.Interlocutor,
		"company":      i.Company,
		"source_url":   i.SourceURL,
	}
	if i.Localisation != "" {
		m["localisation"] = i.Localisation
	}
	return m
}

func (uc *EnrichUseCase) Execute(ctx context.Context, in RunInput) (*Summary, error) {
	limit := in.limit(uc.Opts.Limit)
	summary := newSummary(entity.StageEnrich, uuid.NewString(), limit)
	defer summary.finish()

	if uc.Generator == nil {
		return summary, &ConfigError{Message: "no generation backend configured"}
	}
	if !entity.CanTransition(entity.StageEnrich, uc.Opts.From, entity.StatusEnriched) {
		return summary, &ConfigError{Message: fmt.Sprintf("enrich cannot start from status %q", uc.Opts.From)}
	}
	if uc.Opts.Interlocutor && uc.Search == nil {
		return summary, &ConfigError{Message: "interlocutor search enabled without a search backend"}
	}

	if zeroLimit(uc.Stage(), limit) {
		return summary, nil
	}

	contacts, err := uc.Contacts.Find(ctx, entity.ContactQuery{
		Statuses:  []entity.Status{uc.Opts.From},
		Limit:     limit.Int(),
		Ascending: true,
	})
	if err != nil {
		return summary, fmt.Errorf("select contacts to enrich: %w", err)
	}
	summary.Selected = len(contacts)
	log.Printf("[enrich] contacts to enrich: %d (from: %s, limit: %s, interlocutor: %t)",
		len(contacts), uc.Opts.From, limit, uc.Opts.Interlocutor)

	activeIdentity := ""
	if uc.Identities != nil {
		if id, err := uc.Identities.FirstActive(ctx); err == nil {
			activeIdentity = id.ID
		} else if !errors.Is(err, entity.ErrNotFound) {
			log.Printf("[enrich] ⚠️ active identity lookup failed: %v", err)
		}
	}

	for i, c := range contacts {
		if err := ctx.Err(); err != nil {
			summary.Aborted = err.Error()
			return summary, err
		}
		progress := fmt.Sprintf("[%d/%d]", i+1, len(contacts))

		patch, err := uc.enrich(ctx, c, activeIdentity)
		if err != nil {
			log.Printf("[enrich] %s ❌ %s: %v", progress, c.Email, err)
			summary.Errors++
			summary.reason("persona failed")
			contactErrors.WithLabelValues(string(entity.StageEnrich)).Inc()
			continue
		}

		if _, err := moveContact(ctx, uc.Contacts, uc.Events, summary.RunID, c, entity.StageEnrich, entity.StatusEnriched, patch); err != nil {
			log.Printf("[enrich] %s ❌ %s: %v", progress, c.Email, err)
			summary.Errors++
			contactErrors.WithLabelValues(string(entity.StageEnrich)).Inc()
			continue
		}
		summary.Processed++
		log.Printf("[enrich] %s %s enriched", progress, c.Email)
	}
	return summary, nil
}

// enrich builds the patch for one contact. Only a persona failure is fatal.
func (uc *EnrichUseCase) enrich(ctx context.Context, c *entity.Contact, activeIdentity string) (entity.ContactPatch, error) {
	snapshot := contactSnapshot(c)
	webText := uc.homepageText(ctx, c)

	system, user := personaPrompt.Render(map[string]string{
		"contact_informations": snapshot,
		"web_informations":     webText,
	})
	persona, err := uc.Generator.Complete(ctx, system, user, personaPrompt.Temperature, personaPrompt.MaxTokens)
	if err != nil {
		return entity.ContactPatch{}, &TechnicalError{Code: "generation", Message: "persona generation failed", Err: err}
	}
	persona = cleanAnswer(persona)
	if persona == "" {
		return entity.ContactPatch{}, &DomainError{Code: "empty_persona", Message: "model returned an empty persona"}
	}

	data := entity.AdditionalData{
		entity.MetaPersona:    persona,
		entity.MetaWebExcerpt: webText,
	}
	if activeIdentity != "" {
		data[entity.MetaActiveIdentityID] = activeIdentity
	}

	if uc.Opts.Interlocutor {
		uc.findInterlocutor(ctx, c, snapshot, persona, data)
	}

	return entity.ContactPatch{Persona: &persona, AdditionalData: data}, nil
}

// homepageText never fails; every problem degrades to noWebContent.
func (uc *EnrichUseCase) homepageText(ctx context.Context, c *entity.Contact) string {
	if uc.Fetcher == nil {
		return noWebContent
	}
	raw := c.AdditionalData.String(entity.MetaWeb)
	if raw == "" {
		raw = c.AdditionalData.String(entity.MetaURL)
	}
	if raw == "" || webpage.IsSocial(raw) {
		return noWebContent
	}
	home, ok := webpage.HomepageURL(raw)
	if !ok {
		return noWebContent
	}

	text, err := uc.Fetcher.FetchText(ctx, home, uc.Opts.CharsBudget)
	if err != nil {
		if !errors.Is(err, webpage.ErrSkipped) {
			log.Printf("[enrich] ⚠️ homepage %s: %v", home, err)
		}
		return noWebContent
	}
	if strings.TrimSpace(text) == "" {
		return noWebContent
	}
	return text
}

// findInterlocutor writes motivations, the client query and the selected
// interlocutor into data. Any failure only drops the remaining fields.
func (uc *EnrichUseCase) findInterlocutor(ctx context.Context, c *entity.Contact, snapshot, persona string, data entity.AdditionalData) {
	system, user := motivationPrompt.Render(map[string]string{
		"contact_informations": snapshot,
		"persona":              persona,
	})
	motivations, err := uc.Generator.Complete(ctx, system, user, motivationPrompt.Temperature, motivationPrompt.MaxTokens)
	if err != nil || cleanAnswer(motivations) == "" {
		log.Printf("[enrich] ⚠️ %s: no motivations: %v", c.Email, err)
		return
	}
	motivations = cleanAnswer(motivations)
	data[entity.MetaMotivations] = motivations

	tokens := map[string]string{"persona": persona, "motivations": motivations}
	system, user = interlocutorQueryPrompt.Render(tokens)
	query, err := uc.Generator.Complete(ctx, system, user, interlocutorQueryPrompt.Temperature, interlocutorQueryPrompt.MaxTokens)
	query = cleanAnswer(query)
	if err != nil || query == "" {
		log.Printf("[enrich] ⚠️ %s: no interlocutor query: %v", c.Email, err)
		return
	}
	data[entity.MetaInterlocutorQuery] = query

	results, err := uc.Search.Search(ctx, search.Query{Text: query, Page: 1})
	if err != nil || len(results) == 0 {
		log.Printf("[enrich] ⚠️ %s: no interlocutor (search %q: %d results, err: %v)", c.Email, query, len(results), err)
		return
	}

	encoded, _ := json.MarshalIndent(results, "", "  ")
	tokens["search_results"] = string(encoded)
	system, user = interlocutorSelectionPrompt.Render(tokens)
	raw, err := uc.Generator.Complete(ctx, system, user, interlocutorSelectionPrompt.Temperature, interlocutorSelectionPrompt.MaxTokens)
	if err != nil {
		log.Printf("[enrich] ⚠️ %s: no interlocutor: %v", c.Email, err)
		return
	}

	var picked Interlocutor
	if err := decodeModelJSON(interlocutorSelectionPrompt.Name, raw, &picked); err != nil {
		log.Printf("[enrich] ⚠️ %s: no interlocutor: %v", c.Email, err)
		return
	}
	if picked.Interlocutor == "" && picked.Company == "" {
		log.Printf("[enrich] ⚠️ %s: no interlocutor: empty selection", c.Email)
		return
	}
	data[entity.MetaInterlocutor] = picked.metadata()
}

// cleanAnswer trims whitespace and the quotes models like to wrap answers in.
func cleanAnswer(s string) string {
	s = strings.TrimSpace(s)
	s = strings.Trim(s, "\"“”«» ")
	return strings.TrimSpace(s)
}
