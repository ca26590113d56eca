package usecase

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"strings"

	"github.com/google/uuid"
	"github.com/xavierca1/prospect-agent/internal/classifier"
	"github.com/xavierca1/prospect-agent/internal/config"
	"github.com/xavierca1/prospect-agent/internal/entity"
	"github.com/xavierca1/prospect-agent/internal/infra/integration/millionverifier"
)

const verifyChunkSize = 5

// Rejection notes, one per gate.
const (
	NoteNonFrench    = "non French"
	NoteUndelivered  = "invalid/unverified email"
	NoteNotAProspect = "not a prospect"
)

type VerifyOptions struct {
	Limit           config.Limit
	InterestGate    bool
	IncludeRejected bool
}

type VerifyUseCase struct {
	Contacts  entity.ContactRepositoryInterface
	Oracle    DeliverabilityOracle
	Generator Generator
	Events    StatusPublisher
	Opts      VerifyOptions
}

func NewVerifyUseCase(contacts entity.ContactRepositoryInterface, oracle DeliverabilityOracle, gen Generator, events StatusPublisher, opts VerifyOptions) *VerifyUseCase {
	return &VerifyUseCase{Contacts: contacts, Oracle: oracle, Generator: gen, Events: events, Opts: opts}
}

func (uc *VerifyUseCase) Stage() entity.Stage { return entity.StageVerify }

func (uc *VerifyUseCase) Execute(ctx context.Context, in RunInput) (*Summary, error) {
	limit := in.limit(uc.Opts.Limit)
	summary := newSummary(entity.StageVerify, uuid.NewString(), limit)
	defer summary.finish()

	if uc.Oracle == nil {
		return summary, &ConfigError{Message: "no deliverability oracle configured"}
	}
	if uc.Opts.InterestGate && uc.Generator == nil {
		return summary, &ConfigError{Message: "interest gate enabled without a generation backend"}
	}

	if zeroLimit(uc.Stage(), limit) {
		return summary, nil
	}

	statuses := []entity.Status{entity.StatusNew}
	if uc.Opts.IncludeRejected {
		statuses = append(statuses, entity.StatusRejected)
	}
	contacts, err := uc.Contacts.Find(ctx, entity.ContactQuery{Statuses: statuses, Limit: limit.Int(), Ascending: true})
	if err != nil {
		return summary, fmt.Errorf("select contacts to verify: %w", err)
	}
	summary.Selected = len(contacts)
	log.Printf("[verify] contacts to verify: %d (limit: %s, interest gate: %t)", len(contacts), limit, uc.Opts.InterestGate)

	for start := 0; start < len(contacts); start += verifyChunkSize {
		end := min(start+verifyChunkSize, len(contacts))
		if err := uc.verifyChunk(ctx, contacts[start:end], start, len(contacts), summary); err != nil {
			summary.Aborted = err.Error()
			return summary, err
		}
	}
	return summary, nil
}

// verifyChunk runs the language gate, checks the survivors with the oracle in
// one batch, then finishes every contact in its original order.
func (uc *VerifyUseCase) verifyChunk(ctx context.Context, chunk []*entity.Contact, offset, total int, summary *Summary) error {
	gates := make([]classifier.LanguageGate, len(chunk))
	var survivors []string
	var survivorIdx []int
	for i, c := range chunk {
		gates[i] = classifier.CheckLanguage(c.AdditionalData.String(entity.MetaTitle), c.AdditionalData.String(entity.MetaDescription))
		if gates[i].Passed {
			survivors = append(survivors, c.Email)
			survivorIdx = append(survivorIdx, i)
		}
	}

	verdicts := make([]*millionverifier.Verdict, len(chunk))
	if len(survivors) > 0 {
		checked := uc.Oracle.CheckAll(ctx, survivors)
		for j, idx := range survivorIdx {
			v := checked[j]
			verdicts[idx] = &v
		}
	}

	for i, c := range chunk {
		if err := ctx.Err(); err != nil {
			return err
		}
		progress := fmt.Sprintf("[%d/%d]", offset+i+1, total)

		to, note, err := uc.decide(ctx, c, gates[i], verdicts[i])
		if err != nil {
			log.Printf("[verify] %s ❌ %s: %v", progress, c.Email, err)
			summary.Errors++
			contactErrors.WithLabelValues(string(entity.StageVerify)).Inc()
			continue
		}

		patch := entity.ContactPatch{}
		if note != "" {
			patch.Note = strPtr(note)
		}
		if _, err := moveContact(ctx, uc.Contacts, uc.Events, summary.RunID, c, entity.StageVerify, to, patch); err != nil {
			log.Printf("[verify] %s ❌ %s: %v", progress, c.Email, err)
			summary.Errors++
			contactErrors.WithLabelValues(string(entity.StageVerify)).Inc()
			continue
		}

		if to == entity.StatusRejected {
			summary.Rejected++
			summary.reason(gateOf(note))
			log.Printf("[verify] %s %s rejected: %s", progress, c.Email, note)
		} else {
			summary.Processed++
			log.Printf("[verify] %s %s verified", progress, c.Email)
		}
	}
	return nil
}

// decide applies the gates in order and stops at the first failure.
func (uc *VerifyUseCase) decide(ctx context.Context, c *entity.Contact, lang classifier.LanguageGate, verdict *millionverifier.Verdict) (entity.Status, string, error) {
	if !lang.Passed {
		return entity.StatusRejected, NoteNonFrench, nil
	}

	if verdict == nil {
		return "", "", fmt.Errorf("no deliverability verdict")
	}
	if verdict.Err != nil {
		return "", "", &TechnicalError{Code: "oracle", Message: "deliverability check failed", Err: verdict.Err}
	}
	if !verdict.Valid {
		return entity.StatusRejected, fmt.Sprintf("%s (%s)", NoteUndelivered, verdict.Result), nil
	}

	if uc.Opts.InterestGate {
		system, user := interestPrompt.Render(map[string]string{"contact_informations": contactSnapshot(c)})
		answer, err := uc.Generator.Complete(ctx, system, user, interestPrompt.Temperature, interestPrompt.MaxTokens)
		if err != nil {
			return "", "", &TechnicalError{Code: "generation", Message: "interest classification failed", Err: err}
		}
		interested, reason, err := parseInterest(answer)
		if err != nil {
			return "", "", err
		}
		if !interested {
			return entity.StatusRejected, NoteNotAProspect + ": " + reason, nil
		}
	}

	return entity.StatusVerified, "", nil
}

// parseInterest accepts exactly "true" or "false: <reason>", tolerating case,
// surrounding quotes and a trailing period.
func parseInterest(answer string) (bool, string, error) {
	s := strings.TrimSpace(answer)
	s = strings.Trim(s, "\"'` ")
	lower := strings.ToLower(s)

	if strings.TrimSuffix(lower, ".") == "true" {
		return true, "", nil
	}
	if strings.HasPrefix(lower, "false") {
		reason := strings.TrimSpace(s[len("false"):])
		reason = strings.TrimSpace(strings.TrimPrefix(reason, ":"))
		if reason == "" {
			reason = "no reason given"
		}
		return false, reason, nil
	}
	return false, "", &DomainError{Code: "unparseable_interest", Message: fmt.Sprintf("unparseable interest answer %q", answer)}
}

// gateOf maps a rejection note back to the gate that produced it.
func gateOf(note string) string {
	switch {
	case note == NoteNonFrench:
		return NoteNonFrench
	case strings.HasPrefix(note, NoteUndelivered):
		return NoteUndelivered
	case strings.HasPrefix(note, NoteNotAProspect):
		return NoteNotAProspect
	default:
		return note
	}
}

// contactSnapshot is the metadata block fed to the prompts.
func contactSnapshot(c *entity.Contact) string {
	url := c.AdditionalData.String(entity.MetaWeb)
	if url == "" {
		url = c.AdditionalData.String(entity.MetaURL)
	}
	snapshot := struct {
		Email       string `json:"email"`
		SourceQuery string `json:"source_query"`
		Title       string `json:"title"`
		Description string `json:"description"`
		URL         string `json:"url"`
	}{
		Email:       c.Email,
		SourceQuery: c.SourceQuery,
		Title:       c.AdditionalData.String(entity.MetaTitle),
		Description: c.AdditionalData.String(entity.MetaDescription),
		URL:         url,
	}
	b, _ := json.MarshalIndent(snapshot, "", "  ")
	return string(b)
}
