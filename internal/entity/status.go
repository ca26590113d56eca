package entity

import "fmt"

// Status is the single source of truth for a contact's pipeline position.
type Status string

const (
	StatusNew        Status = "new"
	StatusVerified   Status = "verified"
	StatusEnriched   Status = "enriched"
	StatusReady      Status = "ready"
	StatusProcessing Status = "processing"
	StatusProcessed  Status = "processed"
	StatusRejected   Status = "rejected"
	StatusError      Status = "error"
)

var allStatuses = []Status{
	StatusNew, StatusVerified, StatusEnriched, StatusReady,
	StatusProcessing, StatusProcessed, StatusRejected, StatusError,
}

// AllStatuses returns every status in pipeline order.
func AllStatuses() []Status {
	out := make([]Status, len(allStatuses))
	copy(out, allStatuses)
	return out
}

func (s Status) Valid() bool {
	for _, v := range allStatuses {
		if v == s {
			return true
		}
	}
	return false
}

// Terminal statuses are never left by any stage.
func (s Status) Terminal() bool {
	return s == StatusProcessed || s == StatusRejected
}

// Stage identifies the pipeline phase performing a transition.
type Stage string

const (
	StageDiscover Stage = "discover"
	StageVerify   Stage = "verify"
	StageEnrich   Stage = "enrich"
	StageDraft    Stage = "draft"
	StageDispatch Stage = "dispatch"
	StageReclaim  Stage = "reclaim"
)

// Stages returns the runnable stages in pipeline order.
func Stages() []Stage {
	return []Stage{StageDiscover, StageVerify, StageEnrich, StageDraft, StageDispatch}
}

func ParseStage(s string) (Stage, error) {
	for _, st := range append(Stages(), StageReclaim) {
		if string(st) == s {
			return st, nil
		}
	}
	return "", fmt.Errorf("unknown stage %q", s)
}

// Transition is (stage, from) -> to.
type Transition struct {
	Stage Stage
	From  Status
	To    Status
}

// transitionTable lists every legal status change. Anything absent is rejected
// by Contact.Transition and by the repositories' compare-and-set updates.
var transitionTable = buildTransitionTable([]Transition{
	{StageVerify, StatusNew, StatusVerified},
	{StageVerify, StatusNew, StatusRejected},
	{StageVerify, StatusRejected, StatusVerified},
	{StageVerify, StatusRejected, StatusRejected},

	{StageEnrich, StatusVerified, StatusEnriched},
	{StageEnrich, StatusNew, StatusEnriched},

	{StageDraft, StatusEnriched, StatusReady},

	{StageDispatch, StatusReady, StatusProcessing},
	{StageDispatch, StatusReady, StatusEnriched},
	{StageDispatch, StatusReady, StatusError},
	{StageDispatch, StatusError, StatusProcessing},
	{StageDispatch, StatusError, StatusEnriched},
	{StageDispatch, StatusError, StatusError},
	{StageDispatch, StatusProcessing, StatusProcessed},
	{StageDispatch, StatusProcessing, StatusError},

	{StageReclaim, StatusProcessing, StatusReady},
})

func buildTransitionTable(ts []Transition) map[Transition]struct{} {
	table := make(map[Transition]struct{}, len(ts))
	for _, t := range ts {
		if !t.From.Valid() || !t.To.Valid() {
			panic(fmt.Sprintf("entity: invalid status in transition %+v", t))
		}
		if t.From.Terminal() && t.From != StatusRejected {
			panic(fmt.Sprintf("entity: transition leaves terminal status %+v", t))
		}
		table[t] = struct{}{}
	}
	return table
}

// CanTransition reports whether stage may move a contact from -> to.
func CanTransition(stage Stage, from, to Status) bool {
	_, ok := transitionTable[Transition{Stage: stage, From: from, To: to}]
	return ok
}

// SourcesFor returns the statuses stage may move into to.
func SourcesFor(stage Stage, to Status) []Status {
	var out []Status
	for _, from := range allStatuses {
		if CanTransition(stage, from, to) {
			out = append(out, from)
		}
	}
	return out
}
