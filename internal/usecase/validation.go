package usecase

import (
	"fmt"
	"strings"

	"github.com/xavierca1/prospect-agent/internal/config"
	"github.com/xavierca1/prospect-agent/internal/entity"
)

type ValidationError struct {
	Field   string
	Message string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// RunRequest is a stage run as requested by an operator, before parsing.
type RunRequest struct {
	Stage string `json:"-"`
	// Limit is a non-negative integer or "*"; empty keeps the configured limit.
	Limit string `json:"limit"`
}

// ValidateRunRequest checks the stage name and limit and builds the run input.
func ValidateRunRequest(req RunRequest) (entity.Stage, RunInput, []ValidationError) {
	var errors []ValidationError

	stage, err := entity.ParseStage(strings.TrimSpace(req.Stage))
	if strings.TrimSpace(req.Stage) == "" {
		errors = append(errors, ValidationError{"stage", "is required"})
	} else if err != nil {
		errors = append(errors, ValidationError{"stage", fmt.Sprintf("must be one of %s", stageNames())})
	}

	in, limitErrs := ValidateRunLimit(req.Limit)
	errors = append(errors, limitErrs...)

	return stage, in, errors
}

// ValidateRunLimit parses an optional limit override for one or all stages.
func ValidateRunLimit(raw string) (RunInput, []ValidationError) {
	var in RunInput
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return in, nil
	}
	limit, err := config.ParseLimit(raw)
	if err != nil {
		return in, []ValidationError{{"limit", `must be a non-negative integer or "*"`}}
	}
	in.Limit = &limit
	return in, nil
}

func stageNames() string {
	names := make([]string, 0, len(entity.Stages())+1)
	for _, s := range append(entity.Stages(), entity.StageReclaim) {
		names = append(names, string(s))
	}
	return strings.Join(names, ", ")
}
