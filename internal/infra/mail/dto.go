package mail

import (
	"fmt"
	"net/mail"
	"strings"
)

// Message is one outbound email as accepted by every delivery provider.
type Message struct {
	From    string
	To      string
	Subject string
	Text    string
	HTML    string
}

type ValidationError struct {
	Field   string
	Message string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// Validate requires from, to, subject and at least one body.
func (m Message) Validate() []ValidationError {
	var errs []ValidationError

	if strings.TrimSpace(m.From) == "" {
		errs = append(errs, ValidationError{"from", "is required"})
	} else if _, err := mail.ParseAddress(m.From); err != nil {
		errs = append(errs, ValidationError{"from", "is invalid"})
	}

	if strings.TrimSpace(m.To) == "" {
		errs = append(errs, ValidationError{"to", "is required"})
	} else if _, err := mail.ParseAddress(m.To); err != nil {
		errs = append(errs, ValidationError{"to", "is invalid"})
	}

	if strings.TrimSpace(m.Subject) == "" {
		errs = append(errs, ValidationError{"subject", "is required"})
	}

	if strings.TrimSpace(m.Text) == "" && strings.TrimSpace(m.HTML) == "" {
		errs = append(errs, ValidationError{"body", "html or text is required"})
	}
	return errs
}

// Err folds Validate into a single error, nil when the message is complete.
func (m Message) Err() error {
	errs := m.Validate()
	if len(errs) == 0 {
		return nil
	}
	parts := make([]string, len(errs))
	for i, e := range errs {
		parts[i] = e.Error()
	}
	return fmt.Errorf("invalid message: %s", strings.Join(parts, "; "))
}
