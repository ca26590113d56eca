package usecase

import (
	"encoding/json"
	"fmt"
	"log"
	"strings"
)

// decodeModelJSON parses a model answer in two phases: a strict parse of the
// answer with markdown fences and surrounding prose removed, then one retry
// after escapeControlChars. The repair pass is logged and counted.
func decodeModelJSON(prompt, raw string, out any) error {
	cleaned := stripJSONNoise(raw)
	if cleaned == "" {
		return fmt.Errorf("%s: no JSON object in model output", prompt)
	}

	strictErr := json.Unmarshal([]byte(cleaned), out)
	if strictErr == nil {
		return nil
	}

	repaired := escapeControlChars(cleaned)
	if repaired == cleaned {
		jsonRepairs.WithLabelValues(prompt, "not_applicable").Inc()
		return fmt.Errorf("%s: invalid JSON: %w", prompt, strictErr)
	}

	if err := json.Unmarshal([]byte(repaired), out); err != nil {
		jsonRepairs.WithLabelValues(prompt, "failed").Inc()
		log.Printf("[json-repair] %s: repair did not help: %v", prompt, err)
		return fmt.Errorf("%s: invalid JSON after repair: %w", prompt, err)
	}

	jsonRepairs.WithLabelValues(prompt, "repaired").Inc()
	log.Printf("[json-repair] %s: raw control characters escaped (strict parse failed: %v)", prompt, strictErr)
	return nil
}

// stripJSONNoise drops ```json fences and anything outside the outermost braces.
func stripJSONNoise(raw string) string {
	s := strings.TrimSpace(raw)
	if strings.HasPrefix(s, "```") {
		s = strings.TrimPrefix(s, "```")
		s = strings.TrimPrefix(s, "json")
		s = strings.TrimPrefix(s, "JSON")
		s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	}
	start := strings.Index(s, "{")
	end := strings.LastIndex(s, "}")
	if start < 0 || end < start {
		return ""
	}
	return s[start : end+1]
}

// escapeControlChars re-escapes raw control characters found inside JSON
// string literals. Existing escape sequences and string boundaries are kept;
// bytes outside strings are copied unchanged.
func escapeControlChars(s string) string {
	var b strings.Builder
	b.Grow(len(s) + 16)

	inString := false
	escaped := false
	for i := 0; i < len(s); i++ {
		c := s[i]

		if !inString {
			if c == '"' {
				inString = true
			}
			b.WriteByte(c)
			continue
		}

		if escaped {
			escaped = false
			b.WriteByte(c)
			continue
		}

		switch {
		case c == '\\':
			escaped = true
			b.WriteByte(c)
		case c == '"':
			inString = false
			b.WriteByte(c)
		case c == '\n':
			b.WriteString(`\n`)
		case c == '\r':
			b.WriteString(`\r`)
		case c == '\t':
			b.WriteString(`\t`)
		case c < 0x20 || c == 0x7f:
			fmt.Fprintf(&b, `\u%04x`, c)
		default:
			b.WriteByte(c)
		}
	}
	return b.String()
}
