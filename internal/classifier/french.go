package classifier

import (
	"regexp"
	"strings"
)

var (
	frenchAccents = regexp.MustCompile(`[àâäçéèêëîïôöùûüÿœæ]`)
	frenchDomain  = regexp.MustCompile(`\.fr\b`)
	// Matched on word boundaries, after lower-casing.
	frenchStopWords = regexp.MustCompile(`\b(le|la|les|des|du|de|un|une|et|pour|avec|sur|dans|vous|nous|rendez[- ]vous|appel|calendrier|réunion|rdv|bonjour|merci|entreprise|client|prestataire)\b`)
)

// IsFrench is the cheap language heuristic run before paid verification: one
// accented character, a .fr marker or one common French word is enough.
func IsFrench(text string) bool {
	t := strings.ToLower(text)
	if strings.TrimSpace(t) == "" {
		return false
	}
	if frenchAccents.MatchString(t) {
		return true
	}
	if frenchDomain.MatchString(t) {
		return true
	}
	return frenchStopWords.MatchString(t)
}

// LanguageGate classifies the title and description stored for a contact.
type LanguageGate struct {
	Passed bool
	Reason string
}

func CheckLanguage(title, description string) LanguageGate {
	parts := make([]string, 0, 2)
	for _, p := range []string{title, description} {
		if strings.TrimSpace(p) != "" {
			parts = append(parts, p)
		}
	}
	if IsFrench(strings.Join(parts, " ")) {
		return LanguageGate{Passed: true}
	}
	return LanguageGate{Passed: false, Reason: "non French"}
}
