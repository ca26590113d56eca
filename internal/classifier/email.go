package classifier

import (
	"regexp"
	"strings"
)

var (
	emailPattern = regexp.MustCompile(`[a-zA-Z0-9._%+-]+@[a-zA-Z0-9.-]+\.[a-zA-Z]{2,}`)

	mediaExtension = regexp.MustCompile(`(?i)\.(avif|jpeg|jpg|png|gif|webp|svg|bmp|tiff|ico|mp4|webm|mov|avi|mp3|wav|flac|pdf)$`)

	// Placeholder, service and aggregator addresses that never reach a person.
	placeholderPattern = regexp.MustCompile(`(?i)noreply|no-reply|exemple|example|test|mydomain|mywebsite|mycompany|myorg|company|email|website|business|yourcompany|yourorg|yourbusiness|youremail|monemail|domain|zoominfo|partial-match|full-match|aplitrak\.com|makesense\.org|officeteam|shopify\.com|talent\.com|sentry\.io|abuse`)
)

// NormalizeEmail lower-cases and trims an address.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// IsMediaFile reports whether the token is a file name that merely looks like an address
// (e.g. "logo@2x.png").
func IsMediaFile(email string) bool {
	return mediaExtension.MatchString(strings.TrimSpace(email))
}

func IsPlaceholder(email string) bool {
	return placeholderPattern.MatchString(email)
}

// Rejection explains why an extracted token was dropped. Empty means kept.
func Rejection(email string) string {
	switch {
	case IsMediaFile(email):
		return "media file"
	case IsPlaceholder(email):
		return "placeholder address"
	default:
		return ""
	}
}

// ExtractEmails returns the normalized, de-duplicated addresses found in fields,
// in order of first appearance, with media names and placeholders removed.
func ExtractEmails(fields ...string) []string {
	seen := make(map[string]struct{})
	var out []string
	for _, match := range emailPattern.FindAllString(strings.Join(fields, " "), -1) {
		email := NormalizeEmail(match)
		if Rejection(email) != "" {
			continue
		}
		if _, dup := seen[email]; dup {
			continue
		}
		seen[email] = struct{}{}
		out = append(out, email)
	}
	return out
}
