package classifier

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestExtractEmailsNormalizesCase(t *testing.T) {
	got := ExtractEmails("Contact: John.Doe@GMAIL.com", "snippet", "https://example.org")
	assert.Equal(t, []string{"john.doe@gmail.com"}, got)
}

func TestExtractEmailsDropsMediaAndPlaceholders(t *testing.T) {
	got := ExtractEmails(
		"logo@2x.png jean.dupont@gmail.com noreply@site.fr",
		"Jean.Dupont@gmail.com contact@yourcompany.com",
	)
	assert.Equal(t, []string{"jean.dupont@gmail.com"}, got)
}

func TestRejection(t *testing.T) {
	cases := map[string]string{
		"photo@banner.jpg":      "media file",
		"no-reply@service.io":   "placeholder address",
		"alerts@sentry.io":      "placeholder address",
		"marie.durand@free.fr":  "",
		"paul.martin@orange.fr": "",
	}
	for email, want := range cases {
		t.Run(email, func(t *testing.T) {
			assert.Equal(t, want, Rejection(email))
		})
	}
}

func TestIsFrench(t *testing.T) {
	t.Run("accent", func(t *testing.T) {
		assert.True(t, IsFrench("Consultant indépendant"))
	})
	t.Run("fr domain", func(t *testing.T) {
		assert.True(t, IsFrench("see www.agence.fr for details"))
	})
	t.Run("stop word", func(t *testing.T) {
		assert.True(t, IsFrench("Expert SEO pour PME"))
	})
	t.Run("english", func(t *testing.T) {
		assert.False(t, IsFrench("Freelance SEO expert based in London"))
	})
	t.Run("empty", func(t *testing.T) {
		assert.False(t, IsFrench("   "))
	})
}

func TestCheckLanguage(t *testing.T) {
	gate := CheckLanguage("Web designer", "Portfolio and contact")
	assert.False(t, gate.Passed)
	assert.Equal(t, "non French", gate.Reason)

	gate = CheckLanguage("Rédacteur web", "")
	assert.True(t, gate.Passed)
	assert.Empty(t, gate.Reason)
}
