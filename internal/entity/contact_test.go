package entity

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewContact_NormalizesEmail(t *testing.T) {
	c, err := NewContact("  John.Doe@GMAIL.com ", "expert SEO", nil)
	require.NoError(t, err)

	assert.Equal(t, "john.doe@gmail.com", c.Email)
	assert.Equal(t, StatusNew, c.Status)
	assert.NotEmpty(t, c.ID)
	assert.NotNil(t, c.AdditionalData)
}

func TestNewContact_RejectsBadInput(t *testing.T) {
	_, err := NewContact(" ", "q", nil)
	assert.Error(t, err)

	_, err = NewContact("a@gmail.com", "q", AdditionalData{"tags": []string{"x"}})
	assert.ErrorContains(t, err, "additional_data.tags")
}

func TestAdditionalData_MergeKeepsEarlierKeys(t *testing.T) {
	base := AdditionalData{MetaTitle: "Consultant", MetaURL: "https://a.fr"}
	merged := base.Merge(AdditionalData{MetaPersona: "p", MetaURL: "https://b.fr"})

	assert.Equal(t, "Consultant", merged.String(MetaTitle))
	assert.Equal(t, "https://b.fr", merged.String(MetaURL))
	assert.Equal(t, "p", merged.String(MetaPersona))
	assert.Equal(t, "https://a.fr", base.String(MetaURL), "receiver is not mutated")
}

func TestAdditionalData_ValidateNested(t *testing.T) {
	ok := AdditionalData{MetaInterlocutor: map[string]any{"company": "Acme", "score": 0.8}}
	assert.NoError(t, ok.Validate())

	bad := AdditionalData{MetaInterlocutor: map[string]any{"names": []any{"a"}}}
	assert.ErrorContains(t, bad.Validate(), "additional_data.interlocutor.names")
}

func TestContact_Transition(t *testing.T) {
	c, err := NewContact("a@gmail.com", "q", nil)
	require.NoError(t, err)

	require.NoError(t, c.Transition(StageVerify, StatusVerified))
	assert.Equal(t, StatusVerified, c.Status)

	err = c.Transition(StageDispatch, StatusProcessed)
	assert.True(t, IsIllegalTransition(err))
	assert.Equal(t, StatusVerified, c.Status)
}

func TestStatusUpdate_Check(t *testing.T) {
	u := StatusUpdate{Stage: StageDraft, From: StatusEnriched, To: StatusReady}
	assert.NoError(t, u.Check())

	u.To = StatusProcessed
	assert.True(t, IsIllegalTransition(u.Check()))
}
