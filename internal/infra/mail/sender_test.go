package mail

import (
	"bytes"
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"gopkg.in/gomail.v2"
)

type MockDialer struct {
	mock.Mock
}

func (m *MockDialer) DialAndSend(msgs ...*gomail.Message) error {
	args := m.Called(msgs)
	return args.Error(0)
}

func TestMessage_Validate(t *testing.T) {
	ok := Message{From: "Jane <jane.doe@acme.fr>", To: "a@gmail.com", Subject: "Hi", Text: "body"}
	assert.Empty(t, ok.Validate())
	assert.NoError(t, ok.Err())

	missing := Message{To: "not-an-address"}
	errs := missing.Validate()
	fields := make([]string, 0, len(errs))
	for _, e := range errs {
		fields = append(fields, e.Field)
	}
	assert.ElementsMatch(t, []string{"from", "to", "subject", "body"}, fields)
	assert.Error(t, missing.Err())
}

func TestEmailSender_Send(t *testing.T) {
	d := new(MockDialer)
	s := NewEmailSender("smtp.example.com", 587, "u", "p", nil)
	s.dialer = d

	var sent *gomail.Message
	d.On("DialAndSend", mock.Anything).Run(func(args mock.Arguments) {
		sent = args.Get(0).([]*gomail.Message)[0]
	}).Return(nil).Once()

	_, err := s.Send(context.Background(), Message{
		From: "Jane <jane@acme.fr>", To: "a@gmail.com", Subject: "Hello", Text: "plain", HTML: "<p>plain</p>",
	})
	require.NoError(t, err)
	require.NotNil(t, sent)
	assert.Equal(t, []string{"Hello"}, sent.GetHeader("Subject"))

	var buf bytes.Buffer
	_, err = sent.WriteTo(&buf)
	require.NoError(t, err)
	assert.Contains(t, buf.String(), "text/html")
	d.AssertExpectations(t)
}

func TestEmailSender_SendFailure(t *testing.T) {
	d := new(MockDialer)
	s := NewEmailSender("smtp.example.com", 587, "u", "p", nil)
	s.dialer = d
	d.On("DialAndSend", mock.Anything).Return(errors.New("535 auth failed"))

	_, err := s.Send(context.Background(), Message{From: "a@acme.fr", To: "b@gmail.com", Subject: "s", Text: "t"})
	assert.ErrorContains(t, err, "535 auth failed")
}

func TestEmailSender_ListVerifiedDomains(t *testing.T) {
	s := NewEmailSender("h", 25, "", "", []string{"@Acme.fr", " mail.acme.fr ", ""})
	domains, err := s.ListVerifiedDomains(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"acme.fr", "mail.acme.fr"}, domains)
}
