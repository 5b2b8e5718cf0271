package notify

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewSendGridSenderRequiresKey(t *testing.T) {
	sender := NewSendGridSender(SendGridConfig{}, nil)
	assert.Nil(t, sender)
}

func TestNewSendGridSenderDefaults(t *testing.T) {
	sender := NewSendGridSender(SendGridConfig{
		APIKey:    "SG.test",
		FromEmail: "no-reply@therapistbooster.com",
	}, nil)
	require.NotNil(t, sender)
	assert.Equal(t, "TherapistBooster", sender.fromName)
}

func TestStubSenderNeverFails(t *testing.T) {
	sender := NewStubEmailSender(nil)
	err := sender.Send(context.Background(), EmailMessage{
		To:      "sam@example.com",
		Subject: "Your session is confirmed",
		Body:    "See you soon.",
	})
	assert.NoError(t, err)
}
