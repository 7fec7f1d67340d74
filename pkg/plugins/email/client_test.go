package email

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClient_NotInitialized(t *testing.T) {
	c := NewClient(settings{})
	_, err := c.Send(context.Background(), SendOptions{To: []string{"a@b.c"}})
	assert.EqualError(t, err, "Email service is not initialized for sending emails")
	assert.EqualError(t, c.Receive(func(Mail) {}), "Email service is not initialized for receiving emails")
	assert.False(t, c.CanSend())
}

func TestClient_InitializeOutgoingOnly(t *testing.T) {
	f := newFakeSMTP(t)
	c := NewClient(settings{
		"EMAIL_OUTGOING_SERVICE": "smtp",
		"EMAIL_OUTGOING_HOST":    "127.0.0.1",
		"EMAIL_OUTGOING_PORT":    itoa(f.port()),
		"EMAIL_OUTGOING_USER":    "bot@example.com",
		"EMAIL_OUTGOING_PASS":    "secret",
	})
	require.NoError(t, c.Initialize(context.Background()))
	require.NoError(t, c.Initialize(context.Background()), "second call is a no-op")
	assert.True(t, c.CanSend())

	resp, err := c.Send(context.Background(), SendOptions{To: []string{"ada@example.com"}, Subject: "s", Text: "t"})
	require.NoError(t, err)
	assert.Equal(t, []string{"ada@example.com"}, resp.Accepted)

	assert.ErrorIs(t, c.Receive(func(Mail) {}), ErrReceiveNotInitialized)
	c.Stop()
}

func TestClient_InitializeRejectsInvalidConfig(t *testing.T) {
	c := NewClient(settings{"EMAIL_OUTGOING_SERVICE": "smtp"})
	assert.ErrorIs(t, c.Initialize(context.Background()), ErrInvalidConfig)
	assert.False(t, c.CanSend())
}
