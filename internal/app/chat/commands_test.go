package chat

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"rentspot/internal/infra/validation"
)

func TestSendMessageCommandImageIsOpaque(t *testing.T) {
	v := validation.New()
	cmd := SendMessageCommand{SenderID: "alice", ReceiverID: "bob", AdID: "ad1"}

	for _, image := range []string{"", "/api/uploads/abc.jpg", "uploads/abc.jpg", "https://cdn.example.com/y.jpg"} {
		cmd.Image = image
		assert.NoError(t, v.Validate(context.Background(), cmd), image)
	}

	cmd.Image = "/uploads/" + strings.Repeat("a", 512)
	err := v.Validate(context.Background(), cmd)
	require.Error(t, err)
	assert.ErrorIs(t, err, validation.ErrInvalidInput)
}
