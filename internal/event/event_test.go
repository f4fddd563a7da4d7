package event

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"chat-core/internal/domain"
)

func TestEncodeDecode_MessageReceived(t *testing.T) {
	payload := MessageReceived{
		MessageID:    42,
		ChannelID:    7,
		AuthorID:     1,
		AuthorName:   "Ann",
		AuthorStatus: domain.StatusOnline,
		Content:      "hello",
		Attachments:  []AttachmentInfo{{ID: 9, FileName: "a.png", FileURL: "u", FileSize: 100}},
		CreatedAt:    time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC),
	}

	raw, err := Encode(payload)
	require.NoError(t, err)

	decoded, err := Decode(raw)
	require.NoError(t, err)

	got, ok := decoded.(*MessageReceived)
	require.True(t, ok)
	assert.Equal(t, payload.MessageID, got.MessageID)
	assert.Equal(t, payload.Content, got.Content)
	require.Len(t, got.Attachments, 1)
	assert.Equal(t, "a.png", got.Attachments[0].FileName)
	assert.True(t, payload.CreatedAt.Equal(got.CreatedAt))
}

func TestEncodeDecode_StatusAndTyping(t *testing.T) {
	for _, payload := range []Payload{
		UserStatusChanged{UserID: 3, Status: domain.StatusAway},
		UserTyping{ChannelID: 7, UserID: 3, IsTyping: true},
		RemovedFromWorkspace{WorkspaceID: 11},
	} {
		raw, err := Encode(payload)
		require.NoError(t, err)

		decoded, err := Decode(raw)
		require.NoError(t, err)
		assert.Equal(t, payload.EventType(), decoded.EventType())
	}
}

func TestDecode_UnknownType(t *testing.T) {
	_, err := Decode([]byte(`{"type":"SOMETHING_ELSE","data":{}}`))
	assert.Error(t, err)
}

func TestDecode_MalformedEnvelope(t *testing.T) {
	_, err := Decode([]byte(`not json`))
	assert.Error(t, err)
}
