package telegram

import (
	"encoding/json"
	"testing"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func decodeUpdate(t *testing.T, body string) *tgbotapi.Update {
	t.Helper()
	var update tgbotapi.Update
	require.NoError(t, json.Unmarshal([]byte(body), &update))
	return &update
}

func TestResolvePhotoPicksLastSize(t *testing.T) {
	t.Parallel()

	update := decodeUpdate(t, `{"message": {"chat": {"id": 42}, "photo": [{"file_id": "a"}, {"file_id": "b"}]}}`)
	photo, ok, err := ResolvePhoto(update)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, PhotoRef("b"), photo.Ref)
	assert.Equal(t, int64(42), photo.ChatID)
}

func TestResolvePhotoAnyNumberOfSizes(t *testing.T) {
	t.Parallel()

	for n := 1; n <= 5; n++ {
		sizes := make([]tgbotapi.PhotoSize, n)
		for i := range sizes {
			sizes[i] = tgbotapi.PhotoSize{FileID: string(rune('a' + i)), Width: 90 * (i + 1)}
		}
		update := &tgbotapi.Update{Message: &tgbotapi.Message{Chat: &tgbotapi.Chat{ID: 7}, Photo: sizes}}
		photo, ok, err := ResolvePhoto(update)
		require.NoError(t, err)
		require.True(t, ok)
		assert.Equal(t, PhotoRef(sizes[n-1].FileID), photo.Ref, "n=%d", n)
	}
}

func TestResolvePhotoAbsent(t *testing.T) {
	t.Parallel()

	cases := map[string]string{
		"no photo key":      `{"message": {"chat": {"id": 42}}}`,
		"empty photo":       `{"message": {"chat": {"id": 42}, "photo": []}}`,
		"no message":        `{"update_id": 5}`,
		"callback query":    `{"callback_query": {"id": "1", "data": "x"}}`,
		"text without chat": `{"message": {"text": "hi"}}`,
	}
	for name, body := range cases {
		body := body
		t.Run(name, func(t *testing.T) {
			t.Parallel()
			_, ok, err := ResolvePhoto(decodeUpdate(t, body))
			require.NoError(t, err)
			assert.False(t, ok)
		})
	}

	_, ok, err := ResolvePhoto(nil)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestResolvePhotoEditedMessage(t *testing.T) {
	t.Parallel()

	update := decodeUpdate(t, `{"edited_message": {"chat": {"id": -100}, "photo": [{"file_id": "small"}, {"file_id": "large"}]}}`)
	photo, ok, err := ResolvePhoto(update)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, PhotoRef("large"), photo.Ref)
	assert.Equal(t, int64(-100), photo.ChatID)
}

func TestResolvePhotoPrefersNewMessage(t *testing.T) {
	t.Parallel()

	update := decodeUpdate(t, `{
		"message": {"chat": {"id": 1}, "photo": [{"file_id": "new"}]},
		"edited_message": {"chat": {"id": 2}, "photo": [{"file_id": "edited"}]}
	}`)
	photo, ok, err := ResolvePhoto(update)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, PhotoRef("new"), photo.Ref)
}

func TestResolvePhotoSkipsEmptyMessage(t *testing.T) {
	t.Parallel()

	update := decodeUpdate(t, `{
		"message": {},
		"edited_message": {"chat": {"id": 2}, "photo": [{"file_id": "edited"}]}
	}`)
	assert.Same(t, update.EditedMessage, EventMessage(update))

	photo, ok, err := ResolvePhoto(update)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, PhotoRef("edited"), photo.Ref)
	assert.Equal(t, int64(2), photo.ChatID)

	assert.Nil(t, EventMessage(decodeUpdate(t, `{"message": {}}`)))
}

func TestResolvePhotoMissingChat(t *testing.T) {
	t.Parallel()

	_, ok, err := ResolvePhoto(decodeUpdate(t, `{"message": {"photo": [{"file_id": "a"}]}}`))
	assert.False(t, ok)
	assert.ErrorIs(t, err, ErrMalformedResponse)
}
