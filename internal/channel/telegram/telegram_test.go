// ABOUTME: Tests for the Telegram channel helpers
// ABOUTME: Covers contact id parsing and message normalization

package telegram

import (
	"testing"

	"github.com/mymmrac/telego"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseContactID(t *testing.T) {
	id, err := parseContactID("123456789")
	require.NoError(t, err)
	assert.Equal(t, int64(123456789), id)

	id, err = parseContactID("-100200300")
	require.NoError(t, err)
	assert.Equal(t, int64(-100200300), id)

	_, err = parseContactID("not-a-number")
	assert.Error(t, err)
}

func TestExtractText_FallsBackToCaption(t *testing.T) {
	assert.Equal(t, "hola", extractText(&telego.Message{Text: "hola"}))
	assert.Equal(t, "foto", extractText(&telego.Message{Caption: "foto"}))
	assert.Equal(t, "", extractText(&telego.Message{}))
}

func TestHasMedia(t *testing.T) {
	assert.False(t, hasMedia(&telego.Message{Text: "hola"}))
	assert.True(t, hasMedia(&telego.Message{Document: &telego.Document{}}))
	assert.True(t, hasMedia(&telego.Message{Voice: &telego.Voice{}}))
	assert.True(t, hasMedia(&telego.Message{Photo: []telego.PhotoSize{{}}}))
}
