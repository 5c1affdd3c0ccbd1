package telegram

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSendMessage(t *testing.T) {
	var gotPath string
	var gotBody map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotBody))
		_, _ = w.Write([]byte(`{"ok":true,"result":{"message_id":314}}`))
	}))
	defer srv.Close()

	c, err := NewClient("token123", WithAPIBase(srv.URL))
	require.NoError(t, err)

	id, err := c.SendMessage(context.Background(), -100500, "🏡 *Новый вариант!*")
	require.NoError(t, err)
	assert.Equal(t, int64(314), id)
	assert.Equal(t, "/bottoken123/sendMessage", gotPath)
	assert.Equal(t, "-100500", gotBody["chat_id"])
	assert.Equal(t, "Markdown", gotBody["parse_mode"])
}

func TestSendMessageAPIError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"ok":false,"error_code":403,"description":"Forbidden: bot was blocked"}`))
	}))
	defer srv.Close()

	c, err := NewClient("t", WithAPIBase(srv.URL))
	require.NoError(t, err)

	_, err = c.SendMessage(context.Background(), 1, "x")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "403")
	assert.Contains(t, err.Error(), "Forbidden")
}

func TestGetUpdatesRequestsReactions(t *testing.T) {
	var gotBody map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotBody))
		_, _ = w.Write([]byte(`{"ok":true,"result":[
			{"update_id":10,"message":{"message_id":1,"chat":{"id":5},"text":"/start"}},
			{"update_id":11,"message_reaction":{"chat":{"id":5},"message_id":314,
				"old_reaction":[],"new_reaction":[{"type":"emoji","emoji":"❤️"}]}}
		]}`))
	}))
	defer srv.Close()

	c, err := NewClient("t", WithAPIBase(srv.URL))
	require.NoError(t, err)

	updates, err := c.GetUpdates(context.Background(), 10, 30)
	require.NoError(t, err)
	require.Len(t, updates, 2)

	assert.ElementsMatch(t, []any{"message", "message_reaction"}, gotBody["allowed_updates"])
	assert.Equal(t, float64(10), gotBody["offset"])

	require.NotNil(t, updates[0].Message)
	assert.Equal(t, "/start", updates[0].Message.Text)
	require.NotNil(t, updates[1].MessageReaction)
	assert.Equal(t, int64(314), updates[1].MessageReaction.MessageID)
}

func TestAddedEmojis(t *testing.T) {
	r := MessageReactionUpdated{
		OldReaction: []ReactionType{{Type: "emoji", Emoji: "❤️"}},
		NewReaction: []ReactionType{
			{Type: "emoji", Emoji: "❤️"},
			{Type: "emoji", Emoji: "💩"},
			{Type: "emoji", Emoji: "👍"},
			{Type: "custom_emoji"},
		},
	}
	assert.Equal(t, []string{"💩"}, r.AddedEmojis())

	empty := MessageReactionUpdated{
		OldReaction: []ReactionType{{Type: "emoji", Emoji: "💩"}},
		NewReaction: []ReactionType{},
	}
	assert.Empty(t, empty.AddedEmojis())
}

func TestNewClientRequiresToken(t *testing.T) {
	_, err := NewClient("")
	require.Error(t, err)
}
