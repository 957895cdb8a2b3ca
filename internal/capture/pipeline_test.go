// internal/capture/pipeline_test.go
package capture

import (
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"discord-ticket-bot/internal/database"
	"discord-ticket-bot/internal/media"
	"discord-ticket-bot/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testPipeline(t *testing.T) (*Pipeline, *database.DB) {
	t.Helper()
	dir := t.TempDir()
	db, err := database.NewDB(filepath.Join(dir, "bot.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return NewPipeline(db, media.NewFetcher(filepath.Join(dir, "media"))), db
}

func incoming(messageID string) *IncomingMessage {
	return &IncomingMessage{
		MessageID: messageID,
		ChannelID: "c1",
		GuildID:   "g1",
		UserID:    "u1",
		Username:  "alice",
		Content:   "hello there",
		Timestamp: time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC),
	}
}

func TestRecordStoresMessage(t *testing.T) {
	pipeline, db := testPipeline(t)

	require.NoError(t, pipeline.Record(incoming("m1")))

	messages, err := db.GetChannelMessages("c1")
	require.NoError(t, err)
	require.Len(t, messages, 1)
	assert.Equal(t, "alice", messages[0].Username)
	assert.Equal(t, "hello there", messages[0].Content)
	assert.False(t, messages[0].HasAttachments)
	assert.False(t, messages[0].HasEmbeds)
}

func TestRecordDeduplicates(t *testing.T) {
	pipeline, db := testPipeline(t)

	msg := incoming("m1")
	require.NoError(t, pipeline.Record(msg))

	msg.Content = "edited content must not overwrite"
	require.NoError(t, pipeline.Record(msg))

	messages, err := db.GetChannelMessages("c1")
	require.NoError(t, err)
	require.Len(t, messages, 1)
	assert.Equal(t, "hello there", messages[0].Content)
}

func TestRecordMaterializesTicketRow(t *testing.T) {
	pipeline, db := testPipeline(t)

	require.NoError(t, pipeline.Record(incoming("m1")))

	channel, err := db.GetPrivateChannel("c1")
	require.NoError(t, err)
	require.NotNil(t, channel, "capture must create the ticket row for an untracked channel")
	assert.Equal(t, "g1", channel.GuildID)
	assert.Equal(t, "u1", channel.UserID)

	setup, err := db.GetGuildSetup("g1")
	require.NoError(t, err)
	require.NotNil(t, setup)
	assert.False(t, setup.SetupComplete)
}

func TestRecordDropsMessageWithoutGuild(t *testing.T) {
	pipeline, db := testPipeline(t)

	msg := incoming("m1")
	msg.GuildID = ""
	require.NoError(t, pipeline.Record(msg))

	messages, err := db.GetChannelMessages("c1")
	require.NoError(t, err)
	assert.Empty(t, messages)
}

func TestRecordResolvesAttachments(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("png-bytes"))
	}))
	defer server.Close()

	pipeline, db := testPipeline(t)

	msg := incoming("m1")
	msg.Attachments = []models.Attachment{
		{ID: "a1", Name: "shot.png", URL: server.URL + "/shot.png", Size: 2048},
		{ID: "a2", Name: "gone.png", URL: "http://127.0.0.1:1/gone.png", Size: 512},
	}
	require.NoError(t, pipeline.Record(msg))

	messages, err := db.GetChannelMessages("c1")
	require.NoError(t, err)
	require.Len(t, messages, 1)
	assert.True(t, messages[0].HasAttachments)

	attachments, err := messages[0].Attachments()
	require.NoError(t, err)
	require.Len(t, attachments, 2)

	assert.NotEmpty(t, attachments[0].LocalPath)
	assert.Equal(t, "image", attachments[0].Type)
	assert.Equal(t, server.URL+"/shot.png", attachments[0].OriginalURL)

	// The unreachable attachment stays unresolved but is still recorded.
	assert.Empty(t, attachments[1].LocalPath)
	assert.Equal(t, "gone.png", attachments[1].Name)
}

func TestRecordStoresEmbeds(t *testing.T) {
	pipeline, db := testPipeline(t)

	msg := incoming("m1")
	msg.Embeds = []models.Embed{{
		Title:       "Status",
		Description: "all good",
		Color:       0x4287f5,
		Fields:      []models.EmbedField{{Name: "uptime", Value: "14d", Inline: true}},
	}}
	require.NoError(t, pipeline.Record(msg))

	messages, err := db.GetChannelMessages("c1")
	require.NoError(t, err)
	require.Len(t, messages, 1)
	assert.True(t, messages[0].HasEmbeds)

	embeds, err := messages[0].Embeds()
	require.NoError(t, err)
	require.Len(t, embeds, 1)
	assert.Equal(t, "Status", embeds[0].Title)
	assert.Equal(t, 0x4287f5, embeds[0].Color)
}
