// internal/database/db_test.go
package database

import (
	"path/filepath"
	"strings"
	"testing"
	"time"

	"discord-ticket-bot/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testDB(t *testing.T) *DB {
	t.Helper()
	db, err := NewDB(filepath.Join(t.TempDir(), "bot.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db
}

func TestGuildSetupLifecycle(t *testing.T) {
	db := testDB(t)

	setup, err := db.GetGuildSetup("g1")
	require.NoError(t, err)
	assert.Nil(t, setup)

	require.NoError(t, db.SaveGuildSetup("g1", "cat1", "chan1"))

	setup, err = db.GetGuildSetup("g1")
	require.NoError(t, err)
	require.NotNil(t, setup)
	assert.True(t, setup.SetupComplete)
	assert.Equal(t, "cat1", setup.CategoryID)
	assert.Equal(t, "chan1", setup.ChannelID)

	// Saving again replaces the references instead of erroring.
	require.NoError(t, db.SaveGuildSetup("g1", "cat2", "chan2"))
	setup, err = db.GetGuildSetup("g1")
	require.NoError(t, err)
	assert.Equal(t, "cat2", setup.CategoryID)

	require.NoError(t, db.ResetGuildSetup("g1"))
	setup, err = db.GetGuildSetup("g1")
	require.NoError(t, err)
	require.NotNil(t, setup)
	assert.False(t, setup.SetupComplete)
	assert.Empty(t, setup.CategoryID)
}

func TestEnsureGuildKeepsExistingSetup(t *testing.T) {
	db := testDB(t)

	require.NoError(t, db.SaveGuildSetup("g1", "cat1", "chan1"))
	require.NoError(t, db.EnsureGuild("g1"))

	setup, err := db.GetGuildSetup("g1")
	require.NoError(t, err)
	assert.True(t, setup.SetupComplete, "EnsureGuild must not overwrite a completed setup")
}

func TestAddPrivateChannel(t *testing.T) {
	db := testDB(t)

	channel, err := db.AddPrivateChannel("c1", "g1", "u1")
	require.NoError(t, err)
	assert.False(t, channel.Closed)
	assert.True(t, strings.HasPrefix(channel.ArchiveFile, "log_g1_c1_"))
	assert.True(t, strings.HasSuffix(channel.ArchiveFile, ".html"))

	_, err = db.AddPrivateChannel("c1", "g1", "u1")
	assert.Error(t, err, "duplicate channel IDs must be rejected")
}

func TestOpenChannelInvariant(t *testing.T) {
	db := testDB(t)

	open, err := db.GetOpenChannel("g1", "u1")
	require.NoError(t, err)
	assert.Nil(t, open)

	_, err = db.AddPrivateChannel("c1", "g1", "u1")
	require.NoError(t, err)

	open, err = db.GetOpenChannel("g1", "u1")
	require.NoError(t, err)
	require.NotNil(t, open)
	assert.Equal(t, "c1", open.ChannelID)

	// Another user's ticket is invisible to this lookup.
	open, err = db.GetOpenChannel("g1", "u2")
	require.NoError(t, err)
	assert.Nil(t, open)

	require.NoError(t, db.ClosePrivateChannel("c1"))

	open, err = db.GetOpenChannel("g1", "u1")
	require.NoError(t, err)
	assert.Nil(t, open)

	closed, err := db.GetPrivateChannel("c1")
	require.NoError(t, err)
	require.NotNil(t, closed)
	assert.True(t, closed.Closed)
	require.NotNil(t, closed.ClosedAt)
}

func TestInsertMessageIdempotent(t *testing.T) {
	db := testDB(t)

	msg := &models.ChannelMessage{
		MessageID: "m1",
		ChannelID: "c1",
		UserID:    "u1",
		Username:  "alice",
		Content:   "hello",
		Timestamp: time.Now(),
	}
	require.NoError(t, db.InsertMessage(msg))
	require.NoError(t, db.InsertMessage(msg), "re-inserting the same message ID must be a no-op")

	exists, err := db.HasMessage("m1")
	require.NoError(t, err)
	assert.True(t, exists)

	messages, err := db.GetChannelMessages("c1")
	require.NoError(t, err)
	assert.Len(t, messages, 1)
}

func TestGetChannelMessagesOrdering(t *testing.T) {
	db := testDB(t)

	base := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	offsets := map[string]time.Duration{"m1": 0, "m2": time.Minute, "m3": 2 * time.Minute}
	for _, id := range []string{"m3", "m1", "m2"} {
		require.NoError(t, db.InsertMessage(&models.ChannelMessage{
			MessageID: id,
			ChannelID: "c1",
			UserID:    "u1",
			Content:   id,
			Timestamp: base.Add(offsets[id]),
		}))
	}

	messages, err := db.GetChannelMessages("c1")
	require.NoError(t, err)
	require.Len(t, messages, 3)
	assert.Equal(t, "m1", messages[0].MessageID)
	assert.Equal(t, "m2", messages[1].MessageID)
	assert.Equal(t, "m3", messages[2].MessageID)
}

func TestGetClosedChannels(t *testing.T) {
	db := testDB(t)

	_, err := db.AddPrivateChannel("c1", "g1", "u1")
	require.NoError(t, err)
	_, err = db.AddPrivateChannel("c2", "g1", "u2")
	require.NoError(t, err)
	_, err = db.AddPrivateChannel("c3", "g1", "u3")
	require.NoError(t, err)

	// Only the owner's messages feed the username; u2 never spoke.
	require.NoError(t, db.InsertMessage(&models.ChannelMessage{
		MessageID: "m1", ChannelID: "c1", UserID: "u1", Username: "alice", Timestamp: time.Now(),
	}))
	require.NoError(t, db.InsertMessage(&models.ChannelMessage{
		MessageID: "m2", ChannelID: "c2", UserID: "staff", Username: "bob", Timestamp: time.Now(),
	}))

	require.NoError(t, db.ClosePrivateChannel("c1"))
	time.Sleep(5 * time.Millisecond)
	require.NoError(t, db.ClosePrivateChannel("c2"))

	closed, err := db.GetClosedChannels("g1")
	require.NoError(t, err)
	require.Len(t, closed, 2, "open tickets must not be listed")

	// Most recently closed first.
	assert.Equal(t, "c2", closed[0].ChannelID)
	assert.Equal(t, "c1", closed[1].ChannelID)

	assert.Empty(t, closed[0].Username, "staff chatter must not name the owner")
	assert.Equal(t, "alice", closed[1].Username)
}

func TestSetArchiveFile(t *testing.T) {
	db := testDB(t)

	_, err := db.AddPrivateChannel("c1", "g1", "u1")
	require.NoError(t, err)

	require.NoError(t, db.SetArchiveFile("c1", "ticket_log_c1_123.zip"))

	channel, err := db.GetPrivateChannel("c1")
	require.NoError(t, err)
	assert.Equal(t, "ticket_log_c1_123.zip", channel.ArchiveFile)
}
