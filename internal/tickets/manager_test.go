// internal/tickets/manager_test.go
package tickets

import (
	"errors"
	"fmt"
	"path/filepath"
	"testing"

	"discord-ticket-bot/internal/database"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakePlatform substitutes the Discord adapter in tests.
type fakePlatform struct {
	created   int
	liveCheck map[string]bool
	createErr error
}

func (f *fakePlatform) ChannelExists(channelID string) bool {
	if f.liveCheck == nil {
		return true
	}
	return f.liveCheck[channelID]
}

func (f *fakePlatform) CreateTicketChannel(guildID, userID, category string) (string, error) {
	if f.createErr != nil {
		return "", f.createErr
	}
	f.created++
	return fmt.Sprintf("chan-%d", f.created), nil
}

func testManager(t *testing.T, platform *fakePlatform) (*Manager, *database.DB) {
	t.Helper()
	db, err := database.NewDB(filepath.Join(t.TempDir(), "bot.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return NewManager(db, platform), db
}

func TestRequestTicketCreates(t *testing.T) {
	platform := &fakePlatform{}
	manager, db := testManager(t, platform)

	ticket, err := manager.RequestTicket("g1", "u1", "general_support")
	require.NoError(t, err)
	require.NotNil(t, ticket)
	assert.Equal(t, "chan-1", ticket.ChannelID)
	assert.False(t, ticket.Closed)

	stored, err := db.GetPrivateChannel("chan-1")
	require.NoError(t, err)
	require.NotNil(t, stored)
	assert.Equal(t, "u1", stored.UserID)
}

func TestRequestTicketAlreadyOpen(t *testing.T) {
	platform := &fakePlatform{}
	manager, _ := testManager(t, platform)

	first, err := manager.RequestTicket("g1", "u1", "general_support")
	require.NoError(t, err)

	second, err := manager.RequestTicket("g1", "u1", "technical_support")
	assert.ErrorIs(t, err, ErrTicketAlreadyOpen)
	require.NotNil(t, second, "the existing ticket is returned alongside the error")
	assert.Equal(t, first.ChannelID, second.ChannelID)
	assert.Equal(t, 1, platform.created)
}

func TestRequestTicketIsPerUser(t *testing.T) {
	manager, _ := testManager(t, &fakePlatform{})

	_, err := manager.RequestTicket("g1", "u1", "general_support")
	require.NoError(t, err)

	other, err := manager.RequestTicket("g1", "u2", "general_support")
	require.NoError(t, err)
	assert.Equal(t, "chan-2", other.ChannelID)
}

func TestRequestTicketForceClosesStaleRecord(t *testing.T) {
	platform := &fakePlatform{liveCheck: map[string]bool{}}
	manager, db := testManager(t, platform)

	first, err := manager.RequestTicket("g1", "u1", "general_support")
	require.NoError(t, err)

	// The backing channel vanished (manual deletion); a new request must
	// not be blocked by the orphaned row.
	platform.liveCheck[first.ChannelID] = false

	second, err := manager.RequestTicket("g1", "u1", "general_support")
	require.NoError(t, err)
	assert.NotEqual(t, first.ChannelID, second.ChannelID)

	stale, err := db.GetPrivateChannel(first.ChannelID)
	require.NoError(t, err)
	assert.True(t, stale.Closed)
}

func TestRequestTicketPlatformFailure(t *testing.T) {
	platform := &fakePlatform{createErr: errors.New("missing permissions")}
	manager, db := testManager(t, platform)

	_, err := manager.RequestTicket("g1", "u1", "general_support")
	require.Error(t, err)

	open, err := db.GetOpenChannel("g1", "u1")
	require.NoError(t, err)
	assert.Nil(t, open, "a failed creation must not leave a ticket row")
}

func TestCloseTicket(t *testing.T) {
	manager, db := testManager(t, &fakePlatform{})

	ticket, err := manager.RequestTicket("g1", "u1", "general_support")
	require.NoError(t, err)

	require.NoError(t, manager.Close(ticket.ChannelID))

	closed, err := manager.Get(ticket.ChannelID)
	require.NoError(t, err)
	require.NotNil(t, closed)
	assert.True(t, closed.Closed)
	require.NotNil(t, closed.ClosedAt)

	open, err := db.GetOpenChannel("g1", "u1")
	require.NoError(t, err)
	assert.Nil(t, open)
}
