// internal/tickets/manager.go
package tickets

import (
	"errors"
	"fmt"
	"sync"

	"discord-ticket-bot/internal/database"
	"discord-ticket-bot/internal/models"

	"github.com/rs/zerolog/log"
)

// ErrTicketAlreadyOpen is returned by RequestTicket when the user already
// has an open ticket backed by a live channel.
var ErrTicketAlreadyOpen = errors.New("ticket already open for this user")

// Platform is the subset of chat-platform operations the lifecycle manager
// needs. The Discord adapter implements it; tests substitute fakes.
type Platform interface {
	// ChannelExists reports whether the platform channel is still alive.
	ChannelExists(channelID string) bool
	// CreateTicketChannel provisions a private support channel for the user
	// (name, parent category, permission overwrites) and returns its ID.
	CreateTicketChannel(guildID, userID, category string) (string, error)
}

// Manager enforces the ticket state machine: at most one open ticket per
// (guild, user), open -> closed exactly once. Creation serializes on a
// per-(guild, user) mutex so two concurrent requests cannot both pass the
// openness check.
type Manager struct {
	db       *database.DB
	platform Platform

	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

// NewManager creates a lifecycle manager.
func NewManager(db *database.DB, platform Platform) *Manager {
	return &Manager{
		db:       db,
		platform: platform,
		locks:    map[string]*sync.Mutex{},
	}
}

func (m *Manager) userLock(guildID, userID string) *sync.Mutex {
	m.mu.Lock()
	defer m.mu.Unlock()
	key := guildID + ":" + userID
	lock, ok := m.locks[key]
	if !ok {
		lock = &sync.Mutex{}
		m.locks[key] = lock
	}
	return lock
}

// RequestTicket opens a ticket for the user. When an open ticket already
// exists and its channel is still alive, the existing record is returned
// with ErrTicketAlreadyOpen. A stale record whose backing channel is gone is
// force-closed first so an orphaned row can never lock a user out.
func (m *Manager) RequestTicket(guildID, userID, category string) (*models.PrivateChannel, error) {
	lock := m.userLock(guildID, userID)
	lock.Lock()
	defer lock.Unlock()

	existing, err := m.db.GetOpenChannel(guildID, userID)
	if err != nil {
		return nil, fmt.Errorf("looking up open ticket: %w", err)
	}
	if existing != nil {
		if m.platform.ChannelExists(existing.ChannelID) {
			return existing, ErrTicketAlreadyOpen
		}
		log.Warn().
			Str("channel_id", existing.ChannelID).
			Str("user_id", userID).
			Msg("open ticket points at a missing channel, force-closing stale record")
		if err := m.db.ClosePrivateChannel(existing.ChannelID); err != nil {
			return nil, fmt.Errorf("force-closing stale ticket %s: %w", existing.ChannelID, err)
		}
	}

	channelID, err := m.platform.CreateTicketChannel(guildID, userID, category)
	if err != nil {
		return nil, fmt.Errorf("creating ticket channel: %w", err)
	}

	channel, err := m.db.AddPrivateChannel(channelID, guildID, userID)
	if err != nil {
		return nil, err
	}
	return channel, nil
}

// Get returns the ticket for a channel, or nil when untracked. Callers use
// it to guard Close: closing is not re-validated here.
func (m *Manager) Get(channelID string) (*models.PrivateChannel, error) {
	return m.db.GetPrivateChannel(channelID)
}

// Close marks the ticket closed and stamps the closure time. Archive
// generation is the caller's responsibility so that an archive failure never
// blocks the close transition. Callers must check openness first; repeated
// closes are their no-op to enforce.
func (m *Manager) Close(channelID string) error {
	return m.db.ClosePrivateChannel(channelID)
}
