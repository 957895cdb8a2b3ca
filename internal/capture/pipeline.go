// internal/capture/pipeline.go
package capture

import (
	"fmt"
	"sync"
	"time"

	"discord-ticket-bot/internal/database"
	"discord-ticket-bot/internal/media"
	"discord-ticket-bot/internal/models"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

// IncomingMessage is a normalized platform message handed to the pipeline.
// Upstream filtering (non-ticket channels, foreign bots) has already
// happened by the time one of these is built.
type IncomingMessage struct {
	MessageID   string
	ChannelID   string
	GuildID     string
	UserID      string
	Username    string
	AvatarURL   string
	Content     string
	Timestamp   time.Time
	Attachments []models.Attachment
	Embeds      []models.Embed
}

// Pipeline turns incoming channel messages into stored rows. Attachment
// downloads run concurrently and are awaited before the single insert, so
// readers never observe a message with half-resolved attachments.
type Pipeline struct {
	db      *database.DB
	fetcher *media.Fetcher
}

// NewPipeline creates a capture pipeline.
func NewPipeline(db *database.DB, fetcher *media.Fetcher) *Pipeline {
	return &Pipeline{db: db, fetcher: fetcher}
}

// Record captures one message. Re-capturing a known message ID is a silent
// no-op. A message for an untracked channel materializes the ticket row (and
// an incomplete guild row) on the fly; capture tolerates starting before any
// explicit ticket-creation flow ran.
func (p *Pipeline) Record(msg *IncomingMessage) error {
	exists, err := p.db.HasMessage(msg.MessageID)
	if err != nil {
		return fmt.Errorf("checking message %s: %w", msg.MessageID, err)
	}
	if exists {
		log.Debug().Str("message_id", msg.MessageID).Msg("message already captured, skipping")
		return nil
	}

	channel, err := p.db.GetPrivateChannel(msg.ChannelID)
	if err != nil {
		return fmt.Errorf("looking up channel %s: %w", msg.ChannelID, err)
	}
	if channel == nil {
		if msg.GuildID == "" {
			log.Warn().Str("channel_id", msg.ChannelID).Msg("no guild for untracked channel, dropping message")
			return nil
		}
		if err := p.db.EnsureGuild(msg.GuildID); err != nil {
			return fmt.Errorf("ensuring guild %s: %w", msg.GuildID, err)
		}
		if err := p.db.EnsurePrivateChannel(msg.ChannelID, msg.GuildID, msg.UserID); err != nil {
			return fmt.Errorf("ensuring channel %s: %w", msg.ChannelID, err)
		}
	}

	attachments := p.resolveAttachments(msg)

	stored := models.ChannelMessage{
		MessageID: msg.MessageID,
		ChannelID: msg.ChannelID,
		UserID:    msg.UserID,
		Username:  msg.Username,
		AvatarURL: msg.AvatarURL,
		Content:   msg.Content,
		Timestamp: msg.Timestamp,
	}
	if err := stored.SetAttachments(attachments); err != nil {
		return fmt.Errorf("encoding attachments for %s: %w", msg.MessageID, err)
	}
	if err := stored.SetEmbeds(msg.Embeds); err != nil {
		return fmt.Errorf("encoding embeds for %s: %w", msg.MessageID, err)
	}

	if err := p.db.InsertMessage(&stored); err != nil {
		return fmt.Errorf("storing message %s: %w", msg.MessageID, err)
	}
	return nil
}

// resolveAttachments downloads every attachment with a remote URL and
// rewrites the collection with local paths and derived types. Failed
// downloads leave their attachment unresolved; the transcript renders a
// placeholder for those.
func (p *Pipeline) resolveAttachments(msg *IncomingMessage) []models.Attachment {
	if len(msg.Attachments) == 0 {
		return nil
	}

	attachments := make([]models.Attachment, len(msg.Attachments))
	copy(attachments, msg.Attachments)

	var wg sync.WaitGroup
	for i := range attachments {
		if attachments[i].URL == "" {
			continue
		}
		wg.Add(1)
		go func(att *models.Attachment) {
			defer wg.Done()
			id := att.ID
			if id == "" {
				id = uuid.NewString()
			}
			localPath := p.fetcher.Download(att.URL, msg.MessageID+"_"+id)
			if localPath == "" {
				return
			}
			att.OriginalURL = att.URL
			att.LocalPath = localPath
			att.Type = media.FileTypeForName(localPath)
			log.Debug().Str("file", localPath).Msg("attachment downloaded")
		}(&attachments[i])
	}
	wg.Wait()

	return attachments
}
