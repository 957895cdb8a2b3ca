// internal/database/db.go
package database

import (
	"errors"
	"fmt"
	"time"

	"discord-ticket-bot/internal/models"

	"github.com/rs/zerolog/log"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	"gorm.io/gorm/logger"
)

// DB wraps the gorm handle. It is constructed once in main and injected into
// every component; there is no package-level instance.
type DB struct {
	*gorm.DB
}

// NewDB opens (or creates) the sqlite database at path and brings the schema
// up to date.
func NewDB(path string) (*DB, error) {
	gormDB, err := gorm.Open(sqlite.Open(path), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("opening database %s: %w", path, err)
	}

	db := &DB{gormDB}
	db.migrate()
	return db, nil
}

// migrate runs the one-time startup migration. Runtime code assumes the
// post-migration schema unconditionally. Schema drift is healed additively
// and never fails initialization: when a migration step errors, we log it
// and continue with whatever shape the tables have.
func (db *DB) migrate() {
	err := db.AutoMigrate(
		&models.GuildSetup{},
		&models.PrivateChannel{},
		&models.ChannelMessage{},
	)
	if err != nil {
		log.Warn().Err(err).Msg("schema auto-migration failed, continuing with existing schema")
	}

	// Embed columns were added after the first release; databases created by
	// older versions may miss them even when AutoMigrate bailed out above.
	migrator := db.Migrator()
	for _, column := range []string{"has_embeds", "embeds_json"} {
		if migrator.HasColumn(&models.ChannelMessage{}, column) {
			continue
		}
		if err := migrator.AddColumn(&models.ChannelMessage{}, column); err != nil {
			log.Warn().Err(err).Str("column", column).Msg("could not add optional column")
			continue
		}
		log.Info().Str("column", column).Msg("added missing column to channel_messages")
	}
}

// Close releases the underlying connection.
func (db *DB) Close() error {
	sqlDB, err := db.DB.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// GetGuildSetup returns the setup row for a guild, or nil when none exists.
func (db *DB) GetGuildSetup(guildID string) (*models.GuildSetup, error) {
	var setup models.GuildSetup
	err := db.First(&setup, "guild_id = ?", guildID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &setup, nil
}

// SaveGuildSetup records a completed setup, creating or replacing the row.
func (db *DB) SaveGuildSetup(guildID, categoryID, channelID string) error {
	setup := models.GuildSetup{
		GuildID:       guildID,
		SetupComplete: true,
		CategoryID:    categoryID,
		ChannelID:     channelID,
	}
	return db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "guild_id"}},
		DoUpdates: clause.AssignmentColumns([]string{"setup_complete", "category_id", "channel_id"}),
	}).Create(&setup).Error
}

// ResetGuildSetup clears the setup flag and channel references. The row
// itself is kept.
func (db *DB) ResetGuildSetup(guildID string) error {
	return db.Model(&models.GuildSetup{}).
		Where("guild_id = ?", guildID).
		Updates(map[string]interface{}{
			"setup_complete": false,
			"category_id":    "",
			"channel_id":     "",
		}).Error
}

// EnsureGuild creates an incomplete setup row for a guild if none exists.
// Used by the capture pipeline when a message arrives for an unknown guild.
func (db *DB) EnsureGuild(guildID string) error {
	return db.Clauses(clause.OnConflict{DoNothing: true}).
		Create(&models.GuildSetup{GuildID: guildID}).Error
}

// legacyLogName is the transcript filename recorded on a fresh ticket. It is
// rewritten to the packaged archive name once an archive is generated.
func legacyLogName(guildID, channelID string) string {
	return fmt.Sprintf("log_%s_%s_%d.html", guildID, channelID, time.Now().UnixMilli())
}

// AddPrivateChannel records a newly provisioned ticket channel. A duplicate
// channel ID is a constraint violation and surfaces as an error.
func (db *DB) AddPrivateChannel(channelID, guildID, userID string) (*models.PrivateChannel, error) {
	channel := models.PrivateChannel{
		ChannelID:   channelID,
		GuildID:     guildID,
		UserID:      userID,
		ArchiveFile: legacyLogName(guildID, channelID),
	}
	if err := db.Create(&channel).Error; err != nil {
		return nil, fmt.Errorf("recording ticket channel %s: %w", channelID, err)
	}
	return &channel, nil
}

// EnsurePrivateChannel creates a ticket row for an untracked channel the
// capture pipeline has observed. Existing rows are left alone.
func (db *DB) EnsurePrivateChannel(channelID, guildID, userID string) error {
	channel := models.PrivateChannel{
		ChannelID:   channelID,
		GuildID:     guildID,
		UserID:      userID,
		ArchiveFile: legacyLogName(guildID, channelID),
	}
	return db.Clauses(clause.OnConflict{DoNothing: true}).Create(&channel).Error
}

// GetPrivateChannel returns the ticket for a channel, or nil when untracked.
func (db *DB) GetPrivateChannel(channelID string) (*models.PrivateChannel, error) {
	var channel models.PrivateChannel
	err := db.First(&channel, "channel_id = ?", channelID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &channel, nil
}

// GetOpenChannel returns the open ticket for a (guild, user) pair, or nil.
// At most one such ticket exists at any time.
func (db *DB) GetOpenChannel(guildID, userID string) (*models.PrivateChannel, error) {
	var channel models.PrivateChannel
	err := db.First(&channel, "guild_id = ? AND user_id = ? AND closed = ?", guildID, userID, false).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &channel, nil
}

// ClosePrivateChannel marks a ticket closed and stamps the closure time.
// Callers must check openness first; the store does not re-validate.
func (db *DB) ClosePrivateChannel(channelID string) error {
	now := time.Now()
	return db.Model(&models.PrivateChannel{}).
		Where("channel_id = ?", channelID).
		Updates(map[string]interface{}{
			"closed":    true,
			"closed_at": &now,
		}).Error
}

// SetArchiveFile rewrites the ticket's archive reference to a newly packaged
// archive filename.
func (db *DB) SetArchiveFile(channelID, filename string) error {
	return db.Model(&models.PrivateChannel{}).
		Where("channel_id = ?", channelID).
		Update("archive_file", filename).Error
}

// HasMessage reports whether a message ID has already been captured.
func (db *DB) HasMessage(messageID string) (bool, error) {
	var count int64
	err := db.Model(&models.ChannelMessage{}).
		Where("message_id = ?", messageID).
		Count(&count).Error
	return count > 0, err
}

// InsertMessage stores a captured message. A concurrent duplicate of the
// same message ID is silently ignored rather than reported as a conflict.
func (db *DB) InsertMessage(msg *models.ChannelMessage) error {
	return db.Clauses(clause.OnConflict{DoNothing: true}).Create(msg).Error
}

// GetChannelMessages returns every captured message for a channel in
// ascending timestamp order.
func (db *DB) GetChannelMessages(channelID string) ([]models.ChannelMessage, error) {
	var messages []models.ChannelMessage
	err := db.Where("channel_id = ?", channelID).
		Order("timestamp ASC").
		Find(&messages).Error
	return messages, err
}

// GetClosedChannels lists a guild's closed tickets, most recently closed
// first. Each row carries a best-effort username derived from any captured
// message the ticket owner sent in that channel; tickets whose owner never
// spoke keep an empty username. That gap is deliberate -- there is nothing
// better to join against.
func (db *DB) GetClosedChannels(guildID string) ([]models.ClosedChannel, error) {
	var channels []models.PrivateChannel
	err := db.Where("guild_id = ? AND closed = ?", guildID, true).
		Order("closed_at DESC").
		Find(&channels).Error
	if err != nil {
		return nil, err
	}

	closed := make([]models.ClosedChannel, 0, len(channels))
	for _, channel := range channels {
		row := models.ClosedChannel{PrivateChannel: channel}
		var msg models.ChannelMessage
		err := db.Select("username").
			Where("channel_id = ? AND user_id = ?", channel.ChannelID, channel.UserID).
			First(&msg).Error
		if err == nil {
			row.Username = msg.Username
		} else if !errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, err
		}
		closed = append(closed, row)
	}
	return closed, nil
}
