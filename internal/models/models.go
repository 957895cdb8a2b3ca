// internal/models/models.go
package models

import (
	"encoding/json"
	"time"
)

// GuildSetup tracks whether the ticket infrastructure (support category and
// panel channel) has been provisioned for a guild. A row is created on first
// setup, or implicitly with SetupComplete=false when a message is captured
// for an unknown guild. Rows are never hard-deleted; reset clears the flag
// and nulls the channel references.
type GuildSetup struct {
	GuildID       string `gorm:"primaryKey"`
	SetupComplete bool
	CategoryID    string
	ChannelID     string
	CreatedAt     time.Time
}

func (GuildSetup) TableName() string { return "guilds" }

// PrivateChannel is a ticket: one per provisioned support channel. A ticket
// transitions open -> closed exactly once; after closing, only ArchiveFile
// may still change (it starts as a legacy transcript filename and is
// rewritten to the packaged archive filename once one is generated).
type PrivateChannel struct {
	ChannelID   string `gorm:"primaryKey"`
	GuildID     string `gorm:"index"`
	UserID      string `gorm:"index"`
	CreatedAt   time.Time
	Closed      bool `gorm:"index"`
	ClosedAt    *time.Time
	ArchiveFile string
}

func (PrivateChannel) TableName() string { return "private_channels" }

// ClosedChannel is a listing row for a closed ticket, annotated with a
// best-effort username resolved from the owner's captured messages. Username
// stays empty when the owner never sent a visible message in the channel.
type ClosedChannel struct {
	PrivateChannel
	Username string
}

// ChannelMessage is one captured chat message. MessageID is the
// platform-assigned identifier and doubles as the idempotency key: capturing
// the same ID twice is a no-op. Attachment and embed data is stored as raw
// JSON text so a malformed blob surfaces at render time instead of poisoning
// the whole row.
type ChannelMessage struct {
	MessageID       string `gorm:"primaryKey"`
	ChannelID       string `gorm:"index"`
	UserID          string
	Username        string
	AvatarURL       string
	Content         string `gorm:"type:text"`
	Timestamp       time.Time
	HasAttachments  bool
	AttachmentsJSON string `gorm:"column:attachments_json;type:text"`
	HasEmbeds       bool
	EmbedsJSON      string `gorm:"column:embeds_json;type:text"`
}

func (ChannelMessage) TableName() string { return "channel_messages" }

// Attachment mirrors one platform attachment on a captured message.
// LocalPath, OriginalURL and Type are filled in after the media fetcher has
// run; an attachment whose download failed keeps them empty.
type Attachment struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	URL         string `json:"url"`
	ContentType string `json:"content_type,omitempty"`
	Size        int64  `json:"size,omitempty"`
	LocalPath   string `json:"local_path,omitempty"`
	OriginalURL string `json:"original_url,omitempty"`
	Type        string `json:"type,omitempty"`
}

// Embed is the stored subset of a platform embed.
type Embed struct {
	Title       string       `json:"title,omitempty"`
	Description string       `json:"description,omitempty"`
	URL         string       `json:"url,omitempty"`
	Timestamp   string       `json:"timestamp,omitempty"`
	Color       int          `json:"color,omitempty"`
	Fields      []EmbedField `json:"fields,omitempty"`
	Author      *EmbedAuthor `json:"author,omitempty"`
	Thumbnail   *EmbedMedia  `json:"thumbnail,omitempty"`
	Image       *EmbedMedia  `json:"image,omitempty"`
	Footer      *EmbedFooter `json:"footer,omitempty"`
}

type EmbedField struct {
	Name   string `json:"name"`
	Value  string `json:"value"`
	Inline bool   `json:"inline,omitempty"`
}

type EmbedAuthor struct {
	Name    string `json:"name,omitempty"`
	URL     string `json:"url,omitempty"`
	IconURL string `json:"icon_url,omitempty"`
}

type EmbedMedia struct {
	URL string `json:"url,omitempty"`
}

type EmbedFooter struct {
	Text    string `json:"text,omitempty"`
	IconURL string `json:"icon_url,omitempty"`
}

// Attachments decodes the stored attachment JSON. An empty column yields nil.
func (m *ChannelMessage) Attachments() ([]Attachment, error) {
	if m.AttachmentsJSON == "" {
		return nil, nil
	}
	var attachments []Attachment
	if err := json.Unmarshal([]byte(m.AttachmentsJSON), &attachments); err != nil {
		return nil, err
	}
	return attachments, nil
}

// SetAttachments encodes attachments into the JSON column and keeps the
// HasAttachments flag consistent.
func (m *ChannelMessage) SetAttachments(attachments []Attachment) error {
	m.HasAttachments = len(attachments) > 0
	if len(attachments) == 0 {
		m.AttachmentsJSON = ""
		return nil
	}
	raw, err := json.Marshal(attachments)
	if err != nil {
		return err
	}
	m.AttachmentsJSON = string(raw)
	return nil
}

// Embeds decodes the stored embed JSON. An empty column yields nil.
func (m *ChannelMessage) Embeds() ([]Embed, error) {
	if m.EmbedsJSON == "" {
		return nil, nil
	}
	var embeds []Embed
	if err := json.Unmarshal([]byte(m.EmbedsJSON), &embeds); err != nil {
		return nil, err
	}
	return embeds, nil
}

// SetEmbeds encodes embeds into the JSON column and keeps the HasEmbeds flag
// consistent.
func (m *ChannelMessage) SetEmbeds(embeds []Embed) error {
	m.HasEmbeds = len(embeds) > 0
	if len(embeds) == 0 {
		m.EmbedsJSON = ""
		return nil
	}
	raw, err := json.Marshal(embeds)
	if err != nil {
		return err
	}
	m.EmbedsJSON = string(raw)
	return nil
}
