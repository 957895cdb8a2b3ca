// internal/bot/handler.go
package bot

import (
	"fmt"
	"strings"

	"discord-ticket-bot/internal/archive"
	"discord-ticket-bot/internal/capture"
	"discord-ticket-bot/internal/config"
	"discord-ticket-bot/internal/database"
	"discord-ticket-bot/internal/models"
	"discord-ticket-bot/internal/tickets"

	"github.com/bwmarrin/discordgo"
	"github.com/rs/zerolog/log"
)

// ticketCategory describes one entry of the ticket panel select menu.
type ticketCategory struct {
	Name        string
	Emoji       string
	Prefix      string
	Description string
}

var ticketCategories = map[string]ticketCategory{
	"general_support":   {Name: "General Support", Emoji: "🎫", Prefix: "support", Description: "Questions and general help"},
	"technical_support": {Name: "Technical Support", Emoji: "🔧", Prefix: "technical", Description: "Bugs and technical problems"},
	"product_support":   {Name: "Product Support", Emoji: "🛒", Prefix: "product", Description: "Orders, billing and products"},
}

func categoryOrDefault(value string) ticketCategory {
	if cat, ok := ticketCategories[value]; ok {
		return cat
	}
	return ticketCategories["general_support"]
}

// BotHandler wires the Discord gateway to the core: it forwards ticket
// channel messages into the capture pipeline, drives the ticket lifecycle
// from interactions, and serves archives through the /logs command.
type BotHandler struct {
	cfg      *config.Config
	db       *database.DB
	capture  *capture.Pipeline
	archives *archive.Generator
	tickets  *tickets.Manager

	session *discordgo.Session
	botID   string
}

// NewBotHandler creates the Discord adapter. The handler itself implements
// tickets.Platform, so the lifecycle manager is constructed here.
func NewBotHandler(cfg *config.Config, db *database.DB, pipeline *capture.Pipeline, generator *archive.Generator) *BotHandler {
	handler := &BotHandler{
		cfg:      cfg,
		db:       db,
		capture:  pipeline,
		archives: generator,
	}
	handler.tickets = tickets.NewManager(db, handler)
	return handler
}

// SetSession attaches the Discord session and resolves the bot's own user
// ID, which marks the bot's messages in transcripts.
func (h *BotHandler) SetSession(s *discordgo.Session) {
	h.session = s
	user, err := s.User("@me")
	if err != nil {
		log.Error().Err(err).Msg("could not resolve bot user")
		return
	}
	h.botID = user.ID
	h.archives.BotUserID = user.ID

	s.AddHandler(h.OnMessageCreate)
	s.AddHandler(h.OnInteractionCreate)
}

// OnMessageCreate mirrors ticket channel traffic into the store. Foreign
// bots are ignored; the bot's own messages are captured so replies appear in
// transcripts.
func (h *BotHandler) OnMessageCreate(s *discordgo.Session, m *discordgo.MessageCreate) {
	if m.Author == nil || m.GuildID == "" {
		return
	}
	if m.Author.Bot && m.Author.ID != h.botID {
		return
	}
	if !h.isTicketChannel(m.ChannelID) {
		return
	}

	msg := h.normalizeMessage(m)
	go func() {
		if err := h.capture.Record(msg); err != nil {
			log.Error().Err(err).Str("message_id", msg.MessageID).Msg("could not capture message")
		}
	}()
}

// isTicketChannel reports whether a channel should be captured: either the
// store tracks it, or its name carries a ticket prefix (capture then
// materializes the row opportunistically).
func (h *BotHandler) isTicketChannel(channelID string) bool {
	if channel, err := h.db.GetPrivateChannel(channelID); err == nil && channel != nil {
		return true
	}

	channel, err := h.session.State.Channel(channelID)
	if err != nil {
		channel, err = h.session.Channel(channelID)
		if err != nil {
			return false
		}
	}
	for _, cat := range ticketCategories {
		if strings.HasPrefix(channel.Name, cat.Prefix+"-") {
			return true
		}
	}
	return false
}

func (h *BotHandler) normalizeMessage(m *discordgo.MessageCreate) *capture.IncomingMessage {
	msg := &capture.IncomingMessage{
		MessageID: m.ID,
		ChannelID: m.ChannelID,
		GuildID:   m.GuildID,
		UserID:    m.Author.ID,
		Username:  m.Author.Username,
		AvatarURL: m.Author.AvatarURL(""),
		Content:   m.Content,
		Timestamp: m.Timestamp,
	}

	for _, att := range m.Attachments {
		msg.Attachments = append(msg.Attachments, models.Attachment{
			ID:          att.ID,
			Name:        att.Filename,
			URL:         att.URL,
			ContentType: att.ContentType,
			Size:        int64(att.Size),
		})
	}

	for _, embed := range m.Embeds {
		msg.Embeds = append(msg.Embeds, normalizeEmbed(embed))
	}
	return msg
}

func normalizeEmbed(embed *discordgo.MessageEmbed) models.Embed {
	stored := models.Embed{
		Title:       embed.Title,
		Description: embed.Description,
		URL:         embed.URL,
		Timestamp:   embed.Timestamp,
		Color:       embed.Color,
	}
	for _, field := range embed.Fields {
		stored.Fields = append(stored.Fields, models.EmbedField{
			Name:   field.Name,
			Value:  field.Value,
			Inline: field.Inline,
		})
	}
	if embed.Author != nil {
		stored.Author = &models.EmbedAuthor{
			Name:    embed.Author.Name,
			URL:     embed.Author.URL,
			IconURL: embed.Author.IconURL,
		}
	}
	if embed.Thumbnail != nil {
		stored.Thumbnail = &models.EmbedMedia{URL: embed.Thumbnail.URL}
	}
	if embed.Image != nil {
		stored.Image = &models.EmbedMedia{URL: embed.Image.URL}
	}
	if embed.Footer != nil {
		stored.Footer = &models.EmbedFooter{
			Text:    embed.Footer.Text,
			IconURL: embed.Footer.IconURL,
		}
	}
	return stored
}

// ChannelExists implements tickets.Platform.
func (h *BotHandler) ChannelExists(channelID string) bool {
	if _, err := h.session.State.Channel(channelID); err == nil {
		return true
	}
	_, err := h.session.Channel(channelID)
	return err == nil
}

// CreateTicketChannel implements tickets.Platform: it provisions the private
// text channel with overwrites for the opener, the bot and the staff role.
func (h *BotHandler) CreateTicketChannel(guildID, userID, category string) (string, error) {
	cat := categoryOrDefault(category)

	username := userID
	if member, err := h.session.GuildMember(guildID, userID); err == nil {
		username = member.User.Username
	}
	name := fmt.Sprintf("%s-%s", cat.Prefix, channelNameSafe(username))

	memberPerms := int64(discordgo.PermissionViewChannel |
		discordgo.PermissionSendMessages |
		discordgo.PermissionReadMessageHistory)

	overwrites := []*discordgo.PermissionOverwrite{
		{
			ID:   guildID, // @everyone
			Type: discordgo.PermissionOverwriteTypeRole,
			Deny: discordgo.PermissionViewChannel,
		},
		{
			ID:    userID,
			Type:  discordgo.PermissionOverwriteTypeMember,
			Allow: memberPerms,
		},
		{
			ID:    h.botID,
			Type:  discordgo.PermissionOverwriteTypeMember,
			Allow: memberPerms | discordgo.PermissionManageChannels,
		},
	}
	if h.cfg.StaffRoleID != "" {
		overwrites = append(overwrites, &discordgo.PermissionOverwrite{
			ID:    h.cfg.StaffRoleID,
			Type:  discordgo.PermissionOverwriteTypeRole,
			Allow: memberPerms,
		})
	}

	parentID := ""
	if setup, err := h.db.GetGuildSetup(guildID); err == nil && setup != nil {
		parentID = setup.CategoryID
	}

	channel, err := h.session.GuildChannelCreateComplex(guildID, discordgo.GuildChannelCreateData{
		Name:                 name,
		Type:                 discordgo.ChannelTypeGuildText,
		ParentID:             parentID,
		PermissionOverwrites: overwrites,
	})
	if err != nil {
		return "", fmt.Errorf("creating channel %s: %w", name, err)
	}
	return channel.ID, nil
}

// channelNameSafe turns a username into a channel name fragment.
func channelNameSafe(name string) string {
	return strings.ReplaceAll(strings.ToLower(strings.TrimSpace(name)), " ", "-")
}

// isStaff reports whether the member carries the configured staff role.
func (h *BotHandler) isStaff(member *discordgo.Member) bool {
	if h.cfg.StaffRoleID == "" || member == nil {
		return false
	}
	for _, role := range member.Roles {
		if role == h.cfg.StaffRoleID {
			return true
		}
	}
	return false
}
