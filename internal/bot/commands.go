// internal/bot/commands.go
package bot

import (
	"fmt"
	"os"
	"strings"

	"discord-ticket-bot/internal/archive"

	"github.com/bwmarrin/discordgo"
	"github.com/rs/zerolog/log"
)

// RegisterCommands registers the global slash commands.
func (h *BotHandler) RegisterCommands(s *discordgo.Session) error {
	adminPerm := int64(discordgo.PermissionAdministrator)

	commands := []*discordgo.ApplicationCommand{
		{
			Name:                     "setup",
			Description:              "Manage the support ticket system",
			DefaultMemberPermissions: &adminPerm,
			Options: []*discordgo.ApplicationCommandOption{
				{
					Type:        discordgo.ApplicationCommandOptionSubCommand,
					Name:        "create",
					Description: "Create the ticket category and panel channel",
				},
				{
					Type:        discordgo.ApplicationCommandOptionSubCommand,
					Name:        "reset",
					Description: "Forget the stored ticket setup for this server",
				},
				{
					Type:        discordgo.ApplicationCommandOptionSubCommand,
					Name:        "status",
					Description: "Show the current ticket setup",
				},
			},
		},
		{
			Name:                     "logs",
			Description:              "Browse archived support tickets",
			DefaultMemberPermissions: &adminPerm,
			Options: []*discordgo.ApplicationCommandOption{
				{
					Type:        discordgo.ApplicationCommandOptionSubCommand,
					Name:        "list",
					Description: "List recently closed tickets",
				},
				{
					Type:        discordgo.ApplicationCommandOptionSubCommand,
					Name:        "view",
					Description: "Fetch the archive of a closed ticket",
					Options: []*discordgo.ApplicationCommandOption{
						{
							Type:        discordgo.ApplicationCommandOptionString,
							Name:        "channel_id",
							Description: "ID of the closed ticket channel",
							Required:    true,
						},
					},
				},
			},
		},
	}

	for _, cmd := range commands {
		if _, err := s.ApplicationCommandCreate(s.State.User.ID, "", cmd); err != nil {
			return fmt.Errorf("registering /%s: %w", cmd.Name, err)
		}
	}
	return nil
}

func (h *BotHandler) handleSetupCommand(s *discordgo.Session, i *discordgo.InteractionCreate) {
	options := i.ApplicationCommandData().Options
	if len(options) == 0 {
		return
	}

	switch options[0].Name {
	case "create":
		h.handleSetupCreate(s, i)
	case "reset":
		h.handleSetupReset(s, i)
	case "status":
		h.handleSetupStatus(s, i)
	}
}

// handleSetupCreate provisions the ticket category and panel channel and
// posts the creation panel.
func (h *BotHandler) handleSetupCreate(s *discordgo.Session, i *discordgo.InteractionCreate) {
	if err := h.deferReply(s, i, true); err != nil {
		return
	}

	existing, err := h.db.GetGuildSetup(i.GuildID)
	if err != nil {
		log.Error().Err(err).Str("guild_id", i.GuildID).Msg("could not load guild setup")
	}
	if existing != nil && existing.SetupComplete {
		h.editReply(s, i, h.embed("warning", "Already set up",
			fmt.Sprintf("The ticket system already exists: <#%s>. Use `/setup reset` to start over.", existing.ChannelID)))
		return
	}

	category, err := s.GuildChannelCreateComplex(i.GuildID, discordgo.GuildChannelCreateData{
		Name: "Support Tickets",
		Type: discordgo.ChannelTypeGuildCategory,
	})
	if err != nil {
		log.Error().Err(err).Str("guild_id", i.GuildID).Msg("could not create ticket category")
		h.editReply(s, i, h.embed("error", "Error", "The ticket category could not be created."))
		return
	}

	panel, err := s.GuildChannelCreateComplex(i.GuildID, discordgo.GuildChannelCreateData{
		Name:     "ticket-center",
		Type:     discordgo.ChannelTypeGuildText,
		ParentID: category.ID,
		PermissionOverwrites: []*discordgo.PermissionOverwrite{
			{
				ID:   i.GuildID,
				Type: discordgo.PermissionOverwriteTypeRole,
				Deny: discordgo.PermissionSendMessages,
			},
		},
	})
	if err != nil {
		log.Error().Err(err).Str("guild_id", i.GuildID).Msg("could not create panel channel")
		h.editReply(s, i, h.embed("error", "Error", "The panel channel could not be created."))
		return
	}

	if _, err := h.postTicketPanel(s, panel.ID); err != nil {
		log.Error().Err(err).Str("channel_id", panel.ID).Msg("could not post ticket panel")
		h.editReply(s, i, h.embed("error", "Error", "The ticket panel could not be posted."))
		return
	}

	if err := h.db.SaveGuildSetup(i.GuildID, category.ID, panel.ID); err != nil {
		log.Error().Err(err).Str("guild_id", i.GuildID).Msg("could not persist guild setup")
		h.editReply(s, i, h.embed("error", "Error", "The setup could not be saved."))
		return
	}

	h.editReply(s, i, h.embed("success", "Setup complete",
		fmt.Sprintf("Ticket system created. Panel channel: <#%s>", panel.ID)))
}

// postTicketPanel sends the panel embed with the category select menu.
func (h *BotHandler) postTicketPanel(s *discordgo.Session, channelID string) (*discordgo.Message, error) {
	options := make([]discordgo.SelectMenuOption, 0, len(ticketCategories))
	for _, key := range []string{"general_support", "technical_support", "product_support"} {
		cat := ticketCategories[key]
		options = append(options, discordgo.SelectMenuOption{
			Label:       cat.Name,
			Value:       key,
			Description: cat.Description,
			Emoji:       &discordgo.ComponentEmoji{Name: cat.Emoji},
		})
	}

	return s.ChannelMessageSendComplex(channelID, &discordgo.MessageSend{
		Embeds: []*discordgo.MessageEmbed{h.embed("info", "🎫 Support Center",
			"Need help? Pick a category below and a private channel will be opened for you and the staff team.")},
		Components: []discordgo.MessageComponent{
			discordgo.ActionsRow{Components: []discordgo.MessageComponent{
				discordgo.SelectMenu{
					CustomID:    "create_ticket_menu",
					Placeholder: "Choose a support category...",
					Options:     options,
				},
			}},
		},
	})
}

func (h *BotHandler) handleSetupReset(s *discordgo.Session, i *discordgo.InteractionCreate) {
	if err := h.db.ResetGuildSetup(i.GuildID); err != nil {
		log.Error().Err(err).Str("guild_id", i.GuildID).Msg("could not reset guild setup")
		h.replyEmbed(s, i, "error", "Error", "The setup could not be reset.", true)
		return
	}
	h.replyEmbed(s, i, "success", "Setup reset",
		"The stored ticket setup was removed. The category and channels were left in place; delete them manually if you no longer need them.", true)
}

func (h *BotHandler) handleSetupStatus(s *discordgo.Session, i *discordgo.InteractionCreate) {
	setup, err := h.db.GetGuildSetup(i.GuildID)
	if err != nil {
		log.Error().Err(err).Str("guild_id", i.GuildID).Msg("could not load guild setup")
		h.replyEmbed(s, i, "error", "Error", "The setup could not be loaded.", true)
		return
	}
	if setup == nil || !setup.SetupComplete {
		h.replyEmbed(s, i, "warning", "Not set up",
			"No ticket system exists for this server yet. Run `/setup create` first.", true)
		return
	}
	h.replyEmbed(s, i, "info", "Ticket setup",
		fmt.Sprintf("Category: <#%s>\nPanel channel: <#%s>",
			setup.CategoryID, setup.ChannelID), true)
}

func (h *BotHandler) handleLogsCommand(s *discordgo.Session, i *discordgo.InteractionCreate) {
	if !h.isStaff(i.Member) {
		h.replyEmbed(s, i, "error", "Insufficient permissions", "Only staff members can browse ticket logs.", true)
		return
	}

	options := i.ApplicationCommandData().Options
	if len(options) == 0 {
		return
	}

	switch options[0].Name {
	case "list":
		h.handleLogsList(s, i)
	case "view":
		var channelID string
		for _, opt := range options[0].Options {
			if opt.Name == "channel_id" {
				channelID = opt.StringValue()
			}
		}
		h.handleLogsView(s, i, channelID)
	}
}

func (h *BotHandler) handleLogsList(s *discordgo.Session, i *discordgo.InteractionCreate) {
	closed, err := h.db.GetClosedChannels(i.GuildID)
	if err != nil {
		log.Error().Err(err).Str("guild_id", i.GuildID).Msg("could not list closed tickets")
		h.replyEmbed(s, i, "error", "Error", "The closed tickets could not be loaded.", true)
		return
	}
	if len(closed) > 15 {
		closed = closed[:15]
	}
	if len(closed) == 0 {
		h.replyEmbed(s, i, "info", "No closed tickets", "No tickets have been closed on this server yet.", true)
		return
	}

	var b strings.Builder
	for _, ch := range closed {
		username := ch.Username
		if username == "" {
			username = "Unknown user"
		}
		closedAt := "unknown time"
		if ch.ClosedAt != nil {
			closedAt = fmt.Sprintf("<t:%d:f>", ch.ClosedAt.Unix())
		}
		fmt.Fprintf(&b, "`%s` by %s, closed %s\n", ch.ChannelID, username, closedAt)
	}

	h.replyEmbed(s, i, "info", "Closed tickets",
		b.String()+"\nUse `/logs view channel_id:<id>` to fetch an archive.", true)
}

// handleLogsView resolves the archive for a closed ticket, regenerating it
// when only a legacy transcript or the raw history is available.
func (h *BotHandler) handleLogsView(s *discordgo.Session, i *discordgo.InteractionCreate, channelID string) {
	if err := h.deferReply(s, i, true); err != nil {
		return
	}

	ticket, err := h.db.GetPrivateChannel(channelID)
	if err != nil {
		log.Error().Err(err).Str("channel_id", channelID).Msg("could not load ticket")
		h.editReply(s, i, h.embed("error", "Error", "The ticket could not be loaded."))
		return
	}
	if ticket == nil {
		h.editReply(s, i, h.embed("warning", "Unknown channel",
			"No support ticket is recorded for this channel ID."))
		return
	}

	zipPath, err := h.archives.Resolve(channelID)
	if err != nil {
		log.Error().Err(err).Str("channel_id", channelID).Msg("could not resolve archive")
		h.editReply(s, i, h.embed("error", "Error", "The archive could not be generated."))
		return
	}
	if zipPath == "" {
		h.editReply(s, i, h.embed("warning", "No archive",
			"No archive exists for this channel ID. Either it is not a tracked ticket or it has no recorded messages."))
		return
	}

	file, err := os.Open(zipPath)
	if err != nil {
		log.Error().Err(err).Str("path", zipPath).Msg("could not open archive")
		h.editReply(s, i, h.embed("error", "Error", "The archive file could not be opened."))
		return
	}
	defer file.Close()

	closedAt := "still open"
	if ticket.ClosedAt != nil {
		closedAt = fmt.Sprintf("<t:%d:F>", ticket.ClosedAt.Unix())
	}

	_, err = s.InteractionResponseEdit(i.Interaction, &discordgo.WebhookEdit{
		Embeds: &[]*discordgo.MessageEmbed{h.embed("info", "Ticket archive",
			fmt.Sprintf("Channel ID: **%s**\nOwner: <@%s>\nClosed: %s", channelID, ticket.UserID, closedAt))},
		Files: []*discordgo.File{{
			Name:        archive.ArchiveName(channelID),
			ContentType: "application/zip",
			Reader:      file,
		}},
	})
	if err != nil {
		log.Error().Err(err).Msg("could not send archive")
	}
}
