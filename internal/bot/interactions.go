// internal/bot/interactions.go
package bot

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"discord-ticket-bot/internal/archive"
	"discord-ticket-bot/internal/tickets"

	"github.com/bwmarrin/discordgo"
	"github.com/rs/zerolog/log"
)

// OnInteractionCreate routes slash commands and message components.
func (h *BotHandler) OnInteractionCreate(s *discordgo.Session, i *discordgo.InteractionCreate) {
	switch i.Type {
	case discordgo.InteractionApplicationCommand:
		switch i.ApplicationCommandData().Name {
		case "setup":
			h.handleSetupCommand(s, i)
		case "logs":
			h.handleLogsCommand(s, i)
		}
	case discordgo.InteractionMessageComponent:
		h.handleComponent(s, i)
	}
}

func (h *BotHandler) handleComponent(s *discordgo.Session, i *discordgo.InteractionCreate) {
	data := i.MessageComponentData()
	id := data.CustomID

	switch {
	case id == "create_ticket_menu":
		category := ""
		if len(data.Values) > 0 {
			category = data.Values[0]
		}
		h.handleCreateTicket(s, i, category)
	case strings.HasPrefix(id, "add_user_menu_"):
		h.handleAddUsers(s, i, strings.TrimPrefix(id, "add_user_menu_"), data.Values)
	case strings.HasPrefix(id, "remove_user_menu_"):
		h.handleRemoveUsers(s, i, strings.TrimPrefix(id, "remove_user_menu_"), data.Values)
	case strings.HasPrefix(id, "transfer_ticket_menu_"):
		h.handleTransferTicket(s, i, strings.TrimPrefix(id, "transfer_ticket_menu_"), data.Values)
	case strings.HasPrefix(id, "close_ticket_"):
		h.handleCloseTicket(s, i, strings.TrimPrefix(id, "close_ticket_"))
	case strings.HasPrefix(id, "add_user_"):
		h.promptUserSelect(s, i, "add_user_menu_"+strings.TrimPrefix(id, "add_user_"),
			"Add users", "Select the users to add to this channel. They will be able to view it and send messages.", 10)
	case strings.HasPrefix(id, "remove_user_"):
		h.promptUserSelect(s, i, "remove_user_menu_"+strings.TrimPrefix(id, "remove_user_"),
			"Remove users", "Select the users to remove from this channel.", 10)
	case strings.HasPrefix(id, "claim_ticket_"):
		h.handleClaimTicket(s, i, strings.TrimPrefix(id, "claim_ticket_"))
	case strings.HasPrefix(id, "transfer_ticket_"):
		h.promptUserSelect(s, i, "transfer_ticket_menu_"+strings.TrimPrefix(id, "transfer_ticket_"),
			"Transfer ticket", "Select the user to hand this ticket over to.", 1)
	}
}

// handleCreateTicket runs the request-ticket flow from the panel menu.
func (h *BotHandler) handleCreateTicket(s *discordgo.Session, i *discordgo.InteractionCreate, category string) {
	if err := h.deferReply(s, i, true); err != nil {
		return
	}

	user := i.Member.User
	cat := categoryOrDefault(category)

	ticket, err := h.tickets.RequestTicket(i.GuildID, user.ID, category)
	if errors.Is(err, tickets.ErrTicketAlreadyOpen) {
		h.editReply(s, i, h.embed("warning", "You already have an open ticket",
			fmt.Sprintf("You already have an open support channel: <#%s>. Please use or close it first.", ticket.ChannelID)))
		return
	}
	if err != nil {
		log.Error().Err(err).Str("user_id", user.ID).Msg("ticket creation failed")
		h.editReply(s, i, h.embed("error", "Error",
			"The support channel could not be created. Please try again later or contact an administrator."))
		return
	}

	welcome := h.embed("success",
		fmt.Sprintf("%s %s Channel", cat.Emoji, cat.Name),
		fmt.Sprintf("This is a private **%s** channel only you and the staff can see. Describe your issue or request here.", cat.Name))

	_, err = s.ChannelMessageSendComplex(ticket.ChannelID, &discordgo.MessageSend{
		Content:    fmt.Sprintf("<@%s> Welcome!", user.ID),
		Embeds:     []*discordgo.MessageEmbed{welcome},
		Components: ticketComponents(ticket.ChannelID),
	})
	if err != nil {
		log.Error().Err(err).Str("channel_id", ticket.ChannelID).Msg("could not send welcome message")
	}

	h.editReply(s, i, h.embed("success", fmt.Sprintf("%s Channel Created", cat.Name),
		fmt.Sprintf("Your **%s** channel is ready: <#%s>", cat.Name, ticket.ChannelID)))
}

// ticketComponents builds the action rows posted into every new ticket.
func ticketComponents(channelID string) []discordgo.MessageComponent {
	return []discordgo.MessageComponent{
		discordgo.ActionsRow{Components: []discordgo.MessageComponent{
			discordgo.Button{CustomID: "close_ticket_" + channelID, Label: "Close Channel", Style: discordgo.DangerButton, Emoji: &discordgo.ComponentEmoji{Name: "🔒"}},
			discordgo.Button{CustomID: "add_user_" + channelID, Label: "Add User", Style: discordgo.SuccessButton, Emoji: &discordgo.ComponentEmoji{Name: "👥"}},
			discordgo.Button{CustomID: "remove_user_" + channelID, Label: "Remove User", Style: discordgo.SecondaryButton, Emoji: &discordgo.ComponentEmoji{Name: "🚫"}},
		}},
		discordgo.ActionsRow{Components: []discordgo.MessageComponent{
			discordgo.Button{CustomID: "claim_ticket_" + channelID, Label: "Claim Ticket", Style: discordgo.PrimaryButton, Emoji: &discordgo.ComponentEmoji{Name: "✋"}},
			discordgo.Button{CustomID: "transfer_ticket_" + channelID, Label: "Transfer Ticket", Style: discordgo.SecondaryButton, Emoji: &discordgo.ComponentEmoji{Name: "🔄"}},
		}},
	}
}

// handleCloseTicket archives the channel, closes the ticket and tears the
// channel down. An archive failure is logged but never blocks the close.
func (h *BotHandler) handleCloseTicket(s *discordgo.Session, i *discordgo.InteractionCreate, channelID string) {
	if i.ChannelID != channelID {
		h.replyEmbed(s, i, "error", "Error", "This action can only be performed in its own channel.", true)
		return
	}

	ticket, err := h.tickets.Get(channelID)
	if err != nil || ticket == nil {
		h.replyEmbed(s, i, "error", "Error", "This channel is not a tracked support ticket.", true)
		return
	}
	if ticket.Closed {
		h.replyEmbed(s, i, "warning", "Already closed", "This ticket has already been closed.", true)
		return
	}
	if !h.isStaff(i.Member) && i.Member.User.ID != ticket.UserID {
		h.replyEmbed(s, i, "error", "Insufficient permissions",
			"Only staff members or the ticket owner can close this channel.", true)
		return
	}

	if err := h.deferReply(s, i, false); err != nil {
		return
	}

	zipPath, err := h.archives.Generate(channelID)
	if err != nil {
		log.Error().Err(err).Str("channel_id", channelID).Msg("archive generation failed")
	}

	if err := h.tickets.Close(channelID); err != nil {
		log.Error().Err(err).Str("channel_id", channelID).Msg("could not close ticket")
		h.editReply(s, i, h.embed("error", "Error", "The ticket could not be closed."))
		return
	}

	h.notifyLogChannel(s, i, ticket.UserID, channelID, zipPath)

	h.editReply(s, i, h.embed("info", "Closing channel",
		"This channel will be deleted in 5 seconds. The full conversation has been archived."))

	time.AfterFunc(5*time.Second, func() {
		if _, err := s.ChannelDelete(channelID); err != nil {
			log.Error().Err(err).Str("channel_id", channelID).Msg("could not delete channel")
		}
	})
}

// notifyLogChannel posts the closure notice, with the archive attached when
// one was generated, into the configured log channel.
func (h *BotHandler) notifyLogChannel(s *discordgo.Session, i *discordgo.InteractionCreate, ownerID, channelID, zipPath string) {
	if h.cfg.LogChannelID == "" {
		return
	}

	archiveStatus := "❌ Not generated."
	if zipPath != "" {
		archiveStatus = "✅ Attached below."
	}

	notice := h.embed("error", "🔒 Support Ticket Closed",
		fmt.Sprintf("Channel ID: **%s**\nClosed by: <@%s>", channelID, i.Member.User.ID),
		&discordgo.MessageEmbedField{
			Name:  "Ticket owner",
			Value: fmt.Sprintf("<@%s> (ID: %s)", ownerID, ownerID),
		},
		&discordgo.MessageEmbedField{
			Name:  "Closed at",
			Value: fmt.Sprintf("<t:%d:F>", time.Now().Unix()),
		},
		&discordgo.MessageEmbedField{
			Name:  "Archive",
			Value: archiveStatus,
		})

	send := &discordgo.MessageSend{Embeds: []*discordgo.MessageEmbed{notice}}

	if zipPath != "" {
		file, err := os.Open(zipPath)
		if err != nil {
			log.Error().Err(err).Str("path", zipPath).Msg("could not open archive for upload")
		} else {
			defer file.Close()
			send.Files = []*discordgo.File{{
				Name:        archive.ArchiveName(channelID),
				ContentType: "application/zip",
				Reader:      file,
			}}
		}
	}

	if _, err := s.ChannelMessageSendComplex(h.cfg.LogChannelID, send); err != nil {
		log.Error().Err(err).Str("channel_id", h.cfg.LogChannelID).Msg("could not post closure notice")
	}
}

// promptUserSelect answers a management button with an ephemeral user
// select menu.
func (h *BotHandler) promptUserSelect(s *discordgo.Session, i *discordgo.InteractionCreate, customID, title, description string, maxValues int) {
	if !h.isStaff(i.Member) {
		h.replyEmbed(s, i, "error", "Insufficient permissions", "Only staff members can do this.", true)
		return
	}

	minValues := 1
	err := s.InteractionRespond(i.Interaction, &discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseChannelMessageWithSource,
		Data: &discordgo.InteractionResponseData{
			Flags:  discordgo.MessageFlagsEphemeral,
			Embeds: []*discordgo.MessageEmbed{h.embed("info", title, description)},
			Components: []discordgo.MessageComponent{
				discordgo.ActionsRow{Components: []discordgo.MessageComponent{
					discordgo.SelectMenu{
						MenuType:  discordgo.UserSelectMenu,
						CustomID:  customID,
						MinValues: &minValues,
						MaxValues: maxValues,
					},
				}},
			},
		},
	})
	if err != nil {
		log.Error().Err(err).Msg("could not send user select prompt")
	}
}

func (h *BotHandler) handleAddUsers(s *discordgo.Session, i *discordgo.InteractionCreate, channelID string, userIDs []string) {
	if i.ChannelID != channelID {
		h.replyEmbed(s, i, "error", "Error", "This action can only be performed in its own channel.", true)
		return
	}
	if err := h.deferReply(s, i, false); err != nil {
		return
	}

	allow := int64(discordgo.PermissionViewChannel |
		discordgo.PermissionSendMessages |
		discordgo.PermissionReadMessageHistory)

	mentions := make([]string, 0, len(userIDs))
	for _, userID := range userIDs {
		err := s.ChannelPermissionSet(channelID, userID, discordgo.PermissionOverwriteTypeMember, allow, 0)
		if err != nil {
			log.Error().Err(err).Str("user_id", userID).Msg("could not add user to channel")
			continue
		}
		mentions = append(mentions, "<@"+userID+">")
	}

	if len(mentions) == 0 {
		h.editReply(s, i, h.embed("error", "Error", "No users could be added to the channel."))
		return
	}

	h.editReply(s, i, h.embed("info", "Users added",
		fmt.Sprintf("%s added %s to the channel.", i.Member.User.Username, strings.Join(mentions, ", "))))
}

func (h *BotHandler) handleRemoveUsers(s *discordgo.Session, i *discordgo.InteractionCreate, channelID string, userIDs []string) {
	if i.ChannelID != channelID {
		h.replyEmbed(s, i, "error", "Error", "This action can only be performed in its own channel.", true)
		return
	}
	if err := h.deferReply(s, i, false); err != nil {
		return
	}

	// Only members holding an explicit overwrite can be removed; everyone
	// else never had per-channel access in the first place.
	overwritten := map[string]bool{}
	if channel, err := s.Channel(channelID); err == nil {
		for _, ow := range channel.PermissionOverwrites {
			if ow.Type == discordgo.PermissionOverwriteTypeMember {
				overwritten[ow.ID] = true
			}
		}
	}

	mentions := make([]string, 0, len(userIDs))
	for _, userID := range userIDs {
		if userID == h.botID || !overwritten[userID] {
			continue
		}
		if err := s.ChannelPermissionDelete(channelID, userID); err != nil {
			log.Error().Err(err).Str("user_id", userID).Msg("could not remove user from channel")
			continue
		}
		mentions = append(mentions, "<@"+userID+">")
	}

	if len(mentions) == 0 {
		h.editReply(s, i, h.embed("warning", "Nothing to do", "No users were removed from the channel."))
		return
	}

	h.editReply(s, i, h.embed("warning", "Users removed",
		fmt.Sprintf("%s removed %s from the channel.", i.Member.User.Username, strings.Join(mentions, ", "))))
}

func (h *BotHandler) handleClaimTicket(s *discordgo.Session, i *discordgo.InteractionCreate, channelID string) {
	if i.ChannelID != channelID {
		h.replyEmbed(s, i, "error", "Error", "This action can only be performed in its own channel.", true)
		return
	}
	if !h.isStaff(i.Member) {
		h.replyEmbed(s, i, "error", "Insufficient permissions", "Only staff members can claim tickets.", true)
		return
	}

	h.replyEmbed(s, i, "success", "Ticket claimed", "You are now handling this ticket.", true)

	_, err := s.ChannelMessageSendEmbed(channelID, h.embed("info", "Ticket claimed",
		fmt.Sprintf("This support ticket is now handled by <@%s>.", i.Member.User.ID)))
	if err != nil {
		log.Error().Err(err).Str("channel_id", channelID).Msg("could not post claim notice")
	}
}

func (h *BotHandler) handleTransferTicket(s *discordgo.Session, i *discordgo.InteractionCreate, channelID string, userIDs []string) {
	if i.ChannelID != channelID || len(userIDs) == 0 {
		h.replyEmbed(s, i, "error", "Error", "This action can only be performed in its own channel.", true)
		return
	}
	if err := h.deferReply(s, i, false); err != nil {
		return
	}

	targetID := userIDs[0]
	if _, err := s.GuildMember(i.GuildID, targetID); err != nil {
		h.editReply(s, i, h.embed("error", "Error", "The selected user could not be found."))
		return
	}

	h.editReply(s, i, h.embed("info", "Ticket transferred",
		fmt.Sprintf("This ticket was handed over to <@%s> by %s.", targetID, i.Member.User.Username)))
}

// --- interaction reply helpers ---

func (h *BotHandler) deferReply(s *discordgo.Session, i *discordgo.InteractionCreate, ephemeral bool) error {
	data := &discordgo.InteractionResponseData{}
	if ephemeral {
		data.Flags = discordgo.MessageFlagsEphemeral
	}
	err := s.InteractionRespond(i.Interaction, &discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseDeferredChannelMessageWithSource,
		Data: data,
	})
	if err != nil {
		log.Error().Err(err).Msg("could not defer interaction")
	}
	return err
}

func (h *BotHandler) editReply(s *discordgo.Session, i *discordgo.InteractionCreate, embed *discordgo.MessageEmbed) {
	_, err := s.InteractionResponseEdit(i.Interaction, &discordgo.WebhookEdit{
		Embeds: &[]*discordgo.MessageEmbed{embed},
	})
	if err != nil {
		log.Error().Err(err).Msg("could not edit interaction response")
	}
}

func (h *BotHandler) replyEmbed(s *discordgo.Session, i *discordgo.InteractionCreate, kind, title, description string, ephemeral bool) {
	data := &discordgo.InteractionResponseData{
		Embeds: []*discordgo.MessageEmbed{h.embed(kind, title, description)},
	}
	if ephemeral {
		data.Flags = discordgo.MessageFlagsEphemeral
	}
	err := s.InteractionRespond(i.Interaction, &discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseChannelMessageWithSource,
		Data: data,
	})
	if err != nil {
		log.Error().Err(err).Msg("could not respond to interaction")
	}
}
