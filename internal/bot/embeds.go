// internal/bot/embeds.go
package bot

import (
	"time"

	"github.com/bwmarrin/discordgo"
)

// embed builds a reply embed colored by kind (error, success, warning,
// info), matching the palette every bot response uses.
func (h *BotHandler) embed(kind, title, description string, fields ...*discordgo.MessageEmbedField) *discordgo.MessageEmbed {
	color := h.cfg.Colors.Info
	switch kind {
	case "error":
		color = h.cfg.Colors.Error
	case "success":
		color = h.cfg.Colors.Success
	case "warning":
		color = h.cfg.Colors.Warning
	}

	return &discordgo.MessageEmbed{
		Title:       title,
		Description: description,
		Color:       color,
		Fields:      fields,
		Timestamp:   time.Now().Format(time.RFC3339),
	}
}
