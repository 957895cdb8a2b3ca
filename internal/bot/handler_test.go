// internal/bot/handler_test.go
package bot

import (
	"testing"

	"discord-ticket-bot/internal/config"

	"github.com/bwmarrin/discordgo"
	"github.com/stretchr/testify/assert"
)

func TestChannelNameSafe(t *testing.T) {
	assert.Equal(t, "alice", channelNameSafe("Alice"))
	assert.Equal(t, "john-doe", channelNameSafe("  John Doe "))
}

func TestCategoryOrDefault(t *testing.T) {
	assert.Equal(t, "technical", categoryOrDefault("technical_support").Prefix)
	assert.Equal(t, "support", categoryOrDefault("").Prefix)
	assert.Equal(t, "support", categoryOrDefault("no_such_category").Prefix)
}

func TestIsStaff(t *testing.T) {
	h := &BotHandler{cfg: &config.Config{StaffRoleID: "staff-role"}}

	assert.False(t, h.isStaff(nil))
	assert.False(t, h.isStaff(&discordgo.Member{Roles: []string{"other"}}))
	assert.True(t, h.isStaff(&discordgo.Member{Roles: []string{"other", "staff-role"}}))

	// Without a configured staff role nobody is staff.
	h.cfg.StaffRoleID = ""
	assert.False(t, h.isStaff(&discordgo.Member{Roles: []string{"staff-role"}}))
}

func TestNormalizeMessage(t *testing.T) {
	h := &BotHandler{}

	m := &discordgo.MessageCreate{Message: &discordgo.Message{
		ID:        "m1",
		ChannelID: "c1",
		GuildID:   "g1",
		Content:   "hi",
		Author:    &discordgo.User{ID: "u1", Username: "alice"},
		Attachments: []*discordgo.MessageAttachment{
			{ID: "a1", Filename: "shot.png", URL: "https://cdn.example.com/shot.png", Size: 2048},
		},
		Embeds: []*discordgo.MessageEmbed{
			{Title: "Status", Color: 0x4287f5, Footer: &discordgo.MessageEmbedFooter{Text: "footer"}},
		},
	}}

	msg := h.normalizeMessage(m)
	assert.Equal(t, "m1", msg.MessageID)
	assert.Equal(t, "alice", msg.Username)

	if assert.Len(t, msg.Attachments, 1) {
		assert.Equal(t, "shot.png", msg.Attachments[0].Name)
		assert.Equal(t, int64(2048), msg.Attachments[0].Size)
	}
	if assert.Len(t, msg.Embeds, 1) {
		assert.Equal(t, "Status", msg.Embeds[0].Title)
		assert.Equal(t, "footer", msg.Embeds[0].Footer.Text)
	}
}
