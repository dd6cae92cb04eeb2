// Package notify posts journal events to Discord. Notification failures
// are logged and swallowed; they never affect the wizard.
package notify

import (
	"fmt"

	"github.com/bwmarrin/discordgo"

	"github.com/daybookhq/daybook/internal/logging"
)

// DiscordNotifier announces created entries in a Discord channel.
type DiscordNotifier struct {
	session   *discordgo.Session
	channelID string
}

// NewDiscordNotifier opens a Discord session. An empty token or channel
// returns (nil, nil): notifications are simply off.
func NewDiscordNotifier(token, channelID string) (*DiscordNotifier, error) {
	if token == "" || channelID == "" {
		return nil, nil
	}

	session, err := discordgo.New("Bot " + token)
	if err != nil {
		return nil, fmt.Errorf("create discord session: %w", err)
	}
	if err := session.Open(); err != nil {
		return nil, fmt.Errorf("open discord session: %w", err)
	}

	logging.Info("notify", "discord notifications enabled (channel %s)", channelID)
	return &DiscordNotifier{session: session, channelID: channelID}, nil
}

// EntryCreated announces a newly created journal entry.
func (n *DiscordNotifier) EntryCreated(title string, activityCount int) {
	msg := fmt.Sprintf("📓 Journal entry created: **%s** (%d activities)", title, activityCount)
	if _, err := n.session.ChannelMessageSend(n.channelID, msg); err != nil {
		logging.Warn("notify", "discord send failed: %v", err)
	}
}

// Close shuts down the Discord session.
func (n *DiscordNotifier) Close() error {
	return n.session.Close()
}
