package notify

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"strings"

	"github.com/bwmarrin/discordgo"

	"realtopia/internal/game"
)

type embedSender interface {
	ChannelMessageSendEmbed(channelID string, embed *discordgo.MessageEmbed, options ...discordgo.RequestOption) (*discordgo.Message, error)
}

// Discord posts market events and achievement unlocks to a channel.
type Discord struct {
	session   embedSender
	channelID string
	log       *slog.Logger
}

func NewDiscord(token, channelID string, logger *slog.Logger) (*Discord, error) {
	session, err := discordgo.New("Bot " + token)
	if err != nil {
		return nil, fmt.Errorf("discord session: %w", err)
	}
	return newDiscord(session, channelID, logger), nil
}

func newDiscord(sender embedSender, channelID string, logger *slog.Logger) *Discord {
	if logger == nil {
		logger = slog.Default()
	}
	return &Discord{session: sender, channelID: channelID, log: logger}
}

// Run forwards updates until ctx is done or the channel closes.
func (d *Discord) Run(ctx context.Context, updates <-chan game.Update) {
	for {
		select {
		case <-ctx.Done():
			return
		case u, ok := <-updates:
			if !ok {
				return
			}
			embed := embedFor(u)
			if embed == nil {
				continue
			}
			if _, err := d.session.ChannelMessageSendEmbed(d.channelID, embed, discordgo.WithContext(ctx)); err != nil {
				d.log.Warn("discord notify failed", "kind", u.Kind, "err", err)
			}
		}
	}
}

func embedFor(u game.Update) *discordgo.MessageEmbed {
	switch u.Kind {
	case game.UpdateEventStarted:
		if u.Event == nil {
			return nil
		}
		ev := u.Event
		types := make([]string, 0, len(ev.AffectedTypes))
		for _, t := range ev.AffectedTypes {
			types = append(types, string(t))
		}
		return &discordgo.MessageEmbed{
			Title:       ev.Name,
			Description: ev.Description,
			Color:       parseColor(ev.Color),
			Fields: []*discordgo.MessageEmbedField{
				{Name: "Multiplier", Value: fmt.Sprintf("x%.2f", ev.Multiplier), Inline: true},
				{Name: "Duration", Value: ev.Duration.String(), Inline: true},
				{Name: "Affects", Value: strings.Join(types, ", ")},
			},
		}
	case game.UpdateAchievementUnlocked:
		if u.Achievement == nil {
			return nil
		}
		a := u.Achievement
		return &discordgo.MessageEmbed{
			Title:       "Achievement unlocked: " + a.Title,
			Description: a.Description,
			Color:       0xFFD700,
			Fields: []*discordgo.MessageEmbedField{
				{Name: "Reward", Value: fmt.Sprintf("%.2f", game.MicrosToCoins(a.RewardMicros)), Inline: true},
			},
		}
	default:
		return nil
	}
}

func parseColor(hex string) int {
	v, err := strconv.ParseInt(strings.TrimPrefix(hex, "#"), 16, 32)
	if err != nil {
		return 0
	}
	return int(v)
}
