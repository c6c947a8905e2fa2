package notify

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/bwmarrin/discordgo"

	"realtopia/internal/game"
)

type fakeSender struct {
	mu     sync.Mutex
	embeds []*discordgo.MessageEmbed
	err    error
}

func (f *fakeSender) ChannelMessageSendEmbed(channelID string, embed *discordgo.MessageEmbed, options ...discordgo.RequestOption) (*discordgo.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.embeds = append(f.embeds, embed)
	return &discordgo.Message{ChannelID: channelID}, f.err
}

func (f *fakeSender) sent() []*discordgo.MessageEmbed {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]*discordgo.MessageEmbed(nil), f.embeds...)
}

func TestEmbedForEventStarted(t *testing.T) {
	embed := embedFor(game.Update{
		Kind: game.UpdateEventStarted,
		Event: &game.MarketEvent{
			Name:          "Tech Boom",
			Description:   "Skyscraper prices rise 50%!",
			Duration:      20 * time.Second,
			Multiplier:    1.5,
			AffectedTypes: []game.PropertyType{game.TypeSkyscraper},
			Color:         "#E91E63",
		},
	})
	if embed == nil {
		t.Fatalf("expected embed")
	}
	if embed.Title != "Tech Boom" {
		t.Fatalf("unexpected title %q", embed.Title)
	}
	if embed.Color != 0xE91E63 {
		t.Fatalf("unexpected color %x", embed.Color)
	}
	if got := embed.Fields[0].Value; got != "x1.50" {
		t.Fatalf("unexpected multiplier field %q", got)
	}
	if got := embed.Fields[2].Value; got != "SKYSCRAPER" {
		t.Fatalf("unexpected affects field %q", got)
	}
}

func TestEmbedForIgnoresOtherKinds(t *testing.T) {
	for _, kind := range []game.UpdateKind{game.UpdateState, game.UpdateProperties, game.UpdateEvents, game.UpdateAchievements} {
		if embed := embedFor(game.Update{Kind: kind}); embed != nil {
			t.Fatalf("kind %s should not produce an embed", kind)
		}
	}
	if embed := embedFor(game.Update{Kind: game.UpdateEventStarted}); embed != nil {
		t.Fatalf("event_started without event should not produce an embed")
	}
}

func TestRunForwardsNotableUpdates(t *testing.T) {
	sender := &fakeSender{err: errors.New("rate limited")}
	d := newDiscord(sender, "chan-1", slog.New(slog.NewTextHandler(io.Discard, nil)))

	updates := make(chan game.Update, 3)
	updates <- game.Update{Kind: game.UpdateState}
	updates <- game.Update{Kind: game.UpdateAchievementUnlocked, Achievement: &game.Achievement{Title: "First Property", RewardMicros: 100 * game.MicrosPerCoin}}
	updates <- game.Update{Kind: game.UpdateEventStarted, Event: &game.MarketEvent{Name: "Economic Crisis", Color: "#F44336"}}
	close(updates)

	d.Run(context.Background(), updates)

	sent := sender.sent()
	if len(sent) != 2 {
		t.Fatalf("expected 2 embeds, got %d", len(sent))
	}
	if sent[0].Title != "Achievement unlocked: First Property" {
		t.Fatalf("unexpected first title %q", sent[0].Title)
	}
	if sent[0].Fields[0].Value != "100.00" {
		t.Fatalf("unexpected reward %q", sent[0].Fields[0].Value)
	}
	if sent[1].Title != "Economic Crisis" {
		t.Fatalf("unexpected second title %q", sent[1].Title)
	}
}

func TestParseColor(t *testing.T) {
	tests := []struct {
		in   string
		want int
	}{
		{"#4CAF50", 0x4CAF50},
		{"FFD700", 0xFFD700},
		{"nope", 0},
	}
	for _, tt := range tests {
		if got := parseColor(tt.in); got != tt.want {
			t.Fatalf("parseColor(%q) = %x, want %x", tt.in, got, tt.want)
		}
	}
}
