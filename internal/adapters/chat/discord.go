package chat

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/bwmarrin/discordgo"
	"github.com/phuslu/log"

	"github.com/0xcro3dile/docqa-go/internal/domain/entities"
	"github.com/0xcro3dile/docqa-go/internal/logging"
)

const (
	// MaxMessageRunes is Discord's message length limit.
	MaxMessageRunes = 2000
	truncatedMarker = "\n[...]"
)

// DiscordTransport wires a Bot to the Discord gateway.
type DiscordTransport struct {
	session *discordgo.Session
	logger  *log.Logger

	wg sync.WaitGroup
}

// NewDiscordTransport creates a session for a bot token. Nothing connects
// until Run.
func NewDiscordTransport(token string, logger *log.Logger) (*DiscordTransport, error) {
	if token == "" {
		return nil, errors.New("discord token is required")
	}
	session, err := discordgo.New("Bot " + token)
	if err != nil {
		return nil, fmt.Errorf("creating discord session: %w", err)
	}
	session.Identify.Intents = discordgo.IntentsGuildMessages |
		discordgo.IntentsDirectMessages |
		discordgo.IntentsMessageContent

	return &DiscordTransport{session: session, logger: logging.OrNop(logger)}, nil
}

// Send posts content to a channel, truncated to the message limit.
func (t *DiscordTransport) Send(ctx context.Context, channelID, content string) error {
	_, err := t.session.ChannelMessageSend(channelID, Truncate(content, MaxMessageRunes), discordgo.WithContext(ctx))
	return err
}

// Run connects, serves messages through bot until ctx is done, then waits
// for in-flight answers and closes the gateway.
func (t *DiscordTransport) Run(ctx context.Context, bot *Bot) error {
	t.session.AddHandler(func(s *discordgo.Session, r *discordgo.Ready) {
		bot.SetSelfID(r.User.ID)
		t.logger.Info().Str("user", r.User.Username).Int("guilds", len(r.Guilds)).Msg("discord connected")
	})
	t.session.AddHandler(func(s *discordgo.Session, m *discordgo.MessageCreate) {
		t.dispatch(ctx, s, m, bot)
	})

	if err := t.session.Open(); err != nil {
		return fmt.Errorf("opening discord gateway: %w", err)
	}
	if id := stateUserID(t.session); id != "" {
		bot.SetSelfID(id)
	}

	<-ctx.Done()
	t.logger.Info().Msg("discord shutting down")
	t.wg.Wait()
	return t.session.Close()
}

// dispatch hands a message to bot in its own goroutine. The session state
// is consulted for the bot's user ID, so its own messages are dropped even
// when Ready has not been handled yet. It reports whether msg was dispatched.
func (t *DiscordTransport) dispatch(ctx context.Context, s *discordgo.Session, m *discordgo.MessageCreate, bot *Bot) bool {
	if id := stateUserID(s); id != "" {
		bot.SetSelfID(id)
	}
	msg := toChatMessage(m)
	if !bot.Handles(msg) {
		return false
	}
	t.wg.Add(1)
	go func() {
		defer t.wg.Done()
		bot.HandleMessage(ctx, msg)
	}()
	return true
}

func stateUserID(s *discordgo.Session) string {
	if s == nil || s.State == nil {
		return ""
	}
	s.State.RLock()
	defer s.State.RUnlock()
	if s.State.User == nil {
		return ""
	}
	return s.State.User.ID
}

func toChatMessage(m *discordgo.MessageCreate) entities.ChatMessage {
	msg := entities.ChatMessage{
		ID:        m.ID,
		ChannelID: m.ChannelID,
		Content:   m.Content,
	}
	if m.Author != nil {
		msg.AuthorID = m.Author.ID
	}
	return msg
}

// Truncate shortens s to at most limit runes, ending with a marker when
// anything was cut.
func Truncate(s string, limit int) string {
	runes := []rune(s)
	if len(runes) <= limit {
		return s
	}
	marker := []rune(truncatedMarker)
	if limit <= len(marker) {
		return string(runes[:limit])
	}
	return string(runes[:limit-len(marker)]) + truncatedMarker
}
