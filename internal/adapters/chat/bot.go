// Package chat connects the QA pipeline to a chat platform. Bot holds the
// platform-independent message handling; DiscordTransport feeds it.
package chat

import (
	"context"
	"strings"
	"sync/atomic"

	"github.com/phuslu/log"

	"github.com/0xcro3dile/docqa-go/internal/domain/entities"
	"github.com/0xcro3dile/docqa-go/internal/logging"
)

const (
	DefaultCommandPrefix  = "/question"
	DefaultAck            = "searching..."
	DefaultFailureMessage = "Sorry, I could not answer that question right now."
	DefaultMaxInFlight    = 4
)

// Answerer runs one question through the QA chain.
type Answerer interface {
	Run(ctx context.Context, question string) (string, error)
}

// Messenger posts text to a channel.
type Messenger interface {
	Send(ctx context.Context, channelID, content string) error
}

// BotConfig holds the user-visible strings and the concurrency bound.
type BotConfig struct {
	CommandPrefix  string
	Ack            string
	FailureMessage string
	MaxInFlight    int
}

func (c BotConfig) withDefaults() BotConfig {
	if c.CommandPrefix == "" {
		c.CommandPrefix = DefaultCommandPrefix
	}
	if c.Ack == "" {
		c.Ack = DefaultAck
	}
	if c.FailureMessage == "" {
		c.FailureMessage = DefaultFailureMessage
	}
	if c.MaxInFlight <= 0 {
		c.MaxInFlight = DefaultMaxInFlight
	}
	return c
}

// Bot answers prefixed messages with the QA pipeline.
type Bot struct {
	answerer  Answerer
	messenger Messenger
	cfg       BotConfig
	sem       chan struct{}
	logger    *log.Logger

	selfID atomic.Value // string
}

func NewBot(answerer Answerer, messenger Messenger, cfg BotConfig, logger *log.Logger) *Bot {
	cfg = cfg.withDefaults()
	return &Bot{
		answerer:  answerer,
		messenger: messenger,
		cfg:       cfg,
		sem:       make(chan struct{}, cfg.MaxInFlight),
		logger:    logging.OrNop(logger),
	}
}

// SetSelfID records the bot's own user ID so its messages are ignored.
func (b *Bot) SetSelfID(id string) { b.selfID.Store(id) }

// Handles reports whether msg is a question the bot answers.
func (b *Bot) Handles(msg entities.ChatMessage) bool {
	if self, _ := b.selfID.Load().(string); self != "" && msg.AuthorID == self {
		return false
	}
	return strings.HasPrefix(msg.Content, b.cfg.CommandPrefix)
}

// HandleMessage acknowledges a question, runs it and posts the result or the
// failure message to the same channel. The full content, prefix included,
// is the question. It blocks while MaxInFlight questions are running.
func (b *Bot) HandleMessage(ctx context.Context, msg entities.ChatMessage) {
	if !b.Handles(msg) {
		return
	}

	select {
	case b.sem <- struct{}{}:
		defer func() { <-b.sem }()
	case <-ctx.Done():
		return
	}

	b.logger.Info().Str("channel", msg.ChannelID).Str("author", msg.AuthorID).Str("message_id", msg.ID).Msg("question received")

	if err := b.messenger.Send(ctx, msg.ChannelID, b.cfg.Ack); err != nil {
		b.logger.Warn().Err(err).Str("channel", msg.ChannelID).Msg("ack send failed")
	}

	reply, err := b.answerer.Run(ctx, msg.Content)
	if err != nil {
		b.logger.Error().Err(err).Str("channel", msg.ChannelID).Str("message_id", msg.ID).Msg("answering failed")
		reply = b.cfg.FailureMessage
	}

	if err := b.messenger.Send(ctx, msg.ChannelID, reply); err != nil {
		b.logger.Error().Err(err).Str("channel", msg.ChannelID).Msg("reply send failed")
	}
}
