package main

import (
	"context"
	"fmt"
	"os"

	"github.com/ternarybob/banner"

	"github.com/0xcro3dile/docqa-go/internal/adapters/chat"
	httpapi "github.com/0xcro3dile/docqa-go/internal/infrastructure/http"
	"github.com/0xcro3dile/docqa-go/internal/infrastructure/mcp"
	"github.com/0xcro3dile/docqa-go/internal/infrastructure/tui"
)

const defaultQuestion = "How doing I use Aim with HuggingFace spaces?"

type AskCmd struct {
	Question string `arg:"" optional:"" help:"Question to ask."`
}

func (c *AskCmd) Run(ctx context.Context, g *Globals) error {
	cfg, err := g.load()
	if err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return err
	}
	qa, err := g.build(ctx, cfg)
	if err != nil {
		return err
	}
	defer g.closeQA(qa)

	question := c.Question
	if question == "" {
		question = defaultQuestion
	}
	answer, err := qa.Pipeline.Run(ctx, question)
	if err != nil {
		return err
	}
	fmt.Println(answer)
	return nil
}

type DiscordCmd struct {
	Lock string `help:"Single-instance lock file." type:"path"`
}

func (c *DiscordCmd) Run(ctx context.Context, g *Globals) error {
	cfg, err := g.load()
	if err != nil {
		return err
	}
	if c.Lock != "" {
		cfg.Discord.LockFile = c.Lock
	}
	if err := cfg.ValidateDiscord(); err != nil {
		return err
	}

	unlock, err := acquireInstanceLock(cfg.Discord.LockFile)
	if err != nil {
		return err
	}
	defer unlock()

	banner.PrintSimple("docqa discord", version)

	qa, err := g.build(ctx, cfg)
	if err != nil {
		return err
	}
	defer g.closeQA(qa)

	stopFlush, err := startFlusher(cfg, qa.Tracker, g.logger)
	if err != nil {
		return err
	}
	defer stopFlush()

	stopWatch := startWatch(ctx, cfg, g.logger)
	defer stopWatch()

	transport, err := chat.NewDiscordTransport(cfg.Discord.Token, g.logger)
	if err != nil {
		return err
	}
	bot := chat.NewBot(qa.Pipeline, transport, chat.BotConfig{
		CommandPrefix:  cfg.Discord.CommandPrefix,
		Ack:            cfg.Discord.Ack,
		FailureMessage: cfg.Discord.Failure,
		MaxInFlight:    cfg.Discord.MaxInFlight,
	}, g.logger)

	return transport.Run(ctx, bot)
}

type ServeCmd struct {
	Addr string `help:"Listen address (default :8080)."`
}

func (c *ServeCmd) Run(ctx context.Context, g *Globals) error {
	cfg, err := g.load()
	if err != nil {
		return err
	}
	if c.Addr != "" {
		cfg.HTTP.Addr = c.Addr
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	banner.PrintSimple("docqa", version)

	qa, err := g.build(ctx, cfg)
	if err != nil {
		return err
	}
	defer g.closeQA(qa)

	stopFlush, err := startFlusher(cfg, qa.Tracker, g.logger)
	if err != nil {
		return err
	}
	defer stopFlush()

	stopWatch := startWatch(ctx, cfg, g.logger)
	defer stopWatch()

	return httpapi.NewServer(qa.Pipeline, qa.Retriever, cfg.HTTP.Addr, g.logger).Start(ctx)
}

type TUICmd struct{}

func (c *TUICmd) Run(ctx context.Context, g *Globals) error {
	// the alt screen owns the terminal
	if g.LogLevel == "" {
		g.LogLevel = "error"
	}
	cfg, err := g.load()
	if err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return err
	}
	qa, err := g.build(ctx, cfg)
	if err != nil {
		return err
	}
	defer g.closeQA(qa)

	return tui.Run(ctx, qa.Pipeline, qa.Summary())
}

type MCPCmd struct{}

func (c *MCPCmd) Run(ctx context.Context, g *Globals) error {
	if g.LogLevel == "" {
		g.LogLevel = "warn"
	}
	cfg, err := g.load()
	if err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return err
	}
	qa, err := g.build(ctx, cfg)
	if err != nil {
		return err
	}
	defer g.closeQA(qa)

	fmt.Fprintf(os.Stderr, "docqa mcp %s ready: %s\n", version, qa.Summary())
	return mcp.ServeStdio(mcp.NewServer(qa.Pipeline, version, g.logger))
}
