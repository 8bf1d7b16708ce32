// Command docqa answers questions about a Markdown documentation tree, from
// the command line, Discord, HTTP, a terminal UI or an MCP client.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/alecthomas/kong"
	"github.com/joho/godotenv"
	"github.com/phuslu/log"

	"github.com/0xcro3dile/docqa-go/internal/app"
	"github.com/0xcro3dile/docqa-go/internal/config"
	"github.com/0xcro3dile/docqa-go/internal/logging"
)

var version = "dev"

// Globals are the flags shared by every subcommand. Non-zero flags override
// the config file.
type Globals struct {
	Config    string `help:"YAML or TOML config file." short:"c" type:"path"`
	Docs      string `help:"Documentation directory (default ../aim/docs/source)." type:"path"`
	K         int    `help:"Chunks retrieved per question."`
	Provider  string `help:"Language model provider: openai, anthropic, gemini or ollama."`
	Model     string `help:"Language model name."`
	Embedder  string `help:"Embedding provider: tfidf, openai, gemini or ollama."`
	Track     bool   `help:"Record prompts and responses to the sqlite tracker."`
	Watch     bool   `help:"Warn when the documentation changes after the index is built."`
	LogLevel  string `help:"Log level." name:"log-level"`
	LogFormat string `help:"Log format: console or json." name:"log-format"`

	logger *log.Logger `kong:"-"`
}

type CLI struct {
	Globals

	Ask     AskCmd     `cmd:"" default:"withargs" help:"Answer one question and exit."`
	Discord DiscordCmd `cmd:"" help:"Run the Discord bot."`
	Serve   ServeCmd   `cmd:"" help:"Serve the HTTP query API."`
	TUI     TUICmd     `cmd:"" name:"tui" help:"Ask questions in an interactive terminal UI."`
	MCP     MCPCmd     `cmd:"" name:"mcp" help:"Expose the documentation as MCP tools over stdio."`
	Version VersionCmd `cmd:"" help:"Print the version."`
}

func main() {
	_ = godotenv.Load()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var cli CLI
	kctx := kong.Parse(&cli,
		kong.Name("docqa"),
		kong.Description("Documentation question answering with map-reduce over retrieved chunks."),
		kong.UsageOnError(),
		kong.BindTo(ctx, (*context.Context)(nil)),
	)

	if err := kctx.Run(&cli.Globals); err != nil {
		cli.Globals.log().Error().Err(err).Str("command", kctx.Command()).Msg("docqa failed")
		stop()
		os.Exit(1)
	}
}

func (g *Globals) log() *log.Logger {
	if g.logger == nil {
		g.logger = logging.New("info", "console")
	}
	return g.logger
}

// load reads the config file, applies the flags, validates and sets up the
// logger.
func (g *Globals) load() (*config.Config, error) {
	cfg, err := config.Load(g.Config)
	if err != nil {
		return nil, err
	}
	if g.Docs != "" {
		cfg.DocsDir = g.Docs
	}
	if g.K > 0 {
		cfg.Retrieval.K = g.K
	}
	if g.Provider != "" {
		cfg.LLM.Provider = g.Provider
	}
	if g.Model != "" {
		cfg.LLM.Model = g.Model
	}
	if g.Embedder != "" {
		cfg.Embedder.Provider = g.Embedder
	}
	if g.Track {
		cfg.Tracker.Enabled = true
	}
	if g.Watch {
		cfg.Watch = true
	}
	if g.LogLevel != "" {
		cfg.Log.Level = g.LogLevel
	}
	if g.LogFormat != "" {
		cfg.Log.Format = g.LogFormat
	}
	g.logger = logging.New(cfg.Log.Level, cfg.Log.Format)
	return cfg, nil
}

func (g *Globals) build(ctx context.Context, cfg *config.Config) (*app.QA, error) {
	qa, err := app.Build(ctx, cfg, g.logger)
	if err != nil {
		return nil, err
	}
	g.logger.Info().Str("summary", qa.Summary()).Msg("pipeline ready")
	return qa, nil
}

// closeQA finishes the tracked run. It runs on a fresh context so that a
// cancelled signal context still gets its final flush.
func (g *Globals) closeQA(qa *app.QA) {
	if err := qa.Close(context.Background()); err != nil {
		g.logger.Warn().Err(err).Msg("final tracker flush failed")
	}
}

type VersionCmd struct{}

func (VersionCmd) Run() error {
	_, err := os.Stdout.WriteString("docqa " + version + "\n")
	return err
}
