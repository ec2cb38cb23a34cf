package main

import (
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/ashureev/care-assistant/data"
	"github.com/ashureev/care-assistant/internal/agent"
	"github.com/ashureev/care-assistant/internal/config"
	"github.com/ashureev/care-assistant/internal/dataset"
	"github.com/ashureev/care-assistant/internal/llm"
	"github.com/ashureev/care-assistant/internal/session"
	"github.com/ashureev/care-assistant/internal/tools"
)

// Version is set via ldflags at build time.
var Version = "dev"

var (
	cfgFile string
	verbose bool
)

var rootCmd = &cobra.Command{
	Use:   "care",
	Short: "Conversational assistant for health insurance members",
	Long: `CARE answers members' questions about their plan, benefits and claims.
It identifies the member by name, picks the lookup tools a question needs,
and answers from the results.`,
	SilenceUsage: true,
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.Version = Version
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "care.yml", "config file path")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")
}

// setupLogger installs the default slog logger. Commands that own stdout
// (chat, mcp) log text to stderr instead.
func setupLogger(w io.Writer, json bool) {
	level := slog.LevelInfo
	if verbose {
		level = slog.LevelDebug
	}
	opts := &slog.HandlerOptions{Level: level}
	var h slog.Handler = slog.NewTextHandler(w, opts)
	if json {
		h = slog.NewJSONHandler(w, opts)
	}
	slog.SetDefault(slog.New(h))
}

// app holds what every command needs.
type app struct {
	cfg      *config.Config
	data     *dataset.Dataset
	registry *tools.Registry
}

func loadApp() (*app, error) {
	if err := godotenv.Load(); err != nil {
		slog.Debug("No .env file found, using environment variables")
	}

	cfg, err := config.Load(cfgFile)
	if err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}

	var fsys fs.FS = data.FS
	if cfg.DataDir != "" {
		fsys = os.DirFS(cfg.DataDir)
	}
	d, err := dataset.Load(fsys)
	if err != nil {
		return nil, fmt.Errorf("loading dataset: %w", err)
	}
	slog.Info("Dataset loaded", "counts", d.Stats(), "source", dataSource(cfg))

	return &app{cfg: cfg, data: d, registry: tools.NewRegistry(d)}, nil
}

func dataSource(cfg *config.Config) string {
	if cfg.DataDir == "" {
		return "embedded"
	}
	return cfg.DataDir
}

// newService wires the language model, engine and session store. archive
// may be nil.
func (a *app) newService(sessions *session.Store, archive agent.Archive) (*agent.Service, error) {
	provider, err := llm.NewProvider(a.cfg.LLM)
	if err != nil {
		return nil, fmt.Errorf("creating llm provider: %w", err)
	}
	client := llm.NewClient(provider, a.cfg.LLM)
	slog.Info("Language model ready", "provider", client.Name(), "model", a.cfg.LLM.Model)

	engine := agent.NewEngine(client, a.data, a.registry)
	return agent.NewService(engine, sessions, archive, a.cfg.TurnTimeout), nil
}
