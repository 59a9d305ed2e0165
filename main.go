package main

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"
	"time"

	"interview_agent/internal/config"
	"interview_agent/internal/conversation"
	"interview_agent/internal/gateway"
	"interview_agent/internal/knowledge"
	"interview_agent/internal/logger"
	"interview_agent/internal/resolver"
	"interview_agent/internal/storage"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

var (
	configPath string
	envFile    string
	jsonOutput bool

	cfg *config.Config
)

var rootCmd = &cobra.Command{
	Use:   "interview_agent",
	Short: "Answer interview questions as the candidate, from a curated graph or a language model",
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		// a missing .env is normal outside local development
		if err := godotenv.Load(envFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("error loading %s: %w", envFile, err)
		}

		loaded, err := config.LoadConfig(configPath)
		if err != nil {
			return err
		}
		if err := loaded.Validate(); err != nil {
			return fmt.Errorf("invalid configuration: %w", err)
		}
		if err := logger.InitLogger(loaded.Log); err != nil {
			return fmt.Errorf("error initializing logger: %w", err)
		}
		cfg = loaded
		return nil
	},
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "config.yaml", "path to the YAML config file")
	rootCmd.PersistentFlags().StringVar(&envFile, "env-file", ".env", "dotenv file loaded before the config")
	rootCmd.PersistentFlags().BoolVar(&jsonOutput, "json", false, "output as JSON")

	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(askCmd)
	rootCmd.AddCommand(questionsCmd)
	rootCmd.AddCommand(transcriptCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// app holds the components shared by the commands.
type app struct {
	graph    *knowledge.Store
	resolver *resolver.Resolver
	gateway  *gateway.Gateway
}

// loadGraph reads the configured knowledge file, or the built-in graph.
func loadGraph() (*knowledge.Store, error) {
	log := logger.Component("knowledge")

	var (
		graph *knowledge.Store
		err   error
	)
	if cfg.Interview.KnowledgeFile != "" {
		graph, err = knowledge.LoadFile(cfg.Interview.KnowledgeFile)
	} else {
		graph, err = knowledge.Default()
	}
	if err != nil {
		return nil, err
	}

	for _, ref := range graph.Dangling() {
		log.Warn().Str("from", ref.From).Str("to", ref.To).Msg("follow-up points at an unknown node")
	}
	log.Info().Int("nodes", graph.Len()).Msg("knowledge graph loaded")
	return graph, nil
}

// newApp wires the graph, resolver and model gateway.
func newApp(ctx context.Context) (*app, error) {
	graph, err := loadGraph()
	if err != nil {
		return nil, err
	}

	if err := cfg.Model.Validate(); err != nil {
		return nil, fmt.Errorf("invalid model configuration: %w", err)
	}
	chatModel, err := gateway.NewChatModel(ctx, cfg.Model)
	if err != nil {
		return nil, err
	}
	persona, err := gateway.LoadPersona(cfg.Interview.PersonaFile)
	if err != nil {
		return nil, err
	}
	gw, err := gateway.New(ctx, chatModel, gateway.Options{
		Persona:         persona,
		IdleTimeout:     cfg.Model.IdleTimeout,
		MaxHistoryTurns: cfg.Model.MaxHistoryTurns,
	}, logger.Logger)
	if err != nil {
		return nil, err
	}

	logger.Info().
		Str("provider", cfg.Model.Provider).
		Str("model", cfg.Model.Model).
		Msg("model gateway ready")

	return &app{graph: graph, resolver: resolver.New(graph), gateway: gw}, nil
}

// newController starts a fresh interview session.
func (a *app) newController() *conversation.Controller {
	return conversation.NewController(a.resolver, a.gateway, a.graph, conversation.Options{
		TotalQuestions: cfg.Interview.TotalQuestions,
		FollowUps:      conversation.FollowUpPolicy(cfg.Interview.FollowUpPolicy),
		Logger:         logger.Component("conversation"),
	})
}

// lockMargin pads the session lock beyond the server write timeout.
const lockMargin = 30 * time.Second

// openStore connects the configured session backend.
func openStore(ctx context.Context) (storage.Store, error) {
	switch strings.ToLower(cfg.Store.Backend) {
	case "redis":
		store, err := storage.NewRedisStore(ctx, cfg.Store.RedisURL, cfg.Store.TTL)
		if err != nil {
			return nil, err
		}
		// a lock must outlive the longest answer the server lets a request stream
		if cfg.Server.WriteTimeout > 0 {
			store.WithLockTTL(cfg.Server.WriteTimeout + lockMargin)
		}
		logger.Info().Msg("using redis session store")
		return store, nil
	default:
		return storage.NewMemoryStore(cfg.Store.TTL), nil
	}
}
