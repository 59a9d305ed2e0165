package gateway

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/cloudwego/eino-ext/components/model/ark"
	"github.com/cloudwego/eino-ext/components/model/deepseek"
	"github.com/cloudwego/eino-ext/components/model/ollama"
	"github.com/cloudwego/eino-ext/components/model/openai"
	"github.com/cloudwego/eino/components/model"
	"github.com/ollama/ollama/api"
)

// Supported providers
const (
	ProviderGroq       = "groq"
	ProviderOpenAI     = "openai"
	ProviderOpenRouter = "openrouter"
	ProviderDeepSeek   = "deepseek"
	ProviderOllama     = "ollama"
	ProviderArk        = "ark"
)

// ProviderConfig selects and configures the chat model behind the gateway.
type ProviderConfig struct {
	Provider        string        `yaml:"provider" envconfig:"PROVIDER"`
	Model           string        `yaml:"model" envconfig:"NAME"`
	BaseURL         string        `yaml:"base_url" envconfig:"BASE_URL"`
	APIKey          string        `yaml:"api_key" envconfig:"API_KEY"`
	Temperature     float32       `yaml:"temperature" envconfig:"TEMPERATURE"`
	MaxTokens       int           `yaml:"max_tokens" envconfig:"MAX_TOKENS"`
	Timeout         time.Duration `yaml:"timeout" envconfig:"TIMEOUT"`
	IdleTimeout     time.Duration `yaml:"idle_timeout" envconfig:"IDLE_TIMEOUT"`
	MaxHistoryTurns int           `yaml:"max_history_turns" envconfig:"MAX_HISTORY_TURNS"`
}

type providerDefaults struct {
	baseURL string
	model   string
	keyEnv  string
}

var defaults = map[string]providerDefaults{
	ProviderGroq:       {baseURL: "https://api.groq.com/openai/v1", model: "llama-3.1-8b-instant", keyEnv: "GROQ_API_KEY"},
	ProviderOpenAI:     {baseURL: "", model: "gpt-4o-mini", keyEnv: "OPENAI_API_KEY"},
	ProviderOpenRouter: {baseURL: "https://openrouter.ai/api/v1", model: "openai/gpt-3.5-turbo", keyEnv: "OPENROUTER_API_KEY"},
	ProviderDeepSeek:   {baseURL: "", model: "deepseek-chat", keyEnv: "DEEPSEEK_API_KEY"},
	ProviderOllama:     {baseURL: "http://localhost:11434", model: "llama3.1"},
	ProviderArk:        {baseURL: "", model: "", keyEnv: "ARK_API_KEY"},
}

// Providers lists the accepted provider names.
func Providers() []string {
	return []string{ProviderGroq, ProviderOpenAI, ProviderOpenRouter, ProviderDeepSeek, ProviderOllama, ProviderArk}
}

// WithDefaults fills empty fields from the provider's defaults and its
// conventional API key environment variable.
func (c ProviderConfig) WithDefaults() ProviderConfig {
	c.Provider = strings.ToLower(strings.TrimSpace(c.Provider))
	if c.Provider == "" {
		c.Provider = ProviderGroq
	}
	d, ok := defaults[c.Provider]
	if !ok {
		return c
	}
	if c.BaseURL == "" {
		c.BaseURL = d.baseURL
	}
	if c.Model == "" {
		c.Model = d.model
	}
	if c.APIKey == "" && d.keyEnv != "" {
		c.APIKey = os.Getenv(d.keyEnv)
	}
	return c
}

// Validate checks the provider name and required credentials.
func (c ProviderConfig) Validate() error {
	if _, ok := defaults[c.Provider]; !ok {
		return fmt.Errorf("unknown model provider %q (want one of %s)", c.Provider, strings.Join(Providers(), ", "))
	}
	if c.Model == "" {
		return fmt.Errorf("model name is required for provider %q", c.Provider)
	}
	if c.Provider != ProviderOllama && c.APIKey == "" {
		return fmt.Errorf("API key is required for provider %q", c.Provider)
	}
	if c.MaxHistoryTurns < 0 {
		return fmt.Errorf("max_history_turns must not be negative")
	}
	if c.MaxTokens < 0 {
		return fmt.Errorf("max_tokens must not be negative")
	}
	return nil
}

// NewChatModel builds the eino chat model for the configured provider.
func NewChatModel(ctx context.Context, cfg ProviderConfig) (model.BaseChatModel, error) {
	cfg = cfg.WithDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	switch cfg.Provider {
	case ProviderGroq, ProviderOpenAI, ProviderOpenRouter:
		modelConfig := &openai.ChatModelConfig{
			APIKey:  cfg.APIKey,
			BaseURL: cfg.BaseURL,
			Model:   cfg.Model,
			Timeout: cfg.Timeout,
		}
		if cfg.MaxTokens > 0 {
			maxTokens := cfg.MaxTokens
			modelConfig.MaxTokens = &maxTokens
		}
		if cfg.Temperature > 0 {
			temperature := cfg.Temperature
			modelConfig.Temperature = &temperature
		}
		cm, err := openai.NewChatModel(ctx, modelConfig)
		if err != nil {
			return nil, fmt.Errorf("error creating %s chat model: %w", cfg.Provider, err)
		}
		return cm, nil

	case ProviderDeepSeek:
		cm, err := deepseek.NewChatModel(ctx, &deepseek.ChatModelConfig{
			APIKey:  cfg.APIKey,
			Model:   cfg.Model,
			BaseURL: cfg.BaseURL,
		})
		if err != nil {
			return nil, fmt.Errorf("error creating deepseek chat model: %w", err)
		}
		return cm, nil

	case ProviderOllama:
		options := &api.Options{}
		if cfg.Temperature > 0 {
			options.Temperature = cfg.Temperature
		}
		if cfg.MaxTokens > 0 {
			options.NumPredict = cfg.MaxTokens
		}
		cm, err := ollama.NewChatModel(ctx, &ollama.ChatModelConfig{
			BaseURL: cfg.BaseURL,
			Model:   cfg.Model,
			Timeout: cfg.Timeout,
			Options: options,
		})
		if err != nil {
			return nil, fmt.Errorf("error creating ollama chat model: %w", err)
		}
		return cm, nil

	case ProviderArk:
		cm, err := ark.NewChatModel(ctx, &ark.ChatModelConfig{
			APIKey:  cfg.APIKey,
			Model:   cfg.Model,
			BaseURL: cfg.BaseURL,
		})
		if err != nil {
			return nil, fmt.Errorf("error creating ark chat model: %w", err)
		}
		return cm, nil
	}

	return nil, fmt.Errorf("unknown model provider %q", cfg.Provider)
}
