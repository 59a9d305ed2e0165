package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"
	"time"

	"interview_agent/internal/conversation"
	"interview_agent/internal/gateway"
	"interview_agent/internal/logger"

	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v3"
)

// EnvPrefix prefixes every environment override, e.g. INTERVIEW_SERVER_ADDR.
const EnvPrefix = "INTERVIEW"

// Config represents the structure of config.yaml
type Config struct {
	Server    ServerConfig           `yaml:"server" envconfig:"SERVER"`
	Log       logger.Config          `yaml:"log" envconfig:"LOG"`
	Model     gateway.ProviderConfig `yaml:"model" envconfig:"MODEL"`
	Interview InterviewConfig        `yaml:"interview" envconfig:"INTERVIEW"`
	Store     StoreConfig            `yaml:"store" envconfig:"STORE"`
}

type ServerConfig struct {
	Addr            string        `yaml:"addr" envconfig:"ADDR"`
	CORSOrigins     []string      `yaml:"cors_origins" envconfig:"CORS_ORIGINS"`
	ReadTimeout     time.Duration `yaml:"read_timeout" envconfig:"READ_TIMEOUT"`
	WriteTimeout    time.Duration `yaml:"write_timeout" envconfig:"WRITE_TIMEOUT"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout" envconfig:"SHUTDOWN_TIMEOUT"`
	MaxQuestionLen  int           `yaml:"max_question_length" envconfig:"MAX_QUESTION_LENGTH"`
	MaxMessages     int           `yaml:"max_messages" envconfig:"MAX_MESSAGES"`
}

type InterviewConfig struct {
	Candidate      string `yaml:"candidate" envconfig:"CANDIDATE"`
	TotalQuestions int    `yaml:"total_questions" envconfig:"TOTAL_QUESTIONS"`
	FollowUpPolicy string `yaml:"follow_up_policy" envconfig:"FOLLOW_UP_POLICY"`
	KnowledgeFile  string `yaml:"knowledge_file" envconfig:"KNOWLEDGE_FILE"`
	PersonaFile    string `yaml:"persona_file" envconfig:"PERSONA_FILE"`
}

type StoreConfig struct {
	Backend  string        `yaml:"backend" envconfig:"BACKEND"` // memory or redis
	RedisURL string        `yaml:"redis_url" envconfig:"REDIS_URL"`
	TTL      time.Duration `yaml:"ttl" envconfig:"TTL"`
}

// Default returns the configuration used when no file or environment
// overrides are present.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Addr:            ":8080",
			CORSOrigins:     []string{"http://localhost:3000"},
			ReadTimeout:     30 * time.Second,
			WriteTimeout:    120 * time.Second,
			ShutdownTimeout: 10 * time.Second,
			MaxQuestionLen:  4000,
			MaxMessages:     100,
		},
		Log: logger.DefaultConfig(),
		Model: gateway.ProviderConfig{
			Provider:    gateway.ProviderGroq,
			IdleTimeout: gateway.DefaultIdleTimeout,
		},
		Interview: InterviewConfig{
			Candidate:      "Sean Kennedy",
			TotalQuestions: conversation.DefaultTotalQuestions,
			FollowUpPolicy: string(conversation.FollowUpsInitial),
		},
		Store: StoreConfig{
			Backend: "memory",
			TTL:     40 * time.Minute,
		},
	}
}

// LoadConfig reads config.yaml (a missing file is not an error), applies
// INTERVIEW_* environment overrides and fills provider defaults.
func LoadConfig(filepath string) (*Config, error) {
	config := Default()

	if filepath != "" {
		data, err := os.ReadFile(filepath)
		switch {
		case errors.Is(err, fs.ErrNotExist):
		case err != nil:
			return nil, fmt.Errorf("error reading config file: %w", err)
		default:
			if err := yaml.Unmarshal(data, config); err != nil {
				return nil, fmt.Errorf("error parsing YAML: %w", err)
			}
		}
	}

	if err := envconfig.Process(EnvPrefix, config); err != nil {
		return nil, fmt.Errorf("error processing environment configuration: %w", err)
	}

	// REDIS_URL is honoured without the prefix, as most hosts inject it that way.
	if config.Store.RedisURL == "" {
		config.Store.RedisURL = os.Getenv("REDIS_URL")
	}
	config.Model = config.Model.WithDefaults()

	return config, nil
}

// Validate checks everything except model credentials, which only the
// commands that call the model need.
func (c *Config) Validate() error {
	if c.Server.Addr == "" {
		return fmt.Errorf("server.addr is required")
	}
	if c.Server.MaxQuestionLen <= 0 {
		return fmt.Errorf("server.max_question_length must be positive")
	}
	if c.Server.MaxMessages <= 0 {
		return fmt.Errorf("server.max_messages must be positive")
	}
	if c.Interview.TotalQuestions <= 0 {
		return fmt.Errorf("interview.total_questions must be positive")
	}
	switch conversation.FollowUpPolicy(c.Interview.FollowUpPolicy) {
	case conversation.FollowUpsInitial, conversation.FollowUpsRandomCategory:
	default:
		return fmt.Errorf("unknown interview.follow_up_policy %q", c.Interview.FollowUpPolicy)
	}
	switch strings.ToLower(c.Store.Backend) {
	case "memory":
	case "redis":
		if c.Store.RedisURL == "" {
			return fmt.Errorf("store.redis_url is required for the redis backend")
		}
	default:
		return fmt.Errorf("unknown store.backend %q", c.Store.Backend)
	}
	if c.Store.TTL <= 0 {
		return fmt.Errorf("store.ttl must be positive")
	}
	return nil
}
