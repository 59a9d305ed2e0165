package gateway

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestProviderDefaults(t *testing.T) {
	t.Setenv("GROQ_API_KEY", "gsk-test")

	cfg := ProviderConfig{}.WithDefaults()
	assert.Equal(t, ProviderGroq, cfg.Provider)
	assert.Equal(t, "https://api.groq.com/openai/v1", cfg.BaseURL)
	assert.Equal(t, "llama-3.1-8b-instant", cfg.Model)
	assert.Equal(t, "gsk-test", cfg.APIKey)
	assert.NoError(t, cfg.Validate())
}

func TestProviderExplicitValuesWin(t *testing.T) {
	t.Setenv("OPENROUTER_API_KEY", "from-env")

	cfg := ProviderConfig{
		Provider: " OpenRouter ",
		Model:    "meta-llama/llama-3.1-8b-instruct",
		APIKey:   "explicit",
	}.WithDefaults()
	assert.Equal(t, ProviderOpenRouter, cfg.Provider)
	assert.Equal(t, "meta-llama/llama-3.1-8b-instruct", cfg.Model)
	assert.Equal(t, "explicit", cfg.APIKey)
}

func TestProviderValidate(t *testing.T) {
	tests := []struct {
		name    string
		cfg     ProviderConfig
		wantErr bool
	}{
		{"unknown provider", ProviderConfig{Provider: "bard", Model: "x", APIKey: "k"}, true},
		{"missing key", ProviderConfig{Provider: ProviderOpenAI, Model: "gpt-4o-mini"}, true},
		{"missing model", ProviderConfig{Provider: ProviderArk, APIKey: "k"}, true},
		{"ollama needs no key", ProviderConfig{Provider: ProviderOllama, Model: "llama3.1"}, false},
		{"negative max tokens", ProviderConfig{Provider: ProviderGroq, Model: "m", APIKey: "k", MaxTokens: -1}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.cfg.Validate()
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestNewChatModel(t *testing.T) {
	ctx := context.Background()

	cm, err := NewChatModel(ctx, ProviderConfig{Provider: ProviderGroq, APIKey: "gsk-test", MaxTokens: 512, Temperature: 0.7})
	require.NoError(t, err)
	assert.NotNil(t, cm)

	cm, err = NewChatModel(ctx, ProviderConfig{Provider: ProviderOllama})
	require.NoError(t, err)
	assert.NotNil(t, cm)

	_, err = NewChatModel(ctx, ProviderConfig{Provider: "nope"})
	assert.Error(t, err)
}
