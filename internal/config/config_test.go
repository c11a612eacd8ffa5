package config

import (
	"context"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/zhouzirui/lumen/backend/internal/model/search"
	"github.com/zhouzirui/lumen/backend/internal/service/inference"
)

func TestLoadFromDefaults(t *testing.T) {
	cfg, err := LoadFrom(map[string]string{})
	require.NoError(t, err)

	require.Equal(t, ":8080", cfg.Server.Addr)
	require.Equal(t, ProviderOllama, cfg.Inference.Provider)
	require.Equal(t, "http://localhost:11434", cfg.Inference.BaseURL)
	require.Equal(t, "granite3-moe", cfg.Inference.Model)
	require.Equal(t, 60*time.Second, cfg.Inference.HeaderTimeout)
	require.Equal(t, 100, cfg.Inference.StreamBuffer)

	require.Equal(t, "https://duckduckgo.com/html", cfg.Search.BaseURL)
	require.Equal(t, "us-en", cfg.Search.Locale)
	require.Equal(t, 5, cfg.Search.MaxResults)
	require.Equal(t, 30*time.Second, cfg.Search.Timeout)
	require.Equal(t, search.ModeFast, cfg.Search.SearchMode())
	require.Zero(t, cfg.Search.ParseWorkers)

	require.Equal(t, 5, cfg.History.ContextSize)
	require.Equal(t, 10, cfg.History.Limit)

	level, err := cfg.Log.SlogLevel()
	require.NoError(t, err)
	require.Equal(t, slog.LevelInfo, level)

	require.Nil(t, cfg.Ark.Temperature)
	require.Nil(t, cfg.Ark.MaxTokens)
}

func TestLoadFromOverrides(t *testing.T) {
	cfg, err := LoadFrom(map[string]string{
		"PORT":               "127.0.0.1:9000",
		"LOG_LEVEL":          "debug",
		"OLLAMA_MODEL":       "llama3",
		"SEARCH_MODE":        "enriched",
		"SEARCH_TIMEOUT":     "5s",
		"SEARCH_MAX_RESULTS": "8",
		"PARSE_WORKERS":      "3",
		"HISTORY_CONTEXT":    "2",
		"HISTORY_LIMIT":      "4",
		"ARK_TEMPERATURE":    "0.7",
	})
	require.NoError(t, err)

	require.Equal(t, "127.0.0.1:9000", cfg.Server.Addr)
	require.Equal(t, "llama3", cfg.Inference.Model)
	require.Equal(t, search.ModeEnriched, cfg.Search.SearchMode())
	require.Equal(t, 5*time.Second, cfg.Search.Timeout)
	require.Equal(t, 8, cfg.Search.MaxResults)
	require.Equal(t, 3, cfg.Search.ParseWorkers)
	require.Equal(t, 2, cfg.History.ContextSize)
	require.NotNil(t, cfg.Ark.Temperature)
	require.InDelta(t, 0.7, *cfg.Ark.Temperature, 1e-9)

	level, err := cfg.Log.SlogLevel()
	require.NoError(t, err)
	require.Equal(t, slog.LevelDebug, level)
}

func TestResolveAddr(t *testing.T) {
	cases := map[string]string{"": ":8080", "3000": ":3000", ":4000": ":4000", "0.0.0.0:80": "0.0.0.0:80"}
	for in, want := range cases {
		got, err := resolveAddr(in)
		require.NoError(t, err)
		require.Equal(t, want, got)
	}

	_, err := resolveAddr("80 80")
	require.Error(t, err)
}

func TestLoadFromRejectsInvalidValues(t *testing.T) {
	cases := map[string]map[string]string{
		"provider":     {"INFERENCE_PROVIDER": "openai"},
		"mode":         {"SEARCH_MODE": "deep"},
		"max results":  {"SEARCH_MAX_RESULTS": "0"},
		"workers":      {"PARSE_WORKERS": "-1"},
		"window":       {"HISTORY_CONTEXT": "12", "HISTORY_LIMIT": "10"},
		"log level":    {"LOG_LEVEL": "loud"},
		"bad duration": {"SEARCH_TIMEOUT": "soon"},
		"ark keys":     {"INFERENCE_PROVIDER": "ark"},
	}
	for name, values := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := LoadFrom(values)
			require.Error(t, err)
		})
	}
}

func TestNewChatModelDefaultsToLocalServer(t *testing.T) {
	cfg, err := LoadFrom(map[string]string{})
	require.NoError(t, err)

	chatModel, err := cfg.NewChatModel(context.Background(), nil)
	require.NoError(t, err)
	require.IsType(t, &inference.Client{}, chatModel)
}

func TestArkEnabled(t *testing.T) {
	require.False(t, ArkConfig{}.Enabled())
	require.False(t, ArkConfig{APIKey: "k"}.Enabled())
	require.True(t, ArkConfig{APIKey: "k", Model: "m"}.Enabled())
	require.True(t, ArkConfig{AccessKey: "a", SecretKey: "s", Model: "m"}.Enabled())
	require.False(t, ArkConfig{AccessKey: "a", Model: "m"}.Enabled())
}
