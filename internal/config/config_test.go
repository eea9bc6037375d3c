package config

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestNormalizeOpenAIEndpoint(t *testing.T) {
	cases := []struct {
		in   string
		want string
	}{
		{"", ""},
		{"https://example.openai.azure.com", "https://example.openai.azure.com/openai/v1"},
		{"https://example.openai.azure.com/", "https://example.openai.azure.com/openai/v1"},
		{"https://example.openai.azure.com/openai/v1", "https://example.openai.azure.com/openai/v1"},
	}
	for _, c := range cases {
		require.Equal(t, c.want, normalizeOpenAIEndpoint(c.in), "input %q", c.in)
	}
}

func TestLoadDefaults(t *testing.T) {
	t.Setenv("POLICYCHAT_API_ADDR", "")
	t.Setenv("POLICYCHAT_TEMPORAL_TASK_QUEUE", "")
	t.Setenv("POLICYCHAT_EMBED_DIM", "")
	t.Setenv("POLICYCHAT_DEV_AUTH_BYPASS", "")
	t.Setenv("POLICYCHAT_MAX_UPLOAD_MB", "")

	cfg := Load()
	require.Equal(t, ":8080", cfg.APIAddr)
	require.Equal(t, "policychat-ingest", cfg.TemporalTaskQueue)
	require.Equal(t, 1536, cfg.EmbedDim)
	require.False(t, cfg.DevAuthBypass)
	require.Equal(t, 10, cfg.MaxUploadMB)
}

func TestDevBypassOnlyExplicitTrue(t *testing.T) {
	t.Setenv("POLICYCHAT_DEV_AUTH_BYPASS", "1")
	require.False(t, Load().DevAuthBypass)

	t.Setenv("POLICYCHAT_DEV_AUTH_BYPASS", "TRUE")
	require.False(t, Load().DevAuthBypass)

	t.Setenv("POLICYCHAT_DEV_AUTH_BYPASS", "true")
	require.True(t, Load().DevAuthBypass)
}

func TestGetenvIntIgnoresGarbage(t *testing.T) {
	t.Setenv("POLICYCHAT_EMBED_DIM", "not-a-number")
	require.Equal(t, 1536, Load().EmbedDim)

	t.Setenv("POLICYCHAT_EMBED_DIM", "3072")
	require.Equal(t, 3072, Load().EmbedDim)
}
