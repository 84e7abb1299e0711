package llm

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultConfig(t *testing.T) {
	config := DefaultConfig()

	assert.Equal(t, ProviderGemini, config.Provider)
	assert.Equal(t, "gemini-2.5-flash-lite", config.GetModel(TierLite))
	assert.Equal(t, "gemini-2.5-flash", config.GetModel(TierStandard))
	assert.Equal(t, "text-embedding-004", config.EmbeddingModel)
	assert.Equal(t, EmbeddingDimensions, config.Dimensions)
}

func TestNewConfig_Overrides(t *testing.T) {
	config := NewConfig("gemini-2.5-pro", "gemini-embedding-001")

	assert.Equal(t, "gemini-2.5-pro", config.GetModel(TierStandard))
	assert.Equal(t, "gemini-2.5-flash-lite", config.GetModel(TierLite))
	assert.Equal(t, "gemini-embedding-001", config.EmbeddingModel)
}

func TestGetModel_FallsBackToStandard(t *testing.T) {
	config := &Config{Provider: ProviderGemini, Models: map[ModelTier]string{TierStandard: "std"}}

	assert.Equal(t, "std", config.GetModel(TierLite))
	assert.Equal(t, "std", config.GetModel("unknown"))
	assert.Equal(t, "", (&Config{}).GetModel(TierStandard))
}

func TestNewClient_RequiresAPIKey(t *testing.T) {
	_, err := NewClient(context.Background(), nil, "")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "API key")
}

func TestNewClient_UnknownProvider(t *testing.T) {
	_, err := NewClient(context.Background(), &Config{Provider: "other"}, "key")
	require.Error(t, err)
}
