// Package llm provides the language-model client used for resume analysis and embeddings.
package llm

// ModelTier selects a model by the weight of the task.
type ModelTier string

const (
	// TierLite is for short structured answers over plain text.
	TierLite ModelTier = "lite"
	// TierStandard reads whole documents; resume analysis runs here.
	TierStandard ModelTier = "standard"
)

// Provider represents an LLM provider
type Provider string

const (
	ProviderGemini Provider = "gemini"
)

// EmbeddingDimensions is the vector width stored by the embedding tables.
const EmbeddingDimensions = 768

const (
	defaultLiteModel      = "gemini-2.5-flash-lite"
	defaultStandardModel  = "gemini-2.5-flash"
	defaultEmbeddingModel = "text-embedding-004"
)

// Config selects the provider models.
type Config struct {
	Provider       Provider
	Models         map[ModelTier]string
	EmbeddingModel string
	// Dimensions, when positive, is enforced on every embedding returned.
	Dimensions int
}

// DefaultConfig returns the Gemini models used in production.
func DefaultConfig() *Config {
	return NewConfig("", "")
}

// NewConfig returns a Gemini configuration with the analysis and embedding
// models overridden. Empty names keep the defaults.
func NewConfig(analysisModel, embeddingModel string) *Config {
	if analysisModel == "" {
		analysisModel = defaultStandardModel
	}
	if embeddingModel == "" {
		embeddingModel = defaultEmbeddingModel
	}
	return &Config{
		Provider: ProviderGemini,
		Models: map[ModelTier]string{
			TierLite:     defaultLiteModel,
			TierStandard: analysisModel,
		},
		EmbeddingModel: embeddingModel,
		Dimensions:     EmbeddingDimensions,
	}
}

// GetModel returns the model for tier, falling back to the standard model.
func (c *Config) GetModel(tier ModelTier) string {
	if model, ok := c.Models[tier]; ok {
		return model
	}
	return c.Models[TierStandard]
}
