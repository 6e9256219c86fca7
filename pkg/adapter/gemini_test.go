package adapter

import (
	"testing"

	"github.com/m-mizutani/gt"
)

func TestGeminiClientOptions(t *testing.T) {
	g := &GeminiClient{
		generativeModel: "gemini-2.5-flash",
		embeddingModel:  "gemini-embedding-001",
		temperature:     1.0,
	}

	opts := []GeminiOption{
		WithGenerativeModel("gemini-2.5-pro"),
		WithTemperature(0.2),
		WithEmbeddingModel("text-embedding-005"),
		WithEmbeddingDimensions(256),
	}
	for _, opt := range opts {
		opt(g)
	}

	gt.Equal(t, g.generativeModel, "gemini-2.5-pro")
	gt.Equal(t, g.temperature, float32(0.2))
	gt.Equal(t, g.embeddingModel, "text-embedding-005")
	gt.Equal(t, g.dimensions, int32(256))
}

func TestGeminiClientOptionDefaults(t *testing.T) {
	g := &GeminiClient{
		generativeModel: "gemini-2.5-flash",
		embeddingModel:  "gemini-embedding-001",
		temperature:     1.0,
	}

	// Zero dimensions keeps the model default
	WithEmbeddingDimensions(0)(g)
	gt.Equal(t, g.dimensions, int32(0))
	gt.Equal(t, g.generativeModel, "gemini-2.5-flash")
	gt.Equal(t, g.temperature, float32(1.0))
}
