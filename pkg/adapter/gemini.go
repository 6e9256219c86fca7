package adapter

import (
	"context"
	"strings"

	"github.com/m-mizutani/goerr/v2"
	"google.golang.org/genai"

	"github.com/hiroq/engram/pkg/model"
	"github.com/hiroq/engram/pkg/prompt"
)

// Gemini is the boundary to the completion and embedding service.
type Gemini interface {
	// Complete sends the transcript and returns the reply text.
	Complete(ctx context.Context, transcript []prompt.Message) (string, error)
	// Embedding generates a fixed-length embedding vector for the text.
	Embedding(ctx context.Context, text string) ([]float32, error)
}

type GeminiClient struct {
	client          *genai.Client
	generativeModel string
	embeddingModel  string
	temperature     float32
	dimensions      int32
}

type GeminiOption func(*GeminiClient)

func WithGenerativeModel(model string) GeminiOption {
	return func(g *GeminiClient) {
		g.generativeModel = model
	}
}

func WithEmbeddingModel(model string) GeminiOption {
	return func(g *GeminiClient) {
		g.embeddingModel = model
	}
}

func WithTemperature(temperature float32) GeminiOption {
	return func(g *GeminiClient) {
		g.temperature = temperature
	}
}

// WithEmbeddingDimensions truncates embeddings to the given dimensionality.
// Zero keeps the model default.
func WithEmbeddingDimensions(dimensions int32) GeminiOption {
	return func(g *GeminiClient) {
		g.dimensions = dimensions
	}
}

func NewGemini(ctx context.Context, projectID, location string, opts ...GeminiOption) (*GeminiClient, error) {
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		Project:  projectID,
		Location: location,
		Backend:  genai.BackendVertexAI,
	})
	if err != nil {
		return nil, goerr.Wrap(err, "failed to create genai client")
	}

	g := &GeminiClient{
		client:          client,
		generativeModel: "gemini-2.5-flash",
		embeddingModel:  "gemini-embedding-001",
		temperature:     1.0,
	}

	for _, opt := range opts {
		opt(g)
	}

	return g, nil
}

// Complete maps the transcript onto the Gemini API: system messages become
// the system instruction, user and assistant messages become contents.
func (g *GeminiClient) Complete(ctx context.Context, transcript []prompt.Message) (string, error) {
	var systemParts []string
	var contents []*genai.Content

	for _, msg := range transcript {
		switch msg.Role {
		case model.RoleSystem:
			systemParts = append(systemParts, msg.Content)
		case model.RoleAssistant:
			contents = append(contents, genai.NewContentFromText(msg.Content, genai.RoleModel))
		default:
			contents = append(contents, genai.NewContentFromText(msg.Content, genai.RoleUser))
		}
	}

	temperature := g.temperature
	config := &genai.GenerateContentConfig{
		Temperature: &temperature,
	}
	if len(systemParts) > 0 {
		config.SystemInstruction = genai.NewContentFromText(strings.Join(systemParts, "\n"), "")
	}

	resp, err := g.client.Models.GenerateContent(ctx, g.generativeModel, contents, config)
	if err != nil {
		return "", goerr.Wrap(err, "failed to generate content")
	}

	if len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return "", goerr.New("no completion generated")
	}

	var reply strings.Builder
	for _, part := range resp.Candidates[0].Content.Parts {
		if part.Text != "" {
			reply.WriteString(part.Text)
		}
	}
	if reply.Len() == 0 {
		return "", goerr.New("empty completion generated")
	}
	return reply.String(), nil
}

// Embedding generates an embedding vector for the text.
func (g *GeminiClient) Embedding(ctx context.Context, text string) ([]float32, error) {
	config := &genai.EmbedContentConfig{}
	if g.dimensions > 0 {
		dimensions := g.dimensions
		config.OutputDimensionality = &dimensions
	}

	resp, err := g.client.Models.EmbedContent(ctx, g.embeddingModel, genai.Text(text), config)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to embed content")
	}

	if len(resp.Embeddings) == 0 || len(resp.Embeddings[0].Values) == 0 {
		return nil, goerr.New("no embedding generated")
	}
	return resp.Embeddings[0].Values, nil
}
