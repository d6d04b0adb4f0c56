// Package gemini implements the text generator on the Gemini API with
// schema-constrained JSON responses.
package gemini

import (
	"context"
	"fmt"

	"google.golang.org/genai"
)

// DefaultModel is the reasoning model used for evaluation.
const DefaultModel = "gemini-2.5-pro"

// Generator issues structured GenerateContent requests.
type Generator struct {
	client *genai.Client
	model  string
}

// New creates a generator backed by the Gemini API. The API key follows the
// SDK's resolution order (GEMINI_API_KEY / GOOGLE_API_KEY) when apiKey is
// empty.
func New(ctx context.Context, apiKey, model string) (*Generator, error) {
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("gemini: create client: %w", err)
	}
	if model == "" {
		model = DefaultModel
	}
	return &Generator{client: client, model: model}, nil
}

// Generate requests one JSON document conforming to the given schema.
func (g *Generator) Generate(ctx context.Context, prompt string, schema *genai.Schema) (string, error) {
	resp, err := g.client.Models.GenerateContent(ctx, g.model, genai.Text(prompt), &genai.GenerateContentConfig{
		ResponseMIMEType: "application/json",
		ResponseSchema:   schema,
	})
	if err != nil {
		return "", fmt.Errorf("gemini: generate content: %w", err)
	}
	return resp.Text(), nil
}
