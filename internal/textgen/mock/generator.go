// Package mock provides a canned text generator for tests and for running
// evaluations without Gemini credentials.
package mock

import (
	"context"
	"sync"

	"google.golang.org/genai"
)

// Generator returns scripted responses. The zero value answers every prompt
// with an empty JSON object.
type Generator struct {
	// Respond computes the response for a prompt. Takes precedence over
	// Response when set.
	Respond func(prompt string) (string, error)
	// Response is returned verbatim for every prompt.
	Response string
	// Err makes every call fail.
	Err error

	mu      sync.Mutex
	prompts []string
}

// Generate implements textgen.Generator.
func (g *Generator) Generate(ctx context.Context, prompt string, _ *genai.Schema) (string, error) {
	g.mu.Lock()
	g.prompts = append(g.prompts, prompt)
	g.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return "", err
	}
	if g.Err != nil {
		return "", g.Err
	}
	if g.Respond != nil {
		return g.Respond(prompt)
	}
	if g.Response != "" {
		return g.Response, nil
	}
	return "{}", nil
}

// Prompts returns every prompt seen so far.
func (g *Generator) Prompts() []string {
	g.mu.Lock()
	defer g.mu.Unlock()
	return append([]string(nil), g.prompts...)
}
