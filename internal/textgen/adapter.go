// Package textgen abstracts the remote text-generation service used for
// encounter evaluation.
package textgen

import (
	"context"

	"google.golang.org/genai"
)

// Generator produces one structured text response for a prompt. The schema
// constrains the response shape; the returned payload is the raw text, which
// may still carry markdown code fences around the JSON.
type Generator interface {
	Generate(ctx context.Context, prompt string, schema *genai.Schema) (string, error)
}
