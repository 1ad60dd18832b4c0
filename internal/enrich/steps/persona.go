package steps

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/vietddude/enrich/internal/core/domain"
	"github.com/vietddude/enrich/internal/engine/cache"
	"github.com/vietddude/enrich/internal/infra/ollama"
)

const personaPromptVersion = "1"

// DefaultPersona is used when the config names none.
const DefaultPersona = "curious generalist"

// PersonaResult is the stored value of the persona analysis step.
type PersonaResult struct {
	Take    string `json:"take"`
	Persona string `json:"persona"`
	Model   string `json:"model"`
}

// NewPersona builds the persona analysis step: it asks the inference
// runtime why a reader with the given persona saved this bookmark.
func NewPersona(client *ollama.Client, model, persona string) Step {
	if persona == "" {
		persona = DefaultPersona
	}
	return Step{
		Name: "persona",
		KeyFields: []cache.Field{
			{Name: "model", Value: model},
			{Name: "persona", Value: persona},
			{Name: "prompt", Value: personaPromptVersion},
		},
		Compute: func(ctx context.Context, item domain.Bookmark) ([]byte, error) {
			text := sourceText(item)
			if text == "" {
				return json.Marshal(PersonaResult{Persona: persona, Model: model})
			}

			prompt := fmt.Sprintf(
				"You are a %s. In one sentence, explain why this bookmarked content would matter to you.\n\n%s",
				persona, text)
			take, err := client.Generate(ctx, model, prompt)
			if err != nil {
				return nil, err
			}
			return json.Marshal(PersonaResult{Take: take, Persona: persona, Model: model})
		},
		Apply: func(b *domain.Bookmark, value []byte) error {
			var r PersonaResult
			if err := json.Unmarshal(value, &r); err != nil {
				return fmt.Errorf("bad persona value: %w", err)
			}
			if r.Take != "" {
				b.SetAnalysis("personaTake", r.Take)
				b.SetAnalysis("persona", r.Persona)
			}
			return nil
		},
	}
}
