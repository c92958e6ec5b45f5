package assistant

import (
	"context"
	"encoding/json"
	"fmt"

	perrors "github.com/a3tai/proposal-builder/internal/errors"
	"github.com/a3tai/proposal-builder/internal/render"
)

const renderSystemPrompt = "You are a professional proposal writer for a real estate auction company. " +
	"Fill in the template with the provided information exactly as specified."

const renderUserPrompt = "Template:\n%s\n\nValues (JSON):\n%s\n\n" +
	"Replace every {{name}} token with its value. Keep all other text unchanged. " +
	"Leave tokens with no value as they are. Return only the filled document."

// TemplateRenderer fills a template through the assistant. Tokens the
// assistant leaves untouched are replaced locally, so unresolved names
// still appear as missing markers.
type TemplateRenderer struct {
	client *Client
}

// NewTemplateRenderer creates a renderer backed by client
func NewTemplateRenderer(client *Client) *TemplateRenderer {
	return &TemplateRenderer{client: client}
}

var _ render.Renderer = (*TemplateRenderer)(nil)

// Render implements render.Renderer
func (r *TemplateRenderer) Render(ctx context.Context, template string, values map[string]string) (string, error) {
	payload, err := json.MarshalIndent(values, "", "  ")
	if err != nil {
		return "", perrors.Wrap(perrors.KindAssistantCallFailed, err, "cannot encode values")
	}

	completion, err := r.client.Complete(ctx, []Message{
		{Role: "system", Content: renderSystemPrompt},
		{Role: "user", Content: fmt.Sprintf(renderUserPrompt, template, payload)},
	}, false)
	if err != nil {
		return "", err
	}

	return render.Substitute(stripFence(completion.Content), values).Text, nil
}
