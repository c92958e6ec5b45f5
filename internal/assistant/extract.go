package assistant

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/santhosh-tekuri/jsonschema/v5"

	perrors "github.com/a3tai/proposal-builder/internal/errors"
	"github.com/a3tai/proposal-builder/internal/fields"
)

const extractionSystemPrompt = "You are an expert at reading real estate and estate-sale documents. " +
	"Extract the requested values from the documents provided. Documents are separated by " +
	"\"==== End of Document ====\" lines. Return a single JSON object mapping each requested " +
	"name to its value as a string. If a value cannot be found in the documents, use the exact " +
	"string \"" + fields.Placeholder + "\" as its value. Never guess a value."

// Extraction is the outcome of a field extraction call
type Extraction struct {
	Values map[string]string
	Usage  Usage
}

// ExtractFields asks the assistant for the extracted fields of specs.
// A failed call returns KindAssistantCallFailed; a response that is not a
// flat JSON object returns KindIndexParseFailed so the caller can fall back
// to prompting.
func (c *Client) ExtractFields(ctx context.Context, corpus string, specs []fields.Spec) (*Extraction, error) {
	names := make([]string, 0, len(specs))
	for _, s := range specs {
		if s.Source == fields.SourceExtracted {
			names = append(names, s.Name)
		}
	}
	if len(names) == 0 {
		return &Extraction{Values: map[string]string{}}, nil
	}

	var user strings.Builder
	user.WriteString("Documents:\n")
	user.WriteString(corpus)
	fmt.Fprintf(&user, "\n\nExtract these variables: %s\nReturn as JSON.", strings.Join(names, ", "))

	completion, err := c.Complete(ctx, []Message{
		{Role: "system", Content: extractionSystemPrompt},
		{Role: "user", Content: user.String()},
	}, true)
	if err != nil {
		return nil, err
	}

	values, err := ParseFieldJSON(completion.Content)
	if err != nil {
		c.log.Warn("assistant.extract.unparseable", "error", err, "content", truncate(completion.Content, 2048))
		return nil, err
	}
	return &Extraction{Values: values, Usage: completion.Usage}, nil
}

// fieldSchema accepts a flat object of scalar values
var fieldSchema = map[string]any{
	"type": "object",
	"additionalProperties": map[string]any{
		"type": []string{"string", "number", "boolean", "null"},
	},
}

// ParseFieldJSON pulls the outermost JSON object out of content, which
// may be wrapped in a markdown fence or surrounded by prose, and converts
// it to string values. Null values are dropped.
func ParseFieldJSON(content string) (map[string]string, error) {
	body := strings.TrimSpace(stripFence(content))
	start := strings.Index(body, "{")
	end := strings.LastIndex(body, "}")
	if start < 0 || end < start {
		return nil, perrors.New(perrors.KindIndexParseFailed, "assistant response contains no JSON object")
	}
	body = body[start : end+1]

	if err := validateJSONAgainstSchema(fieldSchema, []byte(body)); err != nil {
		return nil, perrors.Wrap(perrors.KindIndexParseFailed, err, "assistant response is not a field object")
	}

	var raw map[string]any
	dec := json.NewDecoder(strings.NewReader(body))
	dec.UseNumber()
	if err := dec.Decode(&raw); err != nil {
		return nil, perrors.Wrap(perrors.KindIndexParseFailed, err, "cannot decode assistant JSON")
	}

	values := make(map[string]string, len(raw))
	for k, v := range raw {
		switch t := v.(type) {
		case nil:
			continue
		case string:
			values[k] = t
		case json.Number:
			values[k] = t.String()
		case bool:
			values[k] = strconv.FormatBool(t)
		}
	}
	return values, nil
}

// stripFence removes a surrounding ```json ... ``` block
func stripFence(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```")
	if nl := strings.IndexByte(s, '\n'); nl >= 0 {
		s = s[nl+1:]
	}
	return strings.TrimSpace(strings.TrimSuffix(strings.TrimSpace(s), "```"))
}

func validateJSONAgainstSchema(schemaMap map[string]any, data []byte) error {
	b, err := json.Marshal(schemaMap)
	if err != nil {
		return fmt.Errorf("marshal schema: %w", err)
	}
	compiler := jsonschema.NewCompiler()
	if err := compiler.AddResource("schema.json", bytes.NewReader(b)); err != nil {
		return fmt.Errorf("add schema: %w", err)
	}
	schema, err := compiler.Compile("schema.json")
	if err != nil {
		return fmt.Errorf("compile schema: %w", err)
	}
	var v any
	if err := json.Unmarshal(data, &v); err != nil {
		return fmt.Errorf("unmarshal data: %w", err)
	}
	if err := schema.Validate(v); err != nil {
		return fmt.Errorf("json does not match schema: %w", err)
	}
	return nil
}
