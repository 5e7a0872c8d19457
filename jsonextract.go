package storygen

import (
	"encoding/json"
	"fmt"
	"strings"
)

var fenceOpeners = []string{"```json\n", "```JSON\n", "```json", "```JSON", "```\n", "```"}

// ExtractJSON pulls a JSON object out of raw model output. It trims the
// text, strips a surrounding code fence, slices between the first '{' and
// the last '}', and parses the result. It is idempotent on clean JSON.
func ExtractJSON(raw string) (map[string]any, error) {
	cleaned := strings.TrimSpace(raw)

	for _, opener := range fenceOpeners {
		if strings.HasPrefix(cleaned, opener) {
			cleaned = strings.TrimPrefix(cleaned, opener)
			break
		}
	}
	cleaned = strings.TrimSuffix(cleaned, "\n```")
	cleaned = strings.TrimSuffix(cleaned, "```")

	start := strings.Index(cleaned, "{")
	end := strings.LastIndex(cleaned, "}")
	if start != -1 && end != -1 && start < end {
		cleaned = cleaned[start : end+1]
	}

	var out map[string]any
	if err := json.Unmarshal([]byte(cleaned), &out); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrNotJSONObject, err)
	}
	if out == nil {
		// literal "null"
		return nil, ErrNotJSONObject
	}
	return out, nil
}

// StructuredPrompt appends JSON formatting instructions and the schema to
// prompt, for backends without schema-constrained output.
func StructuredPrompt(prompt string, schema *Schema) string {
	var b strings.Builder
	b.WriteString(prompt)
	b.WriteString("\n\nRespond strictly with JSON matching this schema:\n")
	b.WriteString(schema.JSON())
	b.WriteString("\n\nOutput only the JSON object. Do not add explanations, commentary or any other text.")
	return b.String()
}
