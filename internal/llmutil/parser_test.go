// internal/llmutil/parser_test.go
package llmutil_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/browserpilot/browserpilot/internal/llmutil"
)

type decision struct {
	Action string `json:"action"`
	Value  string `json:"value"`
}

func TestExtractJSON(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{
			name:     "bare object passes through",
			input:    `{"action":"finish"}`,
			expected: `{"action":"finish"}`,
		},
		{
			name:     "fenced object",
			input:    "```json\n{\"action\":\"click\"}\n```",
			expected: `{"action":"click"}`,
		},
		{
			name:     "fenced array of objects stays an array",
			input:    "```json\n[{\"a\":1},{\"a\":2}]\n```",
			expected: `[{"a":1},{"a":2}]`,
		},
		{
			name:     "object inside conversational text",
			input:    `Sure, here is the plan: {"action":"navigate","value":"https://example.com"} hope that helps`,
			expected: `{"action":"navigate","value":"https://example.com"}`,
		},
		{
			name:     "array inside conversational text carved at the bracket",
			input:    `The posts are: [{"post_title":"a"},{"post_title":"b"}] as requested.`,
			expected: `[{"post_title":"a"},{"post_title":"b"}]`,
		},
		{
			name:     "no structure returns trimmed input",
			input:    "  plain prose answer  ",
			expected: "plain prose answer",
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tc.expected, llmutil.ExtractJSON(tc.input))
		})
	}
}

func TestParseJSONResponse(t *testing.T) {
	t.Parallel()

	t.Run("parses a fenced decision", func(t *testing.T) {
		t.Parallel()
		got, err := llmutil.ParseJSONResponse[decision]("```json\n{\"action\":\"type\",\"value\":\"hello\"}\n```")
		require.NoError(t, err)
		assert.Equal(t, "type", got.Action)
		assert.Equal(t, "hello", got.Value)
	})

	t.Run("reports unmarshal failures with the extracted snippet", func(t *testing.T) {
		t.Parallel()
		_, err := llmutil.ParseJSONResponse[decision]("not json at all")
		require.Error(t, err)
		assert.Contains(t, err.Error(), "failed to unmarshal model JSON response")
	})
}
