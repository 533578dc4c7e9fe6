// internal/llmutil/parser.go
package llmutil

import (
	"fmt"
	"regexp"
	"strings"

	json "github.com/json-iterator/go"
)

var (
	// Regex definitions use \x60 for backticks because Go raw strings cannot
	// contain backticks.

	// fencedObjectRegex extracts a JSON object wrapped in a markdown fence.
	fencedObjectRegex = regexp.MustCompile("(?s)\x60\x60\x60(?:json)?\\s*({.*})\\s*\x60\x60\x60")
	// fencedArrayRegex extracts a JSON array wrapped in a markdown fence.
	fencedArrayRegex = regexp.MustCompile("(?s)\x60\x60\x60(?:json)?\\s*(\\[.*\\])\\s*\x60\x60\x60")
)

// ExtractJSON isolates the JSON payload of a model response. Models routinely
// wrap their output in markdown fences or conversational text; this strips
// both. When no structure can be found the input is returned trimmed, so the
// caller's unmarshal reports the real problem.
func ExtractJSON(response string) string {
	response = strings.TrimSpace(response)
	if response == "" {
		return response
	}

	objIdx := strings.Index(response, "{")
	arrIdx := strings.Index(response, "[")
	// The outermost structure is whichever opener appears first. An array of
	// objects must be carved at the bracket, not at the first brace.
	arrayFirst := arrIdx != -1 && (objIdx == -1 || arrIdx < objIdx)

	if strings.HasPrefix(response, "```") {
		var matches []string
		if arrayFirst {
			matches = fencedArrayRegex.FindStringSubmatch(response)
			if len(matches) <= 1 {
				matches = fencedObjectRegex.FindStringSubmatch(response)
			}
		} else {
			matches = fencedObjectRegex.FindStringSubmatch(response)
			if len(matches) <= 1 {
				matches = fencedArrayRegex.FindStringSubmatch(response)
			}
		}
		if len(matches) > 1 {
			return matches[1]
		}
		return response
	}

	if strings.HasPrefix(response, "{") || strings.HasPrefix(response, "[") {
		return response
	}

	// Structure buried in conversational text: carve from the first opener to
	// the last matching closer.
	if arrayFirst {
		if last := strings.LastIndex(response, "]"); last > arrIdx {
			return response[arrIdx : last+1]
		}
	}
	if objIdx != -1 {
		if last := strings.LastIndex(response, "}"); last > objIdx {
			return response[objIdx : last+1]
		}
	}
	return response
}

// ParseJSONResponse parses a model response string into a target Go type,
// tolerating markdown fences and surrounding prose via ExtractJSON.
func ParseJSONResponse[T any](response string) (*T, error) {
	extracted := ExtractJSON(response)

	var result T
	if err := json.Unmarshal([]byte(extracted), &result); err != nil {
		return nil, fmt.Errorf("failed to unmarshal model JSON response: %w (extracted, truncated: %s)",
			err, truncateString(extracted, 500))
	}
	return &result, nil
}

// truncateString truncates a string to a maximum length for error messages.
func truncateString(s string, maxLen int) string {
	if maxLen <= 0 {
		return ""
	}
	if len(s) <= maxLen {
		return s
	}
	// Byte truncation is sufficient for log output.
	return s[:maxLen] + "..."
}
