// internal/output/coerce.go
package output

import (
	"bytes"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/browserpilot/browserpilot/api/schemas"
	"github.com/browserpilot/browserpilot/internal/llmutil"

	json "github.com/json-iterator/go"
)

// Coercion is a fallible parse per candidate record: a record either becomes
// a typed entry in the RecordSet or a CoercionError plus its raw form under
// Rejected. The batch always survives; the output originates from a
// non-deterministic reasoning process and partial yield beats none.

// wrapperKey is the container key a format's records may arrive under when
// the agent emits an enveloping object instead of a bare array.
func wrapperKey(format schemas.OutputFormat) string {
	switch format {
	case schemas.FormatPosts:
		return "posts"
	case schemas.FormatSearchResults:
		return "search_results"
	case schemas.FormatSavedContent:
		return "saved_content"
	default:
		return ""
	}
}

func coerceRecords(format schemas.OutputFormat, raw string) (*schemas.RecordSet, []*schemas.CoercionError) {
	set := &schemas.RecordSet{Format: format}

	candidates, err := decodeCandidates(format, raw)
	if err != nil {
		// The output as a whole yielded no candidates: one rejection carrying
		// the full raw form.
		if trimmed := strings.TrimSpace(raw); trimmed != "" {
			set.Rejected = append(set.Rejected, trimmed)
		}
		return set, []*schemas.CoercionError{{Format: format, Index: 0, Reason: err.Error()}}
	}

	var rejects []*schemas.CoercionError
	for i, candidate := range candidates {
		if cerr := coerceInto(set, format, i, candidate); cerr != nil {
			set.Rejected = append(set.Rejected, strings.TrimSpace(string(candidate)))
			rejects = append(rejects, cerr)
		}
	}
	return set, rejects
}

// decodeCandidates splits the raw output into individual record candidates.
// Accepted envelopes: a bare JSON array, an object carrying the format's
// container key, an object with a single array-valued key, or a bare object
// treated as a one-record batch.
func decodeCandidates(format schemas.OutputFormat, raw string) ([]json.RawMessage, error) {
	payload := strings.TrimSpace(llmutil.ExtractJSON(raw))
	if payload == "" {
		return nil, fmt.Errorf("output contains no JSON records")
	}

	switch payload[0] {
	case '[':
		var items []json.RawMessage
		if err := json.Unmarshal([]byte(payload), &items); err != nil {
			return nil, fmt.Errorf("output is not a valid JSON array: %v", err)
		}
		return items, nil

	case '{':
		var envelope map[string]json.RawMessage
		if err := json.Unmarshal([]byte(payload), &envelope); err != nil {
			return nil, fmt.Errorf("output is not a valid JSON object: %v", err)
		}
		if inner, ok := envelope[wrapperKey(format)]; ok {
			var items []json.RawMessage
			if err := json.Unmarshal(inner, &items); err != nil {
				return nil, fmt.Errorf("container %q is not a JSON array: %v", wrapperKey(format), err)
			}
			return items, nil
		}
		// An object with a single array-valued key is an envelope under a
		// nonstandard name.
		if len(envelope) == 1 {
			for _, inner := range envelope {
				if trimmed := bytes.TrimSpace(inner); len(trimmed) > 0 && trimmed[0] == '[' {
					var items []json.RawMessage
					if err := json.Unmarshal(inner, &items); err == nil {
						return items, nil
					}
				}
			}
		}
		return []json.RawMessage{json.RawMessage(payload)}, nil

	default:
		return nil, fmt.Errorf("output is not structured JSON")
	}
}

func coerceInto(set *schemas.RecordSet, format schemas.OutputFormat, index int, candidate json.RawMessage) *schemas.CoercionError {
	var fields map[string]any
	if err := json.Unmarshal(candidate, &fields); err != nil {
		return &schemas.CoercionError{Format: format, Index: index, Reason: "record is not a JSON object"}
	}

	var err error
	switch format {
	case schemas.FormatPosts:
		var p schemas.Post
		if p, err = coercePost(fields); err == nil {
			set.Posts = append(set.Posts, p)
		}
	case schemas.FormatSearchResults:
		var sr schemas.SearchResult
		if sr, err = coerceSearchResult(fields); err == nil {
			set.SearchResults = append(set.SearchResults, sr)
		}
	case schemas.FormatSavedContent:
		var sc schemas.SavedContent
		if sc, err = coerceSavedContent(fields); err == nil {
			set.SavedContents = append(set.SavedContents, sc)
		}
	default:
		err = fmt.Errorf("no record shape for format %q", format)
	}

	if err != nil {
		return &schemas.CoercionError{Format: format, Index: index, Reason: err.Error()}
	}
	return nil
}

func coercePost(m map[string]any) (schemas.Post, error) {
	var p schemas.Post
	var err error
	if p.Title, err = stringField(m, "post_title", true); err != nil {
		return p, err
	}
	if p.URL, err = stringField(m, "post_url", true); err != nil {
		return p, err
	}
	if p.NumComments, err = intField(m, "num_comments"); err != nil {
		return p, err
	}
	if p.HoursSincePost, err = intField(m, "hours_since_post"); err != nil {
		return p, err
	}
	return p, nil
}

func coerceSearchResult(m map[string]any) (schemas.SearchResult, error) {
	var sr schemas.SearchResult
	var err error
	if sr.Title, err = stringField(m, "title", true); err != nil {
		return sr, err
	}
	if sr.URL, err = stringField(m, "url", true); err != nil {
		return sr, err
	}
	if sr.Description, err = stringField(m, "description", false); err != nil {
		return sr, err
	}
	if sr.Timestamp, err = stringField(m, "timestamp", false); err != nil {
		return sr, err
	}
	if sr.Metadata, err = mapField(m, "metadata"); err != nil {
		return sr, err
	}
	return sr, nil
}

func coerceSavedContent(m map[string]any) (schemas.SavedContent, error) {
	var sc schemas.SavedContent
	var err error
	if sc.Content, err = stringField(m, "content", true); err != nil {
		return sc, err
	}
	if sc.SourceURL, err = stringField(m, "source_url", true); err != nil {
		return sc, err
	}
	if sc.SavedAt, err = stringField(m, "saved_at", true); err != nil {
		return sc, err
	}
	if sc.ContentType, err = stringField(m, "content_type", false); err != nil {
		return sc, err
	}
	if sc.Metadata, err = mapField(m, "metadata"); err != nil {
		return sc, err
	}
	return sc, nil
}

// stringField extracts a string field. A missing required field or an
// ill-typed value (required or not) rejects the record.
func stringField(m map[string]any, key string, required bool) (string, error) {
	v, ok := m[key]
	if !ok || v == nil {
		if required {
			return "", fmt.Errorf("missing required field %q", key)
		}
		return "", nil
	}
	s, ok := v.(string)
	if !ok {
		return "", fmt.Errorf("field %q must be a string", key)
	}
	return s, nil
}

// intField extracts a required integer field. JSON numbers arrive as float64;
// whole values and numeric strings coerce, anything else rejects.
func intField(m map[string]any, key string) (int, error) {
	v, ok := m[key]
	if !ok || v == nil {
		return 0, fmt.Errorf("missing required field %q", key)
	}
	switch n := v.(type) {
	case float64:
		if n != math.Trunc(n) {
			return 0, fmt.Errorf("field %q must be an integer", key)
		}
		return int(n), nil
	case string:
		parsed, err := strconv.Atoi(strings.TrimSpace(n))
		if err != nil {
			return 0, fmt.Errorf("field %q must be an integer", key)
		}
		return parsed, nil
	default:
		return 0, fmt.Errorf("field %q must be an integer", key)
	}
}

// mapField extracts an optional object-valued field.
func mapField(m map[string]any, key string) (map[string]any, error) {
	v, ok := m[key]
	if !ok || v == nil {
		return nil, nil
	}
	mm, ok := v.(map[string]any)
	if !ok {
		return nil, fmt.Errorf("field %q must be an object", key)
	}
	return mm, nil
}
