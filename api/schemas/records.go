// api/schemas/records.go
package schemas

// -- Structured Output Record Shapes --
//
// Each named output format fixes one record shape. Coercion from raw agent
// output is best-effort per record: a record missing a required field is
// rejected with a CoercionError and the rest of the batch survives.

// Post is the record shape of the "posts" format: a titled post with its URL,
// comment count and age in hours. All four fields are required.
type Post struct {
	Title          string `json:"post_title"`
	URL            string `json:"post_url"`
	NumComments    int    `json:"num_comments"`
	HoursSincePost int    `json:"hours_since_post"`
}

// SearchResult is the record shape of the "search-results" format. Title and
// URL are required; the rest is carried when present.
type SearchResult struct {
	Title       string         `json:"title"`
	URL         string         `json:"url"`
	Description string         `json:"description,omitempty"`
	Timestamp   string         `json:"timestamp,omitempty"`
	Metadata    map[string]any `json:"metadata,omitempty"`
}

// SavedContent is the record shape of the "saved-content" format. Content,
// source URL and the saved-at stamp are required.
type SavedContent struct {
	Content     string         `json:"content"`
	SourceURL   string         `json:"source_url"`
	SavedAt     string         `json:"saved_at"`
	ContentType string         `json:"content_type,omitempty"`
	Metadata    map[string]any `json:"metadata,omitempty"`
}
