package query

import "github.com/kailas-cloud/dealscout/internal/domain/search/filter"

// Query is a normalized retrieval query: free text for embedding plus a metadata predicate.
// Immutable after construction.
type Query struct {
	text    string
	filters filter.Expression
}

// New creates a Query.
func New(text string, filters filter.Expression) Query {
	return Query{text: text, filters: filters}
}

// Text returns the text to embed. Empty means no semantic component.
func (q Query) Text() string { return q.text }

// Filters returns the metadata predicate.
func (q Query) Filters() filter.Expression { return q.filters }

// HasText reports whether the query carries text to embed.
func (q Query) HasText() bool { return q.text != "" }

// Canonical returns a deterministic byte encoding. Equal queries encode identically.
func (q Query) Canonical() []byte {
	f := q.filters.String()
	b := make([]byte, 0, len(q.text)+len(f)+12)
	b = append(b, "text="...)
	b = append(b, q.text...)
	b = append(b, "\nfilter="...)
	b = append(b, f...)
	return b
}
