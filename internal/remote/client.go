// Package remote defines the narrow client surface the sync engine
// needs from the knowledge-indexing service, plus its HTTP
// implementation.
package remote

import "context"

// Client is the capability interface for the remote service. One method
// per remote operation; the daemon and CLI inject it rather than
// constructing HTTP calls ad hoc.
type Client interface {
	// UploadDocument creates or overwrites the document identified by
	// req.CustomID. Re-sending the same CustomID replaces the prior
	// document rather than duplicating it.
	UploadDocument(ctx context.Context, req UploadRequest) error

	// Search queries indexed content across the given container tags.
	Search(ctx context.Context, req SearchRequest) (*SearchResponse, error)

	// Profile fetches the authenticated account profile. Used to
	// validate credentials during setup and status.
	Profile(ctx context.Context) (*ProfileInfo, error)
}

// UploadRequest mirrors POST /v1/documents.
type UploadRequest struct {
	Content      string            `json:"content"`
	ContainerTag string            `json:"containerTag"`
	CustomID     string            `json:"customId"`
	Metadata     map[string]string `json:"metadata,omitempty"`
}

// SearchRequest mirrors POST /v1/search.
type SearchRequest struct {
	Query         string   `json:"q"`
	ContainerTags []string `json:"containerTags,omitempty"`
	Limit         int      `json:"limit,omitempty"`

	// Since restricts results to content created after this RFC 3339
	// instant.
	Since string `json:"since,omitempty"`
}

// SearchResult is one scored chunk of indexed content.
type SearchResult struct {
	Title     string  `json:"title"`
	Content   string  `json:"content"`
	Score     float64 `json:"score"`
	CreatedAt string  `json:"createdAt"`
}

// SearchResponse is the search call's payload.
type SearchResponse struct {
	Results []SearchResult `json:"results"`
	Total   int            `json:"total"`
}

// ProfileInfo describes the authenticated account.
type ProfileInfo struct {
	Email string `json:"email"`
	Plan  string `json:"plan"`
}
