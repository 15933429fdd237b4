// Package search provides full-text search over a user's projects and their
// cards: Meilisearch when configured and healthy, SQL fallback otherwise.
package search

import (
	"context"
	"log"
)

// Result is a single search hit returned to the caller.
type Result struct {
	ProjectID   string `json:"projectId"`
	Name        string `json:"name"`
	Description string `json:"description"`
	MatchedCard string `json:"matchedCard,omitempty"`
}

// Query describes a search request. UserID scopes results to projects the
// caller belongs to.
type Query struct {
	Text   string
	UserID string
	Limit  int
}

// Response is the envelope returned by the search endpoint.
type Response struct {
	Results []Result `json:"results"`
	Total   int      `json:"total"`
	Query   string   `json:"query"`
}

// ProjectRecord is the data indexed per project.
type ProjectRecord struct {
	ID          string   `json:"id"`
	Name        string   `json:"name"`
	Description string   `json:"description"`
	CardTitles  []string `json:"cardTitles"`
	MemberIDs   []string `json:"memberIds"`
}

// Service is the facade that tries Meilisearch first and falls back to SQL.
type Service struct {
	meili    *Meili
	fallback *SQLSearch
}

// NewService creates a search service. meili may be nil when Meilisearch is
// not configured.
func NewService(meili *Meili, fallback *SQLSearch) *Service {
	return &Service{meili: meili, fallback: fallback}
}

// Search tries Meilisearch if healthy, otherwise falls back to SQL.
func (s *Service) Search(ctx context.Context, q Query) Response {
	if q.Limit <= 0 {
		q.Limit = 20
	}

	if s.meili != nil && s.meili.Healthy() {
		results, total, err := s.meili.Search(q)
		if err == nil {
			return Response{Results: nonNil(results), Total: total, Query: q.Text}
		}
		log.Printf("search: meilisearch error, falling back to sql: %v", err)
	}

	results, total, err := s.fallback.Search(ctx, q)
	if err != nil {
		log.Printf("search: sql fallback error: %v", err)
		return Response{Results: []Result{}, Total: 0, Query: q.Text}
	}
	return Response{Results: nonNil(results), Total: total, Query: q.Text}
}

// IndexProject pushes a project into the search index, fire-and-forget.
// Indexing failures are logged, never surfaced to the request.
func (s *Service) IndexProject(record ProjectRecord) {
	if s.meili == nil || !s.meili.Healthy() {
		return
	}
	go func() {
		if err := s.meili.IndexProject(record); err != nil {
			log.Printf("search: index project %s: %v", record.ID, err)
		}
	}()
}

func nonNil(results []Result) []Result {
	if results == nil {
		return []Result{}
	}
	return results
}
