package search

import (
	"context"
	"database/sql"
	"fmt"
)

// SQLSearch is the fallback searcher: a case-insensitive match over project
// name, description, and the card titles inside the columns document.
type SQLSearch struct {
	db *sql.DB
}

func NewSQLSearch(db *sql.DB) *SQLSearch {
	return &SQLSearch{db: db}
}

func (s *SQLSearch) Search(ctx context.Context, q Query) ([]Result, int, error) {
	pattern := "%" + q.Text + "%"
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, name, description,
		       COALESCE((
		           SELECT card->>'title'
		           FROM jsonb_array_elements(columns) AS col,
		                jsonb_array_elements(col->'cards') AS card
		           WHERE card->>'title' ILIKE $2
		           LIMIT 1
		       ), '')
		FROM projects
		WHERE members @> jsonb_build_array(jsonb_build_object('userId', $1::text))
		  AND (name ILIKE $2 OR description ILIKE $2 OR EXISTS (
		           SELECT 1
		           FROM jsonb_array_elements(columns) AS col,
		                jsonb_array_elements(col->'cards') AS card
		           WHERE card->>'title' ILIKE $2
		       ))
		ORDER BY updated_at DESC
		LIMIT $3
	`, q.UserID, pattern, q.Limit)
	if err != nil {
		return nil, 0, fmt.Errorf("sql search: %w", err)
	}
	defer rows.Close()

	results := make([]Result, 0)
	for rows.Next() {
		var r Result
		if err := rows.Scan(&r.ProjectID, &r.Name, &r.Description, &r.MatchedCard); err != nil {
			return nil, 0, fmt.Errorf("scan search result: %w", err)
		}
		results = append(results, r)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("iterate search results: %w", err)
	}
	return results, len(results), nil
}
