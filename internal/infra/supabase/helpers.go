package supabase

import (
	"encoding/json"
	"fmt"
	"net/url"
)

// ============================================================
// PostgREST request helpers
// ============================================================

// PostgREST Prefer header values used by the stores.
const (
	preferRepresentation = "return=representation"
	preferUpsert         = "return=minimal,resolution=merge-duplicates"
)

// eqFilter builds a PostgREST equality filter with the value escaped.
// Account names carry dots, dashes and spaces ("27.922-6"), so raw
// interpolation would corrupt the query string.
func eqFilter(column, value string) string {
	return fmt.Sprintf("%s=eq.%s", column, url.QueryEscape(value))
}

// decodeRows unmarshals a PostgREST array response. A nil or empty
// body decodes to an empty slice.
func decodeRows[T any](body []byte) ([]T, error) {
	if len(body) == 0 {
		return []T{}, nil
	}
	var rows []T
	if err := json.Unmarshal(body, &rows); err != nil {
		return nil, fmt.Errorf("failed to decode rows: %w", err)
	}
	return rows, nil
}
