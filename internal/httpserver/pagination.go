package httpserver

import (
	"fmt"
	"net/http"
	"strconv"
)

// ListKeysDefaultLimit and ListKeysMaxLimit bound the list-keys pagination
// query parameters.
const (
	ListKeysDefaultLimit = 50
	ListKeysMinLimit     = 1
	ListKeysMaxLimit     = 100
)

// ListParams holds the parsed offset/limit query parameters for list-keys.
type ListParams struct {
	Offset int
	Limit  int
}

// ParseListParams extracts offset and limit from the request's query string.
// limit defaults to ListKeysDefaultLimit and must fall in
// [ListKeysMinLimit, ListKeysMaxLimit] — values outside that range are
// rejected rather than silently clamped.
func ParseListParams(r *http.Request) (ListParams, error) {
	p := ListParams{Offset: 0, Limit: ListKeysDefaultLimit}

	if v := r.URL.Query().Get("offset"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			return p, fmt.Errorf("offset must be a non-negative integer")
		}
		p.Offset = n
	}

	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return p, fmt.Errorf("limit must be an integer")
		}
		if n < ListKeysMinLimit || n > ListKeysMaxLimit {
			return p, fmt.Errorf("limit must be between %d and %d", ListKeysMinLimit, ListKeysMaxLimit)
		}
		p.Limit = n
	}

	return p, nil
}
