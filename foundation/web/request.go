package web

import (
	"fmt"
	"net/http"
	"strconv"
)

// QueryUint64 returns the named query string value as a uint64. The
// default is returned when the value is absent.
func QueryUint64(r *http.Request, key string, def uint64) (uint64, error) {
	s := r.URL.Query().Get(key)
	if s == "" {
		return def, nil
	}

	v, err := strconv.ParseUint(s, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("query %q: %w", key, err)
	}

	return v, nil
}
