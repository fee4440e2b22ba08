package api

import (
	"net/http"
	"strconv"
)

// ParseLimit reads the limit query parameter. Missing or invalid values
// give def; values above max are capped.
func ParseLimit(r *http.Request, def, max int) int {
	v := r.URL.Query().Get("limit")
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil || n <= 0 {
		return def
	}
	if n > max {
		return max
	}
	return n
}

// ParseRange reads the range query parameter, defaulting to 1h.
// Only 1h, 24h and 7d are recognized.
func ParseRange(r *http.Request) string {
	switch v := r.URL.Query().Get("range"); v {
	case "1h", "24h", "7d":
		return v
	default:
		return "1h"
	}
}
