package middleware

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
)

const (
	teamIDKey contextKey = "team_id"
)

// TeamID reads the tenant identifier from the X-Team-ID header and stores it
// on the request context. Requests without one are rejected before reaching
// any handler.
func TeamID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		teamID := strings.TrimSpace(r.Header.Get("X-Team-ID"))
		if teamID == "" {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusBadRequest)
			_ = json.NewEncoder(w).Encode(map[string]string{"error": "missing X-Team-ID header"})
			return
		}
		ctx := context.WithValue(r.Context(), teamIDKey, teamID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func TeamIDFromContext(ctx context.Context) string {
	if v, ok := ctx.Value(teamIDKey).(string); ok {
		return v
	}
	return ""
}
