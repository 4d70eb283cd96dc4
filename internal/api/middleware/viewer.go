package middleware

import (
	"context"
	"net/http"
)

type contextKey string

// ViewerIDKey is the context key for the authenticated viewer's user id
const ViewerIDKey contextKey = "viewer_id"

// ViewerHeader carries the viewer identity on gateway requests. The dev
// gateway trusts it directly; a production deployment terminates real auth
// in front and injects the header after verification.
const ViewerHeader = "X-Viewer-Id"

// ViewerExtractor injects the viewer id from the request header into the
// request context. Requests without the header proceed anonymously: query
// surfaces allow it, mutation handlers reject it.
func ViewerExtractor(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if viewerID := r.Header.Get(ViewerHeader); viewerID != "" {
			ctx := context.WithValue(r.Context(), ViewerIDKey, viewerID)
			r = r.WithContext(ctx)
		}
		next.ServeHTTP(w, r)
	})
}

// GetViewerID extracts the viewer id from the request context.
// Returns empty string for anonymous requests.
func GetViewerID(r *http.Request) string {
	if viewerID, ok := r.Context().Value(ViewerIDKey).(string); ok {
		return viewerID
	}
	return ""
}
