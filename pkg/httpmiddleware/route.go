package httpmiddleware

import (
	"context"
	"net/http"
)

type routeKey struct{}

// route receives the pattern matched by the mux. Middlewares outside the mux
// only see copies of the request, so the matched pattern is reported back
// through this holder.
type route struct {
	pattern string
}

func withRoute(r *http.Request) (*http.Request, *route) {
	if rt, ok := r.Context().Value(routeKey{}).(*route); ok {
		return r, rt
	}
	rt := &route{}
	return r.WithContext(context.WithValue(r.Context(), routeKey{}, rt)), rt
}

// Routed reports the pattern the mux matched for h to LogRequests and
// Instrument. Wrap every handler registered on the mux with it.
func Routed(h http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if rt, ok := r.Context().Value(routeKey{}).(*route); ok {
			rt.pattern = r.Pattern
		}
		h.ServeHTTP(w, r)
	})
}

// RouteFromContext returns the matched pattern once the handler has run.
func RouteFromContext(ctx context.Context) string {
	if rt, ok := ctx.Value(routeKey{}).(*route); ok {
		return rt.pattern
	}
	return ""
}
