// Package httpmiddleware contains net/http middlewares shared by the API
// server: panic recovery, CORS, rate limiting, request ids, request-scoped
// loggers, access logs and OpenTelemetry instrumentation.
//
// Error responses use the API envelope
// {"success":false,"message":...,"errorMessages":[{"path":"","message":...}]}.
package httpmiddleware

import (
	"net/http"

	"github.com/go-faster/jx"
)

// Middleware wraps a handler.
type Middleware func(next http.Handler) http.Handler

// Wrap applies middlewares so the first one is outermost.
func Wrap(h http.Handler, middlewares ...Middleware) http.Handler {
	for i := len(middlewares) - 1; i >= 0; i-- {
		h = middlewares[i](h)
	}
	return h
}

// writeError writes an envelope error with a single unnamed error message.
func writeError(w http.ResponseWriter, status int, msg string) {
	var e jx.Encoder
	e.ObjStart()
	e.FieldStart("success")
	e.Bool(false)
	e.FieldStart("message")
	e.Str(msg)
	e.FieldStart("errorMessages")
	e.ArrStart()
	e.ObjStart()
	e.FieldStart("path")
	e.Str("")
	e.FieldStart("message")
	e.Str(msg)
	e.ObjEnd()
	e.ArrEnd()
	e.ObjEnd()

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write(e.Bytes())
}
