package controller

import (
	"bytes"
	"log/slog"
	"net/http"
	"strings"

	"github.com/google/uuid"

	"github.com/karajam/server/pkg/ctxlogger"
	"github.com/karajam/server/pkg/keyfmt"
)

func (c controller) requestIdMw(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		ctx = ctxlogger.AppendCtx(ctx, slog.String("request_id", uuid.NewString()))
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func (c controller) requestLoggingMw(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		c.logger.InfoContext(r.Context(), "request",
			"method", r.Method,
			"url", r.URL.String(),
			"remote_addr", r.RemoteAddr,
		)
		next.ServeHTTP(w, r)
	})
}

// camelizeWriter buffers a JSON response so its keys can be rewritten
// before anything reaches the client.
type camelizeWriter struct {
	http.ResponseWriter
	buf    bytes.Buffer
	status int
	isJSON bool
}

func (w *camelizeWriter) WriteHeader(status int) {
	w.status = status
	w.isJSON = strings.HasPrefix(w.Header().Get("Content-Type"), "application/json")
	if !w.isJSON {
		w.ResponseWriter.WriteHeader(status)
	}
}

func (w *camelizeWriter) Write(p []byte) (int, error) {
	if w.status == 0 {
		w.WriteHeader(http.StatusOK)
	}
	if w.isJSON {
		return w.buf.Write(p)
	}

	return w.ResponseWriter.Write(p)
}

// camelizeResponseMw rewrites JSON response bodies to camelCase keys.
// Internal structs all marshal snake_case; the wire stays camel.
func (c controller) camelizeResponseMw(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// websocket upgrades need the raw ResponseWriter
		if strings.EqualFold(r.Header.Get("Upgrade"), "websocket") {
			next.ServeHTTP(w, r)
			return
		}

		cw := &camelizeWriter{ResponseWriter: w}
		next.ServeHTTP(cw, r)

		if !cw.isJSON {
			return
		}

		body := cw.buf.Bytes()
		if camel, err := keyfmt.CamelizeJSON(body); err == nil {
			body = camel
		} else {
			c.logger.DebugContext(r.Context(), "failed to camelize response", "error", err)
		}

		cw.ResponseWriter.WriteHeader(cw.status)
		cw.ResponseWriter.Write(body)
	})
}
