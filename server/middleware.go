package server

import (
	"context"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/YuminosukeSato/numclass/pkg/errors"
	"github.com/YuminosukeSato/numclass/pkg/log"
)

type contextKey string

const requestIDKey contextKey = "request_id"

// RequestIDHeader carries the request id in both directions.
const RequestIDHeader = "X-Request-ID"

// Middleware wraps an http.Handler.
type Middleware func(http.Handler) http.Handler

// Chain applies middlewares so that the first one runs outermost.
func Chain(middlewares ...Middleware) Middleware {
	return func(final http.Handler) http.Handler {
		for i := len(middlewares) - 1; i >= 0; i-- {
			final = middlewares[i](final)
		}
		return final
	}
}

// RequestIDFromContext returns the id assigned by RequestID.
func RequestIDFromContext(ctx context.Context) string {
	id, _ := ctx.Value(requestIDKey).(string)
	return id
}

// RequestID reuses the caller's X-Request-ID or assigns a new one.
func RequestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get(RequestIDHeader)
		if id == "" {
			id = uuid.NewString()
		}
		w.Header().Set(RequestIDHeader, id)
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), requestIDKey, id)))
	})
}

// Logger logs one line per request.
func Logger(logger log.Logger) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			wrapped := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}

			next.ServeHTTP(wrapped, r)

			logger.Info("Request handled",
				log.RequestIDKey, RequestIDFromContext(r.Context()),
				log.MethodKey, r.Method,
				log.PathKey, r.URL.Path,
				log.StatusKey, wrapped.statusCode,
				log.DurationMsKey, time.Since(start).Milliseconds(),
			)
		})
	}
}

// Recovery turns a handler panic into a 500 JSON response. The panic is
// logged as an errors.PanicError carrying the stack at the point of recovery.
func Recovery(logger log.Logger) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			err := serveRecovered(next, w, r)
			if err == nil {
				return
			}
			// net/http が接続を切るための panic はそのまま伝える
			if errors.Is(err, http.ErrAbortHandler) {
				panic(http.ErrAbortHandler)
			}

			fields := []any{log.ErrAttrKey, err, log.PathKey, r.URL.Path}
			var perr *errors.PanicError
			if errors.As(err, &perr) {
				fields = append(fields, log.StacktraceAttrKey, perr.Stack)
			}
			logger.Error("Panic recovered", fields...)
			writeJSON(w, http.StatusInternalServerError, errorBody{Error: "internal server error"})
		})
	}
}

func serveRecovered(next http.Handler, w http.ResponseWriter, r *http.Request) (err error) {
	defer errors.Recover(&err, r.Method+" "+r.URL.Path)
	next.ServeHTTP(w, r)
	return nil
}

// responseWriter records the status code for logging.
type responseWriter struct {
	http.ResponseWriter
	statusCode int
	written    bool
}

func (rw *responseWriter) WriteHeader(code int) {
	if !rw.written {
		rw.statusCode = code
		rw.written = true
	}
	rw.ResponseWriter.WriteHeader(code)
}

func (rw *responseWriter) Write(b []byte) (int, error) {
	rw.written = true
	return rw.ResponseWriter.Write(b)
}
