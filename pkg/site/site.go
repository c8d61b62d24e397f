package site

import (
	"fmt"
	"net/http"
	"runtime/debug"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"

	"github.com/always-cache/headerpolicy"
)

type Config struct {
	// Assembled header policies. Required.
	Pipeline *headerpolicy.Pipeline
	// Static files to serve. Nothing is served statically if nil.
	Static http.FileSystem
	// URL prefix of the static files, "/static" if empty. Use "/" to serve from the root.
	StaticPrefix string
	// Development turns on detailed error pages. Unsafe in production.
	Development bool
	// Optional function registering the application's own routes.
	Routes func(chi.Router)
	// Logger to use. A console logger is used if nil.
	Logger *zerolog.Logger
}

// New composes the request pipeline: header policies first, so that every
// response including error pages carries them, then error handling, static
// files and the application routes.
func New(config Config) http.Handler {
	var logger zerolog.Logger
	if config.Logger == nil {
		logger = zerolog.New(zerolog.NewConsoleWriter())
	} else {
		logger = *config.Logger
	}

	r := chi.NewRouter()
	r.Use(config.Pipeline.Middleware)
	r.Use(requestLogger(logger))
	if config.Development {
		r.Use(middleware.Recoverer)
	} else {
		r.Use(recoverer(logger))
	}

	if config.Static != nil {
		prefix := strings.TrimSuffix(config.StaticPrefix, "/")
		if config.StaticPrefix == "" {
			prefix = "/static"
		}
		static := notFoundPage(config.Pipeline.StaticFiles(config.Static))
		if prefix == "" {
			r.Handle("/*", static)
		} else {
			r.Handle(prefix+"/*", http.StripPrefix(prefix, static))
		}
	}

	if config.Routes != nil {
		config.Routes(r)
	}

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		writeErrorPage(w, http.StatusNotFound)
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		writeErrorPage(w, http.StatusMethodNotAllowed)
	})

	return r
}

func writeErrorPage(w http.ResponseWriter, status int) {
	text := http.StatusText(status)
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	fmt.Fprintf(w, "<!DOCTYPE html>\n<html><head><title>%d %s</title></head><body><h1>%d %s</h1></body></html>\n",
		status, text, status, text)
}

// notFoundPage replaces the file server's plain text 404 with the site's error page.
func notFoundPage(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		next.ServeHTTP(&notFoundWriter{ResponseWriter: w}, r)
	})
}

type notFoundWriter struct {
	http.ResponseWriter
	wroteHeader bool
	notFound    bool
}

func (w *notFoundWriter) WriteHeader(statusCode int) {
	if w.wroteHeader {
		return
	}
	w.wroteHeader = true
	if statusCode == http.StatusNotFound {
		w.notFound = true
		writeErrorPage(w.ResponseWriter, statusCode)
		return
	}
	w.ResponseWriter.WriteHeader(statusCode)
}

func (w *notFoundWriter) Write(b []byte) (int, error) {
	if !w.wroteHeader {
		w.WriteHeader(http.StatusOK)
	}
	// the error page is already written
	if w.notFound {
		return len(b), nil
	}
	return w.ResponseWriter.Write(b)
}

func (w *notFoundWriter) Unwrap() http.ResponseWriter {
	return w.ResponseWriter
}

// recoverer turns panics into a plain 500 page and logs the stack.
func recoverer(logger zerolog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				rvr := recover()
				if rvr == nil {
					return
				}
				if rvr == http.ErrAbortHandler {
					panic(rvr)
				}
				logger.Error().
					Str("method", r.Method).
					Str("url", r.URL.String()).
					Interface("panic", rvr).
					Bytes("stack", debug.Stack()).
					Msg("Handler panicked")
				if r.Header.Get("Connection") != "Upgrade" {
					writeErrorPage(w, http.StatusInternalServerError)
				}
			}()
			next.ServeHTTP(w, r)
		})
	}
}

func requestLogger(logger zerolog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			start := time.Now()
			defer func() {
				logger.Debug().
					Str("method", r.Method).
					Str("url", r.URL.String()).
					Str("sourceIp", sourceIp(r)).
					Int("status", ww.Status()).
					Int("bytes", ww.BytesWritten()).
					Dur("duration", time.Since(start)).
					Msg("Sending response to client")
			}()
			next.ServeHTTP(ww, r)
		})
	}
}

func sourceIp(r *http.Request) string {
	// RemoteAddr is in the format:
	// 1.2.3.4:10000 for ipv4
	// [1:2:3]:10000 for ipv6
	ipAndPort := r.RemoteAddr
	portSepIdx := strings.LastIndex(ipAndPort, ":")
	if portSepIdx < 0 {
		return ipAndPort
	}
	return ipAndPort[:portSepIdx]
}
