package site

import (
	"crypto/tls"
	"net/http"
	"net/http/httptest"
	"testing"
	"testing/fstest"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/always-cache/headerpolicy"
	cacheprofile "github.com/always-cache/headerpolicy/pkg/cache-profile"
)

var testLogger = zerolog.Nop()

func newTestSite(t *testing.T, development bool, prefix string) http.Handler {
	t.Helper()
	store, err := cacheprofile.Parse([]byte(`
cacheProfiles:
  - key: StaticFiles
    maxAgeSeconds: 2592000
    visibility: public
    mustRevalidate: false
`))
	require.NoError(t, err)
	pipeline, err := headerpolicy.New(headerpolicy.Config{
		Profiles: store,
		Features: headerpolicy.ProductionFeatures,
		Logger:   &testLogger,
	})
	require.NoError(t, err)

	return New(Config{
		Pipeline:     pipeline,
		Static:       http.FS(fstest.MapFS{"site.js": {Data: []byte("console.log(1)")}}),
		StaticPrefix: prefix,
		Development:  development,
		Logger:       &testLogger,
		Routes: func(r chi.Router) {
			r.Get("/hello", func(w http.ResponseWriter, r *http.Request) {
				w.Write([]byte("Hello world"))
			})
			r.Get("/panic", func(w http.ResponseWriter, r *http.Request) {
				panic("boom")
			})
		},
	})
}

func assertSecurityHeaders(t *testing.T, res *http.Response) {
	t.Helper()
	assert.Equal(t, "nosniff", res.Header.Get("X-Content-Type-Options"))
	assert.Equal(t, "noopen", res.Header.Get("X-Download-Options"))
	assert.Equal(t, "DENY", res.Header.Get("X-Frame-Options"))
}

func TestStaticFiles(t *testing.T) {
	handler := newTestSite(t, false, "")

	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, httptest.NewRequest("GET", "/static/site.js", nil))
	res := rr.Result()

	assert.Equal(t, http.StatusOK, res.StatusCode)
	assert.Equal(t, "console.log(1)", rr.Body.String())
	assert.Equal(t, "public, max-age=2592000", res.Header.Get("Cache-Control"))
	assert.Empty(t, res.Header.Get("Pragma"))
	assertSecurityHeaders(t, res)
}

func TestStaticFilesAtRoot(t *testing.T) {
	handler := newTestSite(t, false, "/")

	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, httptest.NewRequest("GET", "/site.js", nil))
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "public, max-age=2592000", rr.Result().Header.Get("Cache-Control"))

	// unknown paths fall through to the file server and still get the error page
	rr = httptest.NewRecorder()
	handler.ServeHTTP(rr, httptest.NewRequest("GET", "/nothing-here", nil))
	res := rr.Result()
	assert.Equal(t, http.StatusNotFound, res.StatusCode)
	assert.Equal(t, "text/html; charset=utf-8", res.Header.Get("Content-Type"))
	assert.Contains(t, rr.Body.String(), "<h1>404 Not Found</h1>")
	assert.NotContains(t, rr.Body.String(), "404 page not found")
	assert.Empty(t, res.Header.Get("Cache-Control"))
	assertSecurityHeaders(t, res)

	// application routes still win over the catch-all
	rr = httptest.NewRecorder()
	handler.ServeHTTP(rr, httptest.NewRequest("GET", "/hello", nil))
	assert.Equal(t, "Hello world", rr.Body.String())
}

func TestApplicationRoutes(t *testing.T) {
	handler := newTestSite(t, false, "")

	req := httptest.NewRequest("GET", "/hello", nil)
	req.TLS = &tls.ConnectionState{}
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)
	res := rr.Result()

	assert.Equal(t, "Hello world", rr.Body.String())
	assert.Empty(t, res.Header.Get("Cache-Control"))
	assert.Equal(t, "max-age=10886400; includeSubDomains; preload", res.Header.Get("Strict-Transport-Security"))
	assertSecurityHeaders(t, res)
}

func TestErrorPages(t *testing.T) {
	handler := newTestSite(t, false, "")

	for target, status := range map[string]int{
		"/nothing-here":      http.StatusNotFound,
		"/static/missing.js": http.StatusNotFound,
		"/panic":             http.StatusInternalServerError,
	} {
		rr := httptest.NewRecorder()
		handler.ServeHTTP(rr, httptest.NewRequest("GET", target, nil))
		res := rr.Result()
		assert.Equal(t, status, res.StatusCode, target)
		assert.Empty(t, res.Header.Get("Cache-Control"), target)
		assertSecurityHeaders(t, res)
	}

	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, httptest.NewRequest("GET", "/static/missing.js", nil))
	assert.Contains(t, rr.Body.String(), "<h1>404 Not Found</h1>")

	rr = httptest.NewRecorder()
	handler.ServeHTTP(rr, httptest.NewRequest("POST", "/hello", nil))
	assert.Equal(t, http.StatusMethodNotAllowed, rr.Code)
	assert.Contains(t, rr.Body.String(), "405 Method Not Allowed")
}

func TestDevelopmentErrorPages(t *testing.T) {
	handler := newTestSite(t, true, "")

	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, httptest.NewRequest("GET", "/panic", nil))
	assert.Equal(t, http.StatusInternalServerError, rr.Code)
	assertSecurityHeaders(t, rr.Result())
}

func TestSourceIp(t *testing.T) {
	r := httptest.NewRequest("GET", "/", nil)
	r.RemoteAddr = "1.2.3.4:10000"
	assert.Equal(t, "1.2.3.4", sourceIp(r))
	r.RemoteAddr = "[::1]:10000"
	assert.Equal(t, "[::1]", sourceIp(r))
	r.RemoteAddr = "pipe"
	assert.Equal(t, "pipe", sourceIp(r))
}
