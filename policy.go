package headerpolicy

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	cacheprofile "github.com/always-cache/headerpolicy/pkg/cache-profile"
)

// ResponseContext is the outgoing response a policy inspects and mutates.
// It belongs to a single request and must not be retained.
type ResponseContext struct {
	Header  http.Header
	Request *http.Request
	// Secure reports whether the client connection is TLS.
	Secure bool
	// Status code of the response if already known, 0 otherwise.
	Status int
}

// Policy decides whether and which headers to set on a response.
// Implementations must be safe for concurrent use and must not fail.
type Policy interface {
	Apply(ctx *ResponseContext)
}

// PolicyFunc adapts a function to the Policy interface.
type PolicyFunc func(ctx *ResponseContext)

func (f PolicyFunc) Apply(ctx *ResponseContext) {
	f(ctx)
}

// CacheControlPolicy applies a cache profile resolved at assembly time.
type CacheControlPolicy struct {
	profile      cacheprofile.CacheProfile
	cacheControl string
	pragma       string
}

// NewCacheControlPolicy looks up key in store once.
// An unknown key is returned as a *cacheprofile.ConfigurationError.
func NewCacheControlPolicy(store *cacheprofile.Store, key string) (*CacheControlPolicy, error) {
	profile, err := store.Lookup(key)
	if err != nil {
		return nil, err
	}
	return &CacheControlPolicy{
		profile:      profile,
		cacheControl: profile.CacheControl(),
		pragma:       profile.Pragma(),
	}, nil
}

func (p *CacheControlPolicy) Profile() cacheprofile.CacheProfile {
	return p.profile
}

func (p *CacheControlPolicy) Apply(ctx *ResponseContext) {
	ctx.Header.Set("Cache-Control", p.cacheControl)
	if p.pragma != "" {
		ctx.Header.Set("Pragma", p.pragma)
	}
	if p.profile.VaryByHeader != "" && !hasToken(ctx.Header.Values("Vary"), p.profile.VaryByHeader) {
		// keep Vary values added by earlier handlers, e.g. compression
		ctx.Header.Add("Vary", p.profile.VaryByHeader)
	}
}

// hasToken reports whether the comma separated header values contain token.
func hasToken(values []string, token string) bool {
	for _, v := range values {
		for _, t := range strings.Split(v, ",") {
			if strings.EqualFold(strings.TrimSpace(t), token) {
				return true
			}
		}
	}
	return false
}

// HSTS lifetime, 18 weeks is the minimum accepted for preloading.
const StrictTransportSecurityMaxAge = 18 * 7 * 24 * time.Hour

// DefaultStrictTransportSecurity is the compiled-in HSTS policy.
var DefaultStrictTransportSecurity = StrictTransportSecurityPolicy{
	MaxAge:            StrictTransportSecurityMaxAge,
	IncludeSubDomains: true,
	Preload:           true,
}

// StrictTransportSecurityPolicy sets Strict-Transport-Security on secure connections.
// Browsers ignore the header over plain HTTP, so it is never sent there.
type StrictTransportSecurityPolicy struct {
	MaxAge            time.Duration
	IncludeSubDomains bool
	Preload           bool
}

// Value renders the header value, e.g. "max-age=10886400; includeSubDomains; preload".
func (p StrictTransportSecurityPolicy) Value() string {
	v := "max-age=" + strconv.FormatInt(int64(p.MaxAge/time.Second), 10)
	if p.IncludeSubDomains {
		v += "; includeSubDomains"
	}
	if p.Preload {
		v += "; preload"
	}
	return v
}

func (p StrictTransportSecurityPolicy) Apply(ctx *ResponseContext) {
	if !ctx.Secure {
		return
	}
	ctx.Header.Set("Strict-Transport-Security", p.Value())
}

// ContentSnifferBlockPolicy stops browsers from guessing the MIME type of a response.
type ContentSnifferBlockPolicy struct{}

func (ContentSnifferBlockPolicy) Apply(ctx *ResponseContext) {
	ctx.Header.Set("X-Content-Type-Options", "nosniff")
}

// DownloadOptionsPolicy forces saved downloads to be opened manually.
type DownloadOptionsPolicy struct{}

func (DownloadOptionsPolicy) Apply(ctx *ResponseContext) {
	ctx.Header.Set("X-Download-Options", "noopen")
}

type FrameOption string

const (
	// Never render the page in a frame.
	FrameDeny FrameOption = "DENY"
	// Only allow frames from the same origin as the page.
	FrameSameOrigin FrameOption = "SAMEORIGIN"
)

// FrameOptionsPolicy sets X-Frame-Options against clickjacking.
// The zero value denies framing.
type FrameOptionsPolicy struct {
	Option FrameOption
}

func (p FrameOptionsPolicy) Apply(ctx *ResponseContext) {
	option := p.Option
	if option == "" {
		option = FrameDeny
	}
	ctx.Header.Set("X-Frame-Options", string(option))
}
