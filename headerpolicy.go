package headerpolicy

import (
	"io/fs"
	"net/http"
	"path"
	"strings"

	"github.com/cockroachdb/errors"
	"github.com/rs/zerolog"

	cacheprofile "github.com/always-cache/headerpolicy/pkg/cache-profile"
	hook "github.com/always-cache/headerpolicy/pkg/response-hook"
)

type Config struct {
	// Cache profiles available to the static file stage.
	Profiles *cacheprofile.Store
	// Key of the profile applied to static files.
	// cacheprofile.StaticFiles is used if empty.
	StaticFilesProfile string
	// Optional stages to enable.
	Features Features
	// X-Frame-Options value. FrameDeny is used if empty.
	FrameOptions FrameOption
	// Treat requests with `X-Forwarded-Proto: https` as secure.
	// Only enable behind a proxy that overwrites the header.
	TrustForwardedProto bool
	// Stages to assemble, in order. DefaultStages() is used if nil.
	Stages []Stage
	// Logger to use. A console logger is used if nil.
	Logger *zerolog.Logger
}

func (c Config) staticFilesProfile() string {
	if c.StaticFilesProfile == "" {
		return cacheprofile.StaticFiles
	}
	return c.StaticFilesProfile
}

type assembled struct {
	name   string
	policy Policy
}

// Pipeline is an assembled, immutable list of header policies.
type Pipeline struct {
	response            []assembled
	static              []assembled
	trustForwardedProto bool
	log                 zerolog.Logger
}

// New assembles the pipeline. Every enabled stage is built in declared order
// and the first failure aborts assembly, so misconfiguration is caught before
// any request is served.
func New(config Config) (*Pipeline, error) {
	// use console logger if not specified in config
	var logger zerolog.Logger
	if config.Logger == nil {
		logger = zerolog.New(zerolog.NewConsoleWriter())
	} else {
		logger = *config.Logger
	}
	logger = logger.With().Str("component", "headerpolicy").Logger()

	stages := config.Stages
	if stages == nil {
		stages = DefaultStages()
	}

	p := &Pipeline{
		trustForwardedProto: config.TrustForwardedProto,
		log:                 logger,
	}
	for _, stage := range stages {
		if !stage.enabled(config.Features) {
			logger.Debug().Str("stage", stage.Name).Msg("Stage disabled")
			continue
		}
		if stage.New == nil {
			return nil, errors.Newf("stage %q has no constructor", stage.Name)
		}
		policy, err := stage.New(config)
		if err != nil {
			return nil, errors.Wrapf(err, "assembling stage %q", stage.Name)
		}
		entry := assembled{name: stage.Name, policy: policy}
		switch stage.Scope {
		case ScopeResponse:
			p.response = append(p.response, entry)
		case ScopeStaticFile:
			p.static = append(p.static, entry)
		default:
			return nil, errors.Newf("stage %q has unknown scope %d", stage.Name, int(stage.Scope))
		}
		logger.Debug().Str("stage", stage.Name).Stringer("scope", stage.Scope).Msg("Stage assembled")
	}
	return p, nil
}

// Stages returns the names of the assembled stages of the given scope in application order.
func (p *Pipeline) Stages(scope Scope) []string {
	list := p.response
	if scope == ScopeStaticFile {
		list = p.static
	}
	names := make([]string, 0, len(list))
	for _, a := range list {
		names = append(names, a.name)
	}
	return names
}

// Apply runs the policies of the given scope against ctx in declared order.
func (p *Pipeline) Apply(scope Scope, ctx *ResponseContext) {
	list := p.response
	if scope == ScopeStaticFile {
		list = p.static
	}
	for _, a := range list {
		a.policy.Apply(ctx)
	}
}

// Middleware returns a handler that applies the response policies and then calls next.
func (p *Pipeline) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := &ResponseContext{
			Header:  w.Header(),
			Request: r,
			Secure:  p.IsSecure(r),
		}
		p.Apply(ScopeResponse, ctx)
		next.ServeHTTP(w, r)
	})
}

// StaticFiles returns a file server for root. 2xx and 304 responses get the
// static file policies applied right before their headers are written.
// Directories are only served through their index.html, never listed.
func (p *Pipeline) StaticFiles(root http.FileSystem) http.Handler {
	fileServer := http.FileServer(filesOnly{root})
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		secure := p.IsSecure(r)
		hw := hook.NewResponseWriter(w, func(status int, header http.Header) {
			// only files that were actually found, not redirects or errors
			if status >= http.StatusMultipleChoices && status != http.StatusNotModified {
				return
			}
			p.Apply(ScopeStaticFile, &ResponseContext{
				Header:  header,
				Request: r,
				Secure:  secure,
				Status:  status,
			})
		})
		fileServer.ServeHTTP(hw, r)
		p.log.Trace().Str("path", r.URL.Path).Int("status", hw.StatusCode()).Msg("Served static file")
	})
}

// IsSecure reports whether r arrived over TLS.
func (p *Pipeline) IsSecure(r *http.Request) bool {
	if r.TLS != nil {
		return true
	}
	if p.trustForwardedProto {
		proto, _, _ := strings.Cut(r.Header.Get("X-Forwarded-Proto"), ",")
		return strings.EqualFold(strings.TrimSpace(proto), "https")
	}
	return false
}

// filesOnly hides directories that have no index.html from the file server.
type filesOnly struct {
	root http.FileSystem
}

func (f filesOnly) Open(name string) (http.File, error) {
	file, err := f.root.Open(name)
	if err != nil {
		return nil, err
	}
	stat, err := file.Stat()
	if err != nil {
		file.Close()
		return nil, err
	}
	if !stat.IsDir() {
		return file, nil
	}
	index, err := f.root.Open(path.Join(name, "index.html"))
	if err != nil {
		file.Close()
		return nil, fs.ErrNotExist
	}
	index.Close()
	return file, nil
}
