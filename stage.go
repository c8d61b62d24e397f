package headerpolicy

import (
	"github.com/cockroachdb/errors"

	cacheprofile "github.com/always-cache/headerpolicy/pkg/cache-profile"
)

// Scope selects the responses a stage applies to.
type Scope int

const (
	// Every response passing through Pipeline.Middleware.
	ScopeResponse Scope = iota
	// Successful responses served by Pipeline.StaticFiles.
	ScopeStaticFile
)

func (s Scope) String() string {
	switch s {
	case ScopeResponse:
		return "response"
	case ScopeStaticFile:
		return "static-file"
	}
	return "unknown"
}

// Features switches optional stages on or off at assembly time.
// The fixed security headers are not optional.
type Features struct {
	StrictTransportSecurity bool `yaml:"strictTransportSecurity"`
}

// ProductionFeatures enables every optional stage.
var ProductionFeatures = Features{
	StrictTransportSecurity: true,
}

// Stage declares one policy of the pipeline.
type Stage struct {
	Name  string
	Scope Scope
	// Enabled reports whether the stage is part of the pipeline.
	// A nil func means always enabled.
	Enabled func(Features) bool
	// New builds the policy from the resolved configuration.
	New func(Config) (Policy, error)
}

// DefaultStages returns the standard stage list in application order.
func DefaultStages() []Stage {
	return []Stage{
		{
			Name:  "cache-control",
			Scope: ScopeStaticFile,
			New: func(c Config) (Policy, error) {
				if c.Profiles == nil {
					return nil, &cacheprofile.ConfigurationError{
						Profile: c.staticFilesProfile(),
						Reason:  "no cache profiles configured",
						Err:     cacheprofile.ErrUnknownProfile,
					}
				}
				return NewCacheControlPolicy(c.Profiles, c.staticFilesProfile())
			},
		},
		{
			Name:    "strict-transport-security",
			Enabled: func(f Features) bool { return f.StrictTransportSecurity },
			New: func(Config) (Policy, error) {
				return DefaultStrictTransportSecurity, nil
			},
		},
		{
			Name: "x-content-type-options",
			New: func(Config) (Policy, error) {
				return ContentSnifferBlockPolicy{}, nil
			},
		},
		{
			Name: "x-download-options",
			New: func(Config) (Policy, error) {
				return DownloadOptionsPolicy{}, nil
			},
		},
		{
			Name: "x-frame-options",
			New: func(c Config) (Policy, error) {
				switch c.FrameOptions {
				case "", FrameDeny, FrameSameOrigin:
					return FrameOptionsPolicy{Option: c.FrameOptions}, nil
				}
				return nil, errors.Newf("unsupported frame option %q", c.FrameOptions)
			},
		},
	}
}

func (s Stage) enabled(f Features) bool {
	return s.Enabled == nil || s.Enabled(f)
}
