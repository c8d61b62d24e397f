package main

import (
	"os"

	"gopkg.in/yaml.v3"

	"github.com/always-cache/headerpolicy"
	cacheprofile "github.com/always-cache/headerpolicy/pkg/cache-profile"
)

type Config struct {
	Port                int                      `yaml:"port"`
	StaticDir           string                   `yaml:"staticDir"`
	StaticPrefix        string                   `yaml:"staticPrefix"`
	Development         bool                     `yaml:"development"`
	TrustForwardedProto bool                     `yaml:"trustForwardedProto"`
	FrameOptions        headerpolicy.FrameOption `yaml:"frameOptions"`
	Features            *headerpolicy.Features   `yaml:"features"`
	CacheProfiles       []cacheprofile.Record    `yaml:"cacheProfiles"`
}

func getConfig(filename string) (Config, error) {
	var config Config
	configBytes, err := os.ReadFile(filename)
	if err != nil {
		return config, err
	}
	err = yaml.Unmarshal(configBytes, &config)
	return config, err
}

// features returns the configured features, defaulting to everything on.
// Development mode always turns HSTS off, whatever the file says.
func (c Config) features() headerpolicy.Features {
	f := headerpolicy.ProductionFeatures
	if c.Features != nil {
		f = *c.Features
	}
	if c.Development {
		f.StrictTransportSecurity = false
	}
	return f
}
