package main

import (
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/always-cache/headerpolicy"
	cacheprofile "github.com/always-cache/headerpolicy/pkg/cache-profile"
	"github.com/always-cache/headerpolicy/pkg/site"
)

var (
	// CLI flags
	configFilenameFlag string
	portFlag           int
	staticDirFlag      string
	profilesDbFlag     string
	developmentFlag    bool
	verbosityTraceFlag bool
	logFilenameFlag    string

	// this is set by goreleaser
	version string
)

func init() {
	flag.StringVar(&configFilenameFlag, "config", "", "Path to config file")
	flag.IntVar(&portFlag, "port", 0, "Port to listen on (overrides config, default 8080)")
	flag.StringVar(&staticDirFlag, "static", "", "Directory of static files (overrides config)")
	flag.StringVar(&profilesDbFlag, "profiles-db", "", "SQLite db with cache profiles (overrides config profiles)")
	flag.BoolVar(&developmentFlag, "dev", false, "Development mode: detailed error pages, no HSTS")
	flag.BoolVar(&verbosityTraceFlag, "vv", false, "Verbosity: trace logging")
	flag.StringVar(&logFilenameFlag, "log-file", "", "Log file to use (in addition to stdout)")

	if version == "" {
		version = "DEV"
	}
}

func main() {
	flag.Parse()

	// set log level
	logLevel := zerolog.DebugLevel
	if verbosityTraceFlag {
		logLevel = zerolog.TraceLevel
	}

	// set up log output to stdout
	// also output to logfile if specified
	logOutputs := make([]io.Writer, 0)
	logOutputs = append(logOutputs, zerolog.ConsoleWriter{Out: os.Stdout})
	if logFilenameFlag != "" {
		if logFileOutput, err := os.OpenFile(logFilenameFlag, os.O_APPEND|os.O_WRONLY|os.O_CREATE, 0644); err != nil {
			log.Fatal().Err(err).Msg("Cannot open log file")
		} else {
			logOutputs = append(logOutputs, logFileOutput)
		}
	}
	multiWriter := zerolog.MultiLevelWriter(logOutputs...)
	log.Logger = log.Level(logLevel).Output(multiWriter).
		With().Str("version", version).Logger()

	var config Config
	if configFilenameFlag != "" {
		var err error
		if config, err = getConfig(configFilenameFlag); err != nil {
			log.Fatal().Err(err).Str("file", configFilenameFlag).Msg("Cannot read config")
		}
	}
	if portFlag != 0 {
		config.Port = portFlag
	}
	if config.Port <= 0 {
		config.Port = 8080
	}
	if staticDirFlag != "" {
		config.StaticDir = staticDirFlag
	}
	if developmentFlag {
		config.Development = true
	}

	profiles, err := loadProfiles(config)
	if err != nil {
		log.Fatal().Err(err).Msg("Invalid cache profiles")
	}

	// assembly fails on misconfiguration, before any traffic is served
	pipeline, err := headerpolicy.New(headerpolicy.Config{
		Profiles:            profiles,
		Features:            config.features(),
		FrameOptions:        config.FrameOptions,
		TrustForwardedProto: config.TrustForwardedProto,
		Logger:              &log.Logger,
	})
	if err != nil {
		log.Fatal().Err(err).Msg("Cannot assemble header pipeline")
	}

	siteConfig := site.Config{
		Pipeline:     pipeline,
		StaticPrefix: config.StaticPrefix,
		Development:  config.Development,
		Logger:       &log.Logger,
	}
	if config.StaticDir != "" {
		siteConfig.Static = http.Dir(config.StaticDir)
	}

	log.Info().
		Strs("responseStages", pipeline.Stages(headerpolicy.ScopeResponse)).
		Strs("staticStages", pipeline.Stages(headerpolicy.ScopeStaticFile)).
		Bool("development", config.Development).
		Msgf("Serving %s on port %v", config.StaticDir, config.Port)
	err = http.ListenAndServe(fmt.Sprintf(":%d", config.Port), site.New(siteConfig))

	if err != nil {
		log.Fatal().Err(err).Msg("Server stopped")
	}
}

// loadProfiles reads cache profiles from the SQLite db if given, from the config file otherwise.
func loadProfiles(config Config) (*cacheprofile.Store, error) {
	if profilesDbFlag == "" {
		return cacheprofile.FromRecords(config.CacheProfiles)
	}
	src, err := cacheprofile.OpenSQLite(profilesDbFlag)
	if err != nil {
		return nil, err
	}
	defer src.Close()
	return src.Store()
}
