// Package main provides the entry point of claudebridge, a server that
// accepts Anthropic Messages API requests and serves them from an
// OpenAI-compatible chat-completions backend.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/router-for-me/claudebridge/internal/cmd"
	"github.com/router-for-me/claudebridge/internal/config"
	"github.com/router-for-me/claudebridge/internal/logging"
	_ "github.com/router-for-me/claudebridge/internal/translator"
	log "github.com/sirupsen/logrus"
)

var (
	Version           = "dev"
	Commit            = "none"
	BuildDate         = "unknown"
	DefaultConfigPath = ""
)

// init initializes the shared logger setup.
func init() {
	logging.SetupBaseLogger()
}

func main() {
	var configPath string
	var showVersion bool
	var debug bool

	flag.StringVar(&configPath, "config", DefaultConfigPath, "Configure File Path")
	flag.BoolVar(&showVersion, "version", false, "Show version and exit")
	flag.BoolVar(&debug, "debug", false, "Enable debug logging")
	flag.Parse()

	if showVersion {
		fmt.Printf("claudebridge Version: %s, Commit: %s, BuiltAt: %s\n", Version, Commit, BuildDate)
		return
	}

	wd, err := os.Getwd()
	if err != nil {
		log.Errorf("failed to get working directory: %v", err)
		os.Exit(1)
	}

	// Load environment variables from .env if present.
	if errLoad := godotenv.Load(filepath.Join(wd, ".env")); errLoad != nil {
		if !errors.Is(errLoad, os.ErrNotExist) {
			log.WithError(errLoad).Warn("failed to load .env file")
		}
	}

	// An explicit -config must exist; the implicit ./config.yaml is optional.
	optional := configPath == ""
	if optional {
		configPath = filepath.Join(wd, "config.yaml")
	}
	cfg, err := config.LoadConfigOptional(configPath, optional)
	if err != nil {
		log.Errorf("failed to load config: %v", err)
		os.Exit(1)
	}
	if errEnv := cfg.ApplyEnv(os.LookupEnv); errEnv != nil {
		log.Warnf("ignoring invalid environment override: %v", errEnv)
	}
	if debug {
		cfg.Debug = true
	}

	if warnings, errValidate := config.ValidateConfig(cfg); errValidate != nil {
		log.Errorf("invalid configuration: %v", errValidate)
		os.Exit(1)
	} else {
		for _, w := range warnings {
			log.Warnf("config warning: %s", w)
		}
	}

	if err = logging.ConfigureLogOutput(cfg.LoggingToFile, cfg.LogDir); err != nil {
		log.Errorf("failed to configure log output: %v", err)
		os.Exit(1)
	}
	defer logging.CloseLogOutput()

	if cfg.Debug {
		logging.SetLogLevel("debug")
	} else {
		logging.SetLogLevel(cfg.LogLevel)
	}

	log.Infof("claudebridge Version: %s, Commit: %s, BuiltAt: %s", Version, Commit, BuildDate)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if errRun := cmd.StartService(ctx, cfg, configPath); errRun != nil {
		log.Errorf("server stopped: %v", errRun)
		logging.CloseLogOutput()
		os.Exit(1)
	}
	log.Info("server stopped")
}
