// Package cmd wires the bridge service together and runs it.
package cmd

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/router-for-me/claudebridge/internal/api"
	"github.com/router-for-me/claudebridge/internal/api/middleware"
	"github.com/router-for-me/claudebridge/internal/config"
	"github.com/router-for-me/claudebridge/internal/runtime/executor"
	"github.com/router-for-me/claudebridge/internal/usage"
	log "github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
)

// shutdownTimeout bounds the graceful drain of in-flight requests.
const shutdownTimeout = 10 * time.Second

var registerUsagePlugins = func() {
	usage.RegisterPlugin(usage.NewLoggerPlugin())
	usage.RegisterPlugin(middleware.NewUsagePlugin())
}

// StartService runs the HTTP server until ctx is canceled or the server
// fails. When configPath names an existing file it is watched and valid
// changes are applied to the running server.
func StartService(ctx context.Context, cfg *config.Config, configPath string) error {
	if cfg == nil {
		cfg = config.Default()
	}
	holder := config.NewHolder(cfg)

	exec, err := executor.NewOpenAICompatExecutor(holder, usage.NewEstimator(cfg.Tokenizer.Encoding))
	if err != nil {
		return fmt.Errorf("failed to create executor: %w", err)
	}
	registerUsagePlugins()

	server := api.NewServer(holder, exec, api.WithRootMessagesAlias())

	group, groupCtx := errgroup.WithContext(ctx)
	group.Go(server.Start)
	group.Go(func() error {
		<-groupCtx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return server.Stop(shutdownCtx)
	})
	if configPath != "" {
		if _, errStat := os.Stat(configPath); errStat == nil {
			group.Go(func() error {
				return config.Watch(groupCtx, configPath, os.LookupEnv, server.UpdateConfig)
			})
		}
	}

	log.Infof("forwarding to %s with provider prefix %q", cfg.Backend.ChatCompletionsURL(), cfg.Backend.ProviderPrefix)

	return group.Wait()
}
