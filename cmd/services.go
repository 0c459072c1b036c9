package cmd

import (
	"errors"
	"net/http"
	"strings"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/spigell/cvtabs/internal/cache"
	"github.com/spigell/cvtabs/internal/executor"
	"github.com/spigell/cvtabs/internal/manager"
	"github.com/spigell/cvtabs/internal/persistence"
	"github.com/spigell/cvtabs/internal/search"
	"github.com/spigell/cvtabs/internal/secrets"
	"github.com/spigell/cvtabs/internal/session"
)

const tokenEnv = "CVTABS_TOKEN"

// newManager wires the search and persistence clients described by config.
func newManager(config *Config, logger *zap.Logger) (*manager.Manager, error) {
	token, err := resolveToken(config)
	if err != nil {
		return nil, err
	}

	searchClient := search.New(config.Search.URL, token, logger.Named("search"))
	if config.UserAgent != "" {
		searchClient.UserAgent = config.UserAgent
	}
	if config.HTTPTimeout > 0 {
		searchClient.HTTPClient.Timeout = config.HTTPTimeout
	}

	store := session.NewStore(cache.New(config.CacheTTL), config.PageSize, logger.Named("store"))
	exec := executor.New(store, searchClient, logger.Named("executor"))

	var gateway *persistence.Gateway
	if config.Persistence != nil && config.Persistence.URL != "" {
		docs := persistence.New(config.Persistence.URL, token, logger.Named("persistence"))
		if config.UserAgent != "" {
			docs.UserAgent = config.UserAgent
		}
		if config.HTTPTimeout > 0 {
			docs.HTTPClient.Timeout = config.HTTPTimeout
		}
		gateway = persistence.NewGateway(docs, store, config.FilterType, logger.Named("persistence"))
	} else {
		logger.Info("saving sessions is disabled", zap.String("hint", "set persistence.url in the configuration file"))
	}

	return manager.New(store, exec, gateway, logger), nil
}

func resolveToken(config *Config) (string, error) {
	if config == nil {
		return "", errors.New("config is required")
	}

	tokenFile := strings.TrimSpace(config.TokenFile)
	if tokenFile == "" {
		tokenFile = strings.TrimSpace(viper.GetString("token-file"))
	}

	token, err := secrets.Load(secrets.Source{
		Name: "api token",
		File: tokenFile,
		Env:  tokenEnv,
	})
	// Requests are sent without Authorization when no token is configured.
	if errors.Is(err, secrets.ErrNotConfigured) {
		return "", nil
	}

	return token, err
}

// serveMetrics exposes prometheus metrics when an address is configured.
func serveMetrics(logger *zap.Logger) {
	addr := viper.GetString("metrics-addr")
	if addr == "" {
		return
	}

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())

	go func() {
		logger.Info("serving metrics", zap.String("addr", addr))
		if err := http.ListenAndServe(addr, mux); err != nil {
			logger.Error("metrics server stopped", zap.Error(err))
		}
	}()
}
