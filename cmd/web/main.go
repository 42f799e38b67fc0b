// Package main is the entry point for the Enchanted Leftovers web frontend.
// The service renders the recipe UI server-side and talks to the Leftover
// Chef backend API and the public Spoonacular recipe API.
package main

import (
	"context"
	"fmt"
	"os"
	"strconv"

	"github.com/enchantedleftovers/web/internal/infrastructure/config"
	"github.com/enchantedleftovers/web/internal/infrastructure/http/webserver"
	"github.com/enchantedleftovers/web/internal/infrastructure/leftoverapi"
	"github.com/enchantedleftovers/web/internal/infrastructure/monitoring"
	"github.com/enchantedleftovers/web/internal/infrastructure/security"
	"github.com/enchantedleftovers/web/internal/infrastructure/spoonacular"
	"github.com/enchantedleftovers/web/pkg/healthcheck"
	"github.com/enchantedleftovers/web/pkg/logger"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

func main() {
	app := fx.New(
		fx.NopLogger,

		fx.Provide(func() (*config.Config, error) {
			return config.Load(os.Getenv("LEFTOVERS_CONFIG"))
		}),

		fx.Provide(func(cfg *config.Config) (*zap.Logger, error) {
			return logger.New(logger.Config{
				Level:       cfg.App.LogLevel,
				Format:      cfg.App.LogFormat,
				Development: cfg.App.Debug,
			})
		}),

		fx.Provide(monitoring.NewMetricsCollector),
		fx.Provide(leftoverapi.NewClient),
		fx.Provide(spoonacular.NewClient),
		fx.Provide(webserver.NewSessionStore),
		fx.Provide(security.NewSanitizer),

		fx.Provide(func(cfg *config.Config, log *zap.Logger) *healthcheck.HealthCheck {
			hc := healthcheck.New(cfg.App.Version, log)
			hc.SetCacheTTL(cfg.Monitoring.HealthCacheTTL)
			hc.SetTimeout(cfg.Monitoring.HealthCheckTimeout)
			return hc
		}),

		fx.Provide(webserver.NewWebServer),

		fx.Invoke(registerHealthChecks),
		fx.Invoke(registerLifecycleHooks),
	)

	app.Run()
}

func registerLifecycleHooks(
	lc fx.Lifecycle,
	cfg *config.Config,
	log *zap.Logger,
	server *webserver.WebServer,
) {
	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			// PaaS platforms inject the listen port through the environment
			if port, err := strconv.Atoi(os.Getenv("PORT")); err == nil {
				cfg.Server.Port = port
			}

			log.Info("Starting web frontend",
				zap.Int("port", cfg.Server.Port),
				zap.String("environment", cfg.App.Environment),
				zap.String("backend", cfg.Backend.BaseURL),
			)

			fmt.Printf("Enchanted Leftovers starting on http://localhost:%d\n", cfg.Server.Port)

			go func() {
				if err := server.Start(); err != nil {
					log.Fatal("Web server failed to start", zap.Error(err))
				}
			}()

			return nil
		},
		OnStop: func(ctx context.Context) error {
			return server.Shutdown(ctx)
		},
	})
}

// registerHealthChecks wires the dependency checks the /health endpoint reports
func registerHealthChecks(
	cfg *config.Config,
	log *zap.Logger,
	hc *healthcheck.HealthCheck,
	api *leftoverapi.Client,
	sessions webserver.SessionStore,
) {
	hc.Register("system", healthcheck.NewCustomChecker("system", func(ctx context.Context) (healthcheck.Status, string, interface{}) {
		return healthcheck.StatusHealthy, "System operational", map[string]interface{}{
			"service":     "enchantedleftovers-web",
			"version":     cfg.App.Version,
			"environment": cfg.App.Environment,
		}
	}))

	hc.Register("backend_api", healthcheck.NewCustomChecker("backend_api", func(ctx context.Context) (healthcheck.Status, string, interface{}) {
		meta := map[string]interface{}{"url": cfg.Backend.BaseURL}
		if api.VerifyConnection(ctx) {
			return healthcheck.StatusHealthy, "Backend API accessible", meta
		}
		return healthcheck.StatusUnhealthy, "Backend API not accessible", meta
	}))

	hc.Register("spoonacular", healthcheck.NewExternalServiceChecker(
		"spoonacular",
		cfg.Spoonacular.BaseURL,
		cfg.Monitoring.HealthCheckTimeout,
	))

	if store, ok := sessions.(*webserver.RedisSessionStore); ok {
		hc.Register("redis", healthcheck.NewRedisChecker(store.Client()))
	}

	log.Info("Health checks registered",
		zap.String("session_store", cfg.Session.Store),
	)
}
