// Command weatherdesk wires the core service layer and exercises it from
// the command line. The graphical shell drives the same WeatherService
// surface; this entry point is the headless equivalent and doubles as a
// smoke check for configuration and connectivity.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/kjstillabower/weatherdesk/internal/client"
	"github.com/kjstillabower/weatherdesk/internal/config"
	"github.com/kjstillabower/weatherdesk/internal/observability"
	"github.com/kjstillabower/weatherdesk/internal/ratelimit"
	"github.com/kjstillabower/weatherdesk/internal/service"
	"github.com/kjstillabower/weatherdesk/internal/store"
)

func main() {
	logger, err := observability.NewLogger()
	if err != nil {
		fmt.Fprintf(os.Stderr, "logger: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = logger.Sync() }()

	cfg, err := config.Load()
	if err != nil {
		logger.Fatal("config", zap.Error(err))
	}

	db, err := store.Open(cfg.DBPath)
	if err != nil {
		logger.Fatal("store", zap.Error(err))
	}

	limiter := ratelimit.New(cfg.RateLimitCalls, cfg.RateLimitPeriod)
	apiClient, err := client.New(client.Options{
		APIKey:         cfg.APIKey,
		BaseURL:        cfg.BaseURL,
		GeoURL:         cfg.GeoURL,
		Timeout:        cfg.Timeout,
		MaxRetries:     cfg.MaxRetries,
		RetryBaseDelay: cfg.RetryBaseDelay,
		RetryMaxDelay:  cfg.RetryMaxDelay,
	}, limiter, logger)
	if err != nil {
		logger.Fatal("weather client", zap.Error(err))
	}

	svc := service.New(apiClient, db, cfg.CacheTTL, logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := apiClient.ValidateAPIKey(ctx); err != nil {
		_ = svc.Shutdown()
		logger.Fatal("API key validation", zap.Error(err))
	}

	if removed, err := svc.ClearExpiredCache(); err != nil {
		logger.Warn("cache sweep failed", zap.Error(err))
	} else if removed > 0 {
		logger.Info("cache sweep", zap.Int64("removed", removed))
	}

	warmCtx, warmCancel := context.WithTimeout(ctx, 30*time.Second)
	if err := svc.WarmFavorites(warmCtx, "metric"); err != nil && ctx.Err() == nil {
		logger.Warn("favorite warming failed", zap.Error(err))
	}
	warmCancel()

	if len(os.Args) > 1 {
		city := strings.Join(os.Args[1:], " ")
		if err := fetchAndPrint(ctx, svc, city); err != nil {
			logger.Error("fetch", zap.String("city", city),
				zap.String("category", string(client.CategorizeError(err))), zap.Error(err))
			_ = svc.Shutdown()
			os.Exit(1)
		}
	}

	if err := svc.Shutdown(); err != nil {
		logger.Error("shutdown", zap.Error(err))
		os.Exit(1)
	}
}

// fetchAndPrint resolves one city end to end and prints the combined result
// as JSON, the same data the GUI renders.
func fetchAndPrint(ctx context.Context, svc *service.WeatherService, city string) error {
	current, forecast, err := svc.GetFullWeather(ctx, city, "metric")
	if err != nil {
		return err
	}
	out, err := json.MarshalIndent(struct {
		Current  any `json:"current"`
		Forecast any `json:"forecast"`
	}{current, forecast}, "", "  ")
	if err != nil {
		return err
	}
	fmt.Println(string(out))
	return nil
}
