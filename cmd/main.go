package main

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	awsdynamodb "github.com/aws/aws-sdk-go-v2/service/dynamodb"
	awss3 "github.com/aws/aws-sdk-go-v2/service/s3"
	awsssm "github.com/aws/aws-sdk-go-v2/service/ssm"

	"places-bot/internal/config"
	"places-bot/internal/integrations/geocoder"
	"places-bot/internal/integrations/objectstore"
	"places-bot/internal/integrations/paramstore"
	"places-bot/internal/integrations/telegram"
	"places-bot/internal/repository"
	"places-bot/internal/usecase"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// ---- Configuration (read only here) ----
	cfg, err := config.Load(mustEnv("CONFIG_PATH"))
	if err != nil {
		slog.Error("failed to load configuration", "err", err)
		os.Exit(1)
	}

	// ---- AWS SDK config ----
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx)
	if err != nil {
		slog.Error("failed to load AWS config", "err", err)
		os.Exit(1)
	}

	// ---- Clients ----
	ssmClient, err := paramstore.New(awsssm.NewFromConfig(awsCfg))
	if err != nil {
		slog.Error("failed to create SSM client", "err", err)
		os.Exit(1)
	}
	placesClient, err := repository.New(awsdynamodb.NewFromConfig(awsCfg), cfg.PlacesTable, cfg.LegacyPlacesTable)
	if err != nil {
		slog.Error("failed to create places client", "err", err)
		os.Exit(1)
	}
	photosClient, err := objectstore.New(awss3.NewFromConfig(awsCfg), cfg.PhotoBucket, cfg.PhotoBucketRegion)
	if err != nil {
		slog.Error("failed to create photo store client", "err", err)
		os.Exit(1)
	}
	var geocoderOpts []geocoder.Option
	if cfg.GeocoderBaseURL != "" {
		geocoderOpts = append(geocoderOpts, geocoder.WithBaseURL(cfg.GeocoderBaseURL))
	}
	geocoderClient := geocoder.NewClient(geocoderOpts...)

	// ---- Bot ----
	log := slog.Default()
	bot, err := telegram.NewBot(ctx, ssmClient, cfg.ParamPrefix, log)
	if err != nil {
		slog.Error("failed to create bot", "err", err)
		os.Exit(1)
	}

	service, err := usecase.NewService(placesClient, geocoderClient, bot, photosClient, cfg.AuthorizedUserIDs, log)
	if err != nil {
		slog.Error("failed to create service", "err", err)
		os.Exit(1)
	}

	slog.Info("bot started")
	if err := bot.Run(ctx, service); err != nil && !errors.Is(err, context.Canceled) {
		slog.Error("bot stopped", "err", err)
		os.Exit(1)
	}
	slog.Info("bot stopped")
}

func mustEnv(key string) string {
	v := os.Getenv(key)
	if v == "" {
		slog.Error("required environment variable is not set", "key", key)
		os.Exit(1)
	}
	return v
}
