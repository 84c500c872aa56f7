package main

import (
	"context"
	"fmt"
	"os"

	"github.com/aws/aws-lambda-go/lambda"
	"go.uber.org/zap"

	"github.com/sh3r4rd/object_index/internal/app"
	"github.com/sh3r4rd/object_index/internal/config"
	"github.com/sh3r4rd/object_index/internal/handler"
	"github.com/sh3r4rd/object_index/internal/logging"
)

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	lg, err := logging.New(cfg.LogLevel)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	defer lg.Sync()

	store, closeStore, err := app.OpenStore(context.Background(), *cfg, lg)
	if err != nil {
		lg.Fatal("failed to open index store", zap.Error(err))
	}
	defer closeStore()

	idx := app.NewIndexer(*cfg, store, lg, nil)

	lg.Info("index synchronizer ready",
		zap.String("write_strategy", cfg.WriteStrategy),
		zap.String("error_policy", cfg.ErrorPolicy),
	)
	lambda.Start(handler.Lambda(idx, app.Policy(*cfg), lg))
}
