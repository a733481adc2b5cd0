package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"netcrm/internal/config"
	"netcrm/internal/listener"
	"netcrm/internal/logger"
	"netcrm/internal/pipeline"
	"netcrm/internal/storage"
)

func main() {
	cfg, err := config.Load()
	must(err)

	log, err := logger.New(cfg.LogLevel, cfg.LogFormat)
	must(err)
	defer func() { _ = log.Sync() }()

	db, err := storage.Open(cfg.DBPath)
	must(err)
	defer db.Close()

	fields, err := pipeline.LoadFieldNormalizer(cfg.FieldAliasesPath)
	must(err)

	svc := listener.NewService(db, cfg, log.With(zap.String("component", "mail-listener")), pipeline.NewImportService(db, cfg, log, fields))
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	must(svc.Run(ctx))
}

func must(err error) {
	if err == nil {
		return
	}
	fmt.Fprintf(os.Stderr, "error: %v\n", err)
	os.Exit(1)
}
