// Package listener polls a mailbox on an interval and runs each batch through
// the mail processor, optionally followed by a calendar sync.
package listener

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"netcrm/internal/config"
	"netcrm/internal/connectors"
	calendarconnector "netcrm/internal/connectors/calendar"
	gmailconnector "netcrm/internal/connectors/gmail"
	imapconnector "netcrm/internal/connectors/imap"
	"netcrm/internal/logger"
	"netcrm/internal/pipeline"
	"netcrm/internal/storage"
)

type Service struct {
	db      *storage.DB
	cfg     config.Config
	log     *zap.Logger
	imports *pipeline.ImportService

	newConnector func(ctx context.Context, provider string) (connectors.MailConnector, error)
	newEvents    func(ctx context.Context) (pipeline.EventSource, error)
}

func NewService(db *storage.DB, cfg config.Config, log *zap.Logger, imports *pipeline.ImportService) *Service {
	s := &Service{db: db, cfg: cfg, log: logger.OrNop(log), imports: imports}
	s.newConnector = s.makeConnector
	s.newEvents = func(ctx context.Context) (pipeline.EventSource, error) {
		return calendarconnector.NewConnector(ctx, cfg)
	}
	return s
}

type CycleResult struct {
	Provider     string
	Fetched      int
	Stored       int
	Processed    int
	Touched      int
	Interactions int
}

// Run repeats cycles until ctx is cancelled. A failed cycle is logged and the
// next one runs on schedule.
func (s *Service) Run(ctx context.Context) error {
	interval := time.Duration(s.cfg.MailListenerIntervalSec) * time.Second
	if interval <= 0 {
		interval = time.Minute
	}
	s.log.Info("listener started", zap.String("provider", s.provider()), zap.Duration("interval", interval))

	for {
		if _, err := s.RunCycle(ctx); err != nil && ctx.Err() == nil {
			s.log.Error("listener cycle failed", zap.Error(err))
		}

		select {
		case <-ctx.Done():
			s.log.Info("listener stopped")
			return nil
		case <-time.After(interval):
		}
	}
}

func (s *Service) RunCycle(ctx context.Context) (CycleResult, error) {
	provider := s.provider()
	res := CycleResult{Provider: provider}

	mailConnector, err := s.newConnector(ctx, provider)
	if err != nil {
		return res, err
	}

	fetched, err := connectors.NewFetchService(s.db, s.cfg.RawMailDir, mailConnector, s.log).
		FetchAndStore(ctx, s.cfg.MailListenerLabel, s.cfg.MailListenerFetchMax)
	if err != nil {
		return res, err
	}
	res.Fetched, res.Stored = fetched.Fetched, fetched.Stored

	processor := pipeline.NewMailProcessor(s.db, s.cfg, s.log, s.imports)
	res.Processed, res.Touched, err = processor.ProcessPending(ctx, s.cfg.MailListenerProcessBatch, provider)
	if err != nil {
		return res, err
	}

	if s.cfg.MailListenerCalendarSync {
		events, err := s.newEvents(ctx)
		if err != nil {
			return res, err
		}
		synced, err := pipeline.NewCalendarSync(s.db, s.cfg, s.log, events).Sync(ctx)
		if err != nil {
			return res, err
		}
		res.Interactions = synced.Interactions
	}

	s.log.Info("listener cycle done",
		zap.String("provider", provider),
		zap.Int("fetched", res.Fetched),
		zap.Int("stored", res.Stored),
		zap.Int("processed", res.Processed),
		zap.Int("touched", res.Touched),
	)
	return res, nil
}

func (s *Service) provider() string {
	return strings.ToLower(strings.TrimSpace(s.cfg.MailListenerProvider))
}

func (s *Service) makeConnector(ctx context.Context, provider string) (connectors.MailConnector, error) {
	return NewMailConnector(ctx, s.cfg, provider)
}

// NewMailConnector builds the connector for a provider name.
func NewMailConnector(ctx context.Context, cfg config.Config, provider string) (connectors.MailConnector, error) {
	switch provider {
	case "gmail":
		return gmailconnector.NewConnector(ctx, cfg)
	case "imap":
		return imapconnector.NewConnector(cfg)
	default:
		return nil, fmt.Errorf("unsupported listener provider: %s", provider)
	}
}
