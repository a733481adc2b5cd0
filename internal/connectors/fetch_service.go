package connectors

import (
	"context"

	"go.uber.org/zap"

	"netcrm/internal/logger"
	"netcrm/internal/storage"
)

type FetchService struct {
	connector MailConnector
	store     *MailStoreService
	log       *zap.Logger
}

type FetchResult struct {
	Fetched int
	Stored  int
	// Known counts messages that were already stored on an earlier fetch.
	Known int
}

func NewFetchService(db *storage.DB, rawMailDir string, connector MailConnector, log *zap.Logger) *FetchService {
	return &FetchService{
		connector: connector,
		store:     NewMailStoreService(db, rawMailDir),
		log:       logger.OrNop(log),
	}
}

func (s *FetchService) FetchAndStore(ctx context.Context, label string, max int) (FetchResult, error) {
	messages, err := s.connector.FetchInbox(ctx, label, max)
	if err != nil {
		return FetchResult{}, err
	}

	res := FetchResult{Fetched: len(messages)}
	for _, msg := range messages {
		row, created, err := s.store.Store(msg)
		if err != nil {
			return res, err
		}
		if !created {
			res.Known++
			continue
		}
		res.Stored++
		s.log.Debug("mail stored", zap.Int("email", row.ID), zap.String("provider", msg.Provider), zap.String("subject", msg.Subject))
	}
	return res, nil
}
