package pipeline

import (
	"context"
	"strings"
	"time"

	"go.uber.org/zap"

	"netcrm/internal"
	"netcrm/internal/config"
	"netcrm/internal/logger"
	"netcrm/internal/storage"
)

const calendarSyncKey = "calendar.lastSync"

// EventSource lists calendar events starting in [from, to).
type EventSource interface {
	ListEvents(ctx context.Context, from, to time.Time) ([]internal.CalendarEvent, error)
}

// CalendarSync records meetings with known contacts as interactions.
type CalendarSync struct {
	db     *storage.DB
	cfg    config.Config
	log    *zap.Logger
	source EventSource
	now    func() time.Time
}

func NewCalendarSync(db *storage.DB, cfg config.Config, log *zap.Logger, source EventSource) *CalendarSync {
	return &CalendarSync{db: db, cfg: cfg, log: logger.OrNop(log), source: source, now: time.Now}
}

type CalendarResult struct {
	Events       int
	Interactions int
	From         time.Time
	To           time.Time
}

// Sync scans events since the previous sync, or the configured lookback on
// the first run, up to now. Only events that already started are counted.
func (s *CalendarSync) Sync(ctx context.Context) (CalendarResult, error) {
	start := time.Now()
	to := s.now().UTC()
	from, err := s.windowStart(to)
	if err != nil {
		return CalendarResult{}, err
	}
	res := CalendarResult{From: from, To: to}

	events, err := s.source.ListEvents(ctx, from, to)
	if err != nil {
		return res, err
	}
	res.Events = len(events)

	userID := s.cfg.DefaultUserID
	for _, ev := range events {
		if err := ctx.Err(); err != nil {
			return res, err
		}
		for _, addr := range ev.Attendees {
			contact, err := s.db.FindContactByEmail(userID, strings.ToLower(strings.TrimSpace(addr)))
			if err != nil {
				return res, err
			}
			if contact == nil {
				continue
			}
			created, err := s.db.InsertInteraction(internal.Interaction{
				ContactID:  contact.ID,
				Provider:   "gcal",
				ExternalID: ev.ID,
				Kind:       "meeting",
				Subject:    ev.Summary,
				OccurredAt: ev.StartsAt,
			})
			if err != nil {
				return res, err
			}
			if !created {
				continue
			}
			res.Interactions++
			if err := s.db.TouchLastContact(contact.ID, ev.StartsAt); err != nil {
				return res, err
			}
		}
	}

	if err := s.db.SetMetadata(calendarSyncKey, to.Format(time.RFC3339)); err != nil {
		return res, err
	}
	_ = s.db.InsertRun(traceID(), "calendar:"+to.Format("2006-01-02"),
		map[string]float64{"totalMs": float64(time.Since(start).Milliseconds())},
		map[string]int{"events": res.Events, "interactions": res.Interactions})

	s.log.Info("calendar synced",
		zap.Time("from", from),
		zap.Time("to", to),
		zap.Int("events", res.Events),
		zap.Int("interactions", res.Interactions),
	)
	return res, nil
}

func (s *CalendarSync) windowStart(to time.Time) (time.Time, error) {
	last, err := s.db.GetMetadata(calendarSyncKey)
	if err != nil {
		return time.Time{}, err
	}
	if last != nil {
		if t, err := time.Parse(time.RFC3339, *last); err == nil && t.Before(to) {
			return t, nil
		}
	}
	days := s.cfg.CalendarLookback
	if days <= 0 {
		days = 30
	}
	return to.AddDate(0, 0, -days), nil
}
