package pipeline

import (
	"context"
	"errors"
	"testing"
	"time"

	"netcrm/internal"
)

type fakeEvents struct {
	events []internal.CalendarEvent
	err    error
	from   []time.Time
}

func (f *fakeEvents) ListEvents(_ context.Context, from, _ time.Time) ([]internal.CalendarEvent, error) {
	f.from = append(f.from, from)
	return f.events, f.err
}

func TestCalendarSync(t *testing.T) {
	db, cfg := testSetup(t)
	cfg.CalendarLookback = 7
	ins, err := db.InsertContacts("local", []internal.Contact{
		{Name: "Ada Lovelace", Email: strp("ada@engines.io"), RelationshipStrength: internal.StrengthMedium},
	})
	if err != nil {
		t.Fatal(err)
	}
	ada := ins.Inserted[0]

	met := time.Date(2026, 3, 4, 15, 0, 0, 0, time.UTC)
	src := &fakeEvents{events: []internal.CalendarEvent{
		{ID: "ev1", Summary: "Coffee", StartsAt: met, Attendees: []string{"ADA@engines.io ", "stranger@example.org"}},
		{ID: "ev2", Summary: "Standup", StartsAt: met.Add(-24 * time.Hour), Attendees: []string{"stranger@example.org"}},
	}}
	now := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)
	sync := NewCalendarSync(db, cfg, nil, src)
	sync.now = func() time.Time { return now }

	res, err := sync.Sync(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if res.Events != 2 || res.Interactions != 1 {
		t.Fatalf("res=%+v", res)
	}
	if !src.from[0].Equal(now.AddDate(0, 0, -7)) {
		t.Fatalf("from=%s", src.from[0])
	}

	interactions, err := db.ListInteractions(ada.ID)
	if err != nil || len(interactions) != 1 || interactions[0].Kind != "meeting" || interactions[0].Provider != "gcal" {
		t.Fatalf("interactions=%+v err=%v", interactions, err)
	}
	got, _ := db.GetContact("local", ada.ID)
	if got.LastContactAt == nil || !got.LastContactAt.Equal(met) {
		t.Fatalf("lastContactAt=%v", got.LastContactAt)
	}

	later := now.Add(48 * time.Hour)
	sync.now = func() time.Time { return later }
	res, err = sync.Sync(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if res.Interactions != 0 {
		t.Fatalf("res=%+v", res)
	}
	if !src.from[1].Equal(now) {
		t.Fatalf("from=%s", src.from[1])
	}
}

func TestCalendarSyncSourceError(t *testing.T) {
	db, cfg := testSetup(t)
	boom := errors.New("quota")
	_, err := NewCalendarSync(db, cfg, nil, &fakeEvents{err: boom}).Sync(context.Background())
	if !errors.Is(err, boom) {
		t.Fatalf("err=%v", err)
	}
	last, _ := db.GetMetadata(calendarSyncKey)
	if last != nil {
		t.Fatalf("last sync recorded: %s", *last)
	}
}
