package calendar

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"google.golang.org/api/option"

	"netcrm/internal/config"
)

const eventsPage = `{
  "items": [
    {"id": "e1", "summary": "Coffee", "status": "confirmed",
     "start": {"dateTime": "2026-03-02T09:00:00+01:00"},
     "attendees": [
       {"email": "me@example.net", "self": true},
       {"email": "Ada@Engines.io", "responseStatus": "accepted"},
       {"email": "room-1@resource.calendar.google.com", "resource": true},
       {"email": "bob@x.com", "responseStatus": "declined"}
     ]},
    {"id": "e2", "summary": "Cancelled", "status": "cancelled",
     "start": {"date": "2026-03-03"},
     "attendees": [{"email": "ada@engines.io"}]},
    {"id": "e3", "summary": "Focus time", "status": "confirmed",
     "start": {"date": "2026-03-04"},
     "attendees": [{"email": "me@example.net", "self": true}]}
  ]
}`

func TestListEvents(t *testing.T) {
	var query string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !strings.HasSuffix(r.URL.Path, "/calendars/team@example.net/events") {
			http.NotFound(w, r)
			return
		}
		query = r.URL.RawQuery
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, eventsPage)
	}))
	defer srv.Close()

	cfg := config.Config{CalendarID: "team@example.net", GoogleRPS: 100, GoogleBurst: 10}
	c, err := NewConnectorWithOptions(context.Background(), cfg,
		option.WithEndpoint(srv.URL+"/"),
		option.WithHTTPClient(srv.Client()),
	)
	if err != nil {
		t.Fatal(err)
	}

	from := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	events, err := c.ListEvents(context.Background(), from, from.AddDate(0, 0, 7))
	if err != nil {
		t.Fatal(err)
	}
	if len(events) != 1 {
		t.Fatalf("len=%d", len(events))
	}
	ev := events[0]
	if ev.ID != "e1" || ev.StartsAt.Hour() != 8 {
		t.Fatalf("event=%+v", ev)
	}
	if len(ev.Attendees) != 1 || ev.Attendees[0] != "ada@engines.io" {
		t.Fatalf("attendees=%v", ev.Attendees)
	}
	if !strings.Contains(query, "singleEvents=true") || !strings.Contains(query, "timeMin=2026-03-01T00%3A00%3A00Z") {
		t.Fatalf("query=%s", query)
	}
}
