package google

import (
	"context"
	"errors"
	"io"
	"net/http"
	"strings"
	"testing"
	"time"

	"golang.org/x/oauth2"
	"google.golang.org/api/googleapi"

	"netcrm/internal/config"
)

func init() {
	retryBase = time.Millisecond
}

func TestDoRetriesServerErrors(t *testing.T) {
	calls := 0
	err := Do(context.Background(), NewRateLimiter(1000, 10), func(context.Context) error {
		calls++
		if calls < 3 {
			return &googleapi.Error{Code: http.StatusServiceUnavailable}
		}
		return nil
	})
	if err != nil {
		t.Fatal(err)
	}
	if calls != 3 {
		t.Fatalf("calls=%d", calls)
	}
}

func TestDoStopsOnClientErrors(t *testing.T) {
	cases := []struct {
		name  string
		code  int
		calls int
		want  error
	}{
		{name: "bad request", code: http.StatusBadRequest, calls: 1},
		{name: "unauthorized", code: http.StatusUnauthorized, calls: 1, want: ErrUnauthorized},
		{name: "rate limited", code: http.StatusTooManyRequests, calls: maxAttempts, want: ErrRateLimited},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			calls := 0
			err := Do(context.Background(), nil, func(context.Context) error {
				calls++
				return &googleapi.Error{Code: tc.code}
			})
			if err == nil {
				t.Fatal("expected error")
			}
			if calls != tc.calls {
				t.Fatalf("calls=%d", calls)
			}
			if tc.want != nil && !errors.Is(err, tc.want) {
				t.Fatalf("err=%v", err)
			}
			if statusCode(err) != tc.code {
				t.Fatalf("status=%d", statusCode(err))
			}
		})
	}
}

func TestDoHonoursContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := Do(ctx, NewRateLimiter(1, 1), func(context.Context) error { return nil })
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("err=%v", err)
	}
}

func TestRateLimiterPause(t *testing.T) {
	r := NewRateLimiter(1000, 10)
	r.Pause(time.Hour)
	r.Pause(time.Millisecond)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	if err := r.Wait(ctx); !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("err=%v", err)
	}
}

func TestRetryAfter(t *testing.T) {
	err := &googleapi.Error{Code: http.StatusTooManyRequests, Header: http.Header{"Retry-After": []string{"7"}}}
	if got := retryAfter(err); got != 7*time.Second {
		t.Fatalf("got %s", got)
	}
	if got := retryAfter(errors.New("plain")); got != 0 {
		t.Fatalf("got %s", got)
	}
}

func TestAuthURL(t *testing.T) {
	if _, err := AuthURL(config.Config{}, "state"); err == nil {
		t.Fatal("expected missing client id error")
	}

	cfg := config.Config{GmailClientID: "id", GmailClientSecret: "secret", GmailRedirectURI: "http://localhost/cb"}
	u, err := AuthURL(cfg, "xyz")
	if err != nil {
		t.Fatal(err)
	}
	for _, part := range []string{"access_type=offline", "prompt=consent", "state=xyz", "client_id=id", "gmail.readonly", "calendar.readonly"} {
		if !strings.Contains(u, part) {
			t.Fatalf("url %s missing %s", u, part)
		}
	}

	if _, err := TokenSource(context.Background(), cfg); err == nil {
		t.Fatal("expected missing refresh token error")
	}
	if _, err := Exchange(context.Background(), cfg, " "); err == nil {
		t.Fatal("expected empty code error")
	}
}

type roundTripFunc func(*http.Request) (*http.Response, error)

func (f roundTripFunc) RoundTrip(req *http.Request) (*http.Response, error) {
	return f(req)
}

func TestExchange(t *testing.T) {
	cfg := config.Config{GmailClientID: "id", GmailClientSecret: "secret", GmailRedirectURI: "http://localhost/cb"}
	body := `{"access_token":"at","token_type":"Bearer","expires_in":3600,"refresh_token":"rt"}`
	client := &http.Client{Transport: roundTripFunc(func(r *http.Request) (*http.Response, error) {
		if err := r.ParseForm(); err != nil {
			t.Fatal(err)
		}
		if r.Form.Get("code") != "abc" || r.Form.Get("grant_type") != "authorization_code" {
			t.Fatalf("form=%v", r.Form)
		}
		header := make(http.Header)
		header.Set("Content-Type", "application/json")
		return &http.Response{
			StatusCode: http.StatusOK,
			Body:       io.NopCloser(strings.NewReader(body)),
			Header:     header,
		}, nil
	})}
	ctx := context.WithValue(context.Background(), oauth2.HTTPClient, client)

	tok, err := Exchange(ctx, cfg, "abc")
	if err != nil {
		t.Fatal(err)
	}
	if tok.RefreshToken != "rt" || tok.AccessToken != "at" {
		t.Fatalf("token=%+v", tok)
	}

	body = `{"access_token":"at","token_type":"Bearer","expires_in":3600}`
	if _, err := Exchange(ctx, cfg, "abc"); err == nil {
		t.Fatal("expected missing refresh token error")
	}
}
