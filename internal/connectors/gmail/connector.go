package gmail

import (
	"context"
	"encoding/base64"
	"fmt"
	"time"

	"google.golang.org/api/gmail/v1"
	"google.golang.org/api/option"

	"netcrm/internal"
	"netcrm/internal/config"
	"netcrm/internal/connectors/google"
	"netcrm/internal/extract"
)

type Connector struct {
	service *gmail.Service
	limiter *google.RateLimiter
	query   string
}

func NewConnector(ctx context.Context, cfg config.Config) (*Connector, error) {
	ts, err := google.TokenSource(ctx, cfg)
	if err != nil {
		return nil, err
	}
	return NewConnectorWithOptions(ctx, cfg, option.WithTokenSource(ts))
}

// NewConnectorWithOptions builds a connector from explicit client options,
// e.g. a custom endpoint and HTTP client.
func NewConnectorWithOptions(ctx context.Context, cfg config.Config, opts ...option.ClientOption) (*Connector, error) {
	svc, err := gmail.NewService(ctx, opts...)
	if err != nil {
		return nil, err
	}
	return &Connector{
		service: svc,
		limiter: google.NewRateLimiter(cfg.GoogleRPS, cfg.GoogleBurst),
		query:   cfg.GmailQuery,
	}, nil
}

// FetchInbox lists up to max messages carrying label, newest first, and
// downloads each in raw RFC 822 form.
func (c *Connector) FetchInbox(ctx context.Context, label string, max int) ([]internal.FetchedMailMessage, error) {
	ids, err := c.listIDs(ctx, label, max)
	if err != nil {
		return nil, err
	}

	out := make([]internal.FetchedMailMessage, 0, len(ids))
	for _, id := range ids {
		var msg *gmail.Message
		err := google.Do(ctx, c.limiter, func(ctx context.Context) error {
			var err error
			msg, err = c.service.Users.Messages.Get("me", id).Format("raw").Context(ctx).Do()
			return err
		})
		if err != nil {
			return nil, fmt.Errorf("get message %s: %w", id, err)
		}
		if msg.Raw == "" {
			continue
		}

		raw, err := decodeBase64URL(msg.Raw)
		if err != nil {
			return nil, err
		}
		out = append(out, toFetched(id, msg.InternalDate, raw))
	}
	return out, nil
}

func (c *Connector) listIDs(ctx context.Context, label string, max int) ([]string, error) {
	if max <= 0 {
		max = 20
	}
	ids := []string{}
	pageToken := ""
	for len(ids) < max {
		call := c.service.Users.Messages.List("me").MaxResults(int64(max - len(ids)))
		if label != "" {
			call = call.LabelIds(label)
		}
		if c.query != "" {
			call = call.Q(c.query)
		}
		if pageToken != "" {
			call = call.PageToken(pageToken)
		}

		var resp *gmail.ListMessagesResponse
		err := google.Do(ctx, c.limiter, func(ctx context.Context) error {
			var err error
			resp, err = call.Context(ctx).Do()
			return err
		})
		if err != nil {
			return nil, fmt.Errorf("list messages: %w", err)
		}
		for _, m := range resp.Messages {
			if m.Id != "" && len(ids) < max {
				ids = append(ids, m.Id)
			}
		}
		if resp.NextPageToken == "" {
			break
		}
		pageToken = resp.NextPageToken
	}
	return ids, nil
}

func toFetched(id string, internalDate int64, raw []byte) internal.FetchedMailMessage {
	fetched := internal.FetchedMailMessage{
		Provider:   "gmail",
		MessageID:  id,
		ReceivedAt: time.Now().UTC().Format(time.RFC3339),
		Raw:        raw,
	}
	if internalDate > 0 {
		fetched.ReceivedAt = time.UnixMilli(internalDate).UTC().Format(time.RFC3339)
	}

	msg, err := extract.ParseMessage(raw)
	if err != nil {
		return fetched
	}
	fetched.Subject = msg.Subject
	if msg.MessageID != "" {
		fetched.MessageID = msg.MessageID
	}
	if len(msg.From) > 0 && msg.From[0] != nil {
		fetched.From = msg.From[0].String()
	}
	if !msg.Date.IsZero() {
		fetched.ReceivedAt = msg.Date.Format(time.RFC3339)
	}
	return fetched
}

func decodeBase64URL(input string) ([]byte, error) {
	decoded, err := base64.RawURLEncoding.DecodeString(input)
	if err == nil {
		return decoded, nil
	}
	decoded, err = base64.URLEncoding.DecodeString(input)
	if err == nil {
		return decoded, nil
	}
	return nil, fmt.Errorf("decode gmail raw payload: %w", err)
}
