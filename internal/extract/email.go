package extract

import (
	"bytes"
	"net/mail"
	"path/filepath"
	"strings"
	"time"

	"github.com/jhillyerd/enmime"
)

type Attachment struct {
	FileName    string
	ContentType string
	Content     []byte
}

// Kind classifies an attachment by extension and content type: "csv",
// "xlsx", "html" or "" for anything contacts cannot be read from.
func (a Attachment) Kind() string {
	ext := strings.ToLower(filepath.Ext(a.FileName))
	ct := strings.ToLower(a.ContentType)
	switch {
	case ext == ".csv" || ext == ".tsv" || strings.Contains(ct, "text/csv"):
		return "csv"
	case ext == ".xlsx" || strings.Contains(ct, "spreadsheetml"):
		return "xlsx"
	case ext == ".html" || ext == ".htm":
		return "html"
	}
	return ""
}

type Message struct {
	MessageID string
	Subject   string
	Date      time.Time
	From      []*mail.Address
	To        []*mail.Address
	Cc        []*mail.Address
	Text      string
	HTML      string

	Attachments []Attachment
}

// Participants returns the lower-cased addresses from From, To and Cc,
// each once, in header order.
func (m Message) Participants() []string {
	seen := map[string]struct{}{}
	out := []string{}
	for _, list := range [][]*mail.Address{m.From, m.To, m.Cc} {
		for _, a := range list {
			if a == nil {
				continue
			}
			addr := strings.ToLower(strings.TrimSpace(a.Address))
			if addr == "" {
				continue
			}
			if _, ok := seen[addr]; ok {
				continue
			}
			seen[addr] = struct{}{}
			out = append(out, addr)
		}
	}
	return out
}

func ParseMessage(raw []byte) (Message, error) {
	env, err := enmime.ReadEnvelope(bytes.NewReader(raw))
	if err != nil {
		return Message{}, err
	}

	msg := Message{
		MessageID: strings.TrimSpace(env.GetHeader("Message-ID")),
		Subject:   env.GetHeader("Subject"),
		Text:      env.Text,
		HTML:      env.HTML,
		From:      addressList(env, "From"),
		To:        addressList(env, "To"),
		Cc:        addressList(env, "Cc"),
	}
	if d, err := mail.ParseDate(env.GetHeader("Date")); err == nil {
		msg.Date = d.UTC()
	}

	for _, att := range env.Attachments {
		name := strings.TrimSpace(att.FileName)
		if name == "" {
			name = "attachment"
		}
		msg.Attachments = append(msg.Attachments, Attachment{
			FileName:    name,
			ContentType: att.ContentType,
			Content:     att.Content,
		})
	}

	return msg, nil
}

func addressList(env *enmime.Envelope, header string) []*mail.Address {
	list, err := env.AddressList(header)
	if err != nil {
		return nil
	}
	return list
}
