package pipeline

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"netcrm/internal"
	"netcrm/internal/config"
	"netcrm/internal/extract"
	"netcrm/internal/logger"
	"netcrm/internal/storage"
	"netcrm/internal/util"
)

// MailProcessor turns fetched mail into CRM activity: messages exchanged with
// known contacts become interactions, and contact exports attached as CSV,
// XLSX or HTML are imported.
type MailProcessor struct {
	db      *storage.DB
	cfg     config.Config
	log     *zap.Logger
	imports *ImportService
}

func NewMailProcessor(db *storage.DB, cfg config.Config, log *zap.Logger, imports *ImportService) *MailProcessor {
	log = logger.OrNop(log)
	if imports == nil {
		imports = NewImportService(db, cfg, log, nil)
	}
	return &MailProcessor{db: db, cfg: cfg, log: log, imports: imports}
}

type MailResult struct {
	EmailID      int
	Interactions int
	Imported     int
	Attachments  int
}

func (p *MailProcessor) ProcessByProviderMessageID(ctx context.Context, provider, messageID string) (MailResult, error) {
	email, err := p.db.EmailByMessageID(provider, messageID)
	if err != nil {
		return MailResult{}, err
	}
	return p.ProcessEmail(ctx, email)
}

// ProcessPending processes fetched emails, optionally for one provider. It
// returns the number of emails handled and the contacts they touched.
func (p *MailProcessor) ProcessPending(ctx context.Context, limit int, provider string) (int, int, error) {
	pending, err := p.db.PendingEmails(storage.EmailFetched, provider, limit)
	if err != nil {
		return 0, 0, err
	}
	processedEmails := 0
	touched := 0
	for _, email := range pending {
		if err := ctx.Err(); err != nil {
			return processedEmails, touched, err
		}
		res, err := p.ProcessEmail(ctx, email)
		if err != nil {
			_ = p.db.SetEmailStatus(email.ID, storage.EmailFailed)
			p.log.Warn("email processing failed", zap.Int("email", email.ID), zap.Error(err))
			continue
		}
		processedEmails++
		touched += res.Interactions + res.Imported
	}
	return processedEmails, touched, nil
}

func (p *MailProcessor) ProcessEmail(ctx context.Context, email internal.EmailRow) (MailResult, error) {
	start := time.Now()
	res := MailResult{EmailID: email.ID}

	raw, err := os.ReadFile(email.RawRef)
	if err != nil {
		return res, err
	}
	msg, err := extract.ParseMessage(raw)
	if err != nil {
		return res, err
	}

	occurred := msg.Date
	if occurred.IsZero() {
		occurred = parseReceivedAt(email.ReceivedAt)
	}
	userID := p.cfg.DefaultUserID

	for _, addr := range msg.Participants() {
		contact, err := p.db.FindContactByEmail(userID, addr)
		if err != nil {
			return res, err
		}
		if contact == nil {
			continue
		}
		created, err := p.db.InsertInteraction(internal.Interaction{
			ContactID:  contact.ID,
			Provider:   email.Provider,
			ExternalID: util.FirstNonEmpty(msg.MessageID, email.MessageID),
			Kind:       "email",
			Subject:    util.FirstNonEmpty(msg.Subject, email.Subject),
			OccurredAt: occurred,
		})
		if err != nil {
			return res, err
		}
		if created {
			res.Interactions++
			if err := p.db.TouchLastContact(contact.ID, occurred); err != nil {
				return res, err
			}
		}
	}

	for _, att := range msg.Attachments {
		kind := att.Kind()
		if kind == "" {
			continue
		}
		res.Attachments++
		n, err := p.importTable(ctx, email, att.FileName, kind, att.Content)
		if err != nil {
			return res, err
		}
		res.Imported += n
	}
	if table, ok := p.bodyTable(msg.HTML); ok {
		res.Attachments++
		n, err := p.importTable(ctx, email, fmt.Sprintf("email-%d-body.csv", email.ID), "csv", table)
		if err != nil {
			return res, err
		}
		res.Imported += n
	}

	status := storage.EmailProcessed
	if res.Interactions == 0 && res.Attachments == 0 {
		status = storage.EmailSkipped
	}
	if err := p.db.SetEmailStatus(email.ID, status); err != nil {
		return res, err
	}
	_ = p.db.InsertRun(traceID(), emailRef(email.ID),
		map[string]float64{"totalMs": float64(time.Since(start).Milliseconds())},
		map[string]int{"participants": len(msg.Participants()), "interactions": res.Interactions, "attachments": res.Attachments, "imported": res.Imported})

	p.log.Info("email processed",
		zap.Int("email", email.ID),
		zap.String("status", status),
		zap.Int("interactions", res.Interactions),
		zap.Int("imported", res.Imported),
	)
	return res, nil
}

// importTable imports one table found in a message. Import failures are
// recorded on the upload and logged; only cancellation is returned.
func (p *MailProcessor) importTable(ctx context.Context, email internal.EmailRow, name, kind string, raw []byte) (int, error) {
	imported, err := p.imports.ImportFile(ctx, ImportRequest{
		UserID:   p.cfg.DefaultUserID,
		FileName: name,
		FileType: kind,
		Source:   internal.ImportSource(email.Provider),
		Raw:      raw,
		Tags:     []string{"email-import", email.Provider},
	})
	if ctx.Err() != nil {
		return 0, ctx.Err()
	}
	if err != nil {
		p.log.Warn("mail table import failed",
			zap.Int("email", email.ID),
			zap.String("table", name),
			zap.Error(err),
		)
	}
	return len(imported.Inserted), nil
}

// bodyTable returns the largest HTML table in a mail body as CSV when its
// header names contact fields. Layout tables and newsletters are ignored.
func (p *MailProcessor) bodyTable(html string) ([]byte, bool) {
	if strings.TrimSpace(html) == "" {
		return nil, false
	}
	table, err := extract.TableToCSV(html)
	if err != nil {
		return nil, false
	}
	loc, err := LocateHeader(splitRecords(string(table)), ',', p.imports.fields)
	if err != nil || loc.Guessed {
		return nil, false
	}
	return table, true
}

func parseReceivedAt(v string) time.Time {
	if t, err := time.Parse(time.RFC3339, v); err == nil {
		return t.UTC()
	}
	return time.Now().UTC()
}

func emailRef(id int) string {
	return "email:" + strconv.Itoa(id)
}
