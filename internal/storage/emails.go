package storage

import (
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"netcrm/internal"
)

// Email statuses.
const (
	EmailFetched   = "fetched"
	EmailProcessed = "processed"
	EmailSkipped   = "skipped"
	EmailFailed    = "failed"
)

const emailColumns = `id, provider, messageId, COALESCE(subject, ''), COALESCE(sender, ''), COALESCE(receivedAt, ''), hash, status, rawRef`

// SaveEmail indexes a fetched message. A message already stored for the same
// provider is returned unchanged with created=false.
func (d *DB) SaveEmail(e internal.EmailRow) (internal.EmailRow, bool, error) {
	if e.Status == "" {
		e.Status = EmailFetched
	}
	result, err := d.conn.Exec(`
INSERT INTO emails (provider, messageId, subject, sender, receivedAt, hash, status, rawRef)
VALUES (?, ?, ?, ?, ?, ?, ?, ?)
ON CONFLICT(provider, messageId) DO NOTHING
`, e.Provider, e.MessageID, e.Subject, e.Sender, e.ReceivedAt, e.Hash, e.Status, e.RawRef)
	if err != nil {
		return internal.EmailRow{}, false, err
	}
	n, err := result.RowsAffected()
	if err != nil {
		return internal.EmailRow{}, false, err
	}

	stored, err := d.EmailByMessageID(e.Provider, e.MessageID)
	return stored, n > 0, err
}

func (d *DB) FindEmail(provider, messageID string) (*internal.EmailRow, error) {
	return scanEmail(d.conn.QueryRow(`SELECT `+emailColumns+` FROM emails WHERE provider = ? AND messageId = ?`, provider, messageID))
}

func (d *DB) GetEmail(id int) (*internal.EmailRow, error) {
	return scanEmail(d.conn.QueryRow(`SELECT `+emailColumns+` FROM emails WHERE id = ?`, id))
}

// EmailByMessageID is FindEmail that treats a missing row as an error.
func (d *DB) EmailByMessageID(provider, messageID string) (internal.EmailRow, error) {
	e, err := d.FindEmail(provider, messageID)
	switch {
	case err != nil:
		return internal.EmailRow{}, err
	case e == nil:
		return internal.EmailRow{}, fmt.Errorf("no %s email with message id %q", provider, messageID)
	}
	return *e, nil
}

// PendingEmails lists emails in status, oldest first. An empty provider
// matches every provider.
func (d *DB) PendingEmails(status, provider string, limit int) ([]internal.EmailRow, error) {
	query := `SELECT ` + emailColumns + ` FROM emails WHERE status = ?`
	args := []any{status}
	if p := strings.TrimSpace(provider); p != "" {
		query += ` AND provider = ?`
		args = append(args, p)
	}
	query += ` ORDER BY receivedAt, id`
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}

	rows, err := d.conn.Query(query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []internal.EmailRow{}
	for rows.Next() {
		e, err := scanEmail(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *e)
	}
	return out, rows.Err()
}

func (d *DB) SetEmailStatus(id int, status string) error {
	_, err := d.conn.Exec(`UPDATE emails SET status = ?, updatedAt = CURRENT_TIMESTAMP WHERE id = ?`, status, id)
	return err
}

func scanEmail(s rowScanner) (*internal.EmailRow, error) {
	var e internal.EmailRow
	err := s.Scan(&e.ID, &e.Provider, &e.MessageID, &e.Subject, &e.Sender, &e.ReceivedAt, &e.Hash, &e.Status, &e.RawRef)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &e, nil
}
