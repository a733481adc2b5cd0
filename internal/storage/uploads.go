package storage

import (
	"time"

	"github.com/bytedance/sonic"
	"github.com/google/uuid"

	"netcrm/internal"
)

func (d *DB) InsertUpload(rec internal.UploadRecord) (internal.UploadRecord, error) {
	if rec.ID == "" {
		rec.ID = uuid.NewString()
	}
	if rec.UploadedAt.IsZero() {
		rec.UploadedAt = time.Now().UTC()
	}
	if rec.Diagnostics == nil {
		rec.Diagnostics = []string{}
	}
	diagJSON, err := sonic.MarshalString(rec.Diagnostics)
	if err != nil {
		return internal.UploadRecord{}, err
	}

	_, err = d.conn.Exec(`
INSERT INTO uploads (
  id, userId, fileName, fileSize, fileType, source, contactsImported, totalRows,
  status, errorMessage, diagnosticsJson, processingSeconds, uploadedAt
) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
`, rec.ID, rec.UserID, rec.FileName, rec.FileSize, rec.FileType, string(rec.Source), rec.ContactsImported, rec.TotalRows,
		string(rec.Status), rec.ErrorMessage, diagJSON, rec.ProcessingSeconds, formatTime(rec.UploadedAt))
	if err != nil {
		return internal.UploadRecord{}, err
	}
	return rec, nil
}

// ListUploads returns a user's uploads, newest first.
func (d *DB) ListUploads(userID string, limit int) ([]internal.UploadRecord, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := d.conn.Query(`
SELECT id, userId, fileName, fileSize, fileType, source, contactsImported, totalRows,
       status, COALESCE(errorMessage, ''), diagnosticsJson, processingSeconds, uploadedAt
FROM uploads WHERE userId = ? ORDER BY uploadedAt DESC LIMIT ?
`, userID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []internal.UploadRecord
	for rows.Next() {
		var rec internal.UploadRecord
		var source, status, diagJSON, uploadedAt string
		if err := rows.Scan(
			&rec.ID, &rec.UserID, &rec.FileName, &rec.FileSize, &rec.FileType, &source, &rec.ContactsImported, &rec.TotalRows,
			&status, &rec.ErrorMessage, &diagJSON, &rec.ProcessingSeconds, &uploadedAt,
		); err != nil {
			return nil, err
		}
		rec.Source = internal.ImportSource(source)
		rec.Status = internal.UploadStatus(status)
		rec.UploadedAt = parseTime(uploadedAt)
		_ = sonic.UnmarshalString(diagJSON, &rec.Diagnostics)
		out = append(out, rec)
	}
	return out, rows.Err()
}
