package storage

import (
	"database/sql"
	"errors"
	"sort"
	"strings"
	"time"

	"github.com/bytedance/sonic"
	"github.com/google/uuid"

	"netcrm/internal"
)

// InsertResult reports how a batch was persisted. Skipped holds the contacts
// that matched an existing email or profile URL for the same user.
type InsertResult struct {
	Inserted []internal.Contact
	Skipped  []internal.Contact
}

type ContactFilter struct {
	UserID   string
	Company  string
	Search   string
	Strength internal.RelationshipStrength
	Limit    int
	Offset   int
}

const contactColumns = `id, userId, name, email, phone, company, title, profileUrl, strength,
       connectedOn, addedAt, lastContactAt, tagsJson, notes, createdAt, updatedAt`

// InsertContacts stores contacts for userID, skipping those whose email or
// profile URL already exists for that user.
func (d *DB) InsertContacts(userID string, contacts []internal.Contact) (InsertResult, error) {
	tx, err := d.conn.Begin()
	if err != nil {
		return InsertResult{}, err
	}
	defer func() { _ = tx.Rollback() }()

	stmt, err := tx.Prepare(`
INSERT INTO contacts (
  id, userId, name, email, emailKey, phone, company, title, profileUrl, profileKey,
  strength, connectedOn, addedAt, tagsJson, notes, createdAt, updatedAt
) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
ON CONFLICT DO NOTHING
`)
	if err != nil {
		return InsertResult{}, err
	}
	defer stmt.Close()

	now := time.Now().UTC()
	res := InsertResult{}
	for _, c := range contacts {
		c.ID = uuid.NewString()
		c.UserID = userID
		c.CreatedAt = now
		c.UpdatedAt = now
		tagsJSON, err := sonic.MarshalString(c.Tags)
		if err != nil {
			return InsertResult{}, err
		}

		result, err := stmt.Exec(
			c.ID, userID, c.Name, c.Email, lowerKey(c.Email), c.Phone, c.Company, c.Title, c.ProfileURL, lowerKey(c.ProfileURL),
			string(c.RelationshipStrength), formatTimePtr(c.ConnectedOn), formatTime(c.AddedAt), tagsJSON, c.Notes,
			formatTime(now), formatTime(now),
		)
		if err != nil {
			return InsertResult{}, err
		}
		affected, err := result.RowsAffected()
		if err != nil {
			return InsertResult{}, err
		}
		if affected == 0 {
			c.ID = ""
			res.Skipped = append(res.Skipped, c)
			continue
		}
		res.Inserted = append(res.Inserted, c)
	}

	if err := tx.Commit(); err != nil {
		return InsertResult{}, err
	}
	return res, nil
}

func (d *DB) ListContacts(filter ContactFilter) ([]internal.Contact, error) {
	query := strings.Builder{}
	query.WriteString(`SELECT ` + contactColumns + ` FROM contacts WHERE userId = ?`)
	args := []any{filter.UserID}

	if c := strings.TrimSpace(filter.Company); c != "" {
		query.WriteString(` AND lower(company) = lower(?)`)
		args = append(args, c)
	}
	if s := strings.TrimSpace(filter.Search); s != "" {
		query.WriteString(` AND (lower(name) LIKE ? OR emailKey LIKE ? OR lower(company) LIKE ? OR lower(title) LIKE ?)`)
		like := "%" + strings.ToLower(s) + "%"
		args = append(args, like, like, like, like)
	}
	if filter.Strength != "" {
		query.WriteString(` AND strength = ?`)
		args = append(args, string(filter.Strength))
	}
	query.WriteString(` ORDER BY name COLLATE NOCASE ASC`)
	if filter.Limit > 0 {
		query.WriteString(` LIMIT ? OFFSET ?`)
		args = append(args, filter.Limit, filter.Offset)
	}

	rows, err := d.conn.Query(query.String(), args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []internal.Contact
	for rows.Next() {
		c, err := scanContact(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

func (d *DB) GetContact(userID, id string) (*internal.Contact, error) {
	row := d.conn.QueryRow(`SELECT `+contactColumns+` FROM contacts WHERE userId = ? AND id = ?`, userID, id)
	c, err := scanContact(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &c, nil
}

func (d *DB) FindContactByEmail(userID, email string) (*internal.Contact, error) {
	key := strings.ToLower(strings.TrimSpace(email))
	if key == "" {
		return nil, nil
	}
	row := d.conn.QueryRow(`SELECT `+contactColumns+` FROM contacts WHERE userId = ? AND emailKey = ?`, userID, key)
	c, err := scanContact(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &c, nil
}

func (d *DB) DeleteContact(userID, id string) (bool, error) {
	tx, err := d.conn.Begin()
	if err != nil {
		return false, err
	}
	defer func() { _ = tx.Rollback() }()

	result, err := tx.Exec(`DELETE FROM contacts WHERE userId = ? AND id = ?`, userID, id)
	if err != nil {
		return false, err
	}
	n, err := result.RowsAffected()
	if err != nil || n == 0 {
		return false, err
	}
	if _, err := tx.Exec(`DELETE FROM interactions WHERE contactId = ?`, id); err != nil {
		return false, err
	}
	return true, tx.Commit()
}

// ContactStats counts a user's contacts. RecentlyAdded counts contacts
// created at or after since.
func (d *DB) ContactStats(userID string, since time.Time) (internal.ContactStats, error) {
	stats := internal.ContactStats{ByStrength: map[internal.RelationshipStrength]int{
		internal.StrengthWeak:   0,
		internal.StrengthMedium: 0,
		internal.StrengthStrong: 0,
	}}

	err := d.conn.QueryRow(`
SELECT COUNT(*),
       COALESCE(SUM(CASE WHEN emailKey != '' THEN 1 ELSE 0 END), 0),
       COALESCE(SUM(CASE WHEN company IS NOT NULL AND company != '' THEN 1 ELSE 0 END), 0),
       COALESCE(SUM(CASE WHEN createdAt >= ? THEN 1 ELSE 0 END), 0)
FROM contacts WHERE userId = ?
`, formatTime(since), userID).Scan(&stats.Total, &stats.WithEmail, &stats.WithCompany, &stats.RecentlyAdded)
	if err != nil {
		return internal.ContactStats{}, err
	}

	rows, err := d.conn.Query(`SELECT strength, COUNT(*) FROM contacts WHERE userId = ? GROUP BY strength`, userID)
	if err != nil {
		return internal.ContactStats{}, err
	}
	defer rows.Close()
	for rows.Next() {
		var strength string
		var n int
		if err := rows.Scan(&strength, &n); err != nil {
			return internal.ContactStats{}, err
		}
		stats.ByStrength[internal.RelationshipStrength(strength)] = n
	}
	return stats, rows.Err()
}

// ContactsByCompany groups a user's contacts by company name, largest group
// first. Contacts without a company are left out; with requireTitle, so are
// contacts without a title.
func (d *DB) ContactsByCompany(userID string, requireTitle bool) ([]internal.CompanyGroup, error) {
	contacts, err := d.ListContacts(ContactFilter{UserID: userID})
	if err != nil {
		return nil, err
	}

	index := map[string]int{}
	var groups []internal.CompanyGroup
	for _, c := range contacts {
		if c.Company == nil || strings.TrimSpace(*c.Company) == "" {
			continue
		}
		if requireTitle && (c.Title == nil || strings.TrimSpace(*c.Title) == "") {
			continue
		}
		key := strings.ToLower(strings.TrimSpace(*c.Company))
		i, ok := index[key]
		if !ok {
			i = len(groups)
			index[key] = i
			groups = append(groups, internal.CompanyGroup{Company: strings.TrimSpace(*c.Company)})
		}
		groups[i].Contacts = append(groups[i].Contacts, c)
	}

	sort.SliceStable(groups, func(a, b int) bool {
		if len(groups[a].Contacts) != len(groups[b].Contacts) {
			return len(groups[a].Contacts) > len(groups[b].Contacts)
		}
		return strings.ToLower(groups[a].Company) < strings.ToLower(groups[b].Company)
	})
	return groups, nil
}

// TouchLastContact moves lastContactAt forward to at; older timestamps are ignored.
func (d *DB) TouchLastContact(contactID string, at time.Time) error {
	ts := formatTime(at)
	_, err := d.conn.Exec(`
UPDATE contacts SET lastContactAt = ?, updatedAt = ?
WHERE id = ? AND (lastContactAt IS NULL OR lastContactAt < ?)
`, ts, formatTime(time.Now()), contactID, ts)
	return err
}

// InsertInteraction records an interaction once per contact, provider and
// external id. It reports whether a new row was written.
func (d *DB) InsertInteraction(in internal.Interaction) (bool, error) {
	result, err := d.conn.Exec(`
INSERT INTO interactions (contactId, provider, externalId, kind, subject, occurredAt)
VALUES (?, ?, ?, ?, ?, ?)
ON CONFLICT(contactId, provider, externalId) DO NOTHING
`, in.ContactID, in.Provider, in.ExternalID, in.Kind, in.Subject, formatTime(in.OccurredAt))
	if err != nil {
		return false, err
	}
	n, err := result.RowsAffected()
	return n > 0, err
}

func (d *DB) ListInteractions(contactID string) ([]internal.Interaction, error) {
	rows, err := d.conn.Query(`
SELECT id, contactId, provider, externalId, kind, COALESCE(subject, ''), occurredAt
FROM interactions WHERE contactId = ? ORDER BY occurredAt DESC
`, contactID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []internal.Interaction
	for rows.Next() {
		var in internal.Interaction
		var occurred string
		if err := rows.Scan(&in.ID, &in.ContactID, &in.Provider, &in.ExternalID, &in.Kind, &in.Subject, &occurred); err != nil {
			return nil, err
		}
		in.OccurredAt = parseTime(occurred)
		out = append(out, in)
	}
	return out, rows.Err()
}

func scanContact(row rowScanner) (internal.Contact, error) {
	var c internal.Contact
	var strength, addedAt, tagsJSON, createdAt, updatedAt string
	var connectedOn, lastContactAt *string
	if err := row.Scan(
		&c.ID, &c.UserID, &c.Name, &c.Email, &c.Phone, &c.Company, &c.Title, &c.ProfileURL, &strength,
		&connectedOn, &addedAt, &lastContactAt, &tagsJSON, &c.Notes, &createdAt, &updatedAt,
	); err != nil {
		return internal.Contact{}, err
	}
	c.RelationshipStrength = internal.RelationshipStrength(strength)
	c.ConnectedOn = parseTimePtr(connectedOn)
	c.LastContactAt = parseTimePtr(lastContactAt)
	c.AddedAt = parseTime(addedAt)
	c.CreatedAt = parseTime(createdAt)
	c.UpdatedAt = parseTime(updatedAt)
	_ = sonic.UnmarshalString(tagsJSON, &c.Tags)
	return c, nil
}

func lowerKey(v *string) string {
	if v == nil {
		return ""
	}
	return strings.ToLower(strings.TrimSpace(*v))
}
