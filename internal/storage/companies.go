package storage

import (
	"strings"

	"github.com/bytedance/sonic"

	"netcrm/internal"
)

// UpsertTargetCompany stores a company the user wants to reach, replacing the
// domain list when the company already exists.
func (d *DB) UpsertTargetCompany(userID, name string, domains []string) (internal.TargetCompany, error) {
	name = strings.TrimSpace(name)
	if domains == nil {
		domains = []string{}
	}
	domainsJSON, err := sonic.MarshalString(domains)
	if err != nil {
		return internal.TargetCompany{}, err
	}

	_, err = d.conn.Exec(`
INSERT INTO target_companies (userId, name, domainsJson) VALUES (?, ?, ?)
ON CONFLICT(userId, name) DO UPDATE SET domainsJson = excluded.domainsJson
`, userID, name, domainsJSON)
	if err != nil {
		return internal.TargetCompany{}, err
	}

	var tc internal.TargetCompany
	var storedJSON, createdAt string
	err = d.conn.QueryRow(`
SELECT id, userId, name, domainsJson, createdAt FROM target_companies WHERE userId = ? AND name = ?
`, userID, name).Scan(&tc.ID, &tc.UserID, &tc.Name, &storedJSON, &createdAt)
	if err != nil {
		return internal.TargetCompany{}, err
	}
	_ = sonic.UnmarshalString(storedJSON, &tc.Domains)
	tc.CreatedAt = parseSQLiteTime(createdAt)
	return tc, nil
}

func (d *DB) ListTargetCompanies(userID string) ([]internal.TargetCompany, error) {
	rows, err := d.conn.Query(`
SELECT id, userId, name, domainsJson, createdAt FROM target_companies WHERE userId = ? ORDER BY name COLLATE NOCASE
`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []internal.TargetCompany
	for rows.Next() {
		var tc internal.TargetCompany
		var domainsJSON, createdAt string
		if err := rows.Scan(&tc.ID, &tc.UserID, &tc.Name, &domainsJSON, &createdAt); err != nil {
			return nil, err
		}
		_ = sonic.UnmarshalString(domainsJSON, &tc.Domains)
		tc.CreatedAt = parseSQLiteTime(createdAt)
		out = append(out, tc)
	}
	return out, rows.Err()
}
