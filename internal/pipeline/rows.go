package pipeline

import (
	"fmt"
	"net/mail"
	"net/url"
	"strings"
	"time"

	"netcrm/internal"
	"netcrm/internal/util"
)

const (
	unknownContactName = "Unknown Contact"
	missingEmailNote   = "Email missing from LinkedIn export"
	linkedInHost       = "linkedin.com"
)

var (
	defaultTags = []string{"csv-import", "linkedin-export"}

	nullLikeValues = map[string]struct{}{"null": {}, "none": {}, "n/a": {}, "na": {}, "-": {}, "nil": {}}

	connectedOnLayouts = []string{
		"02 Jan 2006",
		"2 Jan 2006",
		"2006-01-02",
		"01/02/2006",
		"1/2/2006",
		"January 2, 2006",
		"Jan 2, 2006",
		time.RFC3339,
	}
)

// RowMapper turns normalized rows into contacts. Tags are copied into every
// contact it builds. Enrich, when set, runs on each built contact with its
// source row; a panic inside it is reported like any other row failure.
type RowMapper struct {
	Tags   []string
	Enrich func(c *internal.Contact, row internal.NormalizedRow)
}

// MapRow validates and maps one row with the default tags. index is the
// 1-based data row number used in diagnostics.
func MapRow(row internal.NormalizedRow, index int, now time.Time) (*internal.Contact, []internal.Diagnostic) {
	return RowMapper{}.Map(row, index, now)
}

func (m RowMapper) Map(row internal.NormalizedRow, index int, now time.Time) (contact *internal.Contact, diags []internal.Diagnostic) {
	defer func() {
		if r := recover(); r != nil {
			contact = nil
			diags = append(diags, internal.Diagnostic{
				Severity: internal.SeverityError,
				Row:      index,
				Message:  fmt.Sprintf("Row %d: error - %v", index, r),
			})
		}
	}()

	get := func(field string) string { return cleanCell(row[field]) }

	firstName, lastName := get(FieldFirstName), get(FieldLastName)
	company, email, profile := get(FieldCompany), get(FieldEmail), get(FieldProfileURL)

	if firstName == "" && lastName == "" && company == "" && email == "" && profile == "" {
		return nil, []internal.Diagnostic{warnRow(index, "Row %d: insufficient data - skipping", index)}
	}

	c := &internal.Contact{
		Name:    resolveName(get(FieldName), firstName, lastName, company, email),
		Company: util.NonEmptyPtr(company),
		Title:   util.NonEmptyPtr(get(FieldTitle)),
		Tags:    m.tags(),
	}

	if email != "" {
		normalized, ok := normalizeEmail(email)
		if ok {
			c.Email = &normalized
		} else {
			diags = append(diags, warnRow(index, "Row %d: invalid email %q - ignored", index, email))
		}
	}

	if phone := cleanPhone(get(FieldPhone)); phone != "" {
		c.Phone = &phone
	}

	if profile != "" {
		if u, ok := canonicalProfileURL(profile); ok {
			c.ProfileURL = &u
		} else {
			diags = append(diags, warnRow(index, "Row %d: not a LinkedIn URL %q - ignored", index, profile))
		}
	}

	c.AddedAt = now
	if raw := get(FieldConnectedOn); raw != "" {
		if t, ok := parseConnectedOn(raw); ok {
			c.ConnectedOn = &t
			c.AddedAt = t
		} else {
			diags = append(diags, warnRow(index, "Row %d: unrecognized date %q - using import time", index, raw))
		}
	}

	notes := get(FieldNotes)
	c.RelationshipStrength = strengthFor(c.Phone != nil, c.Email != nil, notes != "")
	if c.Email == nil {
		notes = prependNote(missingEmailNote, notes)
	}
	if c.ConnectedOn != nil {
		notes = prependNote("Connected on LinkedIn: "+c.ConnectedOn.Format("02 Jan 2006"), notes)
	}
	c.Notes = notes

	if m.Enrich != nil {
		m.Enrich(c, row)
	}
	return c, diags
}

func (m RowMapper) tags() []string {
	src := m.Tags
	if len(src) == 0 {
		src = defaultTags
	}
	out := make([]string, 0, len(src))
	seen := map[string]struct{}{}
	for _, t := range src {
		if _, ok := seen[t]; ok {
			continue
		}
		seen[t] = struct{}{}
		out = append(out, t)
	}
	return out
}

func cleanCell(v string) string {
	v = strings.TrimSpace(v)
	if _, ok := nullLikeValues[strings.ToLower(v)]; ok {
		return ""
	}
	return v
}

func resolveName(full, first, last, company, email string) string {
	if full != "" {
		return util.NormalizeSpaces(full)
	}
	if joined := strings.TrimSpace(first + " " + last); joined != "" {
		return util.NormalizeSpaces(joined)
	}
	if company != "" {
		return "Contact at " + company
	}
	if at := strings.Index(email, "@"); at > 0 {
		local := strings.NewReplacer(".", " ", "_", " ").Replace(email[:at])
		if name := util.TitleWords(local); name != "" {
			return name
		}
	}
	return unknownContactName
}

func cleanPhone(v string) string {
	var b strings.Builder
	for i, r := range strings.TrimSpace(v) {
		switch {
		case r >= '0' && r <= '9':
			b.WriteRune(r)
		case r == '+' && i == 0:
			b.WriteRune(r)
		}
	}
	out := b.String()
	if strings.Trim(out, "+") == "" {
		return ""
	}
	return out
}

func normalizeEmail(v string) (string, bool) {
	addr, err := mail.ParseAddress(strings.TrimSpace(v))
	if err != nil {
		return "", false
	}
	at := strings.LastIndex(addr.Address, "@")
	if at <= 0 {
		return "", false
	}
	local, domain := addr.Address[:at], strings.ToLower(addr.Address[at+1:])
	if !strings.Contains(domain, ".") || strings.HasPrefix(domain, ".") || strings.HasSuffix(domain, ".") {
		return "", false
	}
	return local + "@" + domain, true
}

// canonicalProfileURL expands bare handles and paths to https://linkedin.com
// URLs and strips www, query, fragment and trailing slash.
func canonicalProfileURL(v string) (string, bool) {
	v = strings.TrimSpace(v)
	if !strings.HasPrefix(strings.ToLower(v), "http") {
		if !strings.Contains(v, "/") {
			v = "https://" + linkedInHost + "/in/" + v
		} else if strings.Contains(strings.ToLower(v), linkedInHost) {
			v = "https://" + strings.TrimLeft(v, "/")
		} else {
			v = "https://" + linkedInHost + "/" + strings.TrimLeft(v, "/")
		}
	}
	if !strings.Contains(strings.ToLower(v), linkedInHost) {
		return "", false
	}

	u, err := url.Parse(v)
	if err != nil || u.Host == "" {
		return "", false
	}
	host := strings.TrimPrefix(strings.ToLower(u.Host), "www.")
	if host != linkedInHost && !strings.HasSuffix(host, "."+linkedInHost) {
		return "", false
	}
	path := strings.TrimRight(u.EscapedPath(), "/")
	return "https://" + host + path, true
}

func parseConnectedOn(v string) (time.Time, bool) {
	v = util.NormalizeSpaces(v)
	for _, layout := range connectedOnLayouts {
		if t, err := time.Parse(layout, v); err == nil {
			return t.UTC(), true
		}
	}
	return time.Time{}, false
}

func strengthFor(hasPhone, hasEmail, hasNotes bool) internal.RelationshipStrength {
	switch {
	case hasPhone:
		return internal.StrengthStrong
	case hasEmail || hasNotes:
		return internal.StrengthMedium
	default:
		return internal.StrengthWeak
	}
}

func prependNote(note, notes string) string {
	if notes == "" {
		return note
	}
	return note + "\n" + notes
}

func warnRow(row int, format string, args ...any) internal.Diagnostic {
	return internal.Diagnostic{Severity: internal.SeverityWarning, Row: row, Message: fmt.Sprintf(format, args...)}
}
