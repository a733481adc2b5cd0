package pipeline

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// Canonical contact fields.
const (
	FieldFirstName   = "first_name"
	FieldLastName    = "last_name"
	FieldName        = "name"
	FieldEmail       = "email"
	FieldPhone       = "phone"
	FieldCompany     = "company"
	FieldTitle       = "title"
	FieldProfileURL  = "profile_url"
	FieldConnectedOn = "connected_on"
	FieldNotes       = "notes"
)

var defaultAliases = map[string][]string{
	FieldFirstName:   {"first name", "firstname", "fname", "given name", "givenname", "first", "forename"},
	FieldLastName:    {"last name", "lastname", "lname", "surname", "family name", "familyname", "last"},
	FieldName:        {"name", "full name", "fullname", "contact name", "contactname", "display name", "person"},
	FieldEmail:       {"email", "email address", "emailaddress", "e mail", "e mail address", "mail", "contact email", "contactemail", "work email", "primary email"},
	FieldPhone:       {"phone", "phone number", "phonenumber", "mobile", "mobile number", "cell", "cell phone", "cellphone", "telephone", "tel", "contact phone", "work phone"},
	FieldCompany:     {"company", "company name", "organization", "organisation", "employer", "workplace", "work place", "business", "firm", "corp", "corporation", "account"},
	FieldTitle:       {"title", "position", "job title", "jobtitle", "role", "designation", "job", "occupation", "work title", "headline"},
	FieldProfileURL:  {"url", "profile url", "profileurl", "linkedin", "linkedin url", "linkedinurl", "linkedin profile", "profile", "link", "profile link"},
	FieldConnectedOn: {"connected on", "connectedon", "connection date", "date connected", "connected", "connected at"},
	FieldNotes:       {"notes", "note", "comments", "comment", "description", "remarks"},
}

// FieldNormalizer maps raw header cells to canonical field names. It is
// immutable after construction and safe for concurrent use.
type FieldNormalizer struct {
	lookup map[string]string
}

var defaultNormalizer = NewFieldNormalizer(nil)

// NewFieldNormalizer builds a normalizer from the built-in synonym table plus
// extra aliases keyed by canonical field.
func NewFieldNormalizer(extra map[string][]string) *FieldNormalizer {
	n := &FieldNormalizer{lookup: map[string]string{}}
	add := func(field string, aliases []string) {
		n.lookup[field] = field
		for _, a := range aliases {
			key := cleanHeader(a)
			n.lookup[key] = field
			n.lookup[strings.ReplaceAll(key, " ", "_")] = field
		}
	}
	for field, aliases := range defaultAliases {
		add(field, aliases)
	}
	for field, aliases := range extra {
		add(field, aliases)
	}
	return n
}

// LoadFieldNormalizer reads extra aliases from a YAML file shaped as
// `canonical_field: [alias, ...]`. An empty path yields the defaults.
func LoadFieldNormalizer(path string) (*FieldNormalizer, error) {
	if strings.TrimSpace(path) == "" {
		return defaultNormalizer, nil
	}
	blob, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read field aliases: %w", err)
	}
	var extra map[string][]string
	if err := yaml.Unmarshal(blob, &extra); err != nil {
		return nil, fmt.Errorf("parse field aliases %s: %w", path, err)
	}
	return NewFieldNormalizer(extra), nil
}

// Normalize returns the canonical field for a header cell, or the cleaned
// underscore-joined header when no alias matches. It never fails.
func (n *FieldNormalizer) Normalize(header string) string {
	cleaned := cleanHeader(header)
	if field, ok := n.lookup[cleaned]; ok {
		return field
	}
	if field, ok := n.lookup[strings.ReplaceAll(cleaned, " ", "")]; ok {
		return field
	}
	underscored := strings.ReplaceAll(cleaned, " ", "_")
	if field, ok := n.lookup[underscored]; ok {
		return field
	}
	return underscored
}

// NormalizeAll normalizes a header row once so rows can be keyed by index.
func (n *FieldNormalizer) NormalizeAll(header []string) []string {
	out := make([]string, len(header))
	for i, h := range header {
		out[i] = n.Normalize(h)
	}
	return out
}

// IsCanonical reports whether field is one of the known contact fields.
func IsCanonical(field string) bool {
	_, ok := defaultAliases[field]
	return ok
}

// NormalizeFieldName normalizes with the built-in synonym table.
func NormalizeFieldName(header string) string {
	return defaultNormalizer.Normalize(header)
}

func cleanHeader(header string) string {
	s := strings.ToLower(strings.TrimSpace(header))
	s = strings.TrimPrefix(s, "\ufeff")
	s = strings.Trim(s, `"'`)
	s = strings.NewReplacer("-", " ", "_", " ", ".", " ").Replace(s)
	return strings.Join(strings.Fields(s), " ")
}
