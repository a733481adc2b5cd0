package pipeline

import (
	"strings"

	"netcrm/internal"
)

// Deduplicate drops contacts whose email or profile URL was already seen in
// the batch. The first occurrence wins. Contacts with neither key are kept.
func Deduplicate(contacts []internal.Contact) ([]internal.Contact, []internal.Diagnostic) {
	seenEmails := map[string]struct{}{}
	seenURLs := map[string]struct{}{}
	out := make([]internal.Contact, 0, len(contacts))
	var diags []internal.Diagnostic

	for _, c := range contacts {
		emailKey := dedupeKey(c.Email)
		urlKey := dedupeKey(c.ProfileURL)

		if _, dup := seenEmails[emailKey]; emailKey != "" && dup {
			diags = append(diags, duplicateDiagnostic(*c.Email))
			continue
		}
		if _, dup := seenURLs[urlKey]; urlKey != "" && dup {
			diags = append(diags, duplicateDiagnostic(*c.ProfileURL))
			continue
		}

		if emailKey != "" {
			seenEmails[emailKey] = struct{}{}
		}
		if urlKey != "" {
			seenURLs[urlKey] = struct{}{}
		}
		out = append(out, c)
	}
	return out, diags
}

func dedupeKey(v *string) string {
	if v == nil {
		return ""
	}
	return strings.ToLower(strings.TrimSpace(*v))
}

func duplicateDiagnostic(value string) internal.Diagnostic {
	return internal.Diagnostic{Severity: internal.SeverityWarning, Message: "Duplicate: " + value}
}
