package pipeline

import "strings"

const headerScanLines = 10

var (
	requiredHeaderTokens = []string{"first name", "last name", "url"}
	metadataWords        = []string{"connections", "notes", "total", "exported", "linkedin", "data", "export", "privacy", "settings"}
)

type HeaderLocation struct {
	// Index is the position of the header in the line slice.
	Index int
	Cells []string
	// Guessed is set when no line qualified and the first non-blank line was used.
	Guessed bool
}

// LocateHeader finds the header among the first non-blank lines, skipping
// export banners such as LinkedIn's "Notes:" preamble.
func LocateHeader(lines []string, delim rune, fields *FieldNormalizer) (HeaderLocation, error) {
	if fields == nil {
		fields = defaultNormalizer
	}

	firstNonBlank := -1
	scanned := 0
	for i, line := range lines {
		if isBlank(line) {
			continue
		}
		if firstNonBlank < 0 {
			firstNonBlank = i
		}
		if scanned == headerScanLines {
			break
		}
		scanned++

		cells := parseLine(line, delim)
		lower := lowerCells(cells)
		if len(lower) == 0 {
			continue
		}
		if isMetadataLine(lower) {
			continue
		}
		if hasRequiredTokens(lower) || hasProfilePattern(lower) || canonicalCount(fields, lower) >= 3 {
			return HeaderLocation{Index: i, Cells: cells}, nil
		}
	}

	if firstNonBlank < 0 {
		return HeaderLocation{}, ErrNoHeader
	}
	return HeaderLocation{
		Index:   firstNonBlank,
		Cells:   parseLine(lines[firstNonBlank], delim),
		Guessed: true,
	}, nil
}

func isMetadataLine(lower []string) bool {
	if len(lower) > 2 {
		return false
	}
	return containsAny(strings.Join(lower, " "), metadataWords)
}

func hasRequiredTokens(lower []string) bool {
	for _, token := range requiredHeaderTokens {
		found := false
		for _, cell := range lower {
			if strings.Contains(cell, token) {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	return true
}

func hasProfilePattern(lower []string) bool {
	if len(lower) < 5 {
		return false
	}
	var first, last, profile bool
	for _, cell := range lower {
		if strings.Contains(cell, "first") && strings.Contains(cell, "name") {
			first = true
		}
		if strings.Contains(cell, "last") && strings.Contains(cell, "name") {
			last = true
		}
		if strings.Contains(cell, "url") || strings.Contains(cell, "profile") {
			profile = true
		}
	}
	return first && last && profile
}

func canonicalCount(fields *FieldNormalizer, lower []string) int {
	seen := map[string]struct{}{}
	for _, cell := range lower {
		field := fields.Normalize(cell)
		if IsCanonical(field) {
			seen[field] = struct{}{}
		}
	}
	return len(seen)
}
