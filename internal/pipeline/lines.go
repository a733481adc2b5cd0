package pipeline

import (
	"encoding/csv"
	"io"
	"strings"

	"netcrm/internal"
)

// splitRecords splits decoded text into logical CSV lines. A newline inside a
// quoted field does not end the line. A quote only opens a field when it
// starts the line or follows one of the candidate delimiters, so stray inch
// marks and apostrophes cannot swallow the rest of the file. A lone CR outside
// quotes ends a line like LF does.
//
// A quote still open at the end of the text is dropped and its record ends at
// the first line break after it; scanning resumes on the next line.
func splitRecords(text string) []string {
	out := []string{}
	runes := []rune(text)
	var b strings.Builder
	inQuote := false
	prev := '\n'
	start, openedAt := 0, 0

	flush := func(next int) {
		out = append(out, strings.TrimSuffix(b.String(), "\r"))
		b.Reset()
		prev = '\n'
		start = next
	}

	for i := 0; i <= len(runes); i++ {
		if i == len(runes) {
			if !inQuote {
				break
			}
			end, next := lineBreakAfter(runes, openedAt)
			b.Reset()
			b.WriteString(string(runes[start:openedAt]))
			b.WriteString(string(runes[openedAt+1 : end]))
			inQuote = false
			flush(next)
			i = next - 1
			continue
		}

		r := runes[i]
		switch {
		case r == '"' && !inQuote && isFieldStart(prev):
			inQuote = true
			openedAt = i
		case r == '"' && inQuote:
			if i+1 < len(runes) && runes[i+1] == '"' {
				b.WriteRune(r)
				i++
				r = runes[i]
			} else {
				inQuote = false
			}
		case r == '\n' && !inQuote:
			flush(i + 1)
			continue
		case r == '\r' && !inQuote && (i+1 == len(runes) || runes[i+1] != '\n'):
			flush(i + 1)
			continue
		}
		b.WriteRune(r)
		if r != ' ' {
			prev = r
		}
	}
	if b.Len() > 0 {
		flush(len(runes))
	}
	return out
}

// lineBreakAfter returns the index of the first line break after pos and the
// index where the following line starts. Both are len(runes) when none exists.
func lineBreakAfter(runes []rune, pos int) (end, next int) {
	for i := pos + 1; i < len(runes); i++ {
		switch runes[i] {
		case '\n':
			return i, i + 1
		case '\r':
			if i+1 < len(runes) && runes[i+1] == '\n' {
				return i, i + 2
			}
			return i, i + 1
		}
	}
	return len(runes), len(runes)
}

func isFieldStart(prev rune) bool {
	switch prev {
	case '\n', ',', ';', '\t', '|':
		return true
	}
	return false
}

// parseLine reads one logical line as a single CSV record.
func parseLine(line string, delim rune) internal.RawRow {
	r := csv.NewReader(strings.NewReader(line))
	r.Comma = delim
	r.LazyQuotes = true
	r.FieldsPerRecord = -1
	r.TrimLeadingSpace = delim != '\t'

	record, err := r.Read()
	if err == io.EOF {
		return nil
	}
	if err != nil {
		return strings.Split(line, string(delim))
	}
	return record
}

func isBlank(line string) bool {
	return strings.TrimSpace(line) == ""
}

func nonBlankCells(cells []string) []string {
	out := make([]string, 0, len(cells))
	for _, c := range cells {
		if strings.TrimSpace(c) != "" {
			out = append(out, c)
		}
	}
	return out
}

func lowerCells(cells []string) []string {
	out := make([]string, 0, len(cells))
	for _, c := range cells {
		c = strings.ToLower(strings.TrimSpace(c))
		if c != "" {
			out = append(out, c)
		}
	}
	return out
}
