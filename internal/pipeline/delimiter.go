package pipeline

import "strings"

var (
	candidateDelimiters = []rune{',', ';', '\t', '|'}

	delimiterHeaderHints = []string{"first name", "last name", "email", "company"}
	delimiterBannerHints = []string{"notes:", "when exporting", "connections"}
)

const (
	delimiterSampleLines = 15
	delimiterTolerance   = 3
)

// DetectDelimiter picks the candidate delimiter that yields the most, and most
// consistent, columns over the first non-blank lines. It defaults to comma.
func DetectDelimiter(lines []string) rune {
	sample := make([]string, 0, delimiterSampleLines)
	for _, line := range lines {
		if isBlank(line) {
			continue
		}
		sample = append(sample, line)
		if len(sample) == delimiterSampleLines {
			break
		}
	}

	best := ','
	bestScore := 0.0
	for _, delim := range candidateDelimiters {
		score := delimiterScore(sample, delim)
		if score > bestScore {
			best = delim
			bestScore = score
		}
	}
	return best
}

func delimiterScore(sample []string, delim rune) float64 {
	total := 0
	valid := 0
	first := -1
	consistent := true

	for _, line := range sample {
		cells := parseLine(line, delim)
		if len(cells) == 0 {
			continue
		}
		lower := strings.ToLower(line)
		if len(cells) <= 2 && containsAny(lower, delimiterBannerHints) {
			continue
		}

		columns := len(nonBlankCells(cells))
		if containsAny(lower, delimiterHeaderHints) {
			columns *= 2
		}

		if first < 0 {
			first = columns
		} else if abs(columns-first) > delimiterTolerance {
			consistent = false
		}
		total += columns
		valid++
	}

	factor := 1.0
	if !consistent {
		factor = 0.5
	}
	return float64(total) * factor * float64(valid)
}

func containsAny(s string, needles []string) bool {
	for _, n := range needles {
		if strings.Contains(s, n) {
			return true
		}
	}
	return false
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}
