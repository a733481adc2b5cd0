package util

import (
	"regexp"
	"strings"
	"unicode"
)

var (
	reSpaces       = regexp.MustCompile(`\s+`)
	reNonAlnum     = regexp.MustCompile(`[^a-z0-9]`)
	reCorpSuffixes = regexp.MustCompile(`\b(inc|corp|corporation|company|co|ltd|llc|gmbh|plc)\b`)
)

func NormalizeSpaces(input string) string {
	return strings.TrimSpace(reSpaces.ReplaceAllString(input, " "))
}

// CompanyKey lower-cases a company name, drops legal suffixes and keeps only
// ASCII letters and digits: "Acme, Inc." -> "acme".
func CompanyKey(name string) string {
	s := strings.ToLower(strings.TrimSpace(name))
	s = reCorpSuffixes.ReplaceAllString(s, " ")
	return reNonAlnum.ReplaceAllString(s, "")
}

// TitleWords upper-cases the first letter of each space separated word.
func TitleWords(input string) string {
	words := strings.Fields(input)
	for i, w := range words {
		r := []rune(strings.ToLower(w))
		r[0] = unicode.ToUpper(r[0])
		words[i] = string(r)
	}
	return strings.Join(words, " ")
}

func Deref(v *string) string {
	if v == nil {
		return ""
	}
	return *v
}

// NonEmptyPtr returns nil for blank input, otherwise a pointer to the trimmed value.
func NonEmptyPtr(v string) *string {
	v = strings.TrimSpace(v)
	if v == "" {
		return nil
	}
	return &v
}

func FirstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}

// DiceCoefficient is the Sørensen–Dice similarity of the character bigrams of a and b.
func DiceCoefficient(a, b string) float64 {
	if a == "" || b == "" {
		return 0
	}
	if a == b {
		return 1
	}

	pairs := func(s string) []string {
		r := []rune(s)
		if len(r) < 2 {
			return nil
		}
		out := make([]string, 0, len(r)-1)
		for i := 0; i < len(r)-1; i++ {
			out = append(out, string(r[i:i+2]))
		}
		return out
	}

	aPairs := pairs(a)
	bPairs := pairs(b)
	if len(aPairs) == 0 || len(bPairs) == 0 {
		return 0
	}

	bCount := map[string]int{}
	for _, p := range bPairs {
		bCount[p]++
	}
	inter := 0
	for _, p := range aPairs {
		if bCount[p] > 0 {
			inter++
			bCount[p]--
		}
	}

	return float64(2*inter) / float64(len(aPairs)+len(bPairs))
}
