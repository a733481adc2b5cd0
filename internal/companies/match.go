package companies

import (
	"strings"

	"netcrm/internal"
	"netcrm/internal/util"
)

type Reason string

const (
	ReasonExact     Reason = "exact"
	ReasonSubdomain Reason = "subdomain"
	ReasonSubstring Reason = "substring"
	ReasonFuzzy     Reason = "fuzzy"
	ReasonNone      Reason = "none"
)

const DefaultFuzzyMin = 0.8

type Match struct {
	Matched bool
	Reason  Reason
	Score   float64
	Domain  string
}

type Matcher struct {
	table    *Table
	fuzzyMin float64
}

func NewMatcher(table *Table, fuzzyMin float64) *Matcher {
	if table == nil {
		table = DefaultTable()
	}
	if fuzzyMin <= 0 {
		fuzzyMin = DefaultFuzzyMin
	}
	return &Matcher{table: table, fuzzyMin: fuzzyMin}
}

// MatchEmail decides whether an email address belongs to company. Checks run
// in order: a known domain equals the email domain, the email domain is a
// subdomain of a known domain, the cleaned company name is a substring of the
// domain, and finally Dice similarity between the name and the domain label.
func (m *Matcher) MatchEmail(email, company string) Match {
	at := strings.LastIndex(email, "@")
	key := util.CompanyKey(company)
	if at < 0 || key == "" {
		return Match{Reason: ReasonNone}
	}
	domain := strings.ToLower(strings.TrimSpace(email[at+1:]))
	if domain == "" {
		return Match{Reason: ReasonNone}
	}
	res := Match{Reason: ReasonNone, Domain: domain}

	known := m.table.DomainsFor(company)
	for _, d := range known {
		if domain == d {
			res.Matched, res.Reason, res.Score = true, ReasonExact, 1
			return res
		}
	}
	for _, d := range known {
		if strings.HasSuffix(domain, "."+d) {
			res.Matched, res.Reason, res.Score = true, ReasonSubdomain, 1
			return res
		}
	}

	compact := strings.NewReplacer(".", "", "-", "").Replace(domain)
	if strings.Contains(domain, key) || strings.Contains(compact, key) {
		res.Matched, res.Reason, res.Score = true, ReasonSubstring, 1
		return res
	}

	label := domainLabel(domain)
	score := util.DiceCoefficient(key, label)
	res.Score = score
	if score >= m.fuzzyMin {
		res.Matched, res.Reason = true, ReasonFuzzy
	}
	return res
}

// ContactsAt returns the contacts whose company field names the target or
// whose email matches one of its domains.
func (m *Matcher) ContactsAt(target internal.TargetCompany, contacts []internal.Contact) []internal.Contact {
	key := util.CompanyKey(target.Name)
	extra := normalizeDomains(target.Domains)
	out := []internal.Contact{}
	for _, c := range contacts {
		if c.Company != nil && key != "" && util.CompanyKey(*c.Company) == key {
			out = append(out, c)
			continue
		}
		if c.Email == nil {
			continue
		}
		if m.MatchEmail(*c.Email, target.Name).Matched || hasDomain(*c.Email, extra) {
			out = append(out, c)
		}
	}
	return out
}

func hasDomain(email string, domains []string) bool {
	at := strings.LastIndex(email, "@")
	if at < 0 {
		return false
	}
	domain := strings.ToLower(email[at+1:])
	for _, d := range domains {
		if domain == d || strings.HasSuffix(domain, "."+d) {
			return true
		}
	}
	return false
}

// domainLabel drops the public suffix heuristically: "mail.acme.co.uk" -> "acme".
func domainLabel(domain string) string {
	parts := strings.Split(domain, ".")
	switch {
	case len(parts) >= 3 && len(parts[len(parts)-1]) == 2 && len(parts[len(parts)-2]) <= 3:
		return parts[len(parts)-3]
	case len(parts) >= 2:
		return parts[len(parts)-2]
	default:
		return domain
	}
}
