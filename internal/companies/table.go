// Package companies maps company names to the email domains their people use.
package companies

import (
	"fmt"
	"os"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"

	"netcrm/internal/util"
)

var defaultDomains = map[string][]string{
	"meta":       {"meta.com", "facebook.com", "fb.com"},
	"google":     {"google.com", "gmail.com"},
	"microsoft":  {"microsoft.com", "outlook.com", "hotmail.com"},
	"apple":      {"apple.com", "icloud.com"},
	"amazon":     {"amazon.com", "aws.com"},
	"stripe":     {"stripe.com"},
	"airbnb":     {"airbnb.com"},
	"netflix":    {"netflix.com"},
	"tesla":      {"tesla.com"},
	"uber":       {"uber.com"},
	"spotify":    {"spotify.com"},
	"twitter":    {"twitter.com", "x.com"},
	"linkedin":   {"linkedin.com"},
	"salesforce": {"salesforce.com"},
	"adobe":      {"adobe.com"},
	"slack":      {"slack.com"},
	"zoom":       {"zoom.us"},
	"dropbox":    {"dropbox.com"},
	"github":     {"github.com"},
	"gitlab":     {"gitlab.com"},
	"atlassian":  {"atlassian.com"},
	"shopify":    {"shopify.com"},
	"square":     {"squareup.com", "square.com"},
	"paypal":     {"paypal.com"},
	"coinbase":   {"coinbase.com"},
	"robinhood":  {"robinhood.com"},
	"twilio":     {"twilio.com"},
	"sendgrid":   {"sendgrid.com"},
	"mailchimp":  {"mailchimp.com"},
	"hubspot":    {"hubspot.com"},
	"zendesk":    {"zendesk.com"},
	"intercom":   {"intercom.com"},
	"notion":     {"notion.so"},
	"figma":      {"figma.com"},
	"canva":      {"canva.com"},
	"discord":    {"discord.com"},
	"reddit":     {"reddit.com"},
	"pinterest":  {"pinterest.com"},
	"snapchat":   {"snap.com"},
	"tiktok":     {"tiktok.com"},
	"bytedance":  {"bytedance.com"},
}

// Table is a read-only company key to domain list mapping.
type Table struct {
	domains map[string][]string
}

func DefaultTable() *Table {
	return NewTable(nil)
}

// NewTable layers extra entries over the built-in table. Keys are company
// names in any spelling; they are reduced with util.CompanyKey.
func NewTable(extra map[string][]string) *Table {
	t := &Table{domains: map[string][]string{}}
	for name, domains := range defaultDomains {
		t.domains[name] = normalizeDomains(domains)
	}
	for name, domains := range extra {
		key := util.CompanyKey(name)
		if key == "" {
			continue
		}
		t.domains[key] = normalizeDomains(domains)
	}
	return t
}

// LoadTable reads `company: [domain, ...]` overrides from YAML. An empty path
// yields the default table.
func LoadTable(path string) (*Table, error) {
	if strings.TrimSpace(path) == "" {
		return DefaultTable(), nil
	}
	blob, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read company domains: %w", err)
	}
	var extra map[string][]string
	if err := yaml.Unmarshal(blob, &extra); err != nil {
		return nil, fmt.Errorf("parse company domains %s: %w", path, err)
	}
	return NewTable(extra), nil
}

// DomainsFor returns the known domains of a company, or "{key}.com" when the
// company is not in the table.
func (t *Table) DomainsFor(company string) []string {
	key := util.CompanyKey(company)
	if key == "" {
		return nil
	}
	if domains, ok := t.domains[key]; ok {
		return append([]string(nil), domains...)
	}
	return []string{key + ".com"}
}

// CompanyForDomain returns the table key owning domain or one of its parents.
func (t *Table) CompanyForDomain(domain string) (string, bool) {
	domain = strings.ToLower(strings.TrimSpace(domain))
	keys := make([]string, 0, len(t.domains))
	for k := range t.domains {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		for _, d := range t.domains[k] {
			if domain == d || strings.HasSuffix(domain, "."+d) {
				return k, true
			}
		}
	}
	return "", false
}

func normalizeDomains(domains []string) []string {
	out := make([]string, 0, len(domains))
	for _, d := range domains {
		d = strings.TrimPrefix(strings.ToLower(strings.TrimSpace(d)), "@")
		if d != "" {
			out = append(out, d)
		}
	}
	return out
}
