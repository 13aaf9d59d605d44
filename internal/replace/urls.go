package replace

import (
	"net/url"
	"strings"
)

// Replacement is one search/replace pair to run against the database.
type Replacement struct {
	Search  string
	Replace string
}

// URLVariants expands a URL migration into the set of textual forms the
// old URL takes inside a site database: the bare form, the JSON-escaped
// form (`https:\/\/…`), the percent-encoded form, the protocol-relative
// form, and the www/non-www counterpart of each. Variants are ordered
// most-specific-first (escaped and encoded spellings before the bare one,
// the protocol-relative form last) so no pass clobbers the material a
// later pass needs, and de-duplicated.
func URLVariants(oldURL, newURL string) []Replacement {
	oldURL = strings.TrimRight(oldURL, "/")
	newURL = strings.TrimRight(newURL, "/")
	if oldURL == newURL {
		return nil
	}

	type pair struct{ from, to string }
	base := []pair{{oldURL, newURL}}

	// www toggles only make sense when both sides parse as URLs with hosts.
	if of, ot, ok := toggleWWW(oldURL, newURL); ok {
		base = append(base, pair{of, ot})
	}

	var out []Replacement
	seen := make(map[string]bool)
	add := func(from, to string) {
		if from == "" || from == to || seen[from] {
			return
		}
		seen[from] = true
		out = append(out, Replacement{Search: from, Replace: to})
	}

	for _, p := range base {
		// JSON/serialized-escaped slashes first: the escaped form contains
		// the bare form's host but not its scheme separator, so ordering by
		// specificity matters.
		add(escapeSlashes(p.from), escapeSlashes(p.to))
		add(url.QueryEscape(p.from), url.QueryEscape(p.to))
		add(p.from, p.to)
		add(stripProtocol(p.from), stripProtocol(p.to))
	}
	return out
}

// toggleWWW produces the www-flipped spelling of the old URL, mapped to the
// unchanged new URL. A site previously reachable as both www and bare host
// migrates every spelling to the single new address.
func toggleWWW(oldURL, newURL string) (string, string, bool) {
	u, err := url.Parse(oldURL)
	if err != nil || u.Host == "" {
		return "", "", false
	}
	if strings.HasPrefix(u.Host, "www.") {
		u.Host = strings.TrimPrefix(u.Host, "www.")
	} else {
		u.Host = "www." + u.Host
	}
	return u.String(), newURL, true
}

// escapeSlashes renders the JSON-string spelling of a URL, as stored inside
// serialized option blobs and postmeta JSON.
func escapeSlashes(s string) string {
	return strings.ReplaceAll(s, "/", `\/`)
}

// stripProtocol reduces a URL to its protocol-relative form (`//host/path`).
func stripProtocol(s string) string {
	if i := strings.Index(s, "://"); i >= 0 {
		return s[i+1:]
	}
	return s
}
