// Package enforce scrubs completion text of phones outside the filtered set
// and of opinionated filler, and reads back which phones were mentioned.
package enforce

import (
	"regexp"
	"strings"

	"github.com/manthann3/mobile-recommendation-chat-agent/internal/catalog"
)

var opinionPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)\b(?:in my opinion|I think|I believe|probably|maybe|perhaps|usually|typically)\b`),
	regexp.MustCompile(`(?i)\b(?:excellent|amazing|great|awesome|terrible|bad|poor|worth it)\b`),
}

// Result is the cleaned text plus how many fragments each pass removed.
type Result struct {
	Text          string
	TruthRemovals int
	ToneRemovals  int
}

// Enforcer holds one compiled pattern per catalog entry.
type Enforcer struct {
	entries  []catalog.Entry
	patterns []*regexp.Regexp
}

// New compiles brand...model patterns for the whole catalog.
func New(entries []catalog.Entry) *Enforcer {
	e := &Enforcer{
		entries:  entries,
		patterns: make([]*regexp.Regexp, len(entries)),
	}
	for i, entry := range entries {
		e.patterns[i] = regexp.MustCompile(`(?i)` + regexp.QuoteMeta(entry.Brand) + `.*?` + regexp.QuoteMeta(entry.Model))
	}
	return e
}

// Enforce removes every mention of a catalog phone not in allowed, then the
// opinion and superlative words, and trims the result.
func (e *Enforcer) Enforce(text string, allowed []catalog.Entry) Result {
	keep := make(map[string]struct{}, len(allowed))
	for _, a := range allowed {
		keep[a.Key()] = struct{}{}
	}

	var res Result
	for i, entry := range e.entries {
		if _, ok := keep[entry.Key()]; ok {
			continue
		}
		// Removal can join text into a fresh match, so repeat until stable.
		for {
			matches := e.patterns[i].FindAllStringIndex(text, -1)
			if len(matches) == 0 {
				break
			}
			res.TruthRemovals += len(matches)
			text = e.patterns[i].ReplaceAllString(text, "")
		}
	}

	for _, re := range opinionPatterns {
		n := len(re.FindAllStringIndex(text, -1))
		if n == 0 {
			continue
		}
		res.ToneRemovals += n
		text = re.ReplaceAllString(text, "")
	}

	res.Text = strings.TrimSpace(text)
	return res
}

// ExtractMentioned returns "Brand Model" for each allowed phone whose brand,
// model or full name appears in text, in allowed order without duplicates.
// Matching is case-sensitive.
func ExtractMentioned(text string, allowed []catalog.Entry) []string {
	seen := make(map[string]struct{}, len(allowed))
	var out []string
	for _, a := range allowed {
		name := a.Name()
		if _, dup := seen[name]; dup {
			continue
		}
		if strings.Contains(text, a.Brand) || strings.Contains(text, a.Model) || strings.Contains(text, name) {
			seen[name] = struct{}{}
			out = append(out, name)
		}
	}
	return out
}

// HasTable reports whether text looks like it contains a markdown table.
func HasTable(text string) bool {
	return strings.Contains(text, "|") && strings.Contains(text, "-")
}
