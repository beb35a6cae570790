package crawler

import (
	"strings"
	"unicode"
	"unicode/utf8"
)

// RelevanceFilter decides whether a candidate topic is in-domain. It must be
// pure: the same inputs always produce the same answer.
type RelevanceFilter interface {
	Relevant(title string, categories []string) bool
}

// FilterFunc adapts a plain function to RelevanceFilter
type FilterFunc func(title string, categories []string) bool

func (f FilterFunc) Relevant(title string, categories []string) bool {
	return f(title, categories)
}

// titleExcluder is implemented by filters that can reject a title before it is fetched
type titleExcluder interface {
	Excluded(title string) bool
}

// KeywordFilter accepts topics whose title or categories contain one of the
// configured keywords (case-insensitive substring match). Seeds are always accepted.
type KeywordFilter struct {
	keywords []string
	prefixes []string
	seeds    map[string]bool
}

// NewKeywordFilter builds a filter from a keyword allow-list, a list of excluded
// title prefixes and the seed titles that bypass filtering.
func NewKeywordFilter(keywords, excludedPrefixes, seeds []string) *KeywordFilter {
	f := &KeywordFilter{seeds: make(map[string]bool, len(seeds))}
	for _, k := range keywords {
		if k = strings.ToLower(strings.TrimSpace(k)); k != "" {
			f.keywords = append(f.keywords, k)
		}
	}
	for _, p := range excludedPrefixes {
		if p = strings.ToLower(strings.TrimSpace(p)); p != "" {
			f.prefixes = append(f.prefixes, p)
		}
	}
	for _, s := range seeds {
		if s = NormalizeTitle(s); s != "" {
			f.seeds[s] = true
		}
	}
	return f
}

// Excluded reports whether the title starts with an excluded prefix such as "list of".
func (f *KeywordFilter) Excluded(title string) bool {
	if f.seeds[NormalizeTitle(title)] {
		return false
	}
	lower := strings.ToLower(title)
	for _, p := range f.prefixes {
		if strings.HasPrefix(lower, p) {
			return true
		}
	}
	return false
}

// Relevant implements RelevanceFilter
func (f *KeywordFilter) Relevant(title string, categories []string) bool {
	if f.seeds[NormalizeTitle(title)] {
		return true
	}
	if f.Excluded(title) {
		return false
	}
	if f.matches(title) {
		return true
	}
	for _, c := range categories {
		if f.matches(c) {
			return true
		}
	}
	return false
}

func (f *KeywordFilter) matches(text string) bool {
	lower := strings.ToLower(text)
	for _, k := range f.keywords {
		if strings.Contains(lower, k) {
			return true
		}
	}
	return false
}

// NormalizeTitle converts a title to its canonical form: underscores become
// spaces, whitespace is collapsed and the first letter is upper-cased.
func NormalizeTitle(title string) string {
	title = strings.Join(strings.Fields(strings.ReplaceAll(title, "_", " ")), " ")
	if title == "" {
		return ""
	}
	r, size := utf8.DecodeRuneInString(title)
	if unicode.IsLower(r) {
		return string(unicode.ToUpper(r)) + title[size:]
	}
	return title
}

// FilterLinks normalizes outgoing link titles, drops empties, self-links and
// duplicates, and keeps at most maxLinks of them in page order (0 = no limit).
func FilterLinks(source string, links []string, maxLinks int) []string {
	seen := make(map[string]bool)
	var filtered []string

	for _, link := range links {
		target := NormalizeTitle(link)
		if target == "" || target == source {
			continue
		}
		if seen[target] {
			continue
		}
		seen[target] = true
		filtered = append(filtered, target)

		if maxLinks > 0 && len(filtered) >= maxLinks {
			break
		}
	}

	return filtered
}
