package schedule

import (
	"log/slog"
	"strings"
	"unicode"
	"unicode/utf8"
)

// DefaultEndings lists the grammatical endings stripped from city names
// before matching, in priority order. Only the first ending that matches is
// applied; the order is significant.
var DefaultEndings = []string{"а", "ь", "е", "ы", "я", "у", "ки", "и"}

// Candidate pairs a city's display name with the loose stem used to find it
// in free text.
type Candidate struct {
	City string
	Stem string
}

// Matcher normalizes free-text city mentions against known city names using
// a suffix-stripping heuristic. It holds no mutable state and is safe for
// concurrent use.
type Matcher struct {
	endings []string
}

// NewMatcher creates a Matcher. Without arguments it uses DefaultEndings.
func NewMatcher(endings ...string) *Matcher {
	if len(endings) == 0 {
		endings = DefaultEndings
	}
	return &Matcher{endings: endings}
}

// Stem lower-cases a city name and strips the first matching ending. If no
// ending matches, the unmodified lower-cased name is returned.
func (m *Matcher) Stem(city string) string {
	lower := strings.ToLower(city)
	for _, ending := range m.endings {
		if strings.HasSuffix(lower, ending) {
			return strings.TrimSuffix(lower, ending)
		}
	}
	return lower
}

// Candidates builds exactly one (display name, stem) candidate per city,
// preserving input order.
func (m *Matcher) Candidates(cities []string) []Candidate {
	out := make([]Candidate, 0, len(cities))
	for _, city := range cities {
		out = append(out, Candidate{City: city, Stem: m.Stem(city)})
	}
	return out
}

// Match scans the message for the first city whose stem occurs at a word
// start. The first candidate in city-list order wins, so the caller must
// supply cities in a stable order.
func (m *Matcher) Match(message string, cities []string) (string, bool) {
	lower := strings.ToLower(message)
	for _, cand := range m.Candidates(cities) {
		if cand.Stem == "" {
			continue
		}
		if containsWordStart(lower, cand.Stem) {
			slog.Debug("Matcher matched city", "city", cand.City, "stem", cand.Stem)
			return cand.City, true
		}
	}
	return "", false
}

// containsWordStart reports whether substr occurs in s at a position not
// immediately preceded by a letter. The check is rune-aware so it works for
// Cyrillic text, which the regexp word boundary does not cover.
func containsWordStart(s, substr string) bool {
	for offset := 0; ; {
		i := strings.Index(s[offset:], substr)
		if i < 0 {
			return false
		}
		pos := offset + i
		if pos == 0 {
			return true
		}
		prev, _ := utf8.DecodeLastRuneInString(s[:pos])
		if !unicode.IsLetter(prev) {
			return true
		}
		offset = pos + 1
	}
}
