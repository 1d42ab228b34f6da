// Package normalize canonicalizes raw attribute values so that evidence
// from different collectors can be compared and merged. Each attribute
// kind has its own canonical form; comparison always happens on the
// normalized value, never on the raw one.
package normalize

import (
	"sort"
	"strings"
	"unicode"

	"golang.org/x/text/unicode/norm"

	"github.com/lvonguyen/numintel/internal/evidence"
)

// platformSuffixes are decorations some collectors append to usernames
// to mark where they were observed. They carry no identity signal.
var platformSuffixes = []string{
	"github", "gitlab", "twitter", "linkedin",
	"instagram", "facebook", "telegram", "reddit",
}

// Normalizer canonicalizes raw values per attribute kind.
type Normalizer struct{}

// New returns a Normalizer.
func New() *Normalizer {
	return &Normalizer{}
}

// Normalize returns the canonical form of raw for the given kind.
// An empty result means the value carries no usable content and the
// record should be rejected at the ingestion boundary.
func (n *Normalizer) Normalize(kind evidence.Kind, raw string) string {
	switch kind {
	case evidence.KindName:
		return normalizeName(raw)
	case evidence.KindEmail:
		return normalizeEmail(raw)
	case evidence.KindUsername:
		return normalizeUsername(raw)
	case evidence.KindAddress:
		return normalizeAddress(raw)
	case evidence.KindPhoneMeta:
		return collapseSpace(strings.ToLower(raw))
	default:
		return ""
	}
}

// normalizeName strips diacritics and punctuation, case-folds and
// collapses whitespace: "José  O'Brien-Smith" -> "jose obriensmith".
func normalizeName(raw string) string {
	var b strings.Builder
	for _, r := range norm.NFD.String(raw) {
		switch {
		case unicode.Is(unicode.Mn, r):
			// combining mark left over from decomposition
		case unicode.IsLetter(r) || unicode.IsDigit(r):
			b.WriteRune(unicode.ToLower(r))
		case unicode.IsSpace(r):
			b.WriteRune(' ')
		}
	}
	return collapseSpace(b.String())
}

// normalizeEmail lowercases the domain and preserves local-part case.
func normalizeEmail(raw string) string {
	s := strings.TrimSpace(raw)
	at := strings.LastIndex(s, "@")
	if at < 0 {
		return s
	}
	return s[:at] + "@" + strings.ToLower(s[at+1:])
}

// normalizeUsername strips the leading "@", a trailing numeric
// discriminator ("#1234") and known platform suffixes, then case-folds.
func normalizeUsername(raw string) string {
	s := strings.ToLower(strings.TrimSpace(raw))
	s = strings.TrimPrefix(s, "@")
	if i := strings.LastIndex(s, "#"); i > 0 && allDigits(s[i+1:]) {
		s = s[:i]
	}
	for _, suffix := range platformSuffixes {
		for _, sep := range []string{"@", ".", "-", "_"} {
			s = strings.TrimSuffix(s, sep+suffix)
		}
	}
	return s
}

// normalizeAddress lowercases, strips punctuation and reorders tokens
// into a canonical sequence so that "12 Main St, Springfield IL" and
// "Springfield, IL 12 Main St" compare equal.
func normalizeAddress(raw string) string {
	tokens := Tokens(raw)
	sort.Strings(tokens)
	return strings.Join(tokens, " ")
}

// Tokens splits a value into lowercased alphanumeric tokens.
func Tokens(raw string) []string {
	cleaned := strings.Map(func(r rune) rune {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			return unicode.ToLower(r)
		}
		return ' '
	}, raw)
	return strings.Fields(cleaned)
}

// Similarity returns the token-set similarity of two normalized values
// in [0,1]: the size of the token intersection over the token union.
// Identical token sets score 1 regardless of token order.
func Similarity(a, b string) float64 {
	ta, tb := Tokens(a), Tokens(b)
	if len(ta) == 0 && len(tb) == 0 {
		return 0
	}
	set := make(map[string]bool, len(ta))
	for _, t := range ta {
		set[t] = true
	}
	union := len(set)
	shared := 0
	seen := make(map[string]bool, len(tb))
	for _, t := range tb {
		if seen[t] {
			continue
		}
		seen[t] = true
		if set[t] {
			shared++
		} else {
			union++
		}
	}
	return float64(shared) / float64(union)
}

func collapseSpace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

func allDigits(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}
