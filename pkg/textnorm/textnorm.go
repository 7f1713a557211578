// Package textnorm provides pure functions that turn raw album titles, track
// titles, and artist names into comparison-safe forms. All functions are
// deterministic and idempotent: applying them to their own output is a no-op.
package textnorm

import (
	"regexp"
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

var (
	spaceRE        = regexp.MustCompile(`\s+`)
	bracketNoiseRE = regexp.MustCompile(`(?i)\s*[\[(]\s*(?:explicit|clean|edited)\s*[\])]\s*$`)
)

// editionVocab is the fixed vocabulary of trailing edition markers. Matched
// case-insensitively in parenthesized, bracketed, and colon/hyphen suffix
// positions at the very end of a title.
const editionVocab = `deluxe(?: edition)?|expanded(?: edition)?|remaster(?:ed)?(?:\s*\d{2,4})?|bonus tracks?(?: version)?|super deluxe|collector'?s edition|anniversary edition|20(?:th)? anniversary edition`

var (
	editionParensRE   = regexp.MustCompile(`(?i)\s*\((` + editionVocab + `)\)\s*$`)
	editionSuffixRE   = regexp.MustCompile(`(?i)\s*(?:-|:)\s*(` + editionVocab + `)\s*$`)
	editionBracketsRE = regexp.MustCompile(`(?i)\s*\[(deluxe|expanded|remaster(?:ed)?(?:\s*\d{2,4})?|bonus tracks?|anniversary edition)\]\s*$`)
)

var (
	featBracketRE = regexp.MustCompile(`(?i)\s*[\[(]\s*(?:feat\.?|ft\.?|featuring)\s[^\])]*[\])]\s*$`)
	featBareRE    = regexp.MustCompile(`(?i)\s+(?:feat\.?|ft\.?|featuring)\s+.+$`)
)

// NormalizeName produces the canonical comparison form of a track title or
// artist name: whitespace collapsed, trailing noise and edition markers
// removed, diacritics folded, lowercased, quotes removed, and all remaining
// punctuation (except intra-token dots, as in "m.a.a.d") replaced by spaces.
func NormalizeName(raw string) string {
	return normalize(raw, false)
}

// NormalizeNameKeepQuotes is NormalizeName with apostrophes and quote
// characters preserved. Some lyric providers are apostrophe-sensitive.
func NormalizeNameKeepQuotes(raw string) string {
	return normalize(raw, true)
}

// NormalizeAlbumTitle normalizes like NormalizeName but extracts the matched
// edition markers instead of discarding them. Markers are stripped
// iteratively until none match (titles can carry several), deduplicated in
// extraction order, and joined with "; ".
func NormalizeAlbumTitle(raw string) (base string, editionTag string) {
	title, editions := splitEditions(raw)
	base = scrub(title, false)

	if len(editions) > 0 {
		seen := make(map[string]struct{}, len(editions))
		deduped := editions[:0]
		for _, e := range editions {
			if _, ok := seen[e]; ok {
				continue
			}
			seen[e] = struct{}{}
			deduped = append(deduped, e)
		}
		editionTag = strings.Join(deduped, "; ")
	}

	return base, editionTag
}

// TitleVariantsForLyrics returns up to three title forms, tried in order by
// lyric fetchers: quotes preserved, quotes stripped, fully folded. Empty and
// duplicate variants are dropped.
func TitleVariantsForLyrics(raw string) []string {
	candidates := []string{
		NormalizeNameKeepQuotes(raw),
		NormalizeName(raw),
		NormalizeForCompare(raw),
	}

	variants := make([]string, 0, len(candidates))
	seen := make(map[string]struct{}, len(candidates))
	for _, v := range candidates {
		if v == "" {
			continue
		}
		if _, ok := seen[v]; ok {
			continue
		}
		seen[v] = struct{}{}
		variants = append(variants, v)
	}
	return variants
}

// StripFeaturingCredits removes a trailing "feat."/"ft."/"featuring" clause,
// bracketed or bare. Inner words are never touched.
func StripFeaturingCredits(raw string) string {
	s := strings.TrimSpace(raw)
	s = featBracketRE.ReplaceAllString(s, "")
	s = featBareRE.ReplaceAllString(s, "")
	return strings.TrimSpace(s)
}

// NormalizeForCompare is the simpler ASCII-folding form used for genre tags:
// diacritics folded, lowercased, every non-alphanumeric (dots and quotes
// included) replaced with a space, whitespace collapsed.
func NormalizeForCompare(raw string) string {
	s := strings.ToLower(foldDiacritics(strings.TrimSpace(raw)))

	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		if isAlnum(r) {
			b.WriteRune(r)
		} else {
			b.WriteRune(' ')
		}
	}

	return strings.TrimSpace(spaceRE.ReplaceAllString(b.String(), " "))
}

// Slugify returns the hyphenated form of NormalizeForCompare, used as the
// stable key for genre rows.
func Slugify(raw string) string {
	return strings.ReplaceAll(NormalizeForCompare(raw), " ", "-")
}

func normalize(raw string, keepQuotes bool) string {
	title, _ := splitEditions(raw)
	return scrub(title, keepQuotes)
}

// splitEditions trims and collapses the raw title, drops bracketed noise
// tokens ([Explicit], (Clean), (Edited)), then iteratively peels trailing
// edition markers off the end, collecting them lowercased.
func splitEditions(raw string) (string, []string) {
	title := strings.TrimSpace(raw)
	if title == "" {
		return "", nil
	}

	title = spaceRE.ReplaceAllString(title, " ")
	title = bracketNoiseRE.ReplaceAllString(title, "")

	var editions []string
	for {
		if m := editionParensRE.FindStringSubmatchIndex(title); m != nil {
			editions = append(editions, strings.ToLower(title[m[2]:m[3]]))
			title = strings.TrimSpace(title[:m[0]])
			continue
		}
		if m := editionSuffixRE.FindStringSubmatchIndex(title); m != nil {
			editions = append(editions, strings.ToLower(title[m[2]:m[3]]))
			title = strings.TrimSpace(title[:m[0]])
			continue
		}
		if m := editionBracketsRE.FindStringSubmatchIndex(title); m != nil {
			editions = append(editions, strings.ToLower(title[m[2]:m[3]]))
			title = strings.TrimSpace(title[:m[0]])
			continue
		}
		break
	}

	return title, editions
}

// scrub folds diacritics, lowercases, and filters punctuation. Quotes are
// removed outright (so "don't" becomes "dont", not "don t") unless
// keepQuotes is set; dots survive only inside acronyms like "m.a.a.d";
// everything else non-alphanumeric becomes a space.
func scrub(title string, keepQuotes bool) string {
	s := strings.ToLower(foldDiacritics(title))

	runes := []rune(s)
	var b strings.Builder
	b.Grow(len(s))
	for i, r := range runes {
		switch {
		case isAlnum(r) || r == ' ':
			b.WriteRune(r)
		case r == '.':
			if i > 0 && i < len(runes)-1 && isAlnum(runes[i-1]) && isAlnum(runes[i+1]) {
				b.WriteRune(r)
			} else {
				b.WriteRune(' ')
			}
		case isQuote(r):
			if keepQuotes {
				b.WriteRune('\'')
			}
		default:
			b.WriteRune(' ')
		}
	}

	return strings.TrimSpace(spaceRE.ReplaceAllString(b.String(), " "))
}

// foldDiacritics strips combining marks after NFKD decomposition, so "Beyoncé"
// folds to "Beyonce".
func foldDiacritics(s string) string {
	t := transform.Chain(norm.NFKD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	out, _, err := transform.String(t, s)
	if err != nil {
		return s
	}
	return out
}

func isAlnum(r rune) bool {
	return (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9')
}

func isQuote(r rune) bool {
	switch r {
	case '\'', '’', '‘', '"', '“', '”', '`':
		return true
	}
	return false
}
