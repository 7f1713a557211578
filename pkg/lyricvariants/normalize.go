package lyricvariants

import (
	"crypto/sha256"
	"encoding/hex"
	"regexp"
	"strings"

	"github.com/tonearmlabs/tonearm/pkg/textnorm"
)

// normalizerVersion is baked into every hash so that a change to the
// normalization rules invalidates stored hashes instead of silently
// colliding with them.
const normalizerVersion = "v1"

var (
	sectionLabelRE  = regexp.MustCompile(`^\s*[\[(]([^\])]+)[\])]\s*$`)
	trailingCountRE = regexp.MustCompile(`\s+\d+$`)
)

// sectionAliases maps normalized label spellings to their canonical form.
// Providers disagree on hyphenation and spacing.
var sectionAliases = map[string]string{
	"pre chorus":   "pre-chorus",
	"prechorus":    "pre-chorus",
	"post chorus":  "post-chorus",
	"postchorus":   "post-chorus",
	"intro":        "intro",
	"outro":        "outro",
	"verse":        "verse",
	"chorus":       "chorus",
	"bridge":       "bridge",
	"hook":         "hook",
	"refrain":      "refrain",
	"interlude":    "interlude",
	"instrumental": "instrumental",
	"skit":         "skit",
	"spoken":       "spoken",
}

// NormalizeLyrics produces the canonical form of a lyric text used for
// hashing: section labels are canonicalized (with numbering collapsed, so
// "[Verse 1]" and "[Verse 2]" both become "[verse]"), every other line is
// folded and stripped of punctuation, and blank lines are dropped.
func NormalizeLyrics(text string) string {
	lines := strings.Split(text, "\n")
	normalized := make([]string, 0, len(lines))

	for _, line := range lines {
		if m := sectionLabelRE.FindStringSubmatch(line); m != nil {
			if label := canonicalLabel(m[1]); label != "" {
				normalized = append(normalized, "["+label+"]")
				continue
			}
			// Not a recognized section; fall through and treat it as text.
		}

		folded := textnorm.NormalizeForCompare(line)
		if folded == "" {
			continue
		}
		normalized = append(normalized, folded)
	}

	return strings.Join(normalized, "\n")
}

// HashLyrics hashes the normalized lyric text, prefixed with the normalizer
// version tag, as a hex-encoded SHA-256 digest.
func HashLyrics(text string) string {
	payload := normalizerVersion + "\n" + NormalizeLyrics(text)
	sum := sha256.Sum256([]byte(payload))
	return hex.EncodeToString(sum[:])
}

// canonicalLabel normalizes one bracketed section label. Trailing counters
// are collapsed before the alias lookup; the label's free-text remainder
// (e.g. a performer name in "[Chorus: Rihanna]") is dropped with it.
func canonicalLabel(raw string) string {
	label := textnorm.NormalizeForCompare(raw)
	label = trailingCountRE.ReplaceAllString(label, "")
	if canonical, ok := sectionAliases[label]; ok {
		return canonical
	}
	// Try the first word alone: "chorus rihanna" -> "chorus".
	if first, _, found := strings.Cut(label, " "); found {
		if canonical, ok := sectionAliases[first]; ok {
			return canonical
		}
	}
	return ""
}
