package textnorm

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalizeName(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{
			name:     "lowercases and trims",
			input:    "  HUMBLE.  ",
			expected: "humble",
		},
		{
			name:     "collapses internal whitespace",
			input:    "To  Pimp   a Butterfly",
			expected: "to pimp a butterfly",
		},
		{
			name:     "folds diacritics",
			input:    "Beyoncé",
			expected: "beyonce",
		},
		{
			name:     "removes apostrophes without splitting the word",
			input:    "Don't Stop Believin'",
			expected: "dont stop believin",
		},
		{
			name:     "removes curly apostrophes",
			input:    "Don’t Stop Me Now",
			expected: "dont stop me now",
		},
		{
			name:     "preserves intra-token dots",
			input:    "m.A.A.d city",
			expected: "m.a.a.d city",
		},
		{
			name:     "drops trailing dot",
			input:    "DAMN.",
			expected: "damn",
		},
		{
			name:     "strips bracketed noise",
			input:    "Power [Explicit]",
			expected: "power",
		},
		{
			name:     "strips paren noise",
			input:    "Power (Clean)",
			expected: "power",
		},
		{
			name:     "strips trailing edition marker",
			input:    "Thriller (Deluxe Edition)",
			expected: "thriller",
		},
		{
			name:     "replaces other punctuation with space",
			input:    "AM/PM — late&early",
			expected: "am pm late early",
		},
		{
			name:     "empty input",
			input:    "",
			expected: "",
		},
		{
			name:     "whitespace only",
			input:    "   ",
			expected: "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, NormalizeName(tt.input))
		})
	}
}

func TestNormalizeNameIdempotent(t *testing.T) {
	inputs := []string{
		"Don't Stop Believin'",
		"m.A.A.d city",
		"Thriller (Deluxe Edition)",
		"Beyoncé",
		"AM/PM — late&early",
	}
	for _, input := range inputs {
		once := NormalizeName(input)
		assert.Equal(t, once, NormalizeName(once), "input: %q", input)
	}
}

func TestNormalizeNameKeepQuotes(t *testing.T) {
	assert.Equal(t, "don't stop believin'", NormalizeNameKeepQuotes("Don't Stop Believin'"))
	assert.Equal(t, "don't", NormalizeNameKeepQuotes("Don’t"))

	// Keep-quotes output is stable under a second pass.
	once := NormalizeNameKeepQuotes("Don’t Stop Believin’")
	assert.Equal(t, once, NormalizeNameKeepQuotes(once))
}

func TestNormalizeAlbumTitle(t *testing.T) {
	tests := []struct {
		name        string
		input       string
		expected    string
		expectedTag string
	}{
		{
			name:        "plain title",
			input:       "To Pimp a Butterfly",
			expected:    "to pimp a butterfly",
			expectedTag: "",
		},
		{
			name:        "deluxe in parens",
			input:       "Song (Deluxe)",
			expected:    "song",
			expectedTag: "deluxe",
		},
		{
			name:        "deluxe edition in parens",
			input:       "Thriller (Deluxe Edition)",
			expected:    "thriller",
			expectedTag: "deluxe edition",
		},
		{
			name:        "remaster with year",
			input:       "Abbey Road (Remastered 2019)",
			expected:    "abbey road",
			expectedTag: "remastered 2019",
		},
		{
			name:        "hyphen suffix",
			input:       "Nevermind - Deluxe Edition",
			expected:    "nevermind",
			expectedTag: "deluxe edition",
		},
		{
			name:        "colon suffix",
			input:       "OK Computer: Expanded Edition",
			expected:    "ok computer",
			expectedTag: "expanded edition",
		},
		{
			name:        "bracketed marker",
			input:       "Blue [Remastered]",
			expected:    "blue",
			expectedTag: "remastered",
		},
		{
			name:        "stacked markers extracted iteratively",
			input:       "Album (Bonus Tracks) (Deluxe)",
			expected:    "album",
			expectedTag: "deluxe; bonus tracks",
		},
		{
			name:        "duplicate markers deduplicated",
			input:       "Album (Deluxe) - Deluxe",
			expected:    "album",
			expectedTag: "deluxe",
		},
		{
			name:        "noise then marker",
			input:       "Album (Deluxe) [Explicit]",
			expected:    "album",
			expectedTag: "deluxe",
		},
		{
			name:        "marker mid-title not stripped",
			input:       "Deluxe Dreams",
			expected:    "deluxe dreams",
			expectedTag: "",
		},
		{
			name:        "empty input",
			input:       "",
			expected:    "",
			expectedTag: "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			base, tag := NormalizeAlbumTitle(tt.input)
			assert.Equal(t, tt.expected, base)
			assert.Equal(t, tt.expectedTag, tag)
		})
	}
}

func TestTitleVariantsForLyrics(t *testing.T) {
	variants := TitleVariantsForLyrics("Don’t Stop Believin’")
	assert.Equal(t, []string{"don't stop believin'", "dont stop believin", "don t stop believin"}, variants)

	// A title without quotes or punctuation collapses to one variant.
	variants = TitleVariantsForLyrics("Alright")
	assert.Equal(t, []string{"alright"}, variants)

	// Intra-token dots differ between the normalized and folded forms.
	variants = TitleVariantsForLyrics("m.A.A.d city")
	assert.Equal(t, []string{"m.a.a.d city", "m a a d city"}, variants)

	assert.Len(t, TitleVariantsForLyrics("D.o.n't"), 3)
	assert.Empty(t, TitleVariantsForLyrics("   "))
}

func TestStripFeaturingCredits(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{
			name:     "paren feat",
			input:    "No Role Modelz (feat. Someone)",
			expected: "No Role Modelz",
		},
		{
			name:     "bracket ft",
			input:    "Forever [ft. Drake]",
			expected: "Forever",
		},
		{
			name:     "bare feat",
			input:    "Sicko Mode feat. Drake",
			expected: "Sicko Mode",
		},
		{
			name:     "bare featuring",
			input:    "Sing featuring Her",
			expected: "Sing",
		},
		{
			name:     "inner word untouched",
			input:    "Defeat the Odds",
			expected: "Defeat the Odds",
		},
		{
			name:     "no credit",
			input:    "Alright",
			expected: "Alright",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, StripFeaturingCredits(tt.input))
		})
	}
}

func TestNormalizeForCompare(t *testing.T) {
	assert.Equal(t, "hip hop", NormalizeForCompare("Hip-Hop"))
	assert.Equal(t, "hip hop", NormalizeForCompare("hip hop"))
	assert.Equal(t, "r b", NormalizeForCompare("R&B"))
	assert.Equal(t, "beyonce", NormalizeForCompare("Beyoncé"))
	assert.Equal(t, "m a a d city", NormalizeForCompare("m.A.A.d city"))
}

func TestSlugify(t *testing.T) {
	assert.Equal(t, "hip-hop", Slugify("Hip-Hop"))
	assert.Equal(t, "r-b", Slugify("R&B"))
	assert.Equal(t, "lo-fi-beats", Slugify("Lo-Fi  Beats"))
}
