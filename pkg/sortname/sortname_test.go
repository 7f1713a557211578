package sortname

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestForArtist(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{name: "rotates the", input: "The Beatles", expected: "Beatles, The"},
		{name: "rotates a", input: "A Tribe Called Quest", expected: "Tribe Called Quest, A"},
		{name: "rotates an", input: "An Horse", expected: "Horse, An"},
		{name: "rotates spanish article", input: "Los Lobos", expected: "Lobos, Los"},
		{name: "rotates german article", input: "Die Toten Hosen", expected: "Toten Hosen, Die"},
		{name: "case insensitive match keeps original casing", input: "the beatles", expected: "beatles, the"},
		{name: "no article", input: "Radiohead", expected: "Radiohead"},
		{name: "article in the middle untouched", input: "Florence and The Machine", expected: "Florence and The Machine"},
		{name: "article prefix of a word untouched", input: "Theophilus London", expected: "Theophilus London"},
		{name: "name that is only an article", input: "The", expected: "The"},
		{name: "collapses whitespace", input: "  The   Beatles  ", expected: "Beatles, The"},
		{name: "empty", input: "", expected: ""},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			assert.Equal(t, test.expected, ForArtist(test.input))
		})
	}
}
