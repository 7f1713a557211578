package identifiers

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDetectType(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected Type
	}{
		{name: "isrc", input: "USRC17607839", expected: TypeISRC},
		{name: "isrc with hyphens", input: "US-RC1-76-07839", expected: TypeISRC},
		{name: "isrc with prefix", input: "ISRC USRC17607839", expected: TypeISRC},
		{name: "upc", input: "036000291452", expected: TypeUPC},
		{name: "ean", input: "4006381333931", expected: TypeEAN},
		{name: "upc bad check digit", input: "036000291453", expected: TypeUnknown},
		{name: "too short", input: "12345", expected: TypeUnknown},
		{name: "empty", input: "", expected: TypeUnknown},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			assert.Equal(t, test.expected, DetectType(test.input))
		})
	}
}

func TestNormalizeISRC(t *testing.T) {
	assert.Equal(t, "USRC17607839", NormalizeISRC("us-rc1-76-07839"))
	assert.Equal(t, "USRC17607839", NormalizeISRC("ISRC: USRC17607839"))
	assert.Equal(t, "", NormalizeISRC(""))
}

func TestValidISRC(t *testing.T) {
	assert.True(t, ValidISRC("USRC17607839"))
	assert.True(t, ValidISRC("GB-AYE-68-00001"))
	assert.False(t, ValidISRC("USRC1760783"))
	assert.False(t, ValidISRC("12345678901234"))
}
