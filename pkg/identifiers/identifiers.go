// Package identifiers normalizes and validates the standard recording
// identifiers that show up in provider payloads.
package identifiers

import (
	"regexp"
	"strings"
	"unicode"
)

// Type represents the type of identifier.
type Type string

const (
	TypeISRC    Type = "isrc"
	TypeUPC     Type = "upc"
	TypeEAN     Type = "ean"
	TypeUnknown Type = ""
)

// ISRC is two country letters, a three-character registrant, a two-digit
// year, and a five-digit designation.
var isrcRegex = regexp.MustCompile(`^[A-Z]{2}[A-Z0-9]{3}[0-9]{2}[0-9]{5}$`)

// DetectType determines the identifier type from a value. Hyphens and spaces
// are ignored; barcodes are only accepted when their check digit verifies.
func DetectType(value string) Type {
	normalized := NormalizeISRC(value)
	if isrcRegex.MatchString(normalized) {
		return TypeISRC
	}

	digits := digitsOnly(value)
	if len(digits) == 12 && ValidateBarcode(digits) {
		return TypeUPC
	}
	if len(digits) == 13 && ValidateBarcode(digits) {
		return TypeEAN
	}

	return TypeUnknown
}

// NormalizeISRC strips hyphens, spaces, and the optional "ISRC" prefix, and
// uppercases the rest. It does not validate; pair with ValidISRC.
func NormalizeISRC(value string) string {
	value = strings.ToUpper(strings.TrimSpace(value))
	value = strings.TrimPrefix(value, "ISRC:")
	value = strings.TrimPrefix(value, "ISRC")

	var result strings.Builder
	for _, r := range value {
		if unicode.IsDigit(r) || (r >= 'A' && r <= 'Z') {
			result.WriteRune(r)
		}
	}
	return result.String()
}

// ValidISRC reports whether value is a well-formed ISRC after normalization.
func ValidISRC(value string) bool {
	return isrcRegex.MatchString(NormalizeISRC(value))
}

// ValidateBarcode validates the GS1 check digit shared by UPC-A (12 digits)
// and EAN-13 (13 digits).
func ValidateBarcode(code string) bool {
	if len(code) != 12 && len(code) != 13 {
		return false
	}

	var sum int
	for i, r := range code[:len(code)-1] {
		if !unicode.IsDigit(r) {
			return false
		}
		digit := int(r - '0')
		// Weights alternate 3,1 from the digit next to the check digit.
		if (len(code)-i)%2 == 0 {
			sum += digit * 3
		} else {
			sum += digit
		}
	}

	check := int(code[len(code)-1] - '0')
	return (10-sum%10)%10 == check
}

func digitsOnly(value string) string {
	var result strings.Builder
	for _, r := range value {
		if unicode.IsDigit(r) {
			result.WriteRune(r)
		}
	}
	return result.String()
}
