// Package sortname generates catalog sort names. Leading articles are
// rotated to the end ("The Beatles" -> "Beatles, The") so browse lists
// collate the way record-store bins do.
package sortname

import (
	"strings"
)

// Articles are rotated from the beginning of a name to its end. The list
// covers English plus the articles that show up most in imported catalogs.
var Articles = []string{
	"The",
	"A",
	"An",
	"Los",
	"Las",
	"Les",
	"Le",
	"La",
	"El",
	"Die",
	"Der",
	"Das",
}

// ForArtist returns the sort name for an artist or band name. Whitespace is
// collapsed, and a leading article is moved to the end after a comma. Names
// that are nothing but an article are returned as-is.
func ForArtist(name string) string {
	cleaned := strings.Join(strings.Fields(name), " ")
	if cleaned == "" {
		return ""
	}

	for _, article := range Articles {
		prefix := article + " "
		if len(cleaned) > len(prefix) && strings.EqualFold(cleaned[:len(prefix)], prefix) {
			return cleaned[len(prefix):] + ", " + cleaned[:len(article)]
		}
	}

	return cleaned
}
