// Package email derives presentation data from email addresses.
package email

import (
	"strings"
	"unicode"
)

const fallbackName = "Client"

// DisplayName builds a human name from the local part of addr:
// "jean-pierre.martin+devis@x.fr" gives "Jean Pierre Martin". Sub-addressing
// after '+' is dropped.
func DisplayName(addr string) string {
	local := addr
	if at := strings.LastIndexByte(addr, '@'); at >= 0 {
		local = addr[:at]
	}
	if plus := strings.IndexByte(local, '+'); plus >= 0 {
		local = local[:plus]
	}

	words := strings.FieldsFunc(local, func(r rune) bool {
		return r == '.' || r == '_' || r == '-' || unicode.IsDigit(r)
	})
	if len(words) == 0 {
		return fallbackName
	}
	for i, w := range words {
		words[i] = title(w)
	}
	return strings.Join(words, " ")
}

func title(w string) string {
	runes := []rune(strings.ToLower(w))
	runes[0] = unicode.ToUpper(runes[0])
	return string(runes)
}
