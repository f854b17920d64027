// file: internal/isbn/isbn.go
// version: 1.0.0
// guid: 7c2d4e6f-8a1b-4c3d-9e5f-0a2b4c6d8e1f

package isbn

import (
	"regexp"
	"strings"
)

var (
	isbn10Re         = regexp.MustCompile(`^\d{9}[\dX]$`)
	isbn13Re         = regexp.MustCompile(`^\d{13}$`)
	isbn13FilenameRe = regexp.MustCompile(`\b(97[89]\d{10})\b`)
	isbn10FilenameRe = regexp.MustCompile(`\b(\d{9}[\dX])\b`)
)

// Clean strips urn/scheme prefixes, hyphens and whitespace from an ISBN
// string and upper-cases a trailing check character.
func Clean(value string) string {
	if value == "" {
		return ""
	}
	cleaned := strings.ToLower(strings.TrimSpace(value))
	cleaned = strings.ReplaceAll(cleaned, "urn:isbn:", "")
	cleaned = strings.ReplaceAll(cleaned, "isbn:", "")
	cleaned = strings.ReplaceAll(cleaned, "-", "")
	cleaned = strings.ReplaceAll(cleaned, " ", "")
	return strings.ToUpper(cleaned)
}

// FromFilename tries to find an ISBN embedded in a file name. ISBN-13 forms
// (978/979 prefix) win over ISBN-10 forms.
func FromFilename(filename string) string {
	if m := isbn13FilenameRe.FindString(filename); m != "" {
		return m
	}
	if m := isbn10FilenameRe.FindString(strings.ToUpper(filename)); m != "" {
		return m
	}
	return ""
}

// IsValid reports whether the string is a checksum-valid ISBN-10 or ISBN-13.
func IsValid(value string) bool {
	s := Clean(value)
	switch len(s) {
	case 10:
		if !isbn10Re.MatchString(s) {
			return false
		}
		total := 0
		for i := 0; i < 9; i++ {
			total += int(s[i]-'0') * (10 - i)
		}
		if s[9] == 'X' {
			total += 10
		} else {
			total += int(s[9] - '0')
		}
		return total%11 == 0
	case 13:
		if !isbn13Re.MatchString(s) {
			return false
		}
		return checkDigit13(s[:12]) == s[12]
	default:
		return false
	}
}

// To13 converts an ISBN-10 to its 978-prefixed ISBN-13 equivalent. Returns
// "" when the input is not a 10-character ISBN.
func To13(isbn10 string) string {
	s := Clean(isbn10)
	if len(s) != 10 {
		return ""
	}
	base := "978" + s[:9]
	return base + string(checkDigit13(base))
}

// checkDigit13 computes the ISBN-13 check digit for a 12-digit prefix using
// the alternating 1x/3x weighted sum mod 10.
func checkDigit13(prefix string) byte {
	total := 0
	for i := 0; i < 12; i++ {
		v := int(prefix[i] - '0')
		if i%2 == 1 {
			v *= 3
		}
		total += v
	}
	return byte('0' + (10-total%10)%10)
}
