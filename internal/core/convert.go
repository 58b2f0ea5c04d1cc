package core

import (
	"regexp"
	"strings"
	"time"
	"unicode/utf8"
)

// dateLayouts are the accepted input formats, most common first.
// Day and month may come with or without a leading zero, separated by
// slash or dash.
var dateLayouts = []string{
	"02/01/2006",
	"2/1/2006",
	"02-01-2006",
	"2-1-2006",
	"2006-01-02",
}

// decimalRegex validates a normalized decimal string.
var decimalRegex = regexp.MustCompile(`^[+-]?(\d+(\.\d*)?|\.\d+)$`)

// ParseDate converts a dd/mm/yyyy cell to ISO yyyy-mm-dd.
//
// An empty cell is valid and yields "". A malformed cell yields
// ("", false) so callers can choose between lenient (treat as absent)
// and strict (reject the row) handling.
func ParseDate(raw string) (string, bool) {
	s := CleanCell(raw)
	if s == "" {
		return "", true
	}
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.Format("2006-01-02"), true
		}
	}
	return "", false
}

// ParseDecimal normalizes a decimal cell to dot notation.
//
// Comma decimal separators are converted to dots ("1.234,56" is not
// supported; thousands separators must not appear in the file). The
// ok result follows the same lenient/strict contract as ParseDate.
func ParseDecimal(raw string) (string, bool) {
	s := CleanCell(raw)
	if s == "" {
		return "", true
	}
	s = strings.ReplaceAll(s, ",", ".")
	if !decimalRegex.MatchString(s) {
		return "", false
	}
	return s, true
}

// truthy and falsy accept the boolean spellings seen in real files.
var (
	truthy = map[string]bool{"1": true, "true": true, "sí": true, "si": true, "yes": true, "verdadero": true}
	falsy  = map[string]bool{"0": true, "false": true, "no": true, "falso": true, "": true}
)

// ParseBool normalizes a boolean cell to "1" or "0" for storage.
// Empty cells normalize to "0". Unrecognized spellings yield ok=false.
func ParseBool(raw string) (string, bool) {
	s := strings.ToLower(CleanCell(raw))
	if truthy[s] {
		return "1", true
	}
	if falsy[s] {
		return "0", true
	}
	return "", false
}

// CleanCell trims surrounding whitespace and a UTF-8 BOM from a cell.
func CleanCell(s string) string {
	s = strings.TrimPrefix(s, "\uFEFF")
	return strings.TrimSpace(s)
}

// NormalizeName folds a natural key for comparison: trimmed, lowered.
// It matches the store's lower(btrim(..)) SQL matching.
func NormalizeName(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

// sanitizeUTF8 replaces invalid byte sequences so downstream JSON and
// database writes never choke on a bad file encoding.
func sanitizeUTF8(s string) string {
	if utf8.ValidString(s) {
		return s
	}
	return strings.ToValidUTF8(s, "�")
}
