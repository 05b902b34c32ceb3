package extractor

import (
	"fmt"
	"strconv"
	"strings"
	"unicode"
)

// currencySymbols maps symbols embedded in price cells to currency codes,
// in a fixed match order so extraction stays deterministic.
var currencySymbols = []struct {
	symbol string
	code   Currency
}{
	{"$", CurrencyUSD},
	{"₽", CurrencyRUB},
	{"¥", CurrencyCNY},
	{"元", CurrencyCNY},
	{"د.إ", CurrencyAED},
}

// currencyWords maps textual currency designations (currency column values
// and suffixes inside price cells) to codes. More specific words first.
var currencyWords = []struct {
	word string
	code Currency
}{
	{"доллар", CurrencyUSD}, {"usd", CurrencyUSD}, {"дол", CurrencyUSD},
	{"дирхам", CurrencyAED}, {"aed", CurrencyAED}, {"dhs", CurrencyAED},
	{"руб", CurrencyRUB}, {"rub", CurrencyRUB}, {"р.", CurrencyRUB},
	{"юан", CurrencyCNY}, {"cny", CurrencyCNY}, {"rmb", CurrencyCNY},
}

// parseCurrencyWord resolves a currency column value to a code. Empty input
// and unrecognized designations both return "".
func parseCurrencyWord(s string) Currency {
	norm := normalizeLabel(s)
	if norm == "" {
		return ""
	}
	for _, sc := range currencySymbols {
		if strings.Contains(norm, sc.symbol) {
			return sc.code
		}
	}
	for _, wc := range currencyWords {
		if strings.Contains(norm, wc.word) {
			return wc.code
		}
	}
	return ""
}

// decimalParse is the outcome of parsing one numeric cell: the value (nil on
// failure), any currency detected inside the cell, and whether the cell held
// a currency-like symbol the extractor does not know.
type decimalParse struct {
	value         *float64
	currency      Currency
	unknownSymbol string
	failed        bool
}

// parseDecimal extracts a non-negative decimal from a raw cell. It strips
// whitespace (including NBSP), thousands separators and currency symbols, and
// accepts both comma and dot decimal separators. A cell that cannot be read
// as a number yields failed=true; the caller records a warning and keeps the
// field null instead of substituting zero.
func parseDecimal(raw string) decimalParse {
	var out decimalParse

	s := strings.TrimSpace(raw)
	if s == "" {
		out.failed = true
		return out
	}

	// Pull out currency designations before touching the digits.
	for _, sc := range currencySymbols {
		if strings.Contains(s, sc.symbol) {
			if out.currency == "" {
				out.currency = sc.code
			}
			s = strings.ReplaceAll(s, sc.symbol, "")
		}
	}
	if out.currency == "" {
		if cur := parseCurrencyWord(s); cur != "" {
			out.currency = cur
			// Drop alphabetic currency designations; digits survive below.
		}
	}

	var num []rune
	for _, r := range s {
		switch {
		case r >= '0' && r <= '9' || r == '.' || r == ',' || r == '\'':
			num = append(num, r)
		case unicode.IsSpace(r) || r == ' ' || r == ' ':
			// thousands separators in RU locale formatting
		case unicode.IsLetter(r):
			// unit suffixes ("шт", "pcs") and currency words ride along with
			// the number; a cell with no digits at all still fails below
		case unicode.IsSymbol(r):
			// a currency-like symbol we did not recognize
			out.unknownSymbol = string(r)
		case r == '-':
			// negative prices and quantities are never legitimate here
			out.failed = true
			return out
		default:
			out.failed = true
			return out
		}
	}
	if len(num) == 0 {
		out.failed = true
		return out
	}

	cleaned := normalizeSeparators(string(num))
	v, err := strconv.ParseFloat(cleaned, 64)
	if err != nil || v < 0 {
		out.failed = true
		return out
	}
	out.value = &v
	return out
}

// normalizeSeparators reduces mixed thousands/decimal punctuation to a plain
// dot-decimal form. When both separators appear the rightmost one is the
// decimal point; a lone comma is decimal unless it groups digits by threes.
func normalizeSeparators(s string) string {
	s = strings.ReplaceAll(s, "'", "")

	lastDot := strings.LastIndex(s, ".")
	lastComma := strings.LastIndex(s, ",")

	switch {
	case lastDot >= 0 && lastComma >= 0:
		if lastComma > lastDot {
			s = strings.ReplaceAll(s, ".", "")
			s = strings.Replace(s, ",", ".", -1)
			s = removeAllButLast(s, '.')
		} else {
			s = strings.ReplaceAll(s, ",", "")
			s = removeAllButLast(s, '.')
		}
	case lastComma >= 0:
		if isGroupedByThrees(s, ',') {
			s = strings.ReplaceAll(s, ",", "")
		} else {
			s = removeAllButLast(strings.ReplaceAll(s, ",", "."), '.')
		}
	case lastDot >= 0:
		if isGroupedByThrees(s, '.') {
			s = strings.ReplaceAll(s, ".", "")
		} else {
			s = removeAllButLast(s, '.')
		}
	}
	return s
}

// removeAllButLast strips every occurrence of sep except the final one.
func removeAllButLast(s string, sep byte) string {
	last := strings.LastIndexByte(s, sep)
	if last < 0 {
		return s
	}
	head := strings.ReplaceAll(s[:last], string(sep), "")
	return head + s[last:]
}

// isGroupedByThrees reports whether sep splits the digits into a leading
// group of 1-3 followed by groups of exactly 3, i.e. thousands formatting
// like 1,234,567. A trailing 2-digit group ("1,23") is a decimal instead.
func isGroupedByThrees(s string, sep byte) bool {
	parts := strings.Split(s, string(sep))
	if len(parts) < 2 {
		return false
	}
	if len(parts[0]) == 0 || len(parts[0]) > 3 {
		return false
	}
	for _, p := range parts[1:] {
		if len(p) != 3 {
			return false
		}
	}
	return true
}

// parseQuantity reads a non-negative integer quantity; fractional values are
// rejected rather than rounded.
func parseQuantity(raw string) (*int, error) {
	p := parseDecimal(raw)
	if p.failed || p.value == nil {
		return nil, fmt.Errorf("not a number: %q", raw)
	}
	v := *p.value
	n := int(v)
	if float64(n) != v {
		return nil, fmt.Errorf("not an integer: %q", raw)
	}
	return &n, nil
}
