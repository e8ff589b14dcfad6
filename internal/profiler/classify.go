package profiler

import (
	"strconv"
	"strings"
	"time"
)

// candidate pairs a type with its strict value grammar. Order is the
// classification precedence; TEXT is the implicit fallback and has no entry.
type candidate struct {
	typ   DataType
	match func(string) bool
}

var candidates = []candidate{
	{TypeBoolean, isBoolean},
	{TypeInteger, isInteger},
	{TypeFloat, isFloat},
	{TypeDate, isDate},
	{TypeTime, isTime},
	{TypeDateTime, isDateTime},
}

// Classify returns the most specific type whose grammar every non-empty
// value satisfies. Empty strings are skipped; a single malformed value
// disqualifies a candidate for the whole column. An empty or all-empty
// sample yields TEXT.
func Classify(values []string) DataType {
	alive := make([]bool, len(candidates))
	for i := range alive {
		alive[i] = true
	}

	var seen bool
	for _, v := range values {
		if v == "" {
			continue
		}
		seen = true

		remaining := 0
		for i, c := range candidates {
			if !alive[i] {
				continue
			}
			if !c.match(v) {
				alive[i] = false
				continue
			}
			remaining++
		}
		if remaining == 0 {
			return TypeText
		}
	}

	if !seen {
		return TypeText
	}
	for i, c := range candidates {
		if alive[i] {
			return c.typ
		}
	}
	return TypeText
}

// booleanTokens is the fixed, case-insensitive token set for BOOLEAN. Bare
// "y"/"n" are deliberately absent: single letters are too common as category
// codes to treat as truth values.
var booleanTokens = map[string]bool{
	"true": true, "false": false,
	"1": true, "0": false,
	"yes": true, "no": false,
}

func isBoolean(v string) bool {
	_, ok := booleanTokens[strings.ToLower(v)]
	return ok
}

func isInteger(v string) bool {
	_, err := strconv.ParseInt(v, 10, 64)
	return err == nil
}

// isFloat accepts decimal and exponent forms. The character whitelist keeps
// strconv's extended syntax (hex floats, "Inf", "NaN") out of the grammar.
func isFloat(v string) bool {
	hasDigit := false
	for i := 0; i < len(v); i++ {
		switch c := v[i]; {
		case c >= '0' && c <= '9':
			hasDigit = true
		case c == '+' || c == '-' || c == '.' || c == 'e' || c == 'E':
		default:
			return false
		}
	}
	if !hasDigit {
		return false
	}
	_, err := strconv.ParseFloat(v, 64)
	return err == nil
}

const (
	dateLayout     = "2006-01-02"
	timeLayout     = "15:04:05"
	dateTimeLayout = "2006-01-02T15:04:05"
)

func isDate(v string) bool {
	if len(v) != len(dateLayout) {
		return false
	}
	_, err := time.Parse(dateLayout, v)
	return err == nil
}

func isTime(v string) bool {
	if len(v) != len(timeLayout) {
		return false
	}
	_, err := time.Parse(timeLayout, v)
	return err == nil
}

// isDateTime matches YYYY-MM-DDTHH:MM:SS with an optional sub-second or
// timezone suffix. The suffix is accepted verbatim and not validated beyond
// its leading character.
func isDateTime(v string) bool {
	if len(v) < len(dateTimeLayout) {
		return false
	}
	if v[10] != 'T' {
		return false
	}
	if _, err := time.Parse(dateTimeLayout, v[:len(dateTimeLayout)]); err != nil {
		return false
	}
	if len(v) == len(dateTimeLayout) {
		return true
	}
	switch v[len(dateTimeLayout)] {
	case '.', 'Z', '+', '-':
		return true
	}
	return false
}
