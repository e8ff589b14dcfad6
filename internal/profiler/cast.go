package profiler

import (
	"fmt"
	"strconv"
	"strings"
)

// CastSuffix is appended to a source column name to form its cast column.
const CastSuffix = "_cast"

// castValue converts a raw textual value to the native representation of the
// inferred type. The empty string is a missing value and casts to nil for
// every type. ok=false means the value failed the type's grammar and the
// caller should write NULL instead.
//
// Native representations: INTEGER int64, FLOAT float64, BOOLEAN bool,
// DATE/TIME/DATETIME validated canonical strings, TEXT the original string.
func castValue(v string, t DataType) (any, bool) {
	if v == "" {
		return nil, true
	}

	switch t {
	case TypeInteger:
		n, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return nil, false
		}
		return n, true

	case TypeFloat:
		if !isFloat(v) {
			return nil, false
		}
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return nil, false
		}
		return f, true

	case TypeBoolean:
		b, ok := booleanTokens[strings.ToLower(v)]
		if !ok {
			return nil, false
		}
		return b, true

	case TypeDate:
		if !isDate(v) {
			return nil, false
		}
		return v, true

	case TypeTime:
		if !isTime(v) {
			return nil, false
		}
		return v, true

	case TypeDateTime:
		if !isDateTime(v) {
			return nil, false
		}
		return v, true

	default:
		return v, true
	}
}

// CastColumnName derives the cast column name for a source column. When the
// plain "<col>_cast" name collides with another source column, a numeric
// disambiguator is appended ("_cast2", "_cast3", ...), first free wins. The
// result is deterministic for a given column list.
func CastColumnName(column string, sourceColumns []string) string {
	taken := make(map[string]bool, len(sourceColumns))
	for _, c := range sourceColumns {
		taken[c] = true
	}

	name := column + CastSuffix
	if !taken[name] {
		return name
	}
	for i := 2; ; i++ {
		name = fmt.Sprintf("%s%s%d", column, CastSuffix, i)
		if !taken[name] {
			return name
		}
	}
}
