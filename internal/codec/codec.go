// Package codec bridges JSON-shaped test fixture values and sandbox
// literal syntax, and defines the grading-grade equivalence relation.
//
// A value is one of: nil, bool, int/int64/float64, string, []any, or
// map[string]any, the shapes produced by decoding JSON or YAML fixtures
// and by decoding sandbox results.
package codec

import (
	"encoding/json"
	"fmt"
	"math"
	"reflect"
	"sort"
	"strconv"
	"strings"
)

// FloatEpsilon is the tolerance for non-integral numeric comparison.
// Changing it changes grading outcomes retroactively; treat as frozen.
const FloatEpsilon = 1e-4

// EncodeLiteral renders a value as a Starlark literal expression suitable
// for splicing directly into a function-call expression. No code runs here.
func EncodeLiteral(v any) (string, error) {
	switch x := v.(type) {
	case nil:
		return "None", nil
	case bool:
		if x {
			return "True", nil
		}
		return "False", nil
	case int:
		return strconv.Itoa(x), nil
	case int64:
		return strconv.FormatInt(x, 10), nil
	case float64:
		return strconv.FormatFloat(x, 'g', -1, 64), nil
	case json.Number:
		return x.String(), nil
	case string:
		return quote(x), nil
	case []any:
		parts := make([]string, len(x))
		for i, elem := range x {
			enc, err := EncodeLiteral(elem)
			if err != nil {
				return "", err
			}
			parts[i] = enc
		}
		return "[" + strings.Join(parts, ", ") + "]", nil
	case map[string]any:
		// Sorted keys keep the encoding deterministic.
		keys := make([]string, 0, len(x))
		for k := range x {
			keys = append(keys, k)
		}
		sort.Strings(keys)

		parts := make([]string, 0, len(keys))
		for _, k := range keys {
			enc, err := EncodeLiteral(x[k])
			if err != nil {
				return "", err
			}
			parts = append(parts, quote(k)+": "+enc)
		}
		return "{" + strings.Join(parts, ", ") + "}", nil
	default:
		return "", fmt.Errorf("codec: unsupported value type %T", v)
	}
}

// quote produces a double-quoted literal escaping backslash, quote,
// newline, carriage return and tab.
func quote(s string) string {
	var b strings.Builder
	b.Grow(len(s) + 2)
	b.WriteByte('"')
	for _, r := range s {
		switch r {
		case '\\':
			b.WriteString(`\\`)
		case '"':
			b.WriteString(`\"`)
		case '\n':
			b.WriteString(`\n`)
		case '\r':
			b.WriteString(`\r`)
		case '\t':
			b.WriteString(`\t`)
		default:
			b.WriteRune(r)
		}
	}
	b.WriteByte('"')
	return b.String()
}

// Equivalent reports whether an actual output matches the expected output
// under grading rules:
//
//   - numbers: exact if both integral, otherwise |a-b| < FloatEpsilon
//   - strings: equal after trimming leading/trailing whitespace
//   - lists: same length and pairwise equivalent, in order
//   - maps: same key set and equivalent per key, order-independent
//   - nil/nil: equivalent
//   - anything else: canonical JSON serialization equality, then strict
//     equality as the last resort
func Equivalent(actual, expected any) bool {
	if actual == nil && expected == nil {
		return true
	}

	an, aIsNum := toNumber(actual)
	en, eIsNum := toNumber(expected)
	if aIsNum && eIsNum {
		if an.integral && en.integral {
			return an.intVal == en.intVal
		}
		return math.Abs(an.floatVal-en.floatVal) < FloatEpsilon
	}

	if as, ok := actual.(string); ok {
		if es, ok := expected.(string); ok {
			return strings.TrimSpace(as) == strings.TrimSpace(es)
		}
	}

	if al, ok := actual.([]any); ok {
		if el, ok := expected.([]any); ok {
			if len(al) != len(el) {
				return false
			}
			for i := range al {
				if !Equivalent(al[i], el[i]) {
					return false
				}
			}
			return true
		}
	}

	if am, ok := actual.(map[string]any); ok {
		if em, ok := expected.(map[string]any); ok {
			if len(am) != len(em) {
				return false
			}
			for k, ev := range em {
				av, present := am[k]
				if !present || !Equivalent(av, ev) {
					return false
				}
			}
			return true
		}
	}

	// Structural fallback for type mismatches not covered above.
	aj, aErr := json.Marshal(actual)
	ej, eErr := json.Marshal(expected)
	if aErr == nil && eErr == nil {
		return string(aj) == string(ej)
	}

	return reflect.DeepEqual(actual, expected)
}

type number struct {
	integral bool
	intVal   int64
	floatVal float64
}

func toNumber(v any) (number, bool) {
	switch x := v.(type) {
	case int:
		return number{integral: true, intVal: int64(x), floatVal: float64(x)}, true
	case int64:
		return number{integral: true, intVal: x, floatVal: float64(x)}, true
	case float64:
		if x == math.Trunc(x) && math.Abs(x) < 1<<53 {
			return number{integral: true, intVal: int64(x), floatVal: x}, true
		}
		return number{floatVal: x}, true
	case json.Number:
		if i, err := x.Int64(); err == nil {
			return number{integral: true, intVal: i, floatVal: float64(i)}, true
		}
		if f, err := x.Float64(); err == nil {
			return number{floatVal: f}, true
		}
		return number{}, false
	default:
		return number{}, false
	}
}
