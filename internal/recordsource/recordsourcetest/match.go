package recordsourcetest

import (
	"fmt"
	"strings"

	"github.com/muazhazali/lepakmasjid/internal/recordsource"
)

// Match evaluates a filter expression against a stored document. A nil
// expression matches everything; a missing field compares as "".
func Match(e recordsource.Expr, doc map[string]any) bool {
	switch v := e.(type) {
	case nil:
		return true
	case recordsource.And:
		for _, c := range v {
			if !Match(c, doc) {
				return false
			}
		}
		return true
	case recordsource.Or:
		if recordsource.IsEmpty(v) {
			return true
		}
		for _, c := range v {
			if !recordsource.IsEmpty(c) && Match(c, doc) {
				return true
			}
		}
		return false
	case recordsource.Cond:
		got := doc[v.Field]
		switch v.Op {
		case recordsource.OpEq:
			return compare(got, v.Value) == 0
		case recordsource.OpNeq:
			return compare(got, v.Value) != 0
		case recordsource.OpLike:
			return strings.Contains(strings.ToLower(toString(got)), strings.ToLower(toString(v.Value)))
		case recordsource.OpGte:
			return compare(got, v.Value) >= 0
		case recordsource.OpLte:
			return compare(got, v.Value) <= 0
		}
	}
	return false
}

func toString(v any) string {
	switch x := v.(type) {
	case nil:
		return ""
	case string:
		return x
	default:
		return fmt.Sprint(x)
	}
}

func toFloat(v any) (float64, bool) {
	switch x := v.(type) {
	case float64:
		return x, true
	case int:
		return float64(x), true
	case int64:
		return float64(x), true
	default:
		return 0, false
	}
}

// compare orders numbers numerically, booleans false<true and everything else
// as strings.
func compare(a, b any) int {
	if fa, ok := toFloat(a); ok {
		if fb, ok := toFloat(b); ok {
			switch {
			case fa < fb:
				return -1
			case fa > fb:
				return 1
			default:
				return 0
			}
		}
	}
	if ba, ok := a.(bool); ok {
		if bb, ok := b.(bool); ok {
			switch {
			case ba == bb:
				return 0
			case !ba:
				return -1
			default:
				return 1
			}
		}
	}
	return strings.Compare(toString(a), toString(b))
}
