package recordsource

import (
	"fmt"
	"strconv"
	"strings"
)

// Op is a comparison operator of the filter sublanguage.
type Op string

const (
	OpEq   Op = "="
	OpNeq  Op = "!="
	OpLike Op = "~"
	OpGte  Op = ">="
	OpLte  Op = "<="
)

// Expr is a structured filter expression. Values are always carried separately
// from field names so user input never becomes filter syntax.
type Expr interface {
	isExpr()
}

// Cond compares one field against a literal value.
type Cond struct {
	Field string
	Op    Op
	Value any
}

// And matches when every child matches.
type And []Expr

// Or matches when any child matches.
type Or []Expr

func (Cond) isExpr() {}
func (And) isExpr()  {}
func (Or) isExpr()   {}

func Eq(field string, value any) Cond   { return Cond{Field: field, Op: OpEq, Value: value} }
func Neq(field string, value any) Cond  { return Cond{Field: field, Op: OpNeq, Value: value} }
func Like(field string, value any) Cond { return Cond{Field: field, Op: OpLike, Value: value} }
func Gte(field string, value any) Cond  { return Cond{Field: field, Op: OpGte, Value: value} }
func Lte(field string, value any) Cond  { return Cond{Field: field, Op: OpLte, Value: value} }

// AnyOf builds (field = v1 || field = v2 ...).
func AnyOf(field string, values []string) Or {
	or := make(Or, 0, len(values))
	for _, v := range values {
		or = append(or, Eq(field, v))
	}
	return or
}

// AllOf drops nil and empty children. It returns nil when nothing is left and
// the single child when only one is left.
func AllOf(exprs ...Expr) Expr {
	out := make(And, 0, len(exprs))
	for _, e := range exprs {
		if !IsEmpty(e) {
			out = append(out, e)
		}
	}
	switch len(out) {
	case 0:
		return nil
	case 1:
		return out[0]
	default:
		return out
	}
}

// IsEmpty reports whether e matches everything.
func IsEmpty(e Expr) bool {
	switch v := e.(type) {
	case nil:
		return true
	case And:
		for _, c := range v {
			if !IsEmpty(c) {
				return false
			}
		}
		return true
	case Or:
		for _, c := range v {
			if !IsEmpty(c) {
				return false
			}
		}
		return true
	default:
		return false
	}
}

// Render prints e in the PocketBase filter sublanguage, e.g.
//
//	state = "Selangor" && (name ~ "biru" || address ~ "biru")
//
// A top level And is not parenthesised; every nested group and every Or is.
func Render(e Expr) string {
	return render(e, true)
}

func render(e Expr, top bool) string {
	switch v := e.(type) {
	case nil:
		return ""
	case Cond:
		return v.Field + " " + string(v.Op) + " " + Literal(v.Value)
	case And:
		s := joinRendered([]Expr(v), " && ")
		if top || s == "" || len(nonEmpty(v)) == 1 {
			return s
		}
		return "(" + s + ")"
	case Or:
		s := joinRendered([]Expr(v), " || ")
		if s == "" || (top && len(nonEmpty(v)) == 1) {
			return s
		}
		return "(" + s + ")"
	default:
		panic(fmt.Sprintf("recordsource: unknown expression %T", e))
	}
}

func nonEmpty(exprs []Expr) []Expr {
	out := exprs[:0:0]
	for _, e := range exprs {
		if !IsEmpty(e) {
			out = append(out, e)
		}
	}
	return out
}

func joinRendered(exprs []Expr, sep string) string {
	parts := make([]string, 0, len(exprs))
	for _, e := range nonEmpty(exprs) {
		parts = append(parts, render(e, false))
	}
	return strings.Join(parts, sep)
}

// Literal renders a value as a filter literal. Strings are double quoted with
// backslashes and quotes escaped.
func Literal(v any) string {
	switch x := v.(type) {
	case nil:
		return "null"
	case string:
		return `"` + escapeString(x) + `"`
	case bool:
		return strconv.FormatBool(x)
	case int:
		return strconv.Itoa(x)
	case int64:
		return strconv.FormatInt(x, 10)
	case float64:
		return strconv.FormatFloat(x, 'f', -1, 64)
	case fmt.Stringer:
		return `"` + escapeString(x.String()) + `"`
	default:
		return `"` + escapeString(fmt.Sprint(x)) + `"`
	}
}

func escapeString(s string) string {
	s = strings.ReplaceAll(s, `\`, `\\`)
	return strings.ReplaceAll(s, `"`, `\"`)
}
