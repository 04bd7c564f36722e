package postgres

import (
	"fmt"
	"net/http"
	"regexp"
	"strings"

	"github.com/doug-martin/goqu/v9"
	_ "github.com/doug-martin/goqu/v9/dialect/postgres" // dialect registration
	"github.com/doug-martin/goqu/v9/exp"

	"github.com/muazhazali/lepakmasjid/internal/recordsource"
)

const (
	tableRecords    = "records"
	colID           = "id"
	colCollection   = "collection"
	colData         = "data"
	colPasswordHash = "password_hash"
	colCreated      = "created"
	colUpdated      = "updated"
	dialectPostgres = "postgres"
)

var dialect = goqu.Dialect(dialectPostgres)

var identPattern = regexp.MustCompile(`^[a-zA-Z_][a-zA-Z0-9_]*$`)

// columnFields are stored as real columns; everything else lives in data.
var columnFields = map[string]bool{colID: true, colCreated: true, colUpdated: true}

func badRequest(format string, args ...any) *recordsource.Error {
	return recordsource.NewError(http.StatusBadRequest, fmt.Sprintf(format, args...))
}

func checkField(field string) error {
	if !identPattern.MatchString(field) {
		return badRequest("invalid field %q", field)
	}
	return nil
}

// textField is the field as text, with missing values read as "".
func textField(field string) exp.LiteralExpression {
	if columnFields[field] {
		return goqu.L("COALESCE(?::text, '')", goqu.I(field))
	}
	return goqu.L("COALESCE(data->>(?::text), '')", field)
}

// typedField casts a data field to match the Go type of value.
func typedField(field string, value any) exp.LiteralExpression {
	if columnFields[field] {
		return goqu.L("?", goqu.I(field))
	}
	switch value.(type) {
	case int, int64, float64:
		return goqu.L("(data->>(?::text))::numeric", field)
	case bool:
		return goqu.L("(data->>(?::text))::boolean", field)
	default:
		return textField(field)
	}
}

func escapeLike(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return r.Replace(s)
}

// toExpression translates a filter expression into a goqu expression.
func toExpression(e recordsource.Expr) (exp.Expression, error) {
	switch v := e.(type) {
	case nil:
		return nil, nil
	case recordsource.And:
		return group(v, goqu.And)
	case recordsource.Or:
		return group(v, goqu.Or)
	case recordsource.Cond:
		if err := checkField(v.Field); err != nil {
			return nil, err
		}
		if v.Value == nil {
			null := goqu.L("data->(?::text)", v.Field)
			if columnFields[v.Field] {
				null = goqu.L("?", goqu.I(v.Field))
			}
			switch v.Op {
			case recordsource.OpEq:
				return null.IsNull(), nil
			case recordsource.OpNeq:
				return null.IsNotNull(), nil
			}
			return nil, badRequest("operator %s does not accept null", v.Op)
		}
		col := typedField(v.Field, v.Value)
		switch v.Op {
		case recordsource.OpEq:
			return col.Eq(v.Value), nil
		case recordsource.OpNeq:
			return col.Neq(v.Value), nil
		case recordsource.OpGte:
			return col.Gte(v.Value), nil
		case recordsource.OpLte:
			return col.Lte(v.Value), nil
		case recordsource.OpLike:
			return textField(v.Field).ILike("%" + escapeLike(fmt.Sprint(v.Value)) + "%"), nil
		}
		return nil, badRequest("unsupported operator %q", v.Op)
	default:
		return nil, badRequest("unsupported expression %T", e)
	}
}

func group[T ~[]recordsource.Expr](children T, join func(...exp.Expression) exp.ExpressionList) (exp.Expression, error) {
	parts := make([]exp.Expression, 0, len(children))
	for _, c := range children {
		if recordsource.IsEmpty(c) {
			continue
		}
		ex, err := toExpression(c)
		if err != nil {
			return nil, err
		}
		parts = append(parts, ex)
	}
	if len(parts) == 0 {
		return nil, nil
	}
	return join(parts...), nil
}

// toOrder translates "-created,name" into ORDER BY terms. Rows without a sort
// keep insertion order.
func toOrder(sort string) ([]exp.OrderedExpression, error) {
	var out []exp.OrderedExpression
	for _, f := range strings.Split(sort, ",") {
		f = strings.TrimSpace(f)
		if f == "" {
			continue
		}
		desc := strings.HasPrefix(f, "-")
		f = strings.TrimPrefix(strings.TrimPrefix(f, "-"), "+")
		if err := checkField(f); err != nil {
			return nil, err
		}
		var term exp.Orderable = goqu.L("data->(?::text)", f)
		if columnFields[f] {
			term = goqu.I(f)
		}
		if desc {
			out = append(out, term.Desc())
		} else {
			out = append(out, term.Asc())
		}
	}
	out = append(out, goqu.I(colCreated).Asc(), goqu.I(colID).Asc())
	return out, nil
}

// baseQuery selects one collection narrowed by filter.
func baseQuery(collection string, filter recordsource.Expr) (*goqu.SelectDataset, error) {
	ds := dialect.From(tableRecords).Prepared(true).Where(goqu.C(colCollection).Eq(collection))
	where, err := toExpression(filter)
	if err != nil {
		return nil, err
	}
	if where != nil {
		ds = ds.Where(where)
	}
	return ds, nil
}

func buildCountQuery(collection string, filter recordsource.Expr) (string, []any, error) {
	ds, err := baseQuery(collection, filter)
	if err != nil {
		return "", nil, err
	}
	return ds.Select(goqu.COUNT(goqu.Star())).ToSQL()
}

func buildListQuery(collection string, page, perPage int, opts recordsource.ListOptions) (string, []any, error) {
	ds, err := baseQuery(collection, opts.Filter)
	if err != nil {
		return "", nil, err
	}
	order, err := toOrder(opts.Sort)
	if err != nil {
		return "", nil, err
	}
	return ds.Select(colID, colData, colCreated, colUpdated).
		Order(order...).
		Limit(uint(perPage)).
		Offset(uint((page - 1) * perPage)).
		ToSQL()
}

func buildGetQuery(collection string, ids []string) (string, []any, error) {
	return dialect.From(tableRecords).Prepared(true).
		Select(colID, colData, colCreated, colUpdated).
		Where(goqu.C(colCollection).Eq(collection), goqu.C(colID).In(ids)).
		ToSQL()
}
