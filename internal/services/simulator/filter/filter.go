// Package filter translates AIP-160 session filters into SQL.
package filter

import (
	"fmt"
	"strings"

	"go.einride.tech/aip/filtering"
	expr "google.golang.org/genproto/googleapis/api/expr/v1alpha1"
)

// SQLCondition is a WHERE fragment with positional parameters.
type SQLCondition struct {
	Clause string
	Params []any
}

// Empty reports whether the condition matches everything.
func (c SQLCondition) Empty() bool {
	return c.Clause == ""
}

// sessionColumns maps filter fields to session table columns.
var sessionColumns = map[string]string{
	"index":        "idx",
	"major_count":  "major_count",
	"minor_count":  "minor_count",
	"final_coins":  "final_coins",
	"invested_yen": "invested_yen",
	"diff_coins":   "diff_coins",
	"profit_yen":   "profit_yen",
}

var comparisons = map[string]string{
	filtering.FunctionEquals:        "=",
	filtering.FunctionNotEquals:     "!=",
	filtering.FunctionLessThan:      "<",
	filtering.FunctionLessEquals:    "<=",
	filtering.FunctionGreaterThan:   ">",
	filtering.FunctionGreaterEquals: ">=",
}

// Fields lists the filterable session fields.
func Fields() []string {
	return []string{"index", "major_count", "minor_count", "final_coins", "invested_yen", "diff_coins", "profit_yen"}
}

func sessionDeclarations() (*filtering.Declarations, error) {
	opts := []filtering.DeclarationOption{filtering.DeclareStandardFunctions()}
	for _, field := range Fields() {
		opts = append(opts, filtering.DeclareIdent(field, filtering.TypeInt))
	}
	return filtering.NewDeclarations(opts...)
}

// ParseSessionFilter parses a filter such as
// "major_count >= 30 AND profit_yen > 0". An empty filter yields an empty
// condition.
func ParseSessionFilter(raw string) (SQLCondition, error) {
	if strings.TrimSpace(raw) == "" {
		return SQLCondition{}, nil
	}
	decls, err := sessionDeclarations()
	if err != nil {
		return SQLCondition{}, fmt.Errorf("create declarations: %w", err)
	}
	parsed, err := filtering.ParseFilterString(raw, decls)
	if err != nil {
		return SQLCondition{}, fmt.Errorf("parse filter: %w", err)
	}
	if parsed.CheckedExpr == nil {
		return SQLCondition{}, nil
	}
	return translate(parsed.CheckedExpr.GetExpr())
}

func translate(e *expr.Expr) (SQLCondition, error) {
	if e == nil {
		return SQLCondition{}, nil
	}
	call, ok := e.GetExprKind().(*expr.Expr_CallExpr)
	if !ok {
		return SQLCondition{}, fmt.Errorf("unsupported expression %T", e.GetExprKind())
	}
	fn := call.CallExpr.GetFunction()
	args := call.CallExpr.GetArgs()

	switch fn {
	case filtering.FunctionAnd, filtering.FunctionOr:
		return translateLogical(fn, args)
	case filtering.FunctionNot:
		if len(args) != 1 {
			return SQLCondition{}, fmt.Errorf("NOT requires 1 argument")
		}
		inner, err := translate(args[0])
		if err != nil {
			return SQLCondition{}, err
		}
		return SQLCondition{Clause: "NOT (" + inner.Clause + ")", Params: inner.Params}, nil
	}
	if op, ok := comparisons[fn]; ok {
		return translateComparison(op, args)
	}
	return SQLCondition{}, fmt.Errorf("unsupported function %s", fn)
}

func translateLogical(fn string, args []*expr.Expr) (SQLCondition, error) {
	if len(args) < 2 {
		return SQLCondition{}, fmt.Errorf("%s requires at least 2 arguments", fn)
	}
	clauses := make([]string, 0, len(args))
	var params []any
	for _, arg := range args {
		part, err := translate(arg)
		if err != nil {
			return SQLCondition{}, err
		}
		clauses = append(clauses, part.Clause)
		params = append(params, part.Params...)
	}
	return SQLCondition{
		Clause: "(" + strings.Join(clauses, " "+fn+" ") + ")",
		Params: params,
	}, nil
}

func translateComparison(op string, args []*expr.Expr) (SQLCondition, error) {
	if len(args) != 2 {
		return SQLCondition{}, fmt.Errorf("comparison requires 2 arguments")
	}
	ident, ok := args[0].GetExprKind().(*expr.Expr_IdentExpr)
	if !ok {
		return SQLCondition{}, fmt.Errorf("left side of %s must be a field", op)
	}
	column, ok := sessionColumns[ident.IdentExpr.GetName()]
	if !ok {
		return SQLCondition{}, fmt.Errorf("unknown field %s", ident.IdentExpr.GetName())
	}
	value, err := constant(args[1])
	if err != nil {
		return SQLCondition{}, err
	}
	return SQLCondition{Clause: column + " " + op + " ?", Params: []any{value}}, nil
}

func constant(e *expr.Expr) (int64, error) {
	c, ok := e.GetExprKind().(*expr.Expr_ConstExpr)
	if !ok {
		return 0, fmt.Errorf("right side must be a constant, got %T", e.GetExprKind())
	}
	switch v := c.ConstExpr.GetConstantKind().(type) {
	case *expr.Constant_Int64Value:
		return v.Int64Value, nil
	case *expr.Constant_Uint64Value:
		return int64(v.Uint64Value), nil
	default:
		return 0, fmt.Errorf("unsupported constant %T", v)
	}
}
