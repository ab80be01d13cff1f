package tpspace

import "github.com/Knetic/govaluate"

// exprEnv is the named-variable environment user-supplied PTG expressions
// (expr_V, expr_W, expr_T_ramp) are evaluated against. Unlike the reference
// implementation's embedded exprtk, which binds variables in place behind a
// shared mutable table, each evaluation here builds a fresh immutable map and
// hands it to govaluate by value: concurrent PTG instances never share
// mutable evaluator state.
type exprEnv map[string]interface{}

// compileExpr parses a user-supplied expression string once, at PTG
// construction time, so evaluation on the hot path never re-parses.
func compileExpr(src string) (*govaluate.EvaluableExpression, error) {
	return govaluate.NewEvaluableExpression(src)
}

// evalExpr evaluates a compiled expression against env and coerces the
// result to float64. govaluate returns float64 for all arithmetic results,
// but the type switch guards against a boolean-valued expression slipping
// through unnoticed.
func evalExpr(expr *govaluate.EvaluableExpression, env exprEnv) (float64, error) {
	result, err := expr.Evaluate(map[string]interface{}(env))
	if err != nil {
		return 0, err
	}
	v, ok := result.(float64)
	if !ok {
		return 0, errExprNotNumeric(expr.String())
	}
	return v, nil
}
