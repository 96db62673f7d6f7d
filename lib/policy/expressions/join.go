package expressions

import (
	"errors"
	"fmt"
	"strings"

	"github.com/google/cel-go/cel"
)

// Op combines the clauses of an all or any list.
type Op string

const (
	And Op = "&&"
	Or  Op = "||"
)

var (
	ErrBadOp         = errors.New("expressions: operator must be && or ||")
	ErrNoClauses     = errors.New("expressions: no clauses to join")
	ErrClause        = errors.New("expressions: clause does not compile")
	ErrClauseNotBool = errors.New("expressions: clause is not a boolean")
)

// Join checks every clause on its own, so a failure names the clause that
// caused it, then compiles them as one expression.
//
//	failedAttempts >= 3
//	user != "admin"
//
// joined with And becomes
//
//	(failedAttempts >= 3) && (user != "admin")
func Join(env *cel.Env, op Op, clauses ...string) (*cel.Ast, error) {
	if op != And && op != Or {
		return nil, fmt.Errorf("%w, got %q", ErrBadOp, op)
	}

	if len(clauses) == 0 {
		return nil, ErrNoClauses
	}

	parts := make([]string, 0, len(clauses))
	var errs []error

	for i, clause := range clauses {
		ast, iss := env.Compile(clause)
		switch {
		case iss.Err() != nil:
			errs = append(errs, fmt.Errorf("%w: #%d %q: %w", ErrClause, i, clause, iss.Err()))
		case !ast.OutputType().IsExactType(cel.BoolType):
			errs = append(errs, fmt.Errorf("%w: #%d %q is %s", ErrClauseNotBool, i, clause, ast.OutputType()))
		default:
			parts = append(parts, "("+clause+")")
		}
	}

	if len(errs) != 0 {
		return nil, errors.Join(errs...)
	}

	ast, iss := env.Compile(strings.Join(parts, " "+string(op)+" "))
	if iss.Err() != nil {
		return nil, fmt.Errorf("%w: joined: %w", ErrClause, iss.Err())
	}

	return ast, nil
}
