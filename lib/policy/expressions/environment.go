package expressions

import (
	"github.com/google/cel-go/cel"
	"github.com/google/cel-go/ext"
)

// NewEnvironment creates the CEL environment Dynamic rule expressions are
// compiled in.
func NewEnvironment() (*cel.Env, error) {
	return cel.NewEnv(
		ext.Strings(
			ext.StringsLocale("en_US"),
			ext.StringsValidateFormatCalls(true),
		),

		// Variables exposed to CEL programs:
		cel.Variable("failedAttempts", cel.IntType),
		cel.Variable("owner", cel.StringType),
		cel.Variable("application", cel.StringType),
		cel.Variable("user", cel.StringType),
	)
}

// Compile takes CEL environment and syntax tree then emits an optimized
// Program for execution.
func Compile(env *cel.Env, ast *cel.Ast) (cel.Program, error) {
	return env.Program(
		ast,
		cel.EvalOptions(
			cel.OptOptimize,
		),
	)
}
