package policy

import (
	"context"
	"errors"
	"fmt"

	"github.com/TecharoHQ/captchamodal/internal"
	"github.com/TecharoHQ/captchamodal/lib/config"
	"github.com/TecharoHQ/captchamodal/lib/policy/expressions"
	"github.com/google/cel-go/cel"
	"github.com/google/cel-go/common/types"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	decisions = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "captchamodal_policy_decisions",
		Help: "The results of evaluating the captcha rule",
	}, []string{"rule", "required"})

	failuresRecorded = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "captchamodal_failures_recorded",
		Help: "The total number of failed attempts recorded for the Dynamic rule",
	}, []string{"application"})

	ErrNoTracker       = errors.New("policy: the Dynamic rule needs an attempt tracker")
	ErrNotBoolean      = errors.New("policy: expression did not evaluate to a boolean")
	ErrEmptyExpression = errors.New("policy: expression is empty")
)

// Evaluator decides whether a subject has to solve a CAPTCHA before the
// protected action proceeds.
type Evaluator struct {
	rule    config.Rule
	src     string
	program cel.Program
	tracker *AttemptTracker
}

// NewEvaluator compiles the Dynamic expression up front. For the Always and
// Never rules expr is ignored and tracker is optional.
func NewEvaluator(rule config.Rule, expr config.ExpressionOrList, tracker *AttemptTracker) (*Evaluator, error) {
	if err := rule.Valid(); err != nil {
		return nil, err
	}

	result := &Evaluator{rule: rule, tracker: tracker}

	if rule != config.RuleDynamic {
		return result, nil
	}

	if tracker == nil {
		return nil, ErrNoTracker
	}

	env, err := expressions.NewEnvironment()
	if err != nil {
		return nil, err
	}

	var ast *cel.Ast

	switch {
	case len(expr.All) != 0:
		ast, err = expressions.Join(env, expressions.And, expr.All...)
	case len(expr.Any) != 0:
		ast, err = expressions.Join(env, expressions.Or, expr.Any...)
	case expr.Expression != "":
		ast, err = expressions.Join(env, expressions.And, expr.Expression)
	default:
		return nil, ErrEmptyExpression
	}
	if errors.Is(err, expressions.ErrClauseNotBool) {
		return nil, fmt.Errorf("%w: %w", ErrNotBoolean, err)
	}
	if err != nil {
		return nil, err
	}

	if !ast.OutputType().IsExactType(cel.BoolType) {
		return nil, fmt.Errorf("%w: got %s", ErrNotBoolean, ast.OutputType())
	}

	program, err := expressions.Compile(env, ast)
	if err != nil {
		return nil, fmt.Errorf("can't compile CEL program: %w", err)
	}

	src, err := cel.AstToString(ast)
	if err != nil {
		return nil, err
	}

	result.src = src
	result.program = program

	return result, nil
}

// Rule returns the rule this evaluator applies.
func (e *Evaluator) Rule() config.Rule { return e.rule }

// Hash identifies the compiled Dynamic expression in logs.
func (e *Evaluator) Hash() string {
	return internal.SHA256sum(string(e.rule) + ":" + e.src)
}

// Tracker returns the attempt tracker given to NewEvaluator, or nil.
func (e *Evaluator) Tracker() *AttemptTracker { return e.tracker }

// Required reports whether s has to be challenged.
func (e *Evaluator) Required(ctx context.Context, s Subject) (bool, error) {
	result, err := e.required(ctx, s)
	if err != nil {
		return false, err
	}

	decisions.WithLabelValues(string(e.rule), fmt.Sprint(result)).Inc()
	return result, nil
}

func (e *Evaluator) required(ctx context.Context, s Subject) (bool, error) {
	switch e.rule {
	case config.RuleAlways:
		return true, nil
	case config.RuleNever:
		return false, nil
	}

	failures, err := e.tracker.Failures(ctx, s)
	if err != nil {
		return false, fmt.Errorf("can't read failed attempts: %w", err)
	}

	val, _, err := e.program.ContextEval(ctx, map[string]any{
		"failedAttempts": int64(failures),
		"owner":          s.Owner,
		"application":    s.Application,
		"user":           s.User,
	})
	if err != nil {
		return false, err
	}

	if b, ok := val.(types.Bool); ok {
		return bool(b), nil
	}

	return false, ErrNotBoolean
}
