// internal/service/booking/infrastructure/rule/cel_policy.go
package rule

import (
	"context"
	"reflect"

	"github.com/google/cel-go/cel"
	"github.com/pkg/errors"

	"tourhub/internal/service/booking/domain/port"
)

// DefaultTransitionRule 管理员可以执行任意迁移；导游只能处理自己线路的订单，且不能把订单退回 pending
const DefaultTransitionRule = `role == "admin" || (role == "guide" && is_tour_guide && to != "pending")`

// CELTransitionPolicy 是 port.TransitionPolicy 的 CEL 实现。
// 规则表达式可用的变量：role, from, to (string) 和 is_tour_guide (bool)
type CELTransitionPolicy struct {
	expr string
	prg  cel.Program
}

// NewCELTransitionPolicy 编译规则，表达式为空时使用默认规则
func NewCELTransitionPolicy(expr string) (*CELTransitionPolicy, error) {
	if expr == "" {
		expr = DefaultTransitionRule
	}
	env, err := cel.NewEnv(
		cel.Variable("role", cel.StringType),
		cel.Variable("from", cel.StringType),
		cel.Variable("to", cel.StringType),
		cel.Variable("is_tour_guide", cel.BoolType),
	)
	if err != nil {
		return nil, errors.Wrap(err, "create cel env")
	}
	ast, iss := env.Compile(expr)
	if iss.Err() != nil {
		return nil, errors.Wrapf(iss.Err(), "compile transition rule %q", expr)
	}
	if !reflect.DeepEqual(ast.OutputType(), cel.BoolType) {
		return nil, errors.Errorf("transition rule %q must evaluate to bool, got %v", expr, ast.OutputType())
	}
	prg, err := env.Program(ast)
	if err != nil {
		return nil, errors.Wrap(err, "build cel program")
	}
	return &CELTransitionPolicy{expr: expr, prg: prg}, nil
}

// Allow 实现 port.TransitionPolicy
func (p *CELTransitionPolicy) Allow(_ context.Context, in port.TransitionInput) (bool, error) {
	out, _, err := p.prg.Eval(map[string]any{
		"role":          in.Role,
		"from":          string(in.From),
		"to":            string(in.To),
		"is_tour_guide": in.IsTourGuide,
	})
	if err != nil {
		return false, errors.Wrap(err, "evaluate transition rule")
	}
	allowed, ok := out.Value().(bool)
	if !ok {
		return false, errors.Errorf("transition rule returned %T", out.Value())
	}
	return allowed, nil
}
