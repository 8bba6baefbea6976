package order

import (
	"context"
	"fmt"

	"github.com/google/cel-go/cel"

	"github.com/SagorIslamOfficial/crm-order-sub001/internal/core/apperror"
)

// Policy is evaluated on the reconciled order before the transaction commits.
type Policy interface {
	Check(ctx context.Context, o *Order, itemCount int) error
}

// AllowAll is the default policy.
type AllowAll struct{}

// Check implements Policy.
func (AllowAll) Check(context.Context, *Order, int) error { return nil }

type celRule struct {
	expr string
	prg  cel.Program
}

// CELPolicy rejects an order when any of its boolean CEL rules evaluates to
// false. Rules see the variables status, subtotal, discount, total, paid,
// due (doubles except status) and items (int).
//
// Example: "total >= 0.0" forbids discounts larger than the subtotal,
// "paid <= total" forbids overpayment.
type CELPolicy struct {
	rules []celRule
}

// NewCELPolicy compiles rules. An empty list yields a policy that allows everything.
func NewCELPolicy(rules []string) (*CELPolicy, error) {
	env, err := cel.NewEnv(
		cel.Variable("status", cel.StringType),
		cel.Variable("subtotal", cel.DoubleType),
		cel.Variable("discount", cel.DoubleType),
		cel.Variable("total", cel.DoubleType),
		cel.Variable("paid", cel.DoubleType),
		cel.Variable("due", cel.DoubleType),
		cel.Variable("items", cel.IntType),
	)
	if err != nil {
		return nil, fmt.Errorf("create cel env: %w", err)
	}

	p := &CELPolicy{}
	for _, expr := range rules {
		ast, iss := env.Compile(expr)
		if iss != nil && iss.Err() != nil {
			return nil, fmt.Errorf("compile rule %q: %w", expr, iss.Err())
		}
		if !ast.OutputType().IsExactType(cel.BoolType) {
			return nil, fmt.Errorf("rule %q must evaluate to bool, got %s", expr, ast.OutputType())
		}
		prg, err := env.Program(ast)
		if err != nil {
			return nil, fmt.Errorf("program rule %q: %w", expr, err)
		}
		p.rules = append(p.rules, celRule{expr: expr, prg: prg})
	}
	return p, nil
}

// Check implements Policy.
func (p *CELPolicy) Check(_ context.Context, o *Order, itemCount int) error {
	if len(p.rules) == 0 {
		return nil
	}

	vars := map[string]any{
		"status":   o.Status.String(),
		"subtotal": o.ItemsSubtotal.InexactFloat64(),
		"discount": o.DiscountAmount.InexactFloat64(),
		"total":    o.TotalAmount.InexactFloat64(),
		"paid":     o.AdvancePaid.InexactFloat64(),
		"due":      o.DueAmount.InexactFloat64(),
		"items":    int64(itemCount),
	}

	for _, r := range p.rules {
		out, _, err := r.prg.Eval(vars)
		if err != nil {
			return fmt.Errorf("evaluate rule %q: %w", r.expr, err)
		}
		if ok, _ := out.Value().(bool); !ok {
			return apperror.NewPolicyViolation(r.expr).
				WithDetail("orderNumber", o.OrderNumber)
		}
	}
	return nil
}
