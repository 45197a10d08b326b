package consistency

import (
	"context"

	"golang.org/x/sync/errgroup"
)

// Validator runs an ordered rule set over a spec corpus.
type Validator struct {
	rules []Rule
}

// NewValidator creates a validator with the default rules.
func NewValidator() *Validator {
	return &Validator{rules: DefaultRules()}
}

// Validate runs every rule concurrently and merges the results in rule order,
// so completion order never changes the output.
func (v *Validator) Validate(ctx context.Context, in Input) (Result, error) {
	results := make([]CategoryResult, len(v.rules))
	g, gctx := errgroup.WithContext(ctx)
	for i, rule := range v.rules {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			issues := rule.Check(in)
			if issues == nil {
				issues = []Issue{}
			}
			results[i] = CategoryResult{
				Category: rule.Category,
				RuleID:   rule.ID,
				Status:   statusOf(issues),
				Issues:   issues,
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return Result{}, err
	}
	return Result{Categories: results}, nil
}
