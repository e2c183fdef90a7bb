package resources

import (
	"context"

	"golang.org/x/time/rate"
)

// BudgetGate rate-limits byte throughput against the shared external
// volume service, gating every accessor(box) call with a byte budget.
// It is a golang.org/x/time/rate token bucket sized in bytes/second
// rather than requests/second.
type BudgetGate struct {
	limiter *rate.Limiter
}

// NewBudgetGate creates a gate allowing bytesPerSecond sustained
// throughput with a burst of burstBytes.
func NewBudgetGate(bytesPerSecond float64, burstBytes int) *BudgetGate {
	return &BudgetGate{limiter: rate.NewLimiter(rate.Limit(bytesPerSecond), burstBytes)}
}

// Wait blocks until n bytes' worth of budget is available or ctx is
// canceled. Callers should invoke this once per accessor(box) call
// with n set to the box's expected byte size. On a limited gate, a
// request for more than the burst size fails at once with an error.
func (g *BudgetGate) Wait(ctx context.Context, n int) error {
	if g == nil {
		return nil
	}
	return g.limiter.WaitN(ctx, n)
}

// Unlimited returns a gate with no throughput limit, for tests and
// local backends that have no shared external resource to protect.
func Unlimited() *BudgetGate {
	return &BudgetGate{limiter: rate.NewLimiter(rate.Inf, 0)}
}
