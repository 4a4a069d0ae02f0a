// Package eligibility consumes the external eligibility decisions: may a member use a ledger or a
// trigger at a point in time.
package eligibility

import (
	"context"
	"fmt"
	"time"
)

// Resource is anything whose use is gated per member.
type Resource interface {
	EligibilityResourceKey() string
}

// Oracle answers eligibility questions. It is opaque to the ledger core.
type Oracle interface {
	EligibleTo(ctx context.Context, memberID string, resource Resource, asOf time.Time) (bool, error)
}

// Filter keeps the items the member is eligible to use at asOf, preserving order.
func Filter[T Resource](ctx context.Context, oracle Oracle, memberID string, asOf time.Time, items []T) ([]T, error) {
	out := make([]T, 0, len(items))
	for _, item := range items {
		ok, err := oracle.EligibleTo(ctx, memberID, item, asOf)
		if err != nil {
			return nil, fmt.Errorf("eligibility of %s for member %s: %w", item.EligibilityResourceKey(), memberID, err)
		}
		if ok {
			out = append(out, item)
		}
	}
	return out, nil
}

// AllowAll grants everything.
type AllowAll struct{}

func (AllowAll) EligibleTo(context.Context, string, Resource, time.Time) (bool, error) {
	return true, nil
}

// StaticOracle grants exactly the listed resource keys, for every member.
type StaticOracle map[string]bool

func (o StaticOracle) EligibleTo(_ context.Context, _ string, resource Resource, _ time.Time) (bool, error) {
	return o[resource.EligibilityResourceKey()], nil
}
