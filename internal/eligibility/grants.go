package eligibility

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
)

// RowQuerier is the part of *pgxpool.Pool the grant oracle needs.
type RowQuerier interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// GrantOracle reads decisions the eligibility collaborator materializes into eligibility_grants.
type GrantOracle struct {
	db RowQuerier
}

func NewGrantOracle(db RowQuerier) *GrantOracle {
	return &GrantOracle{db: db}
}

func (o *GrantOracle) EligibleTo(ctx context.Context, memberID string, resource Resource, asOf time.Time) (bool, error) {
	var ok bool
	err := o.db.QueryRow(ctx, `
		SELECT EXISTS (
			SELECT 1 FROM eligibility_grants
			WHERE member_id = $1 AND resource_key = $2
			  AND valid_from <= $3 AND (valid_until IS NULL OR valid_until > $3)
		)`, memberID, resource.EligibilityResourceKey(), asOf).Scan(&ok)
	if err != nil {
		return false, fmt.Errorf("failed to read eligibility grant: %w", err)
	}
	return ok, nil
}
