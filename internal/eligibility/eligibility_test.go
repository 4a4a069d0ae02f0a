package eligibility_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/SscSPs/payment_ledger/internal/eligibility"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type resource string

func (r resource) EligibilityResourceKey() string { return string(r) }

type MockOracle struct {
	mock.Mock
}

func (m *MockOracle) EligibleTo(ctx context.Context, memberID string, res eligibility.Resource, asOf time.Time) (bool, error) {
	args := m.Called(ctx, memberID, res, asOf)
	return args.Bool(0), args.Error(1)
}

func TestFilter_PreservesOrder(t *testing.T) {
	oracle := eligibility.StaticOracle{"b": true, "c": true}
	got, err := eligibility.Filter(context.Background(), oracle, "m1", time.Now(), []resource{"a", "b", "c"})
	require.NoError(t, err)
	assert.Equal(t, []resource{"b", "c"}, got)
}

func TestFilter_PropagatesErrors(t *testing.T) {
	oracle := new(MockOracle)
	boom := errors.New("boom")
	oracle.On("EligibleTo", mock.Anything, "m1", resource("a"), mock.Anything).Return(false, boom)

	_, err := eligibility.Filter(context.Background(), oracle, "m1", time.Now(), []resource{"a"})
	assert.ErrorIs(t, err, boom)
}

func TestCachedOracle_MemoizesDecisions(t *testing.T) {
	next := new(MockOracle)
	at := time.Date(2024, 5, 1, 12, 0, 10, 0, time.UTC)
	next.On("EligibleTo", mock.Anything, "m1", resource("food"), at).Return(true, nil).Once()

	oracle := eligibility.NewCachedOracle(next, time.Minute)
	for i := 0; i < 3; i++ {
		ok, err := oracle.EligibleTo(context.Background(), "m1", resource("food"), at)
		require.NoError(t, err)
		assert.True(t, ok)
	}
	next.AssertNumberOfCalls(t, "EligibleTo", 1)
}
