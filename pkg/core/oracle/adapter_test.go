package oracle

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"negotiation-engine/pkg/core/types"
)

// stubService is a Service whose every method fails or blocks, driving the
// Adapter's timeout/circuit-breaker/fallback machinery from the outside.
type stubService struct {
	MockService
	failUnderstand bool
	blockUnderstand time.Duration
}

func (s *stubService) UnderstandDemand(ctx context.Context, rawText string) (Understanding, error) {
	if s.blockUnderstand > 0 {
		select {
		case <-time.After(s.blockUnderstand):
		case <-ctx.Done():
			return Understanding{}, ctx.Err()
		}
	}
	if s.failUnderstand {
		return Understanding{}, errors.New("stub: understand demand failed")
	}
	return Understanding{Surface: rawText}, nil
}

func testConfig() Config {
	cfg := DefaultConfig()
	cfg.DefaultTimeout = 20 * time.Millisecond
	cfg.FailureThreshold = 2
	cfg.CooldownPeriod = 50 * time.Millisecond
	return cfg
}

func TestAdapterReturnsFallbackOnTimeout(t *testing.T) {
	backing := &stubService{blockUnderstand: 100 * time.Millisecond}
	a := NewAdapter(backing, testConfig(), nil)

	u, err := a.UnderstandDemand(context.Background(), "need a plumber")
	require.NoError(t, err, "adapter never surfaces the underlying error, it substitutes a fallback")
	assert.Equal(t, "oracle_unavailable", u.Uncertainties[0])

	stats := a.StatsFor(string(opUnderstandDemand))
	assert.Equal(t, int64(1), stats.Timeout)
	assert.Equal(t, int64(1), stats.Fallback)
}

func TestAdapterOpensCircuitAfterThresholdFailures(t *testing.T) {
	backing := &stubService{failUnderstand: true}
	a := NewAdapter(backing, testConfig(), nil)

	for i := 0; i < 2; i++ {
		_, err := a.UnderstandDemand(context.Background(), "x")
		require.NoError(t, err)
	}

	breaker := a.breakerFor(opUnderstandDemand)
	assert.Equal(t, stateOpen, breaker.currentState())

	// A third call should short-circuit straight to fallback without
	// invoking the backing service again.
	before := a.StatsFor(string(opUnderstandDemand)).Total
	_, err := a.UnderstandDemand(context.Background(), "x")
	require.NoError(t, err)
	after := a.StatsFor(string(opUnderstandDemand))
	assert.Equal(t, before+1, after.Total)
	assert.True(t, after.Fallback >= 3)
}

func TestAdapterSuccessPassesThrough(t *testing.T) {
	backing := NewMockService()
	a := NewAdapter(backing, testConfig(), nil)

	u, err := a.UnderstandDemand(context.Background(), "need a carpenter")
	require.NoError(t, err)
	assert.Contains(t, u.Deep, "need a carpenter")
	assert.Equal(t, int64(1), a.StatsFor(string(opUnderstandDemand)).Success)
}
