package guardrail

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	dErrors "storegate/pkg/domain-errors"
)

func TestPurgeThrottle(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	throttle := NewPurgeThrottle(3, time.Minute, WithThrottleClock(func() time.Time { return now }))

	t.Run("admits up to the limit", func(t *testing.T) {
		for i := 0; i < 3; i++ {
			require.NoError(t, throttle.Allow())
		}
	})

	t.Run("rejects over the limit with retry hint", func(t *testing.T) {
		err := throttle.Allow()
		require.Error(t, err)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeRateLimited))
		retry, ok := dErrors.DetailsOf(err)["retry_after_seconds"].(int)
		require.True(t, ok)
		assert.Greater(t, retry, 0)
	})

	t.Run("window slides open again", func(t *testing.T) {
		now = now.Add(61 * time.Second)
		require.NoError(t, throttle.Allow())
	})
}
