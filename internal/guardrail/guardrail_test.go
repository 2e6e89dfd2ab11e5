package guardrail

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"storegate/internal/platform/config"
	"storegate/internal/session"
	dErrors "storegate/pkg/domain-errors"
)

func newEngine() *Engine {
	return New(config.DefaultGuardrails())
}

func TestRequireConfirmation(t *testing.T) {
	engine := newEngine()

	t.Run("safe tier needs nothing", func(t *testing.T) {
		assert.NoError(t, engine.RequireConfirmation(TierSafe, Confirmation{}))
	})

	t.Run("risky tier rejects missing confirm", func(t *testing.T) {
		err := engine.RequireConfirmation(TierRisky, Confirmation{Confirm: false, Reason: "approved by ops"})
		require.Error(t, err)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeConfirmationRequired))
		assert.Equal(t, "confirm", dErrors.DetailsOf(err)["missing"])
	})

	t.Run("risky tier rejects whitespace reason", func(t *testing.T) {
		err := engine.RequireConfirmation(TierRisky, Confirmation{Confirm: true, Reason: "   "})
		require.Error(t, err)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeConfirmationRequired))
		assert.Equal(t, "reason", dErrors.DetailsOf(err)["missing"])
	})

	t.Run("risky tier passes with confirm and reason", func(t *testing.T) {
		assert.NoError(t, engine.RequireConfirmation(TierRisky, Confirmation{Confirm: true, Reason: "approved by ops"}))
	})

	t.Run("critical tier gates too", func(t *testing.T) {
		err := engine.RequireConfirmation(TierCritical, Confirmation{})
		require.Error(t, err)
	})
}

func TestEnforceBulkCap(t *testing.T) {
	engine := newEngine()

	t.Run("at the cap passes", func(t *testing.T) {
		assert.NoError(t, engine.EnforceBulkCap(500))
	})

	t.Run("over the cap fails with both numbers in the payload", func(t *testing.T) {
		err := engine.EnforceBulkCap(501)
		require.Error(t, err)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeCapExceeded))
		details := dErrors.DetailsOf(err)
		assert.Equal(t, 501, details["count"])
		assert.Equal(t, 500, details["cap"])
	})
}

func TestEnforceCouponCap(t *testing.T) {
	engine := newEngine()
	assert.NoError(t, engine.EnforceCouponCap(1000))

	err := engine.EnforceCouponCap(1001)
	require.Error(t, err)
	assert.True(t, dErrors.HasCode(err, dErrors.CodeCapExceeded))
}

func TestEnforceDiscountLimit(t *testing.T) {
	engine := newEngine()

	t.Run("percentage over the cap is a hard block", func(t *testing.T) {
		err := engine.EnforceDiscountLimit(DiscountByPercent, 85)
		require.Error(t, err)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeCapExceeded))
	})

	t.Run("percentage at the cap passes", func(t *testing.T) {
		assert.NoError(t, engine.EnforceDiscountLimit(DiscountByPercent, 80))
	})

	t.Run("fixed-amount discounts are not limited", func(t *testing.T) {
		assert.NoError(t, engine.EnforceDiscountLimit(DiscountByFixed, 10000))
		assert.NoError(t, engine.EnforceDiscountLimit(DiscountCartFixed, 10000))
	})
}

func TestCheckPriceChangeThreshold(t *testing.T) {
	engine := newEngine()

	t.Run("51 percent change warns", func(t *testing.T) {
		warning, warned := engine.CheckPriceChangeThreshold(100, 151)
		assert.True(t, warned)
		assert.Contains(t, warning, "51.0%")
	})

	t.Run("49 percent change does not warn", func(t *testing.T) {
		_, warned := engine.CheckPriceChangeThreshold(100, 149)
		assert.False(t, warned)
	})

	t.Run("zero old price cannot be assessed", func(t *testing.T) {
		_, warned := engine.CheckPriceChangeThreshold(0, 50)
		assert.False(t, warned)
	})

	t.Run("drops warn like raises", func(t *testing.T) {
		_, warned := engine.CheckPriceChangeThreshold(100, 40)
		assert.True(t, warned)
	})
}

func TestEnforceAllowedFields(t *testing.T) {
	engine := newEngine()

	t.Run("allowed catalog fields pass", func(t *testing.T) {
		assert.NoError(t, engine.EnforceAllowedFields(ResourceCatalog, []string{"price", "status"}))
	})

	t.Run("disallowed fields are all named", func(t *testing.T) {
		err := engine.EnforceAllowedFields(ResourceCatalog, []string{"price", "cost", "sku"})
		require.Error(t, err)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeFieldNotAllowed))
		assert.ElementsMatch(t, []string{"cost", "sku"}, dErrors.DetailsOf(err)["fields"])
	})

	t.Run("cms block list is independent of cms page list", func(t *testing.T) {
		assert.NoError(t, engine.EnforceAllowedFields(ResourceCMSPage, []string{"meta_description"}))
		err := engine.EnforceAllowedFields(ResourceCMSBlock, []string{"meta_description"})
		require.Error(t, err)
	})
}

func TestRequireExplicitScope(t *testing.T) {
	engine := newEngine()

	t.Run("nil scope fails", func(t *testing.T) {
		err := engine.RequireExplicitScope(nil)
		require.Error(t, err)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeScopeRequired))
	})

	t.Run("empty scope fails", func(t *testing.T) {
		err := engine.RequireExplicitScope(&session.Scope{})
		require.Error(t, err)
	})

	t.Run("any populated field passes", func(t *testing.T) {
		assert.NoError(t, engine.RequireExplicitScope(&session.Scope{StoreViewCode: "en_us"}))
		assert.NoError(t, engine.RequireExplicitScope(&session.Scope{Global: true}))
	})
}
