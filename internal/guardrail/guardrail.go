// Package guardrail evaluates policy over risky administrative operations.
// Every check is pure: it looks at the declared risk tier, the operation's
// quantitative parameters, and static configuration, and either passes,
// rejects with a coded reason, or emits an advisory warning. No check mutates
// state or retries; messaging and retry policy belong to the caller.
package guardrail

import (
	"fmt"
	"strings"

	"storegate/internal/platform/config"
	"storegate/internal/session"
	dErrors "storegate/pkg/domain-errors"
	platstrings "storegate/pkg/platform/strings"
)

// RiskTier is the coarse classification the dispatcher attaches to each
// operation. Confirmation and the stricter checks apply at TierRisky and
// above.
type RiskTier string

const (
	TierSafe     RiskTier = "safe"
	TierRisky    RiskTier = "risky"
	TierCritical RiskTier = "critical"
)

// requiresConfirmation reports whether the tier gates on explicit operator
// confirmation.
func (t RiskTier) requiresConfirmation() bool {
	return t == TierRisky || t == TierCritical
}

// Confirmation carries the operator's explicit consent to a risky commit.
type Confirmation struct {
	Confirm bool
	Reason  string
}

// Resource selects which field allow-list applies. Catalog, CMS pages, and
// CMS blocks each carry an independent list.
type Resource string

const (
	ResourceCatalog  Resource = "catalog"
	ResourceCMSPage  Resource = "cms_page"
	ResourceCMSBlock Resource = "cms_block"
)

var allowedFields = map[Resource][]string{
	ResourceCatalog:  {"price", "special_price", "status", "visibility", "name"},
	ResourceCMSPage:  {"title", "content", "content_heading", "meta_description", "is_active"},
	ResourceCMSBlock: {"title", "content", "is_active"},
}

// DiscountKind distinguishes percentage discounts, which the limit applies
// to, from fixed-amount discounts, which it does not.
type DiscountKind string

const (
	DiscountByPercent DiscountKind = "by_percent"
	DiscountByFixed   DiscountKind = "by_fixed"
	DiscountCartFixed DiscountKind = "cart_fixed"
)

// Engine holds the static thresholds. It is stateless beyond them; the purge
// throttle, which does carry state, is a separate injected collaborator.
type Engine struct {
	cfg config.Guardrails
}

func New(cfg config.Guardrails) *Engine {
	return &Engine{cfg: cfg}
}

// BulkCap exposes the configured record ceiling so callers can size
// pre-flight queries to detect overflow in a single page.
func (e *Engine) BulkCap() int {
	return e.cfg.MaxBulkRecords
}

// RequireConfirmation gates risky-tier operations on confirm being strictly
// true plus a non-whitespace justification. The failure names the missing
// piece so the caller can prompt for exactly that.
func (e *Engine) RequireConfirmation(tier RiskTier, c Confirmation) error {
	if !tier.requiresConfirmation() {
		return nil
	}
	if !c.Confirm {
		return dErrors.New(dErrors.CodeConfirmationRequired, "operation requires confirm=true").
			WithDetail("missing", "confirm").
			WithDetail("risk_tier", string(tier))
	}
	if strings.TrimSpace(c.Reason) == "" {
		return dErrors.New(dErrors.CodeConfirmationRequired, "operation requires a non-empty reason").
			WithDetail("missing", "reason").
			WithDetail("risk_tier", string(tier))
	}
	return nil
}

// EnforceBulkCap rejects commits touching more records than the configured
// maximum. The payload carries both numbers so callers can report "reduce
// scope or request an override".
func (e *Engine) EnforceBulkCap(count int) error {
	if count > e.cfg.MaxBulkRecords {
		return dErrors.Newf(dErrors.CodeCapExceeded, "bulk operation touches %d records, cap is %d", count, e.cfg.MaxBulkRecords).
			WithDetail("count", count).
			WithDetail("cap", e.cfg.MaxBulkRecords)
	}
	return nil
}

// EnforceCouponCap is the same shape as EnforceBulkCap over the coupon
// generation quantity.
func (e *Engine) EnforceCouponCap(qty int) error {
	if qty > e.cfg.MaxCouponQty {
		return dErrors.Newf(dErrors.CodeCapExceeded, "coupon batch of %d exceeds cap of %d", qty, e.cfg.MaxCouponQty).
			WithDetail("count", qty).
			WithDetail("cap", e.cfg.MaxCouponQty)
	}
	return nil
}

// EnforceDiscountLimit hard-caps percentage discounts. Fixed-amount discounts
// pass untouched; their blast radius is bounded by the cart, not a ratio.
func (e *Engine) EnforceDiscountLimit(kind DiscountKind, amount float64) error {
	if kind != DiscountByPercent {
		return nil
	}
	if amount > e.cfg.MaxDiscountPercent {
		return dErrors.Newf(dErrors.CodeCapExceeded, "discount of %.1f%% exceeds cap of %.1f%%", amount, e.cfg.MaxDiscountPercent).
			WithDetail("percent", amount).
			WithDetail("cap", e.cfg.MaxDiscountPercent)
	}
	return nil
}

// CheckPriceChangeThreshold returns an advisory warning when the relative
// price change exceeds the configured threshold. It never blocks a commit;
// price swings warrant a second look, not a hard stop. A zero old price means
// relative change cannot be assessed, so no warning is produced.
func (e *Engine) CheckPriceChangeThreshold(oldPrice, newPrice float64) (string, bool) {
	if oldPrice == 0 {
		return "", false
	}
	change := (newPrice - oldPrice) / oldPrice * 100
	if change < 0 {
		change = -change
	}
	if change > e.cfg.PriceWarnPercent {
		return fmt.Sprintf("price change of %.1f%% exceeds the %.0f%% review threshold (%.2f -> %.2f)",
			change, e.cfg.PriceWarnPercent, oldPrice, newPrice), true
	}
	return "", false
}

// EnforceAllowedFields rejects any requested field outside the resource's
// static allow-list, naming every offender.
func (e *Engine) EnforceAllowedFields(resource Resource, requested []string) error {
	allowed, ok := allowedFields[resource]
	if !ok {
		return dErrors.Newf(dErrors.CodeFieldNotAllowed, "no field allow-list for resource %q", resource).
			WithDetail("resource", string(resource))
	}
	allowedSet := make(map[string]struct{}, len(allowed))
	for _, f := range allowed {
		allowedSet[f] = struct{}{}
	}
	var disallowed []string
	for _, f := range platstrings.DedupeAndTrim(requested) {
		if _, ok := allowedSet[f]; !ok {
			disallowed = append(disallowed, f)
		}
	}
	if len(disallowed) > 0 {
		return dErrors.Newf(dErrors.CodeFieldNotAllowed, "fields not allowed for %s: %s", resource, strings.Join(disallowed, ", ")).
			WithDetail("resource", string(resource)).
			WithDetail("fields", disallowed)
	}
	return nil
}

// RequireExplicitScope rejects write-affecting calls that do not say which
// stores they touch.
func (e *Engine) RequireExplicitScope(scope *session.Scope) error {
	if scope == nil || !scope.Populated() {
		return dErrors.New(dErrors.CodeScopeRequired, "operation requires an explicit store scope or the global sentinel")
	}
	return nil
}
