package bulk

import (
	"storegate/internal/plan"
	"storegate/internal/session"
)

// PriceUpdateRequest resolves products by SKU pattern and stages a price
// change for each. Exactly one of SetPrice or AdjustPercent is set; the
// transport layer validates that before the request reaches the service.
type PriceUpdateRequest struct {
	SessionID     string
	Scope         *session.Scope
	SKUPattern    string
	SetPrice      *float64
	AdjustPercent *float64
}

// CouponBatchRequest stages coupon code generation under an existing cart
// price rule.
type CouponBatchRequest struct {
	SessionID      string
	Scope          *session.Scope
	RuleID         int64
	Quantity       int
	Prefix         string
	DiscountKind   string
	DiscountAmount float64
}

// ContentUpdateRequest stages field rewrites on CMS pages or blocks.
type ContentUpdateRequest struct {
	SessionID string
	Scope     *session.Scope
	Kind      plan.ContentKind
	Updates   []plan.ContentChange
}

// CommitRequest executes a previously prepared plan.
type CommitRequest struct {
	SessionID      string
	PlanID         string
	Confirm        bool
	Reason         string
	IdempotencyKey string
}

// RecordError is one failed mutation inside an otherwise successful commit.
type RecordError struct {
	Key     string `json:"key"`
	Message string `json:"message"`
}

// CommitResult reports a bulk commit. The call itself succeeding while some
// records failed is a load-bearing distinction: SuccessCount and ErrorCount
// are always both present and Errors lists every failed record.
type CommitResult struct {
	PlanID       string        `json:"plan_id"`
	Action       plan.Action   `json:"action"`
	SuccessCount int           `json:"success_count"`
	ErrorCount   int           `json:"error_count"`
	Errors       []RecordError `json:"errors,omitempty"`
	Summary      string        `json:"summary"`
	Replayed     bool          `json:"replayed"`
}
