// Package plan stores prepared-but-unexecuted bulk mutations. A plan is a
// time-boxed snapshot of exactly what a commit would change; it is created by
// a prepare call, reviewed by the operator, and consumed at most once by a
// matching commit. Plans are memory- or redis-resident working state, never
// durable record.
package plan

import (
	"time"

	"storegate/internal/session"
)

// Action identifies which commit handler a plan authorizes. The payload union
// below is keyed by it so commit dispatch is exhaustive at compile time
// instead of digging through untyped field bags.
type Action string

const (
	ActionPriceUpdate   Action = "catalog.price_update"
	ActionCouponBatch   Action = "pricing.coupon_batch"
	ActionContentUpdate Action = "cms.content_update"
)

// MaxSampleDiffs bounds the human-review preview attached to a plan.
const MaxSampleDiffs = 5

// Plan is immutable after creation; stores only ever delete it.
type Plan struct {
	ID            string        `json:"id"`
	Action        Action        `json:"action"`
	Scope         session.Scope `json:"scope"`
	CreatedAt     time.Time     `json:"created_at"`
	ExpiresAt     time.Time     `json:"expires_at"`
	Payload       Payload       `json:"payload"`
	AffectedCount int           `json:"affected_count"`
	SampleDiffs   []Diff        `json:"sample_diffs,omitempty"`
	Warnings      []string      `json:"warnings,omitempty"`
}

// Expired reports whether the plan's TTL has elapsed at the given instant.
func (p Plan) Expired(now time.Time) bool {
	return now.After(p.ExpiresAt)
}

// Diff is one sample entry of the review preview.
type Diff struct {
	Key   string `json:"key"`
	Field string `json:"field"`
	Old   string `json:"old"`
	New   string `json:"new"`
}

// Payload is a tagged union over the concrete mutations a plan can authorize.
// Exactly one variant is non-nil, matching the plan's Action.
type Payload struct {
	PriceUpdate   *PriceUpdatePayload   `json:"price_update,omitempty"`
	CouponBatch   *CouponBatchPayload   `json:"coupon_batch,omitempty"`
	ContentUpdate *ContentUpdatePayload `json:"content_update,omitempty"`
}

// PriceUpdatePayload applies new base prices to a resolved set of SKUs, in the
// order the prepare resolution query produced them.
type PriceUpdatePayload struct {
	Items []PriceChange `json:"items"`
}

// PriceChange carries both prices so commit reporting and review previews can
// show the delta without re-reading the catalog.
type PriceChange struct {
	SKU      string  `json:"sku"`
	OldPrice float64 `json:"old_price"`
	NewPrice float64 `json:"new_price"`
}

// CouponBatchPayload generates coupon codes under an existing cart price rule.
type CouponBatchPayload struct {
	RuleID   int64  `json:"rule_id"`
	Quantity int    `json:"quantity"`
	Prefix   string `json:"prefix,omitempty"`
}

// ContentKind distinguishes the two CMS resources, which carry independent
// field allow-lists.
type ContentKind string

const (
	ContentPage  ContentKind = "cms_page"
	ContentBlock ContentKind = "cms_block"
)

// ContentUpdatePayload rewrites fields on CMS pages or blocks.
type ContentUpdatePayload struct {
	Kind    ContentKind     `json:"kind"`
	Updates []ContentChange `json:"updates"`
}

// ContentChange updates one CMS entity. Nil fields are left untouched.
type ContentChange struct {
	ID      int64   `json:"id"`
	Title   *string `json:"title,omitempty"`
	Content *string `json:"content,omitempty"`
}

// NewPlan is the input to Store.Create. The store assigns the id and expiry.
type NewPlan struct {
	Action        Action
	Scope         session.Scope
	Payload       Payload
	AffectedCount int
	SampleDiffs   []Diff
	Warnings      []string
}
