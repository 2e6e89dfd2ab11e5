package bulk

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/google/uuid"

	"storegate/internal/client"
	"storegate/internal/guardrail"
	"storegate/internal/plan"
	"storegate/internal/session"
	dErrors "storegate/pkg/domain-errors"
	"storegate/pkg/platform/audit"
	"storegate/pkg/platform/sentinel"
	"storegate/pkg/requestcontext"
)

func (s *Service) findSession(ctx context.Context, id string) (session.Session, error) {
	sess, err := s.sessions.Find(ctx, id)
	if errors.Is(err, sentinel.ErrNotFound) {
		return session.Session{}, dErrors.New(dErrors.CodeUnauthenticated, "no active session; log in first")
	}
	if err != nil {
		return session.Session{}, dErrors.Wrap(err, dErrors.CodeInternal, "session lookup failed")
	}
	return sess, nil
}

// productPage is the slice of the platform's product list response the
// prepare resolution needs.
type productPage struct {
	Items []struct {
		SKU   string  `json:"sku"`
		Price float64 `json:"price"`
	} `json:"items"`
	TotalCount int `json:"total_count"`
}

// PreparePriceUpdate resolves every product matching the SKU pattern, stages
// the new price for each, and stores the plan. Nothing is mutated here; the
// returned plan is the review artifact.
func (s *Service) PreparePriceUpdate(ctx context.Context, req PriceUpdateRequest) (plan.Plan, error) {
	ctx, span := s.span(ctx, "bulk.prepare", plan.ActionPriceUpdate)
	defer span.End()

	sess, err := s.findSession(ctx, req.SessionID)
	if err != nil {
		return plan.Plan{}, err
	}
	scope, err := s.resolveScope(sess, req.Scope)
	if err != nil {
		return plan.Plan{}, err
	}
	if req.SetPrice == nil && req.AdjustPercent == nil {
		return plan.Plan{}, dErrors.New(dErrors.CodeInvalidInput, "either set_price or adjust_percent is required")
	}

	criteria := (&client.SearchCriteria{}).
		Where("sku", "like", req.SKUPattern).
		SortBy("sku", "ASC").
		Paginate(s.guards.BulkCap()+1, 1)

	var page productPage
	if err := s.platform.Do(ctx, client.Call{
		Session: sess,
		Method:  http.MethodGet,
		Path:    "products",
		Query:   criteria.Values(),
		Out:     &page,
	}); err != nil {
		return plan.Plan{}, err
	}

	if err := s.guards.EnforceBulkCap(page.TotalCount); err != nil {
		return plan.Plan{}, err
	}

	items := make([]plan.PriceChange, 0, len(page.Items))
	var diffs []plan.Diff
	var warnings []string
	for _, p := range page.Items {
		newPrice := p.Price
		if req.SetPrice != nil {
			newPrice = *req.SetPrice
		} else {
			newPrice = p.Price * (1 + *req.AdjustPercent/100)
		}
		items = append(items, plan.PriceChange{SKU: p.SKU, OldPrice: p.Price, NewPrice: newPrice})
		diffs = append(diffs, plan.Diff{
			Key:   p.SKU,
			Field: "price",
			Old:   fmt.Sprintf("%.2f", p.Price),
			New:   fmt.Sprintf("%.2f", newPrice),
		})
		if warning, warned := s.guards.CheckPriceChangeThreshold(p.Price, newPrice); warned && len(warnings) < plan.MaxSampleDiffs {
			warnings = append(warnings, warning)
		}
	}

	created, err := s.plans.Create(ctx, plan.NewPlan{
		Action:        plan.ActionPriceUpdate,
		Scope:         scope,
		Payload:       plan.Payload{PriceUpdate: &plan.PriceUpdatePayload{Items: items}},
		AffectedCount: len(items),
		SampleDiffs:   diffs,
		Warnings:      warnings,
	})
	if err != nil {
		return plan.Plan{}, dErrors.Wrap(err, dErrors.CodeInternal, "could not store plan")
	}

	s.recordPrepared(ctx, sess, created, map[string]any{"sku_pattern": req.SKUPattern})
	return created, nil
}

// PrepareCouponBatch validates the target rule and stages coupon generation.
func (s *Service) PrepareCouponBatch(ctx context.Context, req CouponBatchRequest) (plan.Plan, error) {
	ctx, span := s.span(ctx, "bulk.prepare", plan.ActionCouponBatch)
	defer span.End()

	sess, err := s.findSession(ctx, req.SessionID)
	if err != nil {
		return plan.Plan{}, err
	}
	scope, err := s.resolveScope(sess, req.Scope)
	if err != nil {
		return plan.Plan{}, err
	}
	if err := s.guards.EnforceCouponCap(req.Quantity); err != nil {
		return plan.Plan{}, err
	}
	if err := s.guards.EnforceDiscountLimit(guardrail.DiscountKind(req.DiscountKind), req.DiscountAmount); err != nil {
		return plan.Plan{}, err
	}

	// Resolving the rule confirms it exists before a plan is staged against it.
	var rule struct {
		RuleID int64  `json:"rule_id"`
		Name   string `json:"name"`
	}
	if err := s.platform.Do(ctx, client.Call{
		Session: sess,
		Method:  http.MethodGet,
		Path:    fmt.Sprintf("salesRules/%d", req.RuleID),
		Out:     &rule,
	}); err != nil {
		return plan.Plan{}, err
	}

	created, err := s.plans.Create(ctx, plan.NewPlan{
		Action: plan.ActionCouponBatch,
		Scope:  scope,
		Payload: plan.Payload{CouponBatch: &plan.CouponBatchPayload{
			RuleID:   req.RuleID,
			Quantity: req.Quantity,
			Prefix:   req.Prefix,
		}},
		AffectedCount: req.Quantity,
		SampleDiffs: []plan.Diff{{
			Key:   rule.Name,
			Field: "coupons",
			Old:   "0",
			New:   fmt.Sprint(req.Quantity),
		}},
	})
	if err != nil {
		return plan.Plan{}, dErrors.Wrap(err, dErrors.CodeInternal, "could not store plan")
	}

	s.recordPrepared(ctx, sess, created, map[string]any{"rule_id": req.RuleID, "quantity": req.Quantity})
	return created, nil
}

// PrepareContentUpdate resolves each CMS entity to snapshot current values
// into review diffs, then stages the rewrite.
func (s *Service) PrepareContentUpdate(ctx context.Context, req ContentUpdateRequest) (plan.Plan, error) {
	ctx, span := s.span(ctx, "bulk.prepare", plan.ActionContentUpdate)
	defer span.End()

	sess, err := s.findSession(ctx, req.SessionID)
	if err != nil {
		return plan.Plan{}, err
	}
	scope, err := s.resolveScope(sess, req.Scope)
	if err != nil {
		return plan.Plan{}, err
	}
	if err := s.guards.EnforceBulkCap(len(req.Updates)); err != nil {
		return plan.Plan{}, err
	}

	resource := guardrail.ResourceCMSPage
	basePath := "cmsPage"
	if req.Kind == plan.ContentBlock {
		resource = guardrail.ResourceCMSBlock
		basePath = "cmsBlock"
	}
	var fields []string
	for _, u := range req.Updates {
		if u.Title != nil {
			fields = append(fields, "title")
		}
		if u.Content != nil {
			fields = append(fields, "content")
		}
	}
	if err := s.guards.EnforceAllowedFields(resource, fields); err != nil {
		return plan.Plan{}, err
	}

	var diffs []plan.Diff
	for _, u := range req.Updates {
		var current struct {
			ID    int64  `json:"id"`
			Title string `json:"title"`
		}
		if err := s.platform.Do(ctx, client.Call{
			Session: sess,
			Method:  http.MethodGet,
			Path:    fmt.Sprintf("%s/%d", basePath, u.ID),
			Out:     &current,
		}); err != nil {
			return plan.Plan{}, err
		}
		if u.Title != nil && len(diffs) < plan.MaxSampleDiffs {
			diffs = append(diffs, plan.Diff{
				Key:   fmt.Sprint(u.ID),
				Field: "title",
				Old:   current.Title,
				New:   *u.Title,
			})
		}
	}

	created, err := s.plans.Create(ctx, plan.NewPlan{
		Action: plan.ActionContentUpdate,
		Scope:  scope,
		Payload: plan.Payload{ContentUpdate: &plan.ContentUpdatePayload{
			Kind:    req.Kind,
			Updates: req.Updates,
		}},
		AffectedCount: len(req.Updates),
		SampleDiffs:   diffs,
	})
	if err != nil {
		return plan.Plan{}, dErrors.Wrap(err, dErrors.CodeInternal, "could not store plan")
	}

	s.recordPrepared(ctx, sess, created, map[string]any{"kind": string(req.Kind), "count": len(req.Updates)})
	return created, nil
}

// GetPlan returns a plan for review without consuming it.
func (s *Service) GetPlan(ctx context.Context, planID string) (plan.Plan, error) {
	p, err := s.plans.Get(ctx, planID)
	if errors.Is(err, sentinel.ErrNotFound) {
		return plan.Plan{}, dErrors.New(dErrors.CodePlanNotFound, "plan not found; it may have expired or already been committed")
	}
	if err != nil {
		return plan.Plan{}, dErrors.Wrap(err, dErrors.CodeInternal, "plan lookup failed")
	}
	return p, nil
}

func (s *Service) recordPrepared(ctx context.Context, sess session.Session, p plan.Plan, params map[string]any) {
	if s.metrics != nil {
		s.metrics.PlansCreated.Inc()
	}
	s.emit(audit.Event{
		ID:        uuid.NewString(),
		Timestamp: time.Now(),
		Actor:     sess.Username,
		Action:    audit.ActionPlanPrepared,
		SessionID: sess.ID,
		Scope:     scopeLabel(p.Scope),
		PlanID:    p.ID,
		Result:    fmt.Sprintf("plan staged for %d records", p.AffectedCount),
		RequestID: requestcontext.RequestID(ctx),
		Params:    audit.Redact(params),
	})
}
