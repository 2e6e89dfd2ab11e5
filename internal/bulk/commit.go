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

// Commit executes a prepared plan exactly once. The order of checks is
// deliberate: confirmation and ledger lookups happen before the plan is
// consumed, so a rejected or replayed commit leaves the plan available for a
// corrected retry.
func (s *Service) Commit(ctx context.Context, req CommitRequest) (CommitResult, error) {
	sess, err := s.findSession(ctx, req.SessionID)
	if err != nil {
		return CommitResult{}, err
	}

	if req.IdempotencyKey != "" {
		if entry, err := s.ledger.Get(ctx, req.IdempotencyKey); err == nil {
			if s.metrics != nil {
				s.metrics.IdempotentReplays.Inc()
			}
			s.logger.Info("commit replayed from idempotency ledger",
				"key", req.IdempotencyKey, "action", entry.Action)
			s.emit(audit.Event{
				ID:        uuid.NewString(),
				Timestamp: time.Now(),
				Actor:     sess.Username,
				Action:    audit.ActionReplayServed,
				SessionID: sess.ID,
				PlanID:    req.PlanID,
				Result:    entry.Summary,
				RequestID: requestcontext.RequestID(ctx),
			})
			return CommitResult{
				PlanID:   req.PlanID,
				Action:   plan.Action(entry.Action),
				Summary:  entry.Summary,
				Replayed: true,
			}, nil
		}
	}

	// Peek before consuming: the confirmation gate needs the action's tier,
	// and a missing confirmation must not burn the plan.
	staged, err := s.GetPlan(ctx, req.PlanID)
	if err != nil {
		return CommitResult{}, err
	}

	ctx, span := s.span(ctx, "bulk.commit", staged.Action)
	defer span.End()

	tier, ok := riskTiers[staged.Action]
	if !ok {
		return CommitResult{}, dErrors.Newf(dErrors.CodeInternal, "no risk tier for action %q", staged.Action)
	}
	confirmation := guardrail.Confirmation{Confirm: req.Confirm, Reason: req.Reason}
	if err := s.guards.RequireConfirmation(tier, confirmation); err != nil {
		s.denied(ctx, sess, staged, err)
		return CommitResult{}, err
	}
	if err := s.guards.EnforceBulkCap(staged.AffectedCount); err != nil {
		s.denied(ctx, sess, staged, err)
		return CommitResult{}, err
	}

	consumed, err := s.plans.Consume(ctx, req.PlanID)
	if errors.Is(err, sentinel.ErrNotFound) {
		// Lost a race with a concurrent commit or the TTL sweep.
		return CommitResult{}, dErrors.New(dErrors.CodePlanNotFound, "plan not found; it may have expired or already been committed")
	}
	if err != nil {
		return CommitResult{}, dErrors.Wrap(err, dErrors.CodeInternal, "plan consume failed")
	}
	if s.metrics != nil {
		s.metrics.PlansConsumed.Inc()
	}

	result := s.apply(ctx, sess, consumed)
	result.Summary = fmt.Sprintf("%s: %d succeeded, %d failed", consumed.Action, result.SuccessCount, result.ErrorCount)

	if s.metrics != nil {
		outcome := "success"
		if result.ErrorCount > 0 {
			outcome = "partial"
		}
		s.metrics.CommitsTotal.WithLabelValues(string(consumed.Action), outcome).Inc()
		s.metrics.RecordsMutated.WithLabelValues("success").Add(float64(result.SuccessCount))
		s.metrics.RecordsMutated.WithLabelValues("error").Add(float64(result.ErrorCount))
	}

	if req.IdempotencyKey != "" {
		if err := s.ledger.Record(ctx, req.IdempotencyKey, string(consumed.Action), result.Summary); err != nil {
			// The mutation already happened; a ledger write failure must not
			// turn a completed commit into a reported error.
			s.logger.Error("idempotency ledger write failed", "key", req.IdempotencyKey, "error", err)
		}
	}

	s.emit(audit.Event{
		ID:            uuid.NewString(),
		Timestamp:     time.Now(),
		Actor:         sess.Username,
		Action:        audit.ActionPlanCommitted,
		SessionID:     sess.ID,
		Scope:         scopeLabel(consumed.Scope),
		PlanID:        consumed.ID,
		Justification: req.Reason,
		Result:        result.Summary,
		RequestID:     requestcontext.RequestID(ctx),
	})
	s.logger.Info("plan committed",
		"plan_id", consumed.ID,
		"action", consumed.Action,
		"succeeded", result.SuccessCount,
		"failed", result.ErrorCount)

	return result, nil
}

// notePlatformError feeds the platform failure counter; non-platform errors
// (validation, guardrails) stay out of it.
func (s *Service) notePlatformError(err error) {
	if s.metrics != nil && dErrors.HasCode(err, dErrors.CodePlatformError) {
		s.metrics.PlatformErrors.Inc()
	}
}

func (s *Service) denied(ctx context.Context, sess session.Session, staged plan.Plan, cause error) {
	if s.metrics != nil {
		s.metrics.GuardrailDenials.WithLabelValues(string(dErrors.CodeOf(cause))).Inc()
	}
	s.emit(audit.Event{
		ID:        uuid.NewString(),
		Timestamp: time.Now(),
		Actor:     sess.Username,
		Action:    audit.ActionCommitDenied,
		SessionID: sess.ID,
		Scope:     scopeLabel(staged.Scope),
		PlanID:    staged.ID,
		Result:    cause.Error(),
		RequestID: requestcontext.RequestID(ctx),
	})
}

// apply dispatches on the payload variant and mutates sequentially. One
// record failing never aborts the rest; the result carries both tallies.
func (s *Service) apply(ctx context.Context, sess session.Session, p plan.Plan) CommitResult {
	result := CommitResult{PlanID: p.ID, Action: p.Action}
	switch {
	case p.Payload.PriceUpdate != nil:
		s.applyPriceUpdate(ctx, sess, p, &result)
	case p.Payload.CouponBatch != nil:
		s.applyCouponBatch(ctx, sess, p, &result)
	case p.Payload.ContentUpdate != nil:
		s.applyContentUpdate(ctx, sess, p, &result)
	}
	return result
}

func (s *Service) applyPriceUpdate(ctx context.Context, sess session.Session, p plan.Plan, result *CommitResult) {
	storeCode := scopeStoreCode(p.Scope)
	for _, item := range p.Payload.PriceUpdate.Items {
		body := map[string]any{
			"product": map[string]any{
				"sku":   item.SKU,
				"price": item.NewPrice,
			},
		}
		err := s.platform.Do(ctx, client.Call{
			Session:   sess,
			Method:    http.MethodPut,
			Path:      "products/" + item.SKU,
			StoreCode: storeCode,
			Body:      body,
		})
		if err != nil {
			result.ErrorCount++
			result.Errors = append(result.Errors, RecordError{Key: item.SKU, Message: err.Error()})
			s.notePlatformError(err)
			s.logger.Warn("price update failed for record", "sku", item.SKU, "error", err)
			continue
		}
		result.SuccessCount++
	}
}

func (s *Service) applyCouponBatch(ctx context.Context, sess session.Session, p plan.Plan, result *CommitResult) {
	payload := p.Payload.CouponBatch
	body := map[string]any{
		"couponSpec": map[string]any{
			"rule_id":        payload.RuleID,
			"qty":            payload.Quantity,
			"format":         "alphanum",
			"prefix":         payload.Prefix,
			"length":         12,
			"quantity":       payload.Quantity,
			"delimiter_at_x": 4,
		},
	}
	var codes []string
	err := s.platform.Do(ctx, client.Call{
		Session: sess,
		Method:  http.MethodPost,
		Path:    "coupons/generate",
		Body:    body,
		Out:     &codes,
	})
	if err != nil {
		// Generation is a single platform call; it succeeds or fails as a
		// whole batch.
		result.ErrorCount = payload.Quantity
		result.Errors = append(result.Errors, RecordError{
			Key:     fmt.Sprintf("rule:%d", payload.RuleID),
			Message: err.Error(),
		})
		s.notePlatformError(err)
		return
	}
	// Success is counted from the codes the platform actually returned, not
	// the requested quantity.
	result.SuccessCount = len(codes)
	if result.SuccessCount != payload.Quantity {
		s.logger.Warn("coupon generation returned unexpected code count",
			"rule_id", payload.RuleID,
			"requested", payload.Quantity,
			"returned", result.SuccessCount)
	}
}

func (s *Service) applyContentUpdate(ctx context.Context, sess session.Session, p plan.Plan, result *CommitResult) {
	payload := p.Payload.ContentUpdate
	basePath, wrapper := "cmsPage", "page"
	if payload.Kind == plan.ContentBlock {
		basePath, wrapper = "cmsBlock", "block"
	}
	for _, change := range payload.Updates {
		fields := map[string]any{"id": change.ID}
		if change.Title != nil {
			fields["title"] = *change.Title
		}
		if change.Content != nil {
			fields["content"] = *change.Content
		}
		err := s.platform.Do(ctx, client.Call{
			Session: sess,
			Method:  http.MethodPut,
			Path:    fmt.Sprintf("%s/%d", basePath, change.ID),
			Body:    map[string]any{wrapper: fields},
		})
		if err != nil {
			result.ErrorCount++
			result.Errors = append(result.Errors, RecordError{
				Key:     fmt.Sprint(change.ID),
				Message: err.Error(),
			})
			s.notePlatformError(err)
			s.logger.Warn("content update failed for record", "id", change.ID, "error", err)
			continue
		}
		result.SuccessCount++
	}
}
