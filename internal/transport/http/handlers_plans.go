package httptransport

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"storegate/internal/bulk"
	"storegate/internal/plan"
	"storegate/internal/session"
	"storegate/internal/transport/http/shared"
	dErrors "storegate/pkg/domain-errors"
	"storegate/pkg/requestcontext"
)

// BulkService defines what the plan endpoints need from the bulk coordinator.
type BulkService interface {
	PreparePriceUpdate(ctx context.Context, req bulk.PriceUpdateRequest) (plan.Plan, error)
	PrepareCouponBatch(ctx context.Context, req bulk.CouponBatchRequest) (plan.Plan, error)
	PrepareContentUpdate(ctx context.Context, req bulk.ContentUpdateRequest) (plan.Plan, error)
	GetPlan(ctx context.Context, planID string) (plan.Plan, error)
	Commit(ctx context.Context, req bulk.CommitRequest) (bulk.CommitResult, error)
}

// PlanHandler owns the prepare, review, and commit endpoints.
type PlanHandler struct {
	bulk   BulkService
	logger *slog.Logger
}

func NewPlanHandler(bulkSvc BulkService, logger *slog.Logger) *PlanHandler {
	return &PlanHandler{bulk: bulkSvc, logger: logger}
}

type preparePriceUpdateRequest struct {
	Scope         *session.Scope `json:"scope,omitempty"`
	SKUPattern    string         `json:"sku_pattern"`
	SetPrice      *float64       `json:"set_price,omitempty"`
	AdjustPercent *float64       `json:"adjust_percent,omitempty"`
}

func (h *PlanHandler) handlePreparePriceUpdate(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req preparePriceUpdateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		shared.WriteError(w, dErrors.New(dErrors.CodeValidation, "invalid request body"))
		return
	}
	if req.SKUPattern == "" {
		shared.WriteError(w, dErrors.New(dErrors.CodeValidation, "sku_pattern is required"))
		return
	}
	if (req.SetPrice == nil) == (req.AdjustPercent == nil) {
		shared.WriteError(w, dErrors.New(dErrors.CodeValidation, "supply exactly one of set_price or adjust_percent"))
		return
	}

	p, err := h.bulk.PreparePriceUpdate(ctx, bulk.PriceUpdateRequest{
		SessionID:     requestcontext.SessionID(ctx),
		Scope:         req.Scope,
		SKUPattern:    req.SKUPattern,
		SetPrice:      req.SetPrice,
		AdjustPercent: req.AdjustPercent,
	})
	if err != nil {
		shared.WriteError(w, err)
		return
	}
	shared.WriteJSON(w, http.StatusCreated, p)
}

type prepareCouponBatchRequest struct {
	Scope          *session.Scope `json:"scope,omitempty"`
	RuleID         int64          `json:"rule_id"`
	Quantity       int            `json:"quantity"`
	Prefix         string         `json:"prefix,omitempty"`
	DiscountKind   string         `json:"discount_kind"`
	DiscountAmount float64        `json:"discount_amount"`
}

func (h *PlanHandler) handlePrepareCouponBatch(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req prepareCouponBatchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		shared.WriteError(w, dErrors.New(dErrors.CodeValidation, "invalid request body"))
		return
	}
	if req.RuleID <= 0 {
		shared.WriteError(w, dErrors.New(dErrors.CodeValidation, "rule_id is required"))
		return
	}
	if req.Quantity <= 0 {
		shared.WriteError(w, dErrors.New(dErrors.CodeValidation, "quantity must be positive"))
		return
	}

	p, err := h.bulk.PrepareCouponBatch(ctx, bulk.CouponBatchRequest{
		SessionID:      requestcontext.SessionID(ctx),
		Scope:          req.Scope,
		RuleID:         req.RuleID,
		Quantity:       req.Quantity,
		Prefix:         req.Prefix,
		DiscountKind:   req.DiscountKind,
		DiscountAmount: req.DiscountAmount,
	})
	if err != nil {
		shared.WriteError(w, err)
		return
	}
	shared.WriteJSON(w, http.StatusCreated, p)
}

type prepareContentUpdateRequest struct {
	Scope   *session.Scope       `json:"scope,omitempty"`
	Kind    plan.ContentKind     `json:"kind"`
	Updates []plan.ContentChange `json:"updates"`
}

func (h *PlanHandler) handlePrepareContentUpdate(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req prepareContentUpdateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		shared.WriteError(w, dErrors.New(dErrors.CodeValidation, "invalid request body"))
		return
	}
	if req.Kind != plan.ContentPage && req.Kind != plan.ContentBlock {
		shared.WriteError(w, dErrors.New(dErrors.CodeValidation, "kind must be cms_page or cms_block"))
		return
	}
	if len(req.Updates) == 0 {
		shared.WriteError(w, dErrors.New(dErrors.CodeValidation, "updates must not be empty"))
		return
	}

	p, err := h.bulk.PrepareContentUpdate(ctx, bulk.ContentUpdateRequest{
		SessionID: requestcontext.SessionID(ctx),
		Scope:     req.Scope,
		Kind:      req.Kind,
		Updates:   req.Updates,
	})
	if err != nil {
		shared.WriteError(w, err)
		return
	}
	shared.WriteJSON(w, http.StatusCreated, p)
}

func (h *PlanHandler) handleGet(w http.ResponseWriter, r *http.Request) {
	p, err := h.bulk.GetPlan(r.Context(), chi.URLParam(r, "planID"))
	if err != nil {
		shared.WriteError(w, err)
		return
	}
	shared.WriteJSON(w, http.StatusOK, p)
}

type commitRequest struct {
	PlanID  string `json:"plan_id"`
	Confirm bool   `json:"confirm"`
	Reason  string `json:"reason"`
}

func (h *PlanHandler) handleCommit(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req commitRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		shared.WriteError(w, dErrors.New(dErrors.CodeValidation, "invalid request body"))
		return
	}
	if req.PlanID == "" {
		shared.WriteError(w, dErrors.New(dErrors.CodeValidation, "plan_id is required"))
		return
	}

	result, err := h.bulk.Commit(ctx, bulk.CommitRequest{
		SessionID:      requestcontext.SessionID(ctx),
		PlanID:         req.PlanID,
		Confirm:        req.Confirm,
		Reason:         req.Reason,
		IdempotencyKey: r.Header.Get("Idempotency-Key"),
	})
	if err != nil {
		shared.WriteError(w, err)
		return
	}
	shared.WriteJSON(w, http.StatusOK, result)
}
