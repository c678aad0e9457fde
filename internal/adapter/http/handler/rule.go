package handler

import (
	"context"
	"net/http"

	"github.com/google/uuid"

	"github.com/nomadride/surge-engine/internal/adapter/http/handler/dto"
	"github.com/nomadride/surge-engine/internal/domain/models"
	"github.com/nomadride/surge-engine/pkg/logger"
	wrap "github.com/nomadride/surge-engine/pkg/logger/wrapper"
	"github.com/nomadride/surge-engine/pkg/validator"
)

type RuleService interface {
	CreateRule(ctx context.Context, rule *models.SurgeRule) (*models.SurgeRule, error)
	GetRule(ctx context.Context, id uuid.UUID) (*models.SurgeRule, error)
	ListRules(ctx context.Context, zoneID *uuid.UUID, filters models.Filters) ([]*models.SurgeRule, models.Metadata, error)
	UpdateRule(ctx context.Context, rule *models.SurgeRule) (*models.SurgeRule, error)
	SetRuleActive(ctx context.Context, id uuid.UUID, active bool) (*models.SurgeRule, error)
	DeleteRule(ctx context.Context, id uuid.UUID) error
}

type Rule struct {
	s RuleService
	l logger.Logger
}

func NewRule(s RuleService, l logger.Logger) *Rule {
	return &Rule{
		s: s,
		l: l,
	}
}

// Create godoc
// @Summary      Create surge rule
// @Tags         Rules
// @Accept       json
// @Produce      json
// @Param        request body dto.CreateRuleRequest true "Rule definition"
// @Success      201  {object}  models.SurgeRule
// @Failure      422  {object}  map[string]string
// @Router       /surge/rules [post]
func (h *Rule) Create(w http.ResponseWriter, r *http.Request) {
	ctx := wrap.WithAction(r.Context(), "create_surge_rule")

	var req dto.CreateRuleRequest
	if err := readJSON(w, r, &req); err != nil {
		badRequestResponse(w, err.Error())
		return
	}

	v := validator.New()
	if req.Validate(v); !v.Valid() {
		failedValidationResponse(w, v.Errors)
		return
	}

	rule, err := h.s.CreateRule(ctx, req.ToModel())
	if err != nil {
		h.l.Error(wrap.ErrorCtx(ctx, err), "failed to create rule", err)
		errorResponse(w, GetCode(err), err.Error())
		return
	}

	if err := writeJSON(w, http.StatusCreated, envelope{"rule": rule}, nil); err != nil {
		h.l.Error(ctx, "failed to write response", err)
		w.WriteHeader(http.StatusInternalServerError)
	}
}

// Get godoc
// @Summary      Get surge rule
// @Tags         Rules
// @Produce      json
// @Param        rule_id path string true "Rule ID"
// @Success      200  {object}  models.SurgeRule
// @Failure      404  {object}  map[string]string
// @Router       /surge/rules/{rule_id} [get]
func (h *Rule) Get(w http.ResponseWriter, r *http.Request) {
	ctx := wrap.WithAction(r.Context(), "get_surge_rule")

	id, err := readUUIDParam(r, "rule_id")
	if err != nil {
		badRequestResponse(w, err.Error())
		return
	}

	rule, err := h.s.GetRule(ctx, id)
	if err != nil {
		errorResponse(w, GetCode(err), err.Error())
		return
	}

	if err := writeJSON(w, http.StatusOK, envelope{"rule": rule}, nil); err != nil {
		h.l.Error(ctx, "failed to write response", err)
		w.WriteHeader(http.StatusInternalServerError)
	}
}

var ruleSortSafeList = []string{"name", "priority", "created_at", "-name", "-priority", "-created_at"}

// List godoc
// @Summary      List surge rules
// @Tags         Rules
// @Produce      json
// @Param        page query int false "Page"
// @Param        page_size query int false "Page size"
// @Param        sort query string false "Sort column"
// @Param        zone_id query string false "Filter by zone"
// @Success      200  {object}  map[string]any
// @Router       /surge/rules [get]
func (h *Rule) List(w http.ResponseWriter, r *http.Request) {
	ctx := wrap.WithAction(r.Context(), "list_surge_rules")

	v := validator.New()
	qs := r.URL.Query()

	page := readInt(qs, "page", 1, v)
	pageSize := readInt(qs, "page_size", 20, v)
	sort := readString(qs, "sort", "-priority")

	var zoneID *uuid.UUID
	if raw := qs.Get("zone_id"); raw != "" {
		id, err := uuid.Parse(raw)
		if err != nil {
			badRequestResponse(w, "invalid zone_id parameter")
			return
		}
		zoneID = &id
	}

	filters, err := models.NewFilters(page, pageSize, sort, ruleSortSafeList)
	if err != nil {
		internalErrorResponse(w, "internal error")
		return
	}

	filters.Validate(v)
	if !v.Valid() {
		failedValidationResponse(w, v.Errors)
		return
	}

	rules, metadata, err := h.s.ListRules(ctx, zoneID, filters)
	if err != nil {
		h.l.Error(wrap.ErrorCtx(ctx, err), "failed to list rules", err)
		errorResponse(w, GetCode(err), err.Error())
		return
	}

	if err := writeJSON(w, http.StatusOK, envelope{"rules": rules, "metadata": metadata}, nil); err != nil {
		h.l.Error(ctx, "failed to write response", err)
		w.WriteHeader(http.StatusInternalServerError)
	}
}

// Update godoc
// @Summary      Update surge rule
// @Tags         Rules
// @Accept       json
// @Produce      json
// @Param        rule_id path string true "Rule ID"
// @Param        request body dto.UpdateRuleRequest true "New rule definition"
// @Success      200  {object}  models.SurgeRule
// @Router       /surge/rules/{rule_id} [patch]
func (h *Rule) Update(w http.ResponseWriter, r *http.Request) {
	ctx := wrap.WithAction(r.Context(), "update_surge_rule")

	id, err := readUUIDParam(r, "rule_id")
	if err != nil {
		badRequestResponse(w, err.Error())
		return
	}

	var req dto.UpdateRuleRequest
	if err := readJSON(w, r, &req); err != nil {
		badRequestResponse(w, err.Error())
		return
	}

	v := validator.New()
	if req.Validate(v); !v.Valid() {
		failedValidationResponse(w, v.Errors)
		return
	}

	rule, err := h.s.UpdateRule(ctx, req.ToModel(id))
	if err != nil {
		h.l.Error(wrap.ErrorCtx(ctx, err), "failed to update rule", err)
		errorResponse(w, GetCode(err), err.Error())
		return
	}

	if err := writeJSON(w, http.StatusOK, envelope{"rule": rule}, nil); err != nil {
		h.l.Error(ctx, "failed to write response", err)
		w.WriteHeader(http.StatusInternalServerError)
	}
}

// Toggle godoc
// @Summary      Toggle surge rule
// @Description  Flips the rule's active flag. Disabling the rule behind a running event lets the event release on the next tick.
// @Tags         Rules
// @Produce      json
// @Param        rule_id path string true "Rule ID"
// @Success      200  {object}  models.SurgeRule
// @Router       /surge/rules/{rule_id}/toggle [post]
func (h *Rule) Toggle(w http.ResponseWriter, r *http.Request) {
	ctx := wrap.WithAction(r.Context(), "toggle_surge_rule")

	id, err := readUUIDParam(r, "rule_id")
	if err != nil {
		badRequestResponse(w, err.Error())
		return
	}

	current, err := h.s.GetRule(ctx, id)
	if err != nil {
		errorResponse(w, GetCode(err), err.Error())
		return
	}

	rule, err := h.s.SetRuleActive(ctx, id, !current.IsActive)
	if err != nil {
		h.l.Error(wrap.ErrorCtx(ctx, err), "failed to toggle rule", err)
		errorResponse(w, GetCode(err), err.Error())
		return
	}

	if err := writeJSON(w, http.StatusOK, envelope{"rule": rule}, nil); err != nil {
		h.l.Error(ctx, "failed to write response", err)
		w.WriteHeader(http.StatusInternalServerError)
	}
}

// Delete godoc
// @Summary      Delete surge rule
// @Tags         Rules
// @Param        rule_id path string true "Rule ID"
// @Success      204
// @Router       /surge/rules/{rule_id} [delete]
func (h *Rule) Delete(w http.ResponseWriter, r *http.Request) {
	ctx := wrap.WithAction(r.Context(), "delete_surge_rule")

	id, err := readUUIDParam(r, "rule_id")
	if err != nil {
		badRequestResponse(w, err.Error())
		return
	}

	if err := h.s.DeleteRule(ctx, id); err != nil {
		h.l.Error(wrap.ErrorCtx(ctx, err), "failed to delete rule", err)
		errorResponse(w, GetCode(err), err.Error())
		return
	}

	w.WriteHeader(http.StatusNoContent)
}
