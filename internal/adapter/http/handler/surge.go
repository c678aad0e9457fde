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

type SurgeService interface {
	ActivateManual(ctx context.Context, operator *models.Operator, zoneID uuid.UUID, multiplier float64, reason string) (*models.SurgeEvent, error)
	DeactivateEvent(ctx context.Context, operator *models.Operator, eventID uuid.UUID) error
	ActiveEvents(ctx context.Context, zoneID *uuid.UUID) []*models.SurgeEvent
	EventHistory(ctx context.Context, zoneID *uuid.UUID, filters models.Filters) ([]*models.SurgeEvent, models.Metadata, error)
	GetEvent(ctx context.Context, id uuid.UUID) (*models.SurgeEvent, error)
}

type Surge struct {
	s SurgeService
	l logger.Logger
}

func NewSurge(s SurgeService, l logger.Logger) *Surge {
	return &Surge{
		s: s,
		l: l,
	}
}

// ActivateManual godoc
// @Summary      Manual surge activation
// @Description  Starts an operator-controlled surge event, replacing any rule-driven event in the zone.
// @Tags         Surge
// @Accept       json
// @Produce      json
// @Param        request body dto.ManualSurgeRequest true "Activation request"
// @Success      201  {object}  models.SurgeEvent
// @Failure      403  {object}  map[string]string
// @Failure      409  {object}  map[string]string
// @Failure      422  {object}  map[string]string
// @Security     BearerAuth
// @Router       /surge/manual [post]
func (h *Surge) ActivateManual(w http.ResponseWriter, r *http.Request) {
	ctx := wrap.WithAction(r.Context(), "manual_surge_activation")

	var req dto.ManualSurgeRequest
	if err := readJSON(w, r, &req); err != nil {
		badRequestResponse(w, err.Error())
		return
	}

	v := validator.New()
	if req.Validate(v); !v.Valid() {
		failedValidationResponse(w, v.Errors)
		return
	}

	operator := models.OperatorFromContext(ctx)

	event, err := h.s.ActivateManual(ctx, operator, req.ZoneID, req.Multiplier, req.Reason)
	if err != nil {
		h.l.Error(wrap.ErrorCtx(ctx, err), "manual surge activation failed", err)
		errorResponse(w, GetCode(err), err.Error())
		return
	}

	if err := writeJSON(w, http.StatusCreated, envelope{"event": event}, nil); err != nil {
		h.l.Error(ctx, "failed to write response", err)
		w.WriteHeader(http.StatusInternalServerError)
	}
}

// Deactivate godoc
// @Summary      Deactivate surge event
// @Description  Closes the event. Deactivating an already closed event succeeds without effect.
// @Tags         Surge
// @Produce      json
// @Param        event_id path string true "Event ID"
// @Success      200  {object}  map[string]string
// @Failure      404  {object}  map[string]string
// @Security     BearerAuth
// @Router       /surge/events/{event_id}/deactivate [post]
func (h *Surge) Deactivate(w http.ResponseWriter, r *http.Request) {
	ctx := wrap.WithAction(r.Context(), "deactivate_surge_event")

	id, err := readUUIDParam(r, "event_id")
	if err != nil {
		badRequestResponse(w, err.Error())
		return
	}

	operator := models.OperatorFromContext(ctx)

	if err := h.s.DeactivateEvent(ctx, operator, id); err != nil {
		h.l.Error(wrap.ErrorCtx(ctx, err), "deactivate surge event failed", err)
		errorResponse(w, GetCode(err), err.Error())
		return
	}

	if err := writeJSON(w, http.StatusOK, envelope{"status": "deactivated"}, nil); err != nil {
		h.l.Error(ctx, "failed to write response", err)
		w.WriteHeader(http.StatusInternalServerError)
	}
}

// Active godoc
// @Summary      Active surge events
// @Tags         Surge
// @Produce      json
// @Param        zone_id query string false "Filter by zone"
// @Success      200  {object}  map[string]any
// @Router       /surge/events/active [get]
func (h *Surge) Active(w http.ResponseWriter, r *http.Request) {
	ctx := wrap.WithAction(r.Context(), "list_active_surge_events")

	var zoneID *uuid.UUID
	if raw := r.URL.Query().Get("zone_id"); raw != "" {
		id, err := uuid.Parse(raw)
		if err != nil {
			badRequestResponse(w, "invalid zone_id parameter")
			return
		}
		zoneID = &id
	}

	events := h.s.ActiveEvents(ctx, zoneID)

	if err := writeJSON(w, http.StatusOK, envelope{"events": events, "count": len(events)}, nil); err != nil {
		h.l.Error(ctx, "failed to write response", err)
		w.WriteHeader(http.StatusInternalServerError)
	}
}

var eventSortSafeList = []string{"started_at", "ended_at", "created_at", "-started_at", "-ended_at", "-created_at"}

// History godoc
// @Summary      Surge event history
// @Tags         Surge
// @Produce      json
// @Param        zone_id query string false "Filter by zone"
// @Param        page query int false "Page"
// @Param        page_size query int false "Page size"
// @Success      200  {object}  map[string]any
// @Router       /surge/events [get]
func (h *Surge) History(w http.ResponseWriter, r *http.Request) {
	ctx := wrap.WithAction(r.Context(), "surge_event_history")

	v := validator.New()
	qs := r.URL.Query()

	page := readInt(qs, "page", 1, v)
	pageSize := readInt(qs, "page_size", 20, v)
	sort := readString(qs, "sort", "-started_at")

	var zoneID *uuid.UUID
	if raw := qs.Get("zone_id"); raw != "" {
		id, err := uuid.Parse(raw)
		if err != nil {
			badRequestResponse(w, "invalid zone_id parameter")
			return
		}
		zoneID = &id
	}

	filters, err := models.NewFilters(page, pageSize, sort, eventSortSafeList)
	if err != nil {
		internalErrorResponse(w, "internal error")
		return
	}

	filters.Validate(v)
	if !v.Valid() {
		failedValidationResponse(w, v.Errors)
		return
	}

	events, metadata, err := h.s.EventHistory(ctx, zoneID, filters)
	if err != nil {
		h.l.Error(wrap.ErrorCtx(ctx, err), "failed to list surge events", err)
		errorResponse(w, GetCode(err), err.Error())
		return
	}

	if err := writeJSON(w, http.StatusOK, envelope{"events": events, "metadata": metadata}, nil); err != nil {
		h.l.Error(ctx, "failed to write response", err)
		w.WriteHeader(http.StatusInternalServerError)
	}
}

// Get godoc
// @Summary      Get surge event
// @Tags         Surge
// @Produce      json
// @Param        event_id path string true "Event ID"
// @Success      200  {object}  models.SurgeEvent
// @Failure      404  {object}  map[string]string
// @Router       /surge/events/{event_id} [get]
func (h *Surge) Get(w http.ResponseWriter, r *http.Request) {
	ctx := wrap.WithAction(r.Context(), "get_surge_event")

	id, err := readUUIDParam(r, "event_id")
	if err != nil {
		badRequestResponse(w, err.Error())
		return
	}

	event, err := h.s.GetEvent(ctx, id)
	if err != nil {
		errorResponse(w, GetCode(err), err.Error())
		return
	}

	if err := writeJSON(w, http.StatusOK, envelope{"event": event}, nil); err != nil {
		h.l.Error(ctx, "failed to write response", err)
		w.WriteHeader(http.StatusInternalServerError)
	}
}
