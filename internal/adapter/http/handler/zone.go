package handler

import (
	"context"
	"net/http"

	"github.com/google/uuid"

	"github.com/nomadride/surge-engine/internal/adapter/http/handler/dto"
	"github.com/nomadride/surge-engine/internal/domain/models"
	"github.com/nomadride/surge-engine/internal/engine/scheduler"
	"github.com/nomadride/surge-engine/pkg/logger"
	wrap "github.com/nomadride/surge-engine/pkg/logger/wrapper"
	"github.com/nomadride/surge-engine/pkg/validator"
)

type ZoneService interface {
	CreateZone(ctx context.Context, zone *models.Zone) (*models.Zone, error)
	GetZone(ctx context.Context, id uuid.UUID) (*models.Zone, error)
	ListZones(ctx context.Context, filters models.Filters) ([]*models.Zone, models.Metadata, error)
	UpdateZone(ctx context.Context, zone *models.Zone) (*models.Zone, error)
	DeleteZone(ctx context.Context, id uuid.UUID) error
	CurrentMultiplier(ctx context.Context, zoneID uuid.UUID) (float64, error)
	ZoneStatus(ctx context.Context, zoneID uuid.UUID) (*scheduler.ZoneView, error)
}

type Zone struct {
	s ZoneService
	l logger.Logger
}

func NewZone(s ZoneService, l logger.Logger) *Zone {
	return &Zone{
		s: s,
		l: l,
	}
}

// Create godoc
// @Summary      Create zone
// @Description  Registers a new pricing zone with a boundary polygon
// @Tags         Zones
// @Accept       json
// @Produce      json
// @Param        request body dto.CreateZoneRequest true "Zone definition"
// @Success      201  {object}  models.Zone
// @Failure      422  {object}  map[string]string
// @Router       /zones [post]
func (h *Zone) Create(w http.ResponseWriter, r *http.Request) {
	ctx := wrap.WithAction(r.Context(), "create_zone")

	var req dto.CreateZoneRequest
	if err := readJSON(w, r, &req); err != nil {
		badRequestResponse(w, err.Error())
		return
	}

	v := validator.New()
	if req.Validate(v); !v.Valid() {
		failedValidationResponse(w, v.Errors)
		return
	}

	zone, err := h.s.CreateZone(ctx, req.ToModel())
	if err != nil {
		h.l.Error(wrap.ErrorCtx(ctx, err), "failed to create zone", err)
		errorResponse(w, GetCode(err), err.Error())
		return
	}

	if err := writeJSON(w, http.StatusCreated, envelope{"zone": zone}, nil); err != nil {
		h.l.Error(ctx, "failed to write response", err)
		w.WriteHeader(http.StatusInternalServerError)
	}
}

// Get godoc
// @Summary      Get zone
// @Tags         Zones
// @Produce      json
// @Param        zone_id path string true "Zone ID"
// @Success      200  {object}  models.Zone
// @Failure      404  {object}  map[string]string
// @Router       /zones/{zone_id} [get]
func (h *Zone) Get(w http.ResponseWriter, r *http.Request) {
	ctx := wrap.WithAction(r.Context(), "get_zone")

	id, err := readUUIDParam(r, "zone_id")
	if err != nil {
		badRequestResponse(w, err.Error())
		return
	}

	zone, err := h.s.GetZone(ctx, id)
	if err != nil {
		errorResponse(w, GetCode(err), err.Error())
		return
	}

	if err := writeJSON(w, http.StatusOK, envelope{"zone": zone}, nil); err != nil {
		h.l.Error(ctx, "failed to write response", err)
		w.WriteHeader(http.StatusInternalServerError)
	}
}

var zoneSortSafeList = []string{"name", "created_at", "updated_at", "-name", "-created_at", "-updated_at"}

// List godoc
// @Summary      List zones
// @Tags         Zones
// @Produce      json
// @Param        page query int false "Page"
// @Param        page_size query int false "Page size"
// @Param        sort query string false "Sort column"
// @Success      200  {object}  map[string]any
// @Router       /zones [get]
func (h *Zone) List(w http.ResponseWriter, r *http.Request) {
	ctx := wrap.WithAction(r.Context(), "list_zones")

	v := validator.New()
	qs := r.URL.Query()

	page := readInt(qs, "page", 1, v)
	pageSize := readInt(qs, "page_size", 20, v)
	sort := readString(qs, "sort", "created_at")

	filters, err := models.NewFilters(page, pageSize, sort, zoneSortSafeList)
	if err != nil {
		internalErrorResponse(w, "internal error")
		return
	}

	filters.Validate(v)
	if !v.Valid() {
		failedValidationResponse(w, v.Errors)
		return
	}

	zones, metadata, err := h.s.ListZones(ctx, filters)
	if err != nil {
		h.l.Error(wrap.ErrorCtx(ctx, err), "failed to list zones", err)
		errorResponse(w, GetCode(err), err.Error())
		return
	}

	if err := writeJSON(w, http.StatusOK, envelope{"zones": zones, "metadata": metadata}, nil); err != nil {
		h.l.Error(ctx, "failed to write response", err)
		w.WriteHeader(http.StatusInternalServerError)
	}
}

// Update godoc
// @Summary      Update zone
// @Description  Partially updates a zone. Deactivating a zone with an active surge event is rejected.
// @Tags         Zones
// @Accept       json
// @Produce      json
// @Param        zone_id path string true "Zone ID"
// @Param        request body dto.UpdateZoneRequest true "Fields to change"
// @Success      200  {object}  models.Zone
// @Failure      409  {object}  map[string]string
// @Router       /zones/{zone_id} [patch]
func (h *Zone) Update(w http.ResponseWriter, r *http.Request) {
	ctx := wrap.WithAction(r.Context(), "update_zone")

	id, err := readUUIDParam(r, "zone_id")
	if err != nil {
		badRequestResponse(w, err.Error())
		return
	}

	var req dto.UpdateZoneRequest
	if err := readJSON(w, r, &req); err != nil {
		badRequestResponse(w, err.Error())
		return
	}

	zone, err := h.s.GetZone(ctx, id)
	if err != nil {
		errorResponse(w, GetCode(err), err.Error())
		return
	}

	req.Apply(zone)

	v := validator.New()
	if zone.Validate(v); !v.Valid() {
		failedValidationResponse(w, v.Errors)
		return
	}

	updated, err := h.s.UpdateZone(ctx, zone)
	if err != nil {
		h.l.Error(wrap.ErrorCtx(ctx, err), "failed to update zone", err)
		errorResponse(w, GetCode(err), err.Error())
		return
	}

	if err := writeJSON(w, http.StatusOK, envelope{"zone": updated}, nil); err != nil {
		h.l.Error(ctx, "failed to write response", err)
		w.WriteHeader(http.StatusInternalServerError)
	}
}

// Delete godoc
// @Summary      Delete zone
// @Tags         Zones
// @Param        zone_id path string true "Zone ID"
// @Success      204
// @Failure      409  {object}  map[string]string
// @Router       /zones/{zone_id} [delete]
func (h *Zone) Delete(w http.ResponseWriter, r *http.Request) {
	ctx := wrap.WithAction(r.Context(), "delete_zone")

	id, err := readUUIDParam(r, "zone_id")
	if err != nil {
		badRequestResponse(w, err.Error())
		return
	}

	if err := h.s.DeleteZone(ctx, id); err != nil {
		h.l.Error(wrap.ErrorCtx(ctx, err), "failed to delete zone", err)
		errorResponse(w, GetCode(err), err.Error())
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// Multiplier godoc
// @Summary      Current zone multiplier
// @Description  The multiplier the fare calculator applies right now; 1.0 when no surge is active.
// @Tags         Zones
// @Produce      json
// @Param        zone_id path string true "Zone ID"
// @Success      200  {object}  map[string]any
// @Router       /zones/{zone_id}/multiplier [get]
func (h *Zone) Multiplier(w http.ResponseWriter, r *http.Request) {
	ctx := wrap.WithAction(r.Context(), "get_zone_multiplier")

	id, err := readUUIDParam(r, "zone_id")
	if err != nil {
		badRequestResponse(w, err.Error())
		return
	}

	multiplier, err := h.s.CurrentMultiplier(ctx, id)
	if err != nil {
		errorResponse(w, GetCode(err), err.Error())
		return
	}

	if err := writeJSON(w, http.StatusOK, envelope{"zone_id": id, "multiplier": multiplier}, nil); err != nil {
		h.l.Error(ctx, "failed to write response", err)
		w.WriteHeader(http.StatusInternalServerError)
	}
}

// Status godoc
// @Summary      Live zone pricing status
// @Description  Current multiplier, active event if any, and the metrics snapshot behind the last evaluation.
// @Tags         Zones
// @Produce      json
// @Param        zone_id path string true "Zone ID"
// @Success      200  {object}  map[string]any
// @Failure      404  {object}  map[string]string
// @Router       /zones/{zone_id}/status [get]
func (h *Zone) Status(w http.ResponseWriter, r *http.Request) {
	ctx := wrap.WithAction(r.Context(), "get_zone_status")

	id, err := readUUIDParam(r, "zone_id")
	if err != nil {
		badRequestResponse(w, err.Error())
		return
	}

	view, err := h.s.ZoneStatus(ctx, id)
	if err != nil {
		errorResponse(w, GetCode(err), err.Error())
		return
	}

	if err := writeJSON(w, http.StatusOK, envelope{"status": view}, nil); err != nil {
		h.l.Error(ctx, "failed to write response", err)
		w.WriteHeader(http.StatusInternalServerError)
	}
}
