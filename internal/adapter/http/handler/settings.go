package handler

import (
	"context"
	"net/http"

	"github.com/nomadride/surge-engine/internal/adapter/http/handler/dto"
	"github.com/nomadride/surge-engine/internal/domain/models"
	"github.com/nomadride/surge-engine/pkg/logger"
	wrap "github.com/nomadride/surge-engine/pkg/logger/wrapper"
	"github.com/nomadride/surge-engine/pkg/validator"
)

type SettingsService interface {
	Settings(ctx context.Context) models.PricingSettings
	UpdateSettings(ctx context.Context, settings models.PricingSettings) (models.PricingSettings, error)
}

type Settings struct {
	s SettingsService
	l logger.Logger
}

func NewSettings(s SettingsService, l logger.Logger) *Settings {
	return &Settings{
		s: s,
		l: l,
	}
}

// Get godoc
// @Summary      Pricing settings
// @Tags         Settings
// @Produce      json
// @Success      200  {object}  dto.SettingsResponse
// @Router       /surge/settings [get]
func (h *Settings) Get(w http.ResponseWriter, r *http.Request) {
	ctx := wrap.WithAction(r.Context(), "get_pricing_settings")

	settings := h.s.Settings(ctx)

	if err := writeJSON(w, http.StatusOK, envelope{"settings": dto.NewSettingsResponse(settings)}, nil); err != nil {
		h.l.Error(ctx, "failed to write response", err)
		w.WriteHeader(http.StatusInternalServerError)
	}
}

// Update godoc
// @Summary      Update pricing settings
// @Description  Publishes a new settings snapshot. Disabling pricing globally drains all active surge events within one evaluation interval.
// @Tags         Settings
// @Accept       json
// @Produce      json
// @Param        request body dto.UpdateSettingsRequest true "New settings"
// @Success      200  {object}  dto.SettingsResponse
// @Failure      422  {object}  map[string]string
// @Security     BearerAuth
// @Router       /surge/settings [put]
func (h *Settings) Update(w http.ResponseWriter, r *http.Request) {
	ctx := wrap.WithAction(r.Context(), "update_pricing_settings")

	var req dto.UpdateSettingsRequest
	if err := readJSON(w, r, &req); err != nil {
		badRequestResponse(w, err.Error())
		return
	}

	v := validator.New()
	if req.Validate(v); !v.Valid() {
		failedValidationResponse(w, v.Errors)
		return
	}

	updated, err := h.s.UpdateSettings(ctx, req.ToModel())
	if err != nil {
		h.l.Error(wrap.ErrorCtx(ctx, err), "failed to update settings", err)
		errorResponse(w, GetCode(err), err.Error())
		return
	}

	if err := writeJSON(w, http.StatusOK, envelope{"settings": dto.NewSettingsResponse(updated)}, nil); err != nil {
		h.l.Error(ctx, "failed to write response", err)
		w.WriteHeader(http.StatusInternalServerError)
	}
}
