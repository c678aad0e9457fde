package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/nomadride/surge-engine/internal/domain/models"
	"github.com/nomadride/surge-engine/pkg/logger"
	wrap "github.com/nomadride/surge-engine/pkg/logger/wrapper"
)

type AnalyticsService interface {
	Analytics(ctx context.Context, from, to time.Time, zoneID *uuid.UUID) (*models.PricingAnalytics, error)
}

type Analytics struct {
	s AnalyticsService
	l logger.Logger
}

func NewAnalytics(s AnalyticsService, l logger.Logger) *Analytics {
	return &Analytics{
		s: s,
		l: l,
	}
}

// Report godoc
// @Summary      Pricing analytics
// @Description  Aggregates surge events over a period: totals, multiplier stats, revenue impact, per-zone and per-hour breakdowns.
// @Tags         Analytics
// @Produce      json
// @Param        start query string true "Period start (RFC 3339)"
// @Param        end query string true "Period end (RFC 3339)"
// @Param        zone_id query string false "Filter by zone"
// @Success      200  {object}  models.PricingAnalytics
// @Router       /surge/analytics [get]
func (h *Analytics) Report(w http.ResponseWriter, r *http.Request) {
	ctx := wrap.WithAction(r.Context(), "pricing_analytics")

	qs := r.URL.Query()

	from, err := time.Parse(time.RFC3339, qs.Get("start"))
	if err != nil {
		badRequestResponse(w, "start must be an RFC 3339 timestamp")
		return
	}

	to, err := time.Parse(time.RFC3339, qs.Get("end"))
	if err != nil {
		badRequestResponse(w, "end must be an RFC 3339 timestamp")
		return
	}

	if !to.After(from) {
		badRequestResponse(w, "end must be after start")
		return
	}

	var zoneID *uuid.UUID
	if raw := qs.Get("zone_id"); raw != "" {
		id, err := uuid.Parse(raw)
		if err != nil {
			badRequestResponse(w, "invalid zone_id parameter")
			return
		}
		zoneID = &id
	}

	report, err := h.s.Analytics(ctx, from, to, zoneID)
	if err != nil {
		h.l.Error(wrap.ErrorCtx(ctx, err), "failed to build analytics report", err)
		errorResponse(w, GetCode(err), err.Error())
		return
	}

	if err := writeJSON(w, http.StatusOK, envelope{"analytics": report}, nil); err != nil {
		h.l.Error(ctx, "failed to write response", err)
		w.WriteHeader(http.StatusInternalServerError)
	}
}
