package server

import (
	"net/http"

	"github.com/nomadride/surge-engine/internal/adapter/http/middleware"
	"github.com/nomadride/surge-engine/internal/domain/types"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	httpSwagger "github.com/swaggo/http-swagger"
)

// setupRoutes - setups http routes
func setupRoutes(mux *http.ServeMux, routes *handlers, m *middleware.Middleware) {
	// System Health
	mux.HandleFunc("/health", routes.health.HealthCheck)

	setupSwaggerRoutes(mux)
	setupMetricsRoute(mux)

	setupZoneRoutes(mux, routes, m)
	setupRuleRoutes(mux, routes, m)
	setupSurgeRoutes(mux, routes, m)
}

// setupZoneRoutes setups zone management and zone pricing routes
func setupZoneRoutes(mux *http.ServeMux, routes *handlers, m *middleware.Middleware) {
	mux.HandleFunc("GET /zones", routes.zone.List)                                        // List zones with pagination
	mux.Handle("POST /zones", m.RequireRoles(routes.zone.Create, types.RoleAdmin))        // Create a pricing zone
	mux.HandleFunc("GET /zones/{zone_id}", routes.zone.Get)                               // Get a single zone
	mux.Handle("PATCH /zones/{zone_id}", m.RequireRoles(routes.zone.Update, types.RoleAdmin))
	mux.Handle("DELETE /zones/{zone_id}", m.RequireRoles(routes.zone.Delete, types.RoleAdmin))
	mux.HandleFunc("GET /zones/{zone_id}/multiplier", routes.zone.Multiplier)             // Current effective multiplier
	mux.HandleFunc("GET /zones/{zone_id}/status", routes.zone.Status)                     // Live pricing status
	mux.HandleFunc("GET /ws/zones/{zone_id}/metrics", routes.feed.Handle)                 // WebSocket live zone feed
}

// setupRuleRoutes setups surge rule management routes
func setupRuleRoutes(mux *http.ServeMux, routes *handlers, m *middleware.Middleware) {
	mux.HandleFunc("GET /surge/rules", routes.rule.List)
	mux.Handle("POST /surge/rules", m.RequireRoles(routes.rule.Create, types.RoleAdmin))
	mux.HandleFunc("GET /surge/rules/{rule_id}", routes.rule.Get)
	mux.Handle("PATCH /surge/rules/{rule_id}", m.RequireRoles(routes.rule.Update, types.RoleAdmin))
	mux.Handle("DELETE /surge/rules/{rule_id}", m.RequireRoles(routes.rule.Delete, types.RoleAdmin))
	mux.Handle("POST /surge/rules/{rule_id}/toggle", m.RequireRoles(routes.rule.Toggle, types.RoleAdmin))
}

// setupSurgeRoutes setups surge event, override, analytics and settings routes
func setupSurgeRoutes(mux *http.ServeMux, routes *handlers, m *middleware.Middleware) {
	mux.HandleFunc("GET /surge/events", routes.surge.History)        // Event history with pagination
	mux.HandleFunc("GET /surge/events/active", routes.surge.Active)  // Currently active events
	mux.HandleFunc("GET /surge/events/{event_id}", routes.surge.Get) // Single event with tally

	mux.Handle("POST /surge/manual", m.RequireRoles(routes.surge.ActivateManual, types.RoleAdmin, types.RoleOperator))
	mux.Handle("POST /surge/events/{event_id}/deactivate", m.RequireRoles(routes.surge.Deactivate, types.RoleAdmin, types.RoleOperator))

	mux.HandleFunc("GET /surge/analytics", routes.analytics.Report)

	mux.HandleFunc("GET /surge/settings", routes.settings.Get)
	mux.Handle("PUT /surge/settings", m.RequireRoles(routes.settings.Update, types.RoleAdmin))
}

// setupSwaggerRoutes configures the Swagger UI endpoint
func setupSwaggerRoutes(mux *http.ServeMux) {
	swaggerURL := httpSwagger.InstanceName("surge")
	mux.HandleFunc("/swagger/", httpSwagger.Handler(swaggerURL))
}

// setupMetricsRoute configures the Prometheus metrics endpoint
func setupMetricsRoute(mux *http.ServeMux) {
	mux.Handle("/metrics", promhttp.Handler())
}
