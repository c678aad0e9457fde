package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/nomadride/surge-engine/config"
	"github.com/nomadride/surge-engine/internal/adapter/http/handler"
	"github.com/nomadride/surge-engine/internal/adapter/http/middleware"
	wshandler "github.com/nomadride/surge-engine/internal/adapter/http/ws"
	"github.com/nomadride/surge-engine/pkg/logger"
	wrap "github.com/nomadride/surge-engine/pkg/logger/wrapper"
)

const serverIPAddress = "%s:%s"

const serviceName = "surge-engine"

type API struct {
	mux    *http.ServeMux
	server *http.Server
	routes *handlers
	m      *middleware.Middleware

	addr string
	cfg  config.Config
	log  logger.Logger
}

type handlers struct {
	zone      *handler.Zone
	rule      *handler.Rule
	surge     *handler.Surge
	settings  *handler.Settings
	analytics *handler.Analytics
	health    *handler.Health
	feed      *wshandler.ZoneFeed
}

func New(
	cfg config.Config,
	zoneService handler.ZoneService,
	ruleService handler.RuleService,
	surgeService handler.SurgeService,
	settingsService handler.SettingsService,
	analyticsService handler.AnalyticsService,
	feed *wshandler.ZoneFeed,
	tokens middleware.TokenVerifier,
	log logger.Logger,
) (*API, error) {
	if tokens == nil {
		return nil, errors.New("token verifier is required")
	}

	routes := &handlers{
		zone:      handler.NewZone(zoneService, log),
		rule:      handler.NewRule(ruleService, log),
		surge:     handler.NewSurge(surgeService, log),
		settings:  handler.NewSettings(settingsService, log),
		analytics: handler.NewAnalytics(analyticsService, log),
		health:    handler.NewHealth(serviceName, log),
		feed:      feed,
	}

	api := &API{
		mux:    http.NewServeMux(),
		routes: routes,
		m:      middleware.NewMiddleware(tokens, log),
		addr:   fmt.Sprintf(serverIPAddress, "0.0.0.0", cfg.Server.Port),
		cfg:    cfg,
		log:    log,
	}

	setupRoutes(api.mux, api.routes, api.m)

	api.server = &http.Server{
		Addr:    api.addr,
		Handler: api.withMiddleware(),
	}

	return api, nil
}

func (a *API) Stop(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	ctx = wrap.WithAction(ctx, "http_server_stop")

	a.log.Debug(ctx, "shutting down HTTP server...", "address", a.addr)
	if err := a.server.Shutdown(ctx); err != nil {
		return fmt.Errorf("error shutting down server: %w", err)
	}
	a.log.Debug(ctx, "shutting down HTTP server completed")

	return nil
}

func (a *API) Run(ctx context.Context, errCh chan<- error) {
	go func() {
		ctx = wrap.WithAction(ctx, "http_server_start")
		a.log.Info(ctx, "started http server", "address", a.addr)
		if err := a.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- fmt.Errorf("failed to start HTTP server: %w", err)
			return
		}
	}()
}

// withMiddleware applies middlewares to the mux
func (a *API) withMiddleware() http.Handler {
	metered := a.m.Metrics(serviceName)(a.mux)
	return a.m.Recover(a.m.RequestID(a.m.Auth(a.m.Logging(metered))))
}
