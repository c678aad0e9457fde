package wshandler

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/nomadride/surge-engine/internal/domain/models"
	"github.com/nomadride/surge-engine/internal/engine/scheduler"
	"github.com/nomadride/surge-engine/pkg/logger"
	ws "github.com/nomadride/surge-engine/pkg/wsHub"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// ZoneFeed streams per-tick zone state and lifecycle transitions to
// dashboard websocket subscribers. It is both the HTTP upgrade endpoint and
// a scheduler tick sink; it remembers the last view per zone so a new
// subscriber gets a frame immediately.
type ZoneFeed struct {
	hub *ws.ZoneHub
	l   logger.Logger

	mu    sync.RWMutex
	views map[uuid.UUID]scheduler.ZoneView
}

func NewZoneFeed(hub *ws.ZoneHub, l logger.Logger) *ZoneFeed {
	return &ZoneFeed{
		hub:   hub,
		l:     l,
		views: make(map[uuid.UUID]scheduler.ZoneView),
	}
}

type feedMessage struct {
	Type       string              `json:"type"` // "tick" or "lifecycle"
	Transition string              `json:"transition,omitempty"`
	View       *scheduler.ZoneView `json:"view,omitempty"`
	Event      *models.SurgeEvent  `json:"event,omitempty"`
	SentAt     time.Time           `json:"sent_at"`
}

func (f *ZoneFeed) PublishTick(ctx context.Context, view scheduler.ZoneView) {
	f.mu.Lock()
	f.views[view.ZoneID] = view
	f.mu.Unlock()

	if f.hub.SubscriberCount(view.ZoneID) == 0 {
		return
	}
	f.hub.Broadcast(view.ZoneID, feedMessage{Type: "tick", View: &view, SentAt: time.Now()})
}

func (f *ZoneFeed) PublishLifecycle(ctx context.Context, event *models.SurgeEvent, transition string) {
	if f.hub.SubscriberCount(event.ZoneID) == 0 {
		return
	}
	f.hub.Broadcast(event.ZoneID, feedMessage{
		Type:       "lifecycle",
		Transition: transition,
		Event:      event,
		SentAt:     time.Now(),
	})
}

// Handle upgrades GET /ws/zones/{zone_id}/metrics and keeps the connection
// subscribed until the client goes away.
func (f *ZoneFeed) Handle(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	zoneID, err := uuid.Parse(r.PathValue("zone_id"))
	if err != nil {
		http.Error(w, "invalid zone id", http.StatusBadRequest)
		return
	}

	wsConn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		f.l.Warn(ctx, "websocket upgrade failed", "err", err.Error())
		return
	}

	conn := ws.NewConn(ctx, wsConn)
	if err := f.hub.Subscribe(zoneID, conn); err != nil {
		f.l.Warn(ctx, "zone feed subscribe failed", "err", err.Error())
		_ = conn.Close()
		return
	}
	defer f.hub.Unsubscribe(zoneID, conn)

	f.l.Info(ctx, "zone feed subscriber connected",
		"zone_id", zoneID.String(), "conn_id", conn.ID().String())

	// Send the current picture immediately so dashboards do not wait a full
	// evaluation interval for their first frame.
	f.mu.RLock()
	view, ok := f.views[zoneID]
	f.mu.RUnlock()
	if ok {
		_ = conn.Send(feedMessage{Type: "tick", View: &view, SentAt: time.Now()})
	}

	conn.Wait()
}
