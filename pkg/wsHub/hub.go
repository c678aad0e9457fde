package ws

import (
	"context"
	"errors"
	"sync"

	"github.com/google/uuid"

	"github.com/nomadride/surge-engine/pkg/logger"
	wrap "github.com/nomadride/surge-engine/pkg/logger/wrapper"
)

var (
	ErrEmptyConn = errors.New("connection is empty")
)

// ZoneHub keeps track of dashboard subscriptions grouped by zone and fans
// committed zone updates out to every subscriber of that zone.
type ZoneHub struct {
	subscribers map[uuid.UUID]map[uuid.UUID]*Conn // zoneID -> connID -> conn
	l           logger.Logger
	mu          sync.Mutex
	wg          sync.WaitGroup
}

func NewZoneHub(l logger.Logger) *ZoneHub {
	return &ZoneHub{
		subscribers: make(map[uuid.UUID]map[uuid.UUID]*Conn),
		l:           l,
	}
}

// Subscribe registers a connection as a subscriber of the given zone.
func (h *ZoneHub) Subscribe(zoneID uuid.UUID, conn *Conn) error {
	if conn == nil {
		return ErrEmptyConn
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	zone, ok := h.subscribers[zoneID]
	if !ok {
		zone = make(map[uuid.UUID]*Conn)
		h.subscribers[zoneID] = zone
	}
	zone[conn.id] = conn
	h.wg.Add(1)

	h.l.Debug(wrap.WithZoneID(context.Background(), zoneID.String()),
		"dashboard subscribed", "conn_id", conn.id)

	return nil
}

// Unsubscribe removes and closes a connection.
func (h *ZoneHub) Unsubscribe(zoneID uuid.UUID, conn *Conn) {
	if conn == nil {
		return
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	zone, ok := h.subscribers[zoneID]
	if !ok {
		return
	}
	if _, ok := zone[conn.id]; !ok {
		return
	}

	delete(zone, conn.id)
	if len(zone) == 0 {
		delete(h.subscribers, zoneID)
	}

	if err := conn.Close(); err != nil {
		h.l.Warn(context.Background(), "failed to close ws connection", "err", err.Error())
	}
	h.wg.Done()
}

// Broadcast sends msg to every subscriber of the zone. Dead connections are
// dropped on write failure; the broadcast never blocks the caller on a slow
// client beyond the connection write deadline.
func (h *ZoneHub) Broadcast(zoneID uuid.UUID, msg any) {
	h.mu.Lock()
	conns := make([]*Conn, 0, len(h.subscribers[zoneID]))
	for _, c := range h.subscribers[zoneID] {
		conns = append(conns, c)
	}
	h.mu.Unlock()

	for _, c := range conns {
		if err := c.Send(msg); err != nil {
			h.l.Debug(wrap.WithZoneID(context.Background(), zoneID.String()),
				"dropping dead subscriber", "conn_id", c.id, "err", err.Error())
			h.Unsubscribe(zoneID, c)
		}
	}
}

// SubscriberCount reports the number of live subscribers for a zone.
func (h *ZoneHub) SubscriberCount(zoneID uuid.UUID) int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.subscribers[zoneID])
}

// CloseAll closes every connection and waits for all of them to be removed.
func (h *ZoneHub) CloseAll() {
	h.mu.Lock()
	pairs := make([]struct {
		zone uuid.UUID
		conn *Conn
	}, 0)
	for zoneID, zone := range h.subscribers {
		for _, c := range zone {
			pairs = append(pairs, struct {
				zone uuid.UUID
				conn *Conn
			}{zoneID, c})
		}
	}
	h.mu.Unlock()

	for _, p := range pairs {
		h.Unsubscribe(p.zone, p.conn)
	}
	h.wg.Wait()
}
