package api

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"twin-siege/internal/bus"
	"twin-siege/internal/protocol"

	"github.com/gorilla/websocket"
)

const (
	// MaxWSConnectionsTotal is the maximum number of spectator sockets
	MaxWSConnectionsTotal = 500

	// DefaultSpectatorsPerIP is used when no per-IP cap is configured
	DefaultSpectatorsPerIP = 5

	spectatorWriteTimeout = 5 * time.Second
	spectatorQueue        = 256
)

// SpectatorFrame is one broadcast relayed to the spectator feed
type SpectatorFrame struct {
	Team  int              `json:"team"`
	Event string           `json:"event"`
	Data  protocol.Message `json:"data"`
}

// SpectatorHub relays both teams' broadcasts to read-only websocket clients.
// Each socket gets its own bus subscriptions, so a slow spectator lags on
// its own cursor and never holds back participants.
type SpectatorHub struct {
	match     MatchInterface
	origins   *OriginChecker
	wsLimiter *WebSocketRateLimiter
	upgrader  websocket.Upgrader
	active    atomic.Int32
}

// NewSpectatorHub creates a hub. maxPerIP <= 0 uses DefaultSpectatorsPerIP.
func NewSpectatorHub(match MatchInterface, origins []string, maxPerIP int) *SpectatorHub {
	if maxPerIP <= 0 {
		maxPerIP = DefaultSpectatorsPerIP
	}
	if origins == nil {
		origins = []string{"http://localhost:*", "http://127.0.0.1:*"}
	}
	h := &SpectatorHub{
		match:     match,
		origins:   NewOriginChecker(origins),
		wsLimiter: NewWebSocketRateLimiter(maxPerIP),
	}
	h.upgrader = websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin: func(r *http.Request) bool {
			origin := r.Header.Get("Origin")
			if h.origins.Allowed(origin) {
				return true
			}
			log.Printf("⚠️ Spectator connection rejected from origin: %s", origin)
			RecordConnectionRejected("origin")
			return false
		},
	}
	return h
}

// ClientCount returns the number of open spectator sockets
func (h *SpectatorHub) ClientCount() int {
	return int(h.active.Load())
}

// HandleWebSocket upgrades the request and streams frames until the match
// ends or the client goes away
func (h *SpectatorHub) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	ip := GetClientIP(r)

	if h.ClientCount() >= MaxWSConnectionsTotal {
		log.Printf("⚠️ Spectator rejected: total limit reached (%d)", MaxWSConnectionsTotal)
		RecordConnectionRejected("ws_total_limit")
		http.Error(w, "Too many connections", http.StatusServiceUnavailable)
		return
	}
	if !h.wsLimiter.Allow(ip) {
		log.Printf("⚠️ Spectator rejected from %s: per-IP limit reached", ip)
		RecordConnectionRejected("ws_ip_limit")
		http.Error(w, "Too many connections from your IP", http.StatusTooManyRequests)
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("Spectator upgrade error: %v", err)
		h.wsLimiter.Release(ip)
		return
	}

	count := h.active.Add(1)
	UpdateWSConnections(int(count))
	log.Printf("📱 Spectator connected from %s (%d total)", ip, count)

	go func() {
		defer func() {
			h.wsLimiter.Release(ip)
			count := h.active.Add(-1)
			UpdateWSConnections(int(count))
			log.Printf("📱 Spectator disconnected (%d remaining)", count)
		}()
		h.serve(conn)
	}()
}

// serve owns conn until it is closed
func (h *SpectatorHub) serve(conn *websocket.Conn) {
	defer conn.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Spectators send nothing; reading detects the close
	go func() {
		defer cancel()
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	frames := make(chan SpectatorFrame, spectatorQueue)
	var pumps sync.WaitGroup
	for team := 0; team < 2; team++ {
		b := h.match.Bus(team)
		if b == nil {
			continue
		}
		pumps.Add(1)
		go func(team int, sub *bus.Subscription[protocol.Message]) {
			defer pumps.Done()
			defer sub.Close()
			pump(ctx, team, sub, frames)
		}(team, b.Subscribe())
	}
	go func() {
		pumps.Wait()
		close(frames)
	}()

	for frame := range frames {
		payload, err := json.Marshal(frame)
		if err != nil {
			continue
		}
		conn.SetWriteDeadline(time.Now().Add(spectatorWriteTimeout))
		if err := conn.WriteMessage(websocket.TextMessage, payload); err != nil {
			cancel()
			// Unblock the pumps
			for range frames {
			}
			return
		}
		IncrementWSMessages(frame.Team)
	}

	// Both buses closed: the match is over
	conn.SetWriteDeadline(time.Now().Add(spectatorWriteTimeout))
	conn.WriteMessage(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, "match over"))
}

// pump copies one team's broadcasts into frames until ctx ends or the bus closes
func pump(ctx context.Context, team int, sub *bus.Subscription[protocol.Message], frames chan<- SpectatorFrame) {
	for {
		msg, err := sub.Recv(ctx)
		if err != nil {
			if !errors.Is(err, bus.ErrClosed) && ctx.Err() == nil {
				log.Printf("⚠️ Spectator feed for team %d stopped: %v", team, err)
			}
			return
		}
		select {
		case frames <- SpectatorFrame{Team: team, Event: msg.Tag().String(), Data: msg}:
		case <-ctx.Done():
			return
		}
	}
}
