// Package ws streams combat events over WebSocket. Clients may narrow the
// stream at any time by sending a filter packet.
package ws

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/kasuganosora/combatcore/cache"
	"github.com/kasuganosora/combatcore/game/telemetry"
	"go.uber.org/zap"
)

const (
	sendChanBuf   = 256
	writeDeadline = 10 * time.Second
	readDeadline  = 60 * time.Second
	pingInterval  = 30 * time.Second
)

// Packet types.
const (
	TypeWelcome  = "welcome"
	TypeEvent    = "event"
	TypeFilter   = "filter"
	TypeFilterOK = "filter_ok"
	TypeError    = "error"
)

// Packet is the WS message envelope in both directions.
type Packet struct {
	Seq     uint64          `json:"seq"`
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// Handler is the Gin handler for the event WebSocket.
type Handler struct {
	pubsub   cache.PubSub
	upgrader websocket.Upgrader
	active   atomic.Int64
	logger   *zap.Logger
}

// NewHandler creates a Handler. allowedOrigins controls which WebSocket
// origins are accepted; an empty slice permits all origins.
func NewHandler(pubsub cache.PubSub, allowedOrigins []string, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	h := &Handler{pubsub: pubsub, logger: logger}
	h.upgrader = websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 4096,
		CheckOrigin: func(r *http.Request) bool {
			if len(allowedOrigins) == 0 {
				return true
			}
			origin := r.Header.Get("Origin")
			for _, o := range allowedOrigins {
				if o == origin {
					return true
				}
			}
			return false
		},
	}
	return h
}

// Active is the number of open streams.
func (h *Handler) Active() int64 { return h.active.Load() }

// ServeWS handles GET /api/arena/ws?entity=<id>&kind=<kind>.
func (h *Handler) ServeWS(c *gin.Context) {
	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.logger.Warn("ws upgrade failed", zap.Error(err))
		return
	}
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	msgCh, unsub, err := h.pubsub.Subscribe(ctx, telemetry.Channel)
	if err != nil {
		h.logger.Error("ws subscribe failed", zap.Error(err))
		_ = conn.WriteMessage(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseInternalServerErr, "event bus unavailable"))
		conn.Close()
		return
	}
	defer unsub()

	s := newSession(conn, telemetry.Filter{EntityID: c.Query("entity"), Kind: c.Query("kind")}, h.logger)
	h.active.Add(1)
	defer h.active.Add(-1)
	h.logger.Info("ws stream opened", zap.String("client_ip", c.ClientIP()))

	go s.writePump()
	go s.forward(msgCh)
	s.sendJSON(TypeWelcome, s.currentFilter())
	s.readPump()
	s.close()
	h.logger.Info("ws stream closed", zap.String("client_ip", c.ClientIP()))
}

type session struct {
	conn   *websocket.Conn
	send   chan []byte
	done   chan struct{}
	once   sync.Once
	seq    atomic.Uint64
	logger *zap.Logger

	mu     sync.RWMutex
	filter telemetry.Filter
}

func newSession(conn *websocket.Conn, f telemetry.Filter, logger *zap.Logger) *session {
	return &session{
		conn:   conn,
		send:   make(chan []byte, sendChanBuf),
		done:   make(chan struct{}),
		filter: f,
		logger: logger,
	}
}

func (s *session) close() { s.once.Do(func() { close(s.done) }) }

func (s *session) currentFilter() telemetry.Filter {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.filter
}

// forward copies matching bus records into the send queue until the
// session ends or the subscription closes.
func (s *session) forward(in <-chan *cache.Message) {
	for {
		select {
		case msg, ok := <-in:
			if !ok {
				s.close()
				return
			}
			if _, pass := s.currentFilter().Match(msg.Payload); !pass {
				continue
			}
			s.enqueue(TypeEvent, json.RawMessage(msg.Payload))
		case <-s.done:
			return
		}
	}
}

func (s *session) sendJSON(typ string, v any) {
	payload, err := json.Marshal(v)
	if err != nil {
		return
	}
	s.enqueue(typ, payload)
}

// enqueue never blocks; a slow client loses packets.
func (s *session) enqueue(typ string, payload json.RawMessage) {
	data, err := json.Marshal(Packet{Seq: s.seq.Add(1), Type: typ, Payload: payload})
	if err != nil {
		return
	}
	select {
	case s.send <- data:
	case <-s.done:
	default:
		s.logger.Warn("ws send queue full, dropping packet", zap.String("type", typ))
	}
}

func (s *session) writePump() {
	ticker := time.NewTicker(pingInterval)
	defer ticker.Stop()
	defer s.conn.Close()
	for {
		select {
		case data := <-s.send:
			_ = s.conn.SetWriteDeadline(time.Now().Add(writeDeadline))
			if err := s.conn.WriteMessage(websocket.TextMessage, data); err != nil {
				s.logger.Warn("ws write error", zap.Error(err))
				s.close()
				return
			}
		case <-ticker.C:
			_ = s.conn.SetWriteDeadline(time.Now().Add(writeDeadline))
			if err := s.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				s.close()
				return
			}
		case <-s.done:
			_ = s.conn.WriteMessage(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
			return
		}
	}
}

// readPump handles client packets until the connection fails.
func (s *session) readPump() {
	_ = s.conn.SetReadDeadline(time.Now().Add(readDeadline))
	s.conn.SetPongHandler(func(string) error {
		return s.conn.SetReadDeadline(time.Now().Add(readDeadline))
	})
	for {
		_, raw, err := s.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err,
				websocket.CloseGoingAway,
				websocket.CloseNormalClosure,
				websocket.CloseNoStatusReceived) {
				s.logger.Warn("ws unexpected close", zap.Error(err))
			}
			return
		}
		_ = s.conn.SetReadDeadline(time.Now().Add(readDeadline))
		s.dispatch(raw)
	}
}

func (s *session) dispatch(raw []byte) {
	var pkt Packet
	if err := json.Unmarshal(raw, &pkt); err != nil {
		s.sendJSON(TypeError, gin.H{"error": "malformed packet"})
		return
	}
	switch pkt.Type {
	case TypeFilter:
		var f telemetry.Filter
		if len(pkt.Payload) > 0 {
			if err := json.Unmarshal(pkt.Payload, &f); err != nil {
				s.sendJSON(TypeError, gin.H{"error": "malformed filter"})
				return
			}
		}
		s.mu.Lock()
		s.filter = f
		s.mu.Unlock()
		s.sendJSON(TypeFilterOK, f)
	default:
		s.sendJSON(TypeError, gin.H{"error": "unknown packet type", "type": pkt.Type})
	}
}
