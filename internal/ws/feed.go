package ws

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/kiliankoe/knowme/internal/game"
	"github.com/rs/zerolog/log"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = pongWait * 9 / 10
	sendBuffer = 16
)

// Message is the frame written to raw WebSocket subscribers.
type Message struct {
	Type string `json:"type"`
	Data any    `json:"data"`
}

type subscriber struct {
	conn *websocket.Conn
	send chan []byte
}

// Feed streams session events to plain WebSocket clients on /ws/:pin.
type Feed struct {
	mu       sync.RWMutex
	subs     map[string]map[*subscriber]struct{}
	upgrader websocket.Upgrader
}

// NewFeed accepts browser connections from allowedOrigins; "*" allows any.
func NewFeed(allowedOrigins []string) *Feed {
	allowed := make(map[string]bool, len(allowedOrigins))
	for _, o := range allowedOrigins {
		allowed[o] = true
	}
	return &Feed{
		subs: make(map[string]map[*subscriber]struct{}),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				origin := r.Header.Get("Origin")
				return origin == "" || allowed["*"] || allowed[origin]
			},
		},
	}
}

func (f *Feed) Handler() gin.HandlerFunc {
	return func(c *gin.Context) {
		pin := c.Param("pin")
		conn, err := f.upgrader.Upgrade(c.Writer, c.Request, nil)
		if err != nil {
			log.Warn().Err(err).Str("pin", pin).Msg("websocket upgrade failed")
			return
		}
		sub := &subscriber{conn: conn, send: make(chan []byte, sendBuffer)}
		f.add(pin, sub)
		log.Info().Str("pin", pin).Str("remote", c.ClientIP()).Msg("ws subscriber joined")

		go sub.writePump()
		sub.readPump()

		f.remove(pin, sub)
		log.Info().Str("pin", pin).Msg("ws subscriber left")
	}
}

// Deliver queues evt for every subscriber of its pin. Subscribers whose
// buffer is full miss the event.
func (f *Feed) Deliver(_ context.Context, evt game.Event) error {
	data, err := json.Marshal(Message{Type: evt.Name, Data: evt.Payload})
	if err != nil {
		return err
	}
	f.mu.RLock()
	defer f.mu.RUnlock()
	for sub := range f.subs[evt.Pin] {
		select {
		case sub.send <- data:
		default:
			log.Warn().Str("pin", evt.Pin).Str("event", evt.Name).Msg("ws subscriber too slow, event skipped")
		}
	}
	return nil
}

func (f *Feed) Subscribers(pin string) int {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return len(f.subs[pin])
}

func (f *Feed) add(pin string, sub *subscriber) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.subs[pin] == nil {
		f.subs[pin] = make(map[*subscriber]struct{})
	}
	f.subs[pin][sub] = struct{}{}
}

func (f *Feed) remove(pin string, sub *subscriber) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if m := f.subs[pin]; m != nil {
		if _, ok := m[sub]; ok {
			delete(m, sub)
			close(sub.send)
		}
		if len(m) == 0 {
			delete(f.subs, pin)
		}
	}
}

// readPump only watches for close frames and pongs; clients do not send.
func (s *subscriber) readPump() {
	s.conn.SetReadLimit(512)
	_ = s.conn.SetReadDeadline(time.Now().Add(pongWait))
	s.conn.SetPongHandler(func(string) error {
		return s.conn.SetReadDeadline(time.Now().Add(pongWait))
	})
	for {
		if _, _, err := s.conn.ReadMessage(); err != nil {
			return
		}
	}
}

func (s *subscriber) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = s.conn.Close()
	}()
	for {
		select {
		case msg, ok := <-s.send:
			_ = s.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = s.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := s.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				return
			}
		case <-ticker.C:
			_ = s.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := s.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
