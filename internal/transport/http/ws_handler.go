package http

import (
	"log/slog"
	"net/http"
	"time"

	"quiz-eval-service/internal/app"

	"github.com/gorilla/websocket"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = pongWait * 9 / 10
)

// FeedHandler streams newly recorded attempts to admin dashboards.
type FeedHandler struct {
	feed     *app.ResultsFeed
	upgrader websocket.Upgrader
	log      *slog.Logger
}

func NewFeedHandler(feed *app.ResultsFeed, log *slog.Logger) *FeedHandler {
	return &FeedHandler{
		feed: feed,
		log:  log,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
	}
}

type outboundMessage[T any] struct {
	Type    string `json:"type"`
	Payload T      `json:"payload"`
}

type subscribedPayload struct {
	Since time.Time `json:"since"`
}

// ServeWS upgrades the request and pushes one "attempt" message per recorded
// attempt until the client goes away. Inbound messages are ignored.
func (h *FeedHandler) ServeWS(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Warn("ws upgrade failed", "err", err)
		return
	}
	defer conn.Close()

	updates, cancel := h.feed.Subscribe()
	defer cancel()

	// The read loop only exists to process control frames and notice the close.
	closed := make(chan struct{})
	go func() {
		defer close(closed)
		_ = conn.SetReadDeadline(time.Now().Add(pongWait))
		conn.SetPongHandler(func(string) error {
			return conn.SetReadDeadline(time.Now().Add(pongWait))
		})
		for {
			if _, _, err := conn.NextReader(); err != nil {
				return
			}
		}
	}()

	if err := h.write(conn, outboundMessage[subscribedPayload]{Type: "subscribed", Payload: subscribedPayload{Since: time.Now().UTC()}}); err != nil {
		return
	}

	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	for {
		select {
		case summary, ok := <-updates:
			if !ok {
				return
			}
			if err := h.write(conn, outboundMessage[any]{Type: "attempt", Payload: summary}); err != nil {
				h.log.Debug("ws write failed", "err", err)
				return
			}
		case <-ticker.C:
			if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait)); err != nil {
				return
			}
		case <-closed:
			return
		}
	}
}

func (h *FeedHandler) write(conn *websocket.Conn, msg any) error {
	_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
	return conn.WriteJSON(msg)
}
