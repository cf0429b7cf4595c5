package websocket

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"rxpulse/internal/config"
	"rxpulse/internal/infrastructure"
)

const (
	// Time allowed to write a message to the peer.
	writeWait = 10 * time.Second

	// Defaults applied when the configuration leaves keepalive unset.
	defaultPongWait   = 60 * time.Second
	defaultBufferSize = 1024

	// Maximum message size allowed from peer. Clients only listen;
	// inbound traffic is ping/pong plus the occasional close frame.
	maxMessageSize = 512
)

// Client is the middleman between one websocket connection and the hub.
type Client struct {
	hub  *Hub
	conn *websocket.Conn
	send chan []byte

	id          string
	remoteAddr  string
	connectedAt time.Time
	pongWait    time.Duration
	pingPeriod  time.Duration
	logger      *slog.Logger
}

// keepalive resolves the pong deadline and ping interval from
// configuration. The ping period must stay below the pong wait or the
// read deadline expires between pings.
func keepalive(cfg config.WebSocketConfig) (pongWait, pingPeriod time.Duration) {
	pongWait = cfg.PongWait
	if pongWait <= 0 {
		pongWait = defaultPongWait
	}
	pingPeriod = cfg.PingPeriod
	if pingPeriod <= 0 || pingPeriod >= pongWait {
		pingPeriod = pongWait * 9 / 10
	}
	return pongWait, pingPeriod
}

func bufferSize(configured int) int {
	if configured <= 0 {
		return defaultBufferSize
	}
	return configured
}

// ServeWS upgrades an HTTP request to a websocket connection and
// registers the client with the hub. Buffer sizes and keepalive timing
// come from the websocket configuration section.
func ServeWS(hub *Hub, w http.ResponseWriter, r *http.Request, cfg config.WebSocketConfig, logger *slog.Logger) {
	if logger == nil {
		logger = infrastructure.LoggerFromContext(r.Context())
	}

	upgrader := websocket.Upgrader{
		ReadBufferSize:  bufferSize(cfg.ReadBufferSize),
		WriteBufferSize: bufferSize(cfg.WriteBufferSize),
		CheckOrigin:     func(r *http.Request) bool { return true },
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		logger.Error("websocket upgrade failed",
			slog.String("remote_addr", r.RemoteAddr),
			slog.String("error", err.Error()))
		return
	}

	pongWait, pingPeriod := keepalive(cfg)

	id := uuid.New().String()
	client := &Client{
		hub:         hub,
		conn:        conn,
		send:        make(chan []byte, 64),
		id:          id,
		remoteAddr:  r.RemoteAddr,
		connectedAt: time.Now(),
		pongWait:    pongWait,
		pingPeriod:  pingPeriod,
		logger:      logger.With(slog.String("component", "websocket.client"), slog.String("client_id", id)),
	}

	hub.register <- client

	go client.writePump()
	go client.readPump()
}

// enqueue delivers a message to the client without blocking the hub.
// A client that cannot keep up has its message dropped.
func (c *Client) enqueue(message []byte) {
	select {
	case c.send <- message:
	default:
		c.logger.Warn("client send buffer full, dropping message")
	}
}

// readPump drains inbound frames to keep the connection alive and
// unregisters the client when the peer goes away.
func (c *Client) readPump() {
	defer func() {
		c.hub.unregister <- c
		c.conn.Close()
	}()
	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(c.pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(c.pongWait))
	})
	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				c.logger.Error("unexpected websocket close",
					slog.String("error", err.Error()))
			}
			return
		}
	}
}

// writePump pushes hub messages and pings to the peer.
func (c *Client) writePump() {
	ticker := time.NewTicker(c.pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()
	for {
		select {
		case message, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
