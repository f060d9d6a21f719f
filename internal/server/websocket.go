package server

import (
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"github.com/brixel-ai/brixel-client/pkg/api"
	"github.com/brixel-ai/brixel-client/pkg/log"
)

// Client represents a WebSocket client connection for event streaming
type Client struct {
	server    *Server
	conn      *websocket.Conn
	send      chan *api.Event
	closeOnce sync.Once
}

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 512
	wsBufferSize   = 1024
	sendBufferSize = 64
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  wsBufferSize,
	WriteBufferSize: wsBufferSize,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

func (s *Server) handleWebSocket(c *gin.Context) {
	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		slog.Error("WebSocket upgrade failed",
			log.Error(err))
		return
	}

	client := &Client{
		server: s,
		conn:   conn,
		send:   make(chan *api.Event, sendBufferSize),
	}
	s.registerWebSocket(client)

	go client.run()
}

// broadcast queues an event on every connected client. A client whose send
// buffer is full misses the event rather than stalling the execution
func (s *Server) broadcast(ev *api.Event) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for c := range s.sockets {
		select {
		case c.send <- ev:
		default:
			slog.Warn("WebSocket client lagging, event dropped",
				log.SubPlanID(ev.PlanID),
				slog.String("event", string(ev.Event)))
		}
	}
}

// Close terminates the connection, unblocking the client's run loop
func (c *Client) Close() {
	c.closeOnce.Do(func() {
		_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
		_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
		_ = c.conn.Close()
	})
}

func (c *Client) run() {
	defer func() {
		c.server.unregisterWebSocket(c)
		_ = c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	incoming := make(chan []byte, 1)
	go c.readMessages(incoming)

	for {
		select {
		case _, ok := <-incoming:
			if !ok {
				return
			}
			// Inbound messages carry no meaning; reading keeps close
			// detection and pong handling alive

		case ev := <-c.send:
			if !c.sendEvent(ev) {
				return
			}

		case <-ticker.C:
			if !c.sendPing() {
				return
			}
		}
	}
}

func (c *Client) readMessages(incoming chan []byte) {
	for {
		_, message, err := c.conn.ReadMessage()
		if err != nil {
			close(incoming)
			return
		}
		incoming <- message
	}
}

func (c *Client) sendEvent(ev *api.Event) bool {
	_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
	if err := c.conn.WriteJSON(ev); err != nil {
		slog.Error("WebSocket write failed",
			log.Error(err))
		return false
	}
	return true
}

func (c *Client) sendPing() bool {
	_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
	err := c.conn.WriteMessage(websocket.PingMessage, nil)
	return err == nil
}
