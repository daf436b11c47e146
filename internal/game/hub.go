package game

import (
	"encoding/json"
	"errors"
	"sync"
	"time"

	"github.com/gofiber/contrib/websocket"
	"github.com/rs/zerolog"
)

const (
	WRITE_WAIT       = 10 * time.Second
	BROADCAST_BUFFER = 256
	CLIENT_BUFFER    = 64
)

var (
	ErrClientClosed = errors.New("client connection closed")
	ErrClientSlow   = errors.New("client send buffer full")
)

// frameWriter is the part of a websocket connection the hub writes to.
type frameWriter interface {
	SetWriteDeadline(t time.Time) error
	WriteMessage(messageType int, data []byte) error
	Close() error
}

// Client owns one connection. Every frame goes through its outbound queue and
// a single writer goroutine, so broadcasts and replies keep their order. The
// writer is the only goroutine that touches conn and closes it on exit.
type Client struct {
	conn      frameWriter
	userID    string
	outbound  chan []byte
	done      chan struct{}
	stopped   chan struct{}
	closeOnce sync.Once
}

// Hub fans round events out to every connected websocket client.
type Hub struct {
	clients    map[*Client]bool
	broadcast  chan interface{}
	register   chan *Client
	unregister chan *Client
	stop       chan struct{}
	stopOnce   sync.Once
	mu         sync.RWMutex
	logger     zerolog.Logger
}

func NewHub(logger zerolog.Logger) *Hub {
	return &Hub{
		clients:    make(map[*Client]bool),
		broadcast:  make(chan interface{}, BROADCAST_BUFFER),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		stop:       make(chan struct{}),
		logger:     logger,
	}
}

func (h *Hub) Run() {
	for {
		select {
		case <-h.stop:
			h.mu.Lock()
			for client := range h.clients {
				client.close()
				delete(h.clients, client)
			}
			h.mu.Unlock()
			return

		case client := <-h.register:
			h.mu.Lock()
			h.clients[client] = true
			total := len(h.clients)
			h.mu.Unlock()
			h.logger.Debug().Str("user_id", client.userID).Int("total", total).Msg("client connected")

		case client := <-h.unregister:
			h.mu.Lock()
			if _, ok := h.clients[client]; ok {
				delete(h.clients, client)
				client.close()
				h.logger.Debug().Str("user_id", client.userID).Int("total", len(h.clients)).Msg("client disconnected")
			}
			h.mu.Unlock()

		case message := <-h.broadcast:
			payload, err := json.Marshal(message)
			if err != nil {
				h.logger.Error().Err(err).Msg("broadcast marshal failed")
				continue
			}

			h.mu.RLock()
			for client := range h.clients {
				if err := client.enqueue(payload); err != nil {
					h.logger.Debug().Err(err).Str("user_id", client.userID).Msg("frame dropped")
				}
			}
			h.mu.RUnlock()
		}
	}
}

// Stop ends Run and closes every client connection.
func (h *Hub) Stop() {
	h.stopOnce.Do(func() {
		close(h.stop)
	})
}

// Broadcast queues a message without blocking; it is dropped when the buffer
// is full so a slow hub never stalls the game loop.
func (h *Hub) Broadcast(message interface{}) {
	select {
	case h.broadcast <- message:
	default:
		h.logger.Warn().Msg("broadcast channel full, dropping message")
	}
}

func (h *Hub) GetClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// RegisterClient adds conn to the broadcast set. Replies to that connection
// must go through the returned client.
func (h *Hub) RegisterClient(conn *websocket.Conn, userID string) *Client {
	return h.addClient(conn, userID)
}

func (h *Hub) addClient(conn frameWriter, userID string) *Client {
	client := &Client{
		conn:     conn,
		userID:   userID,
		outbound: make(chan []byte, CLIENT_BUFFER),
		done:     make(chan struct{}),
		stopped:  make(chan struct{}),
	}
	go client.writeLoop(h.logger)

	select {
	case h.register <- client:
	case <-h.stop:
		client.close()
	}
	return client
}

// UnregisterClient removes the client and returns once its writer has exited
// and the connection is closed. The connection must not be used afterwards.
func (h *Hub) UnregisterClient(client *Client) {
	select {
	case h.unregister <- client:
	case <-h.stop:
	}
	client.close()
	<-client.stopped
}

// Send queues one message for this client only, e.g. a command reply.
func (c *Client) Send(message interface{}) error {
	payload, err := json.Marshal(message)
	if err != nil {
		return err
	}
	return c.enqueue(payload)
}

func (c *Client) enqueue(payload []byte) error {
	select {
	case <-c.done:
		return ErrClientClosed
	default:
	}
	select {
	case c.outbound <- payload:
		return nil
	case <-c.done:
		return ErrClientClosed
	default:
		return ErrClientSlow
	}
}

func (c *Client) writeLoop(logger zerolog.Logger) {
	defer close(c.stopped)
	defer c.conn.Close()

	for {
		select {
		case <-c.done:
			return
		case payload := <-c.outbound:
			c.conn.SetWriteDeadline(time.Now().Add(WRITE_WAIT))
			if err := c.conn.WriteMessage(websocket.TextMessage, payload); err != nil {
				logger.Debug().Err(err).Str("user_id", c.userID).Msg("websocket write failed")
			}
		}
	}
}

func (c *Client) close() {
	c.closeOnce.Do(func() {
		close(c.done)
	})
}
