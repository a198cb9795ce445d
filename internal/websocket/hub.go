// Package websocket streams job events to browser subscribers.
package websocket

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/gofiber/contrib/websocket"
	"github.com/sirupsen/logrus"

	"github.com/estudioia/videos-api/internal/model"
)

const (
	sendBuffer   = 64
	pingInterval = 30 * time.Second
	writeTimeout = 10 * time.Second
)

// Client is one subscriber of a job's events
type Client struct {
	JobID string
	Conn  *websocket.Conn
	Send  chan []byte
}

// Hub fans job events out to the clients subscribed to that job. A client
// too slow to drain its buffer is dropped.
type Hub struct {
	// Clients grouped by job ID
	clients map[string]map[*Client]bool

	register   chan *Client
	unregister chan *Client
	broadcast  chan *BroadcastMessage
	stopped    chan struct{}

	log logrus.FieldLogger
	mu  sync.RWMutex
}

// BroadcastMessage is an encoded event for one job's subscribers
type BroadcastMessage struct {
	JobID   string
	Message []byte
}

func NewHub(log logrus.FieldLogger) *Hub {
	return &Hub{
		clients:    make(map[string]map[*Client]bool),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		broadcast:  make(chan *BroadcastMessage, 256),
		stopped:    make(chan struct{}),
		log:        log.WithField("component", "ws_hub"),
	}
}

// Run serves registrations and broadcasts until ctx is done.
func (h *Hub) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			close(h.stopped)
			h.mu.Lock()
			for jobID, clients := range h.clients {
				for client := range clients {
					close(client.Send)
				}
				delete(h.clients, jobID)
			}
			h.mu.Unlock()
			return

		case client := <-h.register:
			h.mu.Lock()
			if h.clients[client.JobID] == nil {
				h.clients[client.JobID] = make(map[*Client]bool)
			}
			h.clients[client.JobID][client] = true
			h.mu.Unlock()
			h.log.WithField("job_id", client.JobID).Debug("Client subscribed")

		case client := <-h.unregister:
			h.mu.Lock()
			h.remove(client)
			h.mu.Unlock()
			h.log.WithField("job_id", client.JobID).Debug("Client unsubscribed")

		case msg := <-h.broadcast:
			h.mu.Lock()
			for client := range h.clients[msg.JobID] {
				select {
				case client.Send <- msg.Message:
				default:
					h.log.WithField("job_id", msg.JobID).Warn("Dropping slow subscriber")
					h.remove(client)
				}
			}
			h.mu.Unlock()
		}
	}
}

// remove closes client's channel once. Callers hold mu.
func (h *Hub) remove(client *Client) {
	clients, ok := h.clients[client.JobID]
	if !ok || !clients[client] {
		return
	}
	delete(clients, client)
	close(client.Send)
	if len(clients) == 0 {
		delete(h.clients, client.JobID)
	}
}

// Subscribers returns how many clients follow jobID.
func (h *Hub) Subscribers(jobID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients[jobID])
}

func (h *Hub) Register(client *Client) {
	select {
	case h.register <- client:
	case <-h.stopped:
	}
}

func (h *Hub) Unregister(client *Client) {
	select {
	case h.unregister <- client:
	case <-h.stopped:
	}
}

// BroadcastProgress sends a progress update to all job subscribers
func (h *Hub) BroadcastProgress(jobID string, progress int, status model.JobStatus, stage string, eta *int) {
	h.send(jobID, model.WSProgressMessage{
		Type:         model.WSMessageTypeProgress,
		JobID:        jobID,
		Progress:     progress,
		Status:       status,
		CurrentStage: stage,
		ETASeconds:   eta,
	})
}

// BroadcastStatus announces a status change such as pause or cancel
func (h *Hub) BroadcastStatus(jobID string, status model.JobStatus) {
	h.send(jobID, model.WSStatusMessage{
		Type:   model.WSMessageTypeStatus,
		JobID:  jobID,
		Status: status,
	})
}

// BroadcastComplete sends a completion message to all job subscribers
func (h *Hub) BroadcastComplete(jobID string, result interface{}) {
	h.send(jobID, model.WSCompleteMessage{
		Type:   model.WSMessageTypeComplete,
		JobID:  jobID,
		Result: result,
	})
}

// BroadcastError sends an error message to all job subscribers
func (h *Hub) BroadcastError(jobID string, code, message string) {
	h.send(jobID, model.WSErrorMessage{
		Type:  model.WSMessageTypeError,
		JobID: jobID,
		Error: model.WSError{Code: code, Message: message},
	})
}

// send never blocks the caller; a full broadcast queue drops the event.
func (h *Hub) send(jobID string, msg interface{}) {
	data, err := json.Marshal(msg)
	if err != nil {
		h.log.WithError(err).Error("Failed to marshal websocket message")
		return
	}
	select {
	case h.broadcast <- &BroadcastMessage{JobID: jobID, Message: data}:
	default:
		h.log.WithField("job_id", jobID).Warn("Broadcast queue full, event dropped")
	}
}

// HandleConnection streams jobID's events to c until either side closes.
// snapshot, when not nil, is sent first so the client starts from the
// current state.
func (h *Hub) HandleConnection(c *websocket.Conn, jobID string, snapshot interface{}) {
	client := &Client{
		JobID: jobID,
		Conn:  c,
		Send:  make(chan []byte, sendBuffer),
	}

	h.Register(client)
	defer h.Unregister(client)

	if snapshot != nil {
		if data, err := json.Marshal(snapshot); err == nil {
			_ = c.SetWriteDeadline(time.Now().Add(writeTimeout))
			if err := c.WriteMessage(websocket.TextMessage, data); err != nil {
				return
			}
		}
	}

	done := make(chan struct{})
	defer close(done)
	pong := make(chan struct{}, 1)

	go func() {
		ticker := time.NewTicker(pingInterval)
		defer ticker.Stop()

		for {
			var err error
			select {
			case <-done:
				return
			case message, ok := <-client.Send:
				_ = c.SetWriteDeadline(time.Now().Add(writeTimeout))
				if !ok {
					_ = c.WriteMessage(websocket.CloseMessage, []byte{})
					return
				}
				err = c.WriteMessage(websocket.TextMessage, message)
			case <-pong:
				data, _ := json.Marshal(model.WSMessage{Type: model.WSMessageTypePong})
				_ = c.SetWriteDeadline(time.Now().Add(writeTimeout))
				err = c.WriteMessage(websocket.TextMessage, data)
			case <-ticker.C:
				_ = c.SetWriteDeadline(time.Now().Add(writeTimeout))
				err = c.WriteMessage(websocket.PingMessage, nil)
			}
			if err != nil {
				return
			}
		}
	}()

	for {
		_, message, err := c.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				h.log.WithError(err).WithField("job_id", jobID).Warn("WebSocket read failed")
			}
			return
		}

		var msg model.WSMessage
		if err := json.Unmarshal(message, &msg); err != nil {
			continue
		}
		if msg.Type == model.WSMessageTypePing {
			select {
			case pong <- struct{}{}:
			default:
			}
		}
	}
}
