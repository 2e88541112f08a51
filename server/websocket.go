package server

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

const (
	// writeWait is how long a slow client may block a frame write
	writeWait = 10 * time.Second
	// pongWait is how long to wait for a pong before dropping a client
	pongWait = 60 * time.Second
	// pingPeriod must be shorter than pongWait
	pingPeriod = 54 * time.Second
	// clientSendBuffer is the per-client outbound frame buffer
	clientSendBuffer = 64
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// The feed is read-only public data, same policy as the wildcard CORS
	// on the IIIF endpoints
	CheckOrigin: func(r *http.Request) bool { return true },
}

// feedClient is one websocket connection on the job feed
type feedClient struct {
	id   string
	conn *websocket.Conn
	send chan []byte
}

// HandleFeedWebSocket upgrades the connection and attaches it to the job
// status feed. Every job state change is pushed to all connected clients
// as a status document.
// GET /ws
func (s *Server) HandleFeedWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Warnw("WebSocket upgrade failed", "error", err)
		return
	}

	client := &feedClient{
		id:   uuid.NewString(),
		conn: conn,
		send: make(chan []byte, clientSendBuffer),
	}

	select {
	case s.register <- client:
	case <-s.ctx.Done():
		conn.Close()
		return
	}

	go s.clientWritePump(client)
	go s.clientReadPump(client)
}

// runFeed owns the client set and fans queue updates out to it
func (s *Server) runFeed() {
	defer s.wg.Done()

	updates := s.queue.Subscribe()
	defer s.queue.Unsubscribe(updates)

	for {
		select {
		case <-s.ctx.Done():
			s.mu.Lock()
			for client := range s.clients {
				close(client.send)
				delete(s.clients, client)
			}
			s.mu.Unlock()
			return

		case client := <-s.register:
			s.mu.Lock()
			if len(s.clients) >= MaxClients {
				s.mu.Unlock()
				s.logger.Warnw("Max feed clients reached, rejecting connection",
					"client_id", shortID(client.id),
				)
				client.conn.Close()
				continue
			}
			s.clients[client] = true
			total := len(s.clients)
			s.mu.Unlock()
			s.logger.Infow("Feed client connected",
				"client_id", shortID(client.id),
				"total_clients", total,
			)

		case client := <-s.unregister:
			s.mu.Lock()
			if _, ok := s.clients[client]; ok {
				delete(s.clients, client)
				close(client.send)
			}
			s.mu.Unlock()

		case job := <-updates:
			view, err := s.queue.StatusView(job)
			if err != nil {
				s.logger.Warnw("Failed to build job status for feed", "job_id", shortID(job.ID), "error", err)
				continue
			}
			data, err := json.Marshal(view)
			if err != nil {
				continue
			}
			s.mu.RLock()
			for client := range s.clients {
				select {
				case client.send <- data:
				default:
					// Slow client, drop the frame rather than the feed
				}
			}
			s.mu.RUnlock()
		}
	}
}

// clientWritePump writes feed frames and pings to one client
func (s *Server) clientWritePump(client *feedClient) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		client.conn.Close()
	}()

	for {
		select {
		case data, ok := <-client.send:
			client.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				client.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := client.conn.WriteMessage(websocket.TextMessage, data); err != nil {
				return
			}
		case <-ticker.C:
			client.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := client.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// clientReadPump drains the connection to process pongs and detect
// disconnects; the feed is one-way so inbound frames are discarded.
func (s *Server) clientReadPump(client *feedClient) {
	defer func() {
		select {
		case s.unregister <- client:
		case <-s.ctx.Done():
		}
		client.conn.Close()
	}()

	client.conn.SetReadLimit(512)
	client.conn.SetReadDeadline(time.Now().Add(pongWait))
	client.conn.SetPongHandler(func(string) error {
		client.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		if _, _, err := client.conn.ReadMessage(); err != nil {
			return
		}
	}
}
