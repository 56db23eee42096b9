package websocket

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/aiverse/server/domain/repositories"
)

const (
	// Time allowed to write a message to the peer.
	writeWait = 10 * time.Second

	// Time allowed to read the next pong message from the peer.
	pongWait = 60 * time.Second

	// Send pings to peer with this period. Must be less than pongWait.
	pingPeriod = (pongWait * 9) / 10

	// Maximum message size allowed from peer.
	maxMessageSize = 64 * 1024

	// Upper bound for one utterance.
	speakTimeout = 2 * time.Minute
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		// CORS is enforced by the echo middleware in front of this handler
		return true
	},
	ReadBufferSize:  1024,
	WriteBufferSize: 4096,
}

// Hub tracks the connected speech clients
type Hub struct {
	// Registered clients.
	clients map[string]*Client

	// Register requests from the clients.
	register chan *Client

	// Unregister requests from clients.
	unregister chan *Client

	// Mutex for thread-safe access to clients map
	mu sync.RWMutex

	tts            repositories.TextToSpeech
	defaultVoiceID string
	validator      *MessageValidator

	logger *zap.Logger
}

// NewHub creates a new WebSocket hub
func NewHub(tts repositories.TextToSpeech, defaultVoiceID string, logger *zap.Logger) *Hub {
	return &Hub{
		clients:        make(map[string]*Client),
		register:       make(chan *Client),
		unregister:     make(chan *Client),
		tts:            tts,
		defaultVoiceID: defaultVoiceID,
		validator:      NewMessageValidator(),
		logger:         logger,
	}
}

// Run starts the hub's main loop and returns when ctx is done
func (h *Hub) Run(ctx context.Context) {
	for {
		select {
		case client := <-h.register:
			h.mu.Lock()
			h.clients[client.id] = client
			h.mu.Unlock()
			h.logger.Info("Client registered",
				zap.String("clientID", client.id),
				zap.String("userID", client.userID))

		case client := <-h.unregister:
			h.mu.Lock()
			if _, ok := h.clients[client.id]; ok {
				delete(h.clients, client.id)
				client.cancel()
			}
			h.mu.Unlock()
			h.logger.Info("Client unregistered", zap.String("clientID", client.id))

		case <-ctx.Done():
			h.mu.Lock()
			for id, client := range h.clients {
				client.cancel()
				delete(h.clients, id)
			}
			h.mu.Unlock()
			return
		}
	}
}

// ClientCount returns the number of connected clients
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

type WriteData struct {
	// MessageType is the type of the websocket message.
	// Expect websocket.TextMessage or websocket.BinaryMessage
	Type    int
	Payload []byte
}

// Client is a middleman between the websocket connection and the hub.
type Client struct {
	hub *Hub

	// The websocket connection.
	conn *websocket.Conn

	// Buffered channel of outbound messages.
	send chan WriteData

	id     string
	userID string

	ctx    context.Context
	cancel context.CancelFunc

	logger *zap.Logger

	mutex    sync.Mutex
	speaking bool
}

// HandleWebSocket upgrades the request and starts the client pumps.
// userID is empty for anonymous clients.
func HandleWebSocket(hub *Hub, c echo.Context, userID string, logger *zap.Logger) error {
	conn, err := upgrader.Upgrade(c.Response(), c.Request(), nil)
	if err != nil {
		logger.Error("WebSocket upgrade failed", zap.Error(err))
		return err
	}

	ctx, cancel := context.WithCancel(context.Background())
	client := &Client{
		hub:    hub,
		conn:   conn,
		send:   make(chan WriteData, 256),
		id:     uuid.NewString(),
		userID: userID,
		ctx:    ctx,
		cancel: cancel,
		logger: logger,
	}

	client.hub.register <- client

	// Allow collection of memory referenced by the caller by doing all work in
	// new goroutines.
	go client.writePump()
	go client.readPump()

	return nil
}

// readPump pumps messages from the websocket connection to the hub.
func (c *Client) readPump() {
	defer func() {
		select {
		case c.hub.unregister <- c:
		case <-c.ctx.Done():
		}
		c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		messageType, message, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				c.logger.Error("WebSocket error", zap.Error(err))
			}
			break
		}

		switch messageType {
		case websocket.TextMessage:
			c.processMessage(message)
		default:
			c.sendJSON(CreateErrorMessage(ErrorCodeInvalidMessage, "only JSON text frames are accepted"))
		}
	}
}

// writePump pumps messages from the hub to the websocket connection.
func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case message := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(message.Type, message.Payload); err != nil {
				c.logger.Error("Failed to write message", zap.Error(err))
				return
			}

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}

		case <-c.ctx.Done():
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			c.conn.WriteMessage(websocket.CloseMessage, []byte{})
			return
		}
	}
}

// enqueue hands a frame to the write pump; it reports false once the client is gone
func (c *Client) enqueue(data WriteData) bool {
	select {
	case c.send <- data:
		return true
	case <-c.ctx.Done():
		return false
	}
}

func (c *Client) sendJSON(v interface{}) bool {
	payload, err := json.Marshal(v)
	if err != nil {
		c.logger.Error("Failed to marshal message", zap.Error(err))
		return false
	}
	return c.enqueue(WriteData{Type: websocket.TextMessage, Payload: payload})
}

// processMessage processes incoming messages from the client
func (c *Client) processMessage(message []byte) {
	parsed, err := c.hub.validator.ValidateMessage(message)
	if err != nil {
		c.logger.Warn("Rejected message", zap.String("clientID", c.id), zap.Error(err))
		c.sendJSON(CreateErrorMessage(ErrorCodeInvalidMessage, err.Error()))
		return
	}

	switch msg := parsed.(type) {
	case *PingMessage:
		c.sendJSON(CreatePongMessage(msg.Data))
	case *SpeakMessage:
		if !c.beginSpeaking() {
			c.sendJSON(CreateErrorMessage(ErrorCodeBusy, "an utterance is already streaming"))
			return
		}
		go c.speak(msg)
	}
}

func (c *Client) beginSpeaking() bool {
	c.mutex.Lock()
	defer c.mutex.Unlock()
	if c.speaking {
		return false
	}
	c.speaking = true
	return true
}

func (c *Client) endSpeaking() {
	c.mutex.Lock()
	c.speaking = false
	c.mutex.Unlock()
}

// speak streams one utterance: speak_start, binary PCM frames, speak_end
func (c *Client) speak(msg *SpeakMessage) {
	defer c.endSpeaking()

	ctx, cancel := context.WithTimeout(c.ctx, speakTimeout)
	defer cancel()

	voiceID := msg.VoiceID
	if voiceID == "" {
		voiceID = c.hub.defaultVoiceID
	}

	audio, err := c.hub.tts.ConvertTextToSpeech(ctx, msg.Text, voiceID)
	if err != nil {
		c.logger.Error("Failed to convert text to speech",
			zap.String("clientID", c.id),
			zap.Error(err))
		c.sendJSON(CreateErrorMessage(ErrorCodeSynthesis, "speech synthesis failed"))
		return
	}

	if !c.sendJSON(CreateSpeakStartMessage(c.hub.tts.SampleRate())) {
		return
	}

	var total, chunks int
	for chunk := range audio {
		if !c.enqueue(WriteData{Type: websocket.BinaryMessage, Payload: chunk}) {
			// drain so the producer goroutine can exit
			for range audio {
			}
			return
		}
		total += len(chunk)
		chunks++
	}

	c.logger.Info("Utterance streamed",
		zap.String("clientID", c.id),
		zap.Int("bytes", total),
		zap.Int("chunks", chunks))

	c.sendJSON(CreateSpeakEndMessage(total, chunks))
}
