package httpapi

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"storyreel/internal/bgm"
	"storyreel/internal/logging"
	"storyreel/internal/narration"
	"storyreel/internal/playstate"
	"storyreel/internal/render"
)

const (
	clientBuffer = 64
	writeWait    = 5 * time.Second
	pongWait     = 60 * time.Second
	pingPeriod   = pongWait * 9 / 10
)

// Cue types sent to websocket clients.
const (
	CueNarrationPlay = "narration.play"
	CueNarrationStop = "narration.stop"
	CueMusicStart    = "bgm.start"
	CueMusicResume   = "bgm.resume"
	CueMusicPause    = "bgm.pause"
	CueMusicStop     = "bgm.stop"
	CueMusicSeek     = "bgm.seek"
	CueRender        = "render"
	CuePlayState     = "playstate"
)

// Cue is one instruction for the browser-side media elements.
type Cue struct {
	Type          string  `json:"type"`
	Seconds       float64 `json:"seconds,omitempty"`
	SceneID       string  `json:"sceneId,omitempty"`
	PartIndex     int     `json:"partIndex,omitempty"`
	URL           string  `json:"url,omitempty"`
	CacheKey      string  `json:"cacheKey,omitempty"`
	Template      string  `json:"template,omitempty"`
	SceneIndex    *int    `json:"sceneIndex,omitempty"`
	SkipAnimation bool    `json:"skipAnimation,omitempty"`
	FontKey       string  `json:"fontKey,omitempty"`
	Playing       *bool   `json:"playing,omitempty"`
}

// ClientMessage is what a websocket client may send: "play", "pause" or
// "toggle". The resulting play state is broadcast back as a playstate cue.
type ClientMessage struct {
	Type string `json:"type"`
}

type client struct {
	conn *websocket.Conn
	send chan []byte
}

// Hub fans session cues out to every connected websocket client. It stands in
// for the media session and the narration, music and render collaborators of
// one preview session.
type Hub struct {
	logger *slog.Logger

	mu      sync.Mutex
	clients map[*client]struct{}
	bridge  *playstate.Bridge
	closed  bool
}

// NewHub creates an empty hub.
func NewHub(logger *slog.Logger) *Hub {
	return &Hub{
		logger:  logging.NewComponentLogger(logger, "cue-hub"),
		clients: make(map[*client]struct{}),
	}
}

// Bind routes client play/pause requests to the session's bridge.
func (h *Hub) Bind(bridge *playstate.Bridge) {
	h.mu.Lock()
	h.bridge = bridge
	h.mu.Unlock()
}

// Clients reports the number of connected clients.
func (h *Hub) Clients() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients)
}

// Narration returns the hub as a narration player.
func (h *Hub) Narration() narration.Player { return narrationCues{h} }

// Music returns the hub as a background music player.
func (h *Hub) Music() bgm.Player { return musicCues{h} }

// RenderAt implements render.Renderer.
func (h *Hub) RenderAt(_ context.Context, seconds float64, opts render.Options) error {
	h.broadcast(Cue{
		Type:          CueRender,
		Seconds:       seconds,
		SceneIndex:    opts.ForceSceneIndex,
		SkipAnimation: opts.SkipAnimation,
		FontKey:       opts.FontKey,
	})
	return nil
}

// SetPlaying implements playstate.MediaSession.
func (h *Hub) SetPlaying(playing bool) {
	h.broadcast(Cue{Type: CuePlayState, Playing: &playing})
}

func (h *Hub) broadcast(cue Cue) {
	data, err := json.Marshal(cue)
	if err != nil {
		h.logger.Error("encode cue failed", logging.Error(err))
		return
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	for c := range h.clients {
		select {
		case c.send <- data:
		default:
			h.dropLocked(c)
			h.logger.Warn("dropped slow websocket client",
				logging.String(logging.FieldEventType, "ws_client_dropped"),
				logging.String(logging.FieldImpact, "client stops receiving cues"),
			)
		}
	}
}

func (h *Hub) dropLocked(c *client) {
	if _, ok := h.clients[c]; !ok {
		return
	}
	delete(h.clients, c)
	close(c.send)
}

// Serve attaches an upgraded connection and blocks until it disconnects.
func (h *Hub) Serve(ctx context.Context, conn *websocket.Conn) {
	c := &client{conn: conn, send: make(chan []byte, clientBuffer)}
	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		_ = conn.Close()
		return
	}
	h.clients[c] = struct{}{}
	count := len(h.clients)
	h.mu.Unlock()
	h.logger.Debug("websocket client attached", logging.Int("clients", count))

	done := make(chan struct{})
	go h.writeLoop(c, done)
	h.readLoop(ctx, c)

	h.mu.Lock()
	h.dropLocked(c)
	h.mu.Unlock()
	<-done
	_ = conn.Close()
}

func (h *Hub) readLoop(ctx context.Context, c *client) {
	c.conn.SetReadLimit(4096)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})
	for {
		var msg ClientMessage
		if err := c.conn.ReadJSON(&msg); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				h.logger.Debug("websocket read failed", logging.Error(err))
			}
			return
		}
		if ctx.Err() != nil {
			return
		}
		h.handle(msg)
	}
}

func (h *Hub) handle(msg ClientMessage) {
	h.mu.Lock()
	bridge := h.bridge
	h.mu.Unlock()
	if bridge == nil {
		return
	}
	switch msg.Type {
	case "play":
		bridge.RequestPlaying(true)
	case "pause":
		bridge.RequestPlaying(false)
	case "toggle":
		bridge.Toggle()
	default:
		h.logger.Debug("ignored websocket message", logging.String("type", msg.Type))
	}
}

func (h *Hub) writeLoop(c *client, done chan<- struct{}) {
	defer close(done)
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()
	for {
		select {
		case data, ok := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
				_ = c.conn.Close()
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
				_ = c.conn.Close()
				return
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				_ = c.conn.Close()
				return
			}
		}
	}
}

// Close disconnects every client and refuses new ones.
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.closed = true
	h.bridge = nil
	for c := range h.clients {
		h.dropLocked(c)
	}
}

type narrationCues struct{ h *Hub }

func (n narrationCues) Play(_ context.Context, seg *narration.Segment, offset float64) error {
	n.h.broadcast(Cue{
		Type:      CueNarrationPlay,
		Seconds:   offset,
		SceneID:   seg.SceneID,
		PartIndex: seg.PartIndex,
		URL:       seg.URL,
		CacheKey:  seg.CacheKey,
	})
	return nil
}

func (n narrationCues) Stop() { n.h.broadcast(Cue{Type: CueNarrationStop}) }

type musicCues struct{ h *Hub }

func (m musicCues) Start(_ context.Context, templateID string, at float64) error {
	m.h.broadcast(Cue{Type: CueMusicStart, Template: templateID, Seconds: at})
	return nil
}

func (m musicCues) Resume(context.Context) error {
	m.h.broadcast(Cue{Type: CueMusicResume})
	return nil
}

func (m musicCues) Pause() { m.h.broadcast(Cue{Type: CueMusicPause}) }

func (m musicCues) Stop() { m.h.broadcast(Cue{Type: CueMusicStop}) }

func (m musicCues) Seek(_ context.Context, at float64) error {
	m.h.broadcast(Cue{Type: CueMusicSeek, Seconds: at})
	return nil
}
