package signal

import (
	"context"
	"net/http"
	"slices"
	"sync"
	"time"

	"github.com/dkeye/roomgate/internal/app/orch"
	"github.com/dkeye/roomgate/internal/core"
	"github.com/dkeye/roomgate/internal/domain"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/pion/webrtc/v4"
	"github.com/rs/zerolog/log"
)

// UserIDKey is the gin context key under which the auth middleware stores
// the authenticated domain.UserID.
const UserIDKey = "user_id"

type Settings struct {
	ReadLimit       int64
	PingPeriod      time.Duration
	PongWait        time.Duration
	WriteWait       time.Duration
	SendBuffer      int
	AllowedOrigins  []string
	EventsPerSecond float64
	Burst           int
	ICEServers      []webrtc.ICEServer
}

type SignalWSController struct {
	Orch     *orch.Orchestrator
	settings Settings
	upgrader websocket.Upgrader
}

func NewSignalWSController(o *orch.Orchestrator, s Settings) *SignalWSController {
	if s.SendBuffer <= 0 {
		s.SendBuffer = 64
	}
	if s.WriteWait <= 0 {
		s.WriteWait = 10 * time.Second
	}
	if s.PongWait <= 0 {
		s.PongWait = 60 * time.Second
	}
	if s.PingPeriod <= 0 || s.PingPeriod >= s.PongWait {
		s.PingPeriod = s.PongWait * 9 / 10
	}
	ctl := &SignalWSController{Orch: o, settings: s}
	ctl.upgrader = websocket.Upgrader{CheckOrigin: ctl.checkOrigin}
	return ctl
}

func (ctl *SignalWSController) checkOrigin(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if origin == "" || len(ctl.settings.AllowedOrigins) == 0 {
		return true
	}
	return slices.Contains(ctl.settings.AllowedOrigins, origin)
}

// WsSignalConn is the bounded outbound queue of one websocket. Frames are
// written in enqueue order by writePump.
type WsSignalConn struct {
	conn *websocket.Conn
	send chan core.Frame

	mu     sync.RWMutex
	closed bool
}

func newWsSignalConn(ws *websocket.Conn, buffer int) *WsSignalConn {
	return &WsSignalConn{conn: ws, send: make(chan core.Frame, buffer)}
}

func (c *WsSignalConn) TrySend(f core.Frame) error {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.closed {
		return core.ErrConnClosed
	}
	select {
	case c.send <- f:
	default:
		return core.ErrBackpressure
	}
	return nil
}

// Close stops accepting frames. writePump flushes what is queued, sends a
// close frame and releases the socket.
func (c *WsSignalConn) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	c.closed = true
	close(c.send)
}

// client is the per-connection state owned by its readPump goroutine.
type client struct {
	sid     core.ConnID
	userID  domain.UserID
	conn    *WsSignalConn
	limiter *EventLimiter
}

type sessionReady struct {
	Type         string             `json:"type"`
	ConnectionID core.ConnID        `json:"connectionId"`
	UserID       domain.UserID      `json:"userId"`
	ICEServers   []webrtc.ICEServer `json:"iceServers"`
}

// HandleSignal upgrades an authenticated request and runs the connection
// until either side closes it.
func (ctl *SignalWSController) HandleSignal(ctx context.Context, c *gin.Context) {
	v, ok := c.Get(UserIDKey)
	userID, _ := v.(domain.UserID)
	if !ok || userID == 0 {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "unauthenticated"})
		return
	}

	ws, err := ctl.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		log.Error().Err(err).Str("module", "signal").Msg("ws upgrade")
		return
	}
	if ctl.settings.ReadLimit > 0 {
		ws.SetReadLimit(ctl.settings.ReadLimit)
	}

	cl := &client{
		sid:     core.ConnID(uuid.NewString()),
		userID:  userID,
		conn:    newWsSignalConn(ws, ctl.settings.SendBuffer),
		limiter: NewEventLimiter(ctl.settings.EventsPerSecond, ctl.settings.Burst),
	}
	if err := ctl.Orch.Connect(core.NewMemberSession(cl.sid, userID, cl.conn)); err != nil {
		log.Error().Err(err).Str("module", "signal").Str("conn", string(cl.sid)).Msg("register session")
		_ = ws.Close()
		return
	}
	log.Info().Str("module", "signal").Str("conn", string(cl.sid)).Str("user", userID.String()).Msg("new WS connection")

	iceServers := ctl.settings.ICEServers
	if iceServers == nil {
		iceServers = []webrtc.ICEServer{}
	}
	ctl.sendJSON(cl, sessionReady{
		Type:         evSessionReady,
		ConnectionID: cl.sid,
		UserID:       userID,
		ICEServers:   iceServers,
	})

	go ctl.writePump(ctx, cl)
	go ctl.readPump(context.WithoutCancel(ctx), cl)
}
