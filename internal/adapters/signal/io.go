package signal

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/dkeye/roomgate/internal/core"
	apperrors "github.com/dkeye/roomgate/internal/platform/errors"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"
)

// Client-to-gateway event types, including the aliases older clients send.
const (
	evJoinTopic        = "join_topic"
	evLeaveTopic       = "leave_topic"
	evJoinServer       = "join_server"
	evLeaveServer      = "leave_server"
	evJoinChannel      = "join_channel"
	evLeaveChannel     = "leave_channel"
	evJoinVoice        = "join_voice"
	evLeaveVoice       = "leave_voice"
	evJoinVoiceChannel = "join_voice_channel"
	evLeaveVoiceChan   = "leave_voice_channel"
	evSendMessage      = "send_message"
	evOffer            = "signaling_offer"
	evAnswer           = "signaling_answer"
	evCandidate        = "signaling_ice_candidate"
	evLegacyOffer      = "webrtc_offer"
	evLegacyAnswer     = "webrtc_answer"
	evLegacyCandidate  = "webrtc_ice_candidate"
	evPing             = "ping"
	evWhoAmI           = "whoami"
	evListMembers      = "list_members"

	evPong         = "pong"
	evSessionReady = "session_ready"
	evTopicMembers = "topic_members"
)

func (ctl *SignalWSController) writePump(ctx context.Context, cl *client) {
	c := cl.conn
	ticker := time.NewTicker(ctl.settings.PingPeriod)
	defer func() {
		ticker.Stop()
		_ = c.conn.Close()
	}()

	for {
		select {
		case <-ctx.Done():
			log.Info().Str("module", "signal").Str("conn", string(cl.sid)).Msg("writePump ctx done")
			_ = c.conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseGoingAway, "server shutting down"),
				time.Now().Add(ctl.settings.WriteWait))
			return
		case data, ok := <-c.send:
			if err := c.conn.SetWriteDeadline(time.Now().Add(ctl.settings.WriteWait)); err != nil {
				log.Error().Err(err).Str("module", "signal").Msg("writePump set deadline")
				return
			}
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
				log.Error().Err(err).Str("module", "signal").Str("conn", string(cl.sid)).Msg("writePump write error")
				return
			}
		case <-ticker.C:
			if err := c.conn.SetWriteDeadline(time.Now().Add(ctl.settings.WriteWait)); err != nil {
				return
			}
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// readPump handles one connection's inbound events sequentially. When it
// returns the connection is purged before the socket is released.
func (ctl *SignalWSController) readPump(ctx context.Context, cl *client) {
	ws := cl.conn.conn
	defer func() {
		log.Info().Str("module", "signal").Str("conn", string(cl.sid)).Msg("readPump closing")
		ctl.Orch.OnDisconnect(cl.sid)
		cl.conn.Close()
	}()

	_ = ws.SetReadDeadline(time.Now().Add(ctl.settings.PongWait))
	ws.SetPongHandler(func(string) error {
		return ws.SetReadDeadline(time.Now().Add(ctl.settings.PongWait))
	})

	for {
		_, data, err := ws.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				log.Warn().Err(err).Str("module", "signal").Str("conn", string(cl.sid)).Msg("readPump read error")
			}
			return
		}
		ctl.handleSignal(ctx, cl, data)
	}
}

func (ctl *SignalWSController) handleSignal(ctx context.Context, cl *client, data []byte) {
	var env struct {
		Type string `json:"type"`
	}
	if err := json.Unmarshal(data, &env); err != nil {
		log.Warn().Err(err).Str("module", "signal").Str("conn", string(cl.sid)).Msg("bad json")
		ctl.sendError(cl, "", apperrors.ValidationError("malformed event"))
		return
	}
	if !cl.limiter.Allow(env.Type) {
		ctl.sendError(cl, env.Type, apperrors.ValidationError("rate limit exceeded"))
		return
	}

	switch env.Type {
	case evJoinTopic:
		ctl.handleJoinTopic(ctx, cl, env.Type, data)
	case evLeaveTopic:
		ctl.handleLeaveTopic(cl, env.Type, data)
	case evJoinServer, evJoinChannel:
		ctl.handleJoinAlias(ctx, cl, env.Type, data)
	case evLeaveServer, evLeaveChannel:
		ctl.handleLeaveAlias(cl, env.Type, data)
	case evJoinVoice, evJoinVoiceChannel:
		ctl.handleJoinVoice(ctx, cl, env.Type, data)
	case evLeaveVoice, evLeaveVoiceChan:
		ctl.handleLeaveVoice(cl, env.Type, data)
	case evSendMessage:
		ctl.handleSendMessage(ctx, cl, env.Type, data)
	case evOffer, evAnswer, evCandidate, evLegacyOffer, evLegacyAnswer, evLegacyCandidate:
		ctl.handleRelay(cl, env.Type, data)
	case evPing:
		ctl.handlePing(cl)
	case evWhoAmI:
		ctl.handleWhoAmI(cl)
	case evListMembers:
		ctl.handleListMembers(cl, env.Type, data)
	default:
		log.Warn().Str("module", "signal").Str("type", env.Type).Msg("unknown signal")
		ctl.sendError(cl, env.Type, apperrors.ValidationError("unknown event type"))
	}
}

// decode unmarshals an event body, reporting a validation error to the
// client on failure.
func (ctl *SignalWSController) decode(cl *client, event string, data []byte, v any) bool {
	if err := json.Unmarshal(data, v); err != nil {
		log.Warn().Err(err).Str("module", "signal").Str("type", event).Msg("bad payload")
		ctl.sendError(cl, event, apperrors.ValidationError("bad payload"))
		return false
	}
	return true
}

func (ctl *SignalWSController) sendJSON(cl *client, v any) {
	b, err := core.Encode(v)
	if err != nil {
		log.Error().Err(err).Str("module", "signal").Msg("sendJSON marshal")
		return
	}
	if err := cl.conn.TrySend(b); err != nil && !errors.Is(err, core.ErrConnClosed) {
		log.Warn().Err(err).Str("module", "signal").Str("conn", string(cl.sid)).Msg("reply dropped")
	}
}

// sendError reports a failed action to the acting connection only.
func (ctl *SignalWSController) sendError(cl *client, event string, err error) {
	e := apperrors.AsError(err)
	if e.Type == apperrors.TypeInternal {
		log.Error().Err(err).Str("module", "signal").Str("conn", string(cl.sid)).Str("type", event).Msg("action failed")
	} else {
		log.Debug().Err(err).Str("module", "signal").Str("conn", string(cl.sid)).Str("type", event).Msg("action rejected")
	}
	ctl.sendJSON(cl, core.ErrorEvent{
		Type:    core.EventError,
		Event:   event,
		Kind:    string(e.Type),
		Message: e.Message,
	})
}
