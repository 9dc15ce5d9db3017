package core

import (
	"encoding/json"

	"github.com/dkeye/roomgate/internal/domain"
)

// Gateway-to-client event types.
const (
	EventNewMessage         = "new_message"
	EventSignalingOffer     = "signaling_offer"
	EventSignalingAnswer    = "signaling_answer"
	EventSignalingCandidate = "signaling_ice_candidate"
	EventUserJoinedVoice    = "user_joined_voice"
	EventUserLeftVoice      = "user_left_voice"
	EventError              = "error"
)

// SignalEventType maps a negotiation kind to its outbound event name.
func SignalEventType(k domain.SignalKind) string {
	switch k {
	case domain.SignalOffer:
		return EventSignalingOffer
	case domain.SignalAnswer:
		return EventSignalingAnswer
	default:
		return EventSignalingCandidate
	}
}

// NewMessageEvent is a persisted message enriched with its author's display identity.
type NewMessageEvent struct {
	Type string `json:"type"`
	domain.Message
	User *domain.User `json:"user"`
}

// SignalEvent carries an untouched negotiation payload to its target.
type SignalEvent struct {
	Type               string          `json:"type"`
	SenderConnectionID ConnID          `json:"senderConnectionId"`
	ChannelID          *int64          `json:"channelId,omitempty"`
	Payload            json.RawMessage `json:"payload"`
}

type VoiceJoinedEvent struct {
	Type         string        `json:"type"`
	ConnectionID ConnID        `json:"connectionId"`
	UserID       domain.UserID `json:"userId"`
	DisplayName  string        `json:"displayName"`
}

type VoiceLeftEvent struct {
	Type         string `json:"type"`
	ConnectionID ConnID `json:"connectionId"`
}

// ErrorEvent is delivered only to the connection whose action failed.
type ErrorEvent struct {
	Type    string `json:"type"`
	Event   string `json:"event,omitempty"`
	Kind    string `json:"kind"`
	Message string `json:"message"`
}

// Encode marshals an outbound event into a Frame.
func Encode(v any) (Frame, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	return Frame(b), nil
}
