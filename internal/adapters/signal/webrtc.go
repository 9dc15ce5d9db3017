package signal

import (
	"encoding/json"

	"github.com/dkeye/roomgate/internal/app"
	"github.com/dkeye/roomgate/internal/core"
	"github.com/dkeye/roomgate/internal/domain"
)

// relayPayload accepts both the current envelope and the webrtc_* form,
// which names the target targetSocketId and nests the payload by kind.
// Targets always receive the signaling_* form.
type relayPayload struct {
	TargetConnectionID string          `json:"targetConnectionId"`
	TargetSocketID     string          `json:"targetSocketId"`
	ChannelID          *int64          `json:"channelId"`
	Payload            json.RawMessage `json:"payload"`
	Offer              json.RawMessage `json:"offer"`
	Answer             json.RawMessage `json:"answer"`
	Candidate          json.RawMessage `json:"candidate"`
}

func signalKind(event string) domain.SignalKind {
	switch event {
	case evOffer, evLegacyOffer:
		return domain.SignalOffer
	case evAnswer, evLegacyAnswer:
		return domain.SignalAnswer
	default:
		return domain.SignalICECandidate
	}
}

func (p relayPayload) envelope(sender core.ConnID, kind domain.SignalKind) app.Envelope {
	target := p.TargetConnectionID
	if target == "" {
		target = p.TargetSocketID
	}
	payload := p.Payload
	if len(payload) == 0 {
		switch kind {
		case domain.SignalOffer:
			payload = p.Offer
		case domain.SignalAnswer:
			payload = p.Answer
		default:
			payload = p.Candidate
		}
	}
	return app.Envelope{
		Kind:      kind,
		Sender:    sender,
		Target:    core.ConnID(target),
		ChannelID: p.ChannelID,
		Payload:   payload,
	}
}

func (ctl *SignalWSController) handleRelay(cl *client, event string, data []byte) {
	var p relayPayload
	if !ctl.decode(cl, event, data, &p) {
		return
	}
	if err := ctl.Orch.Signal(p.envelope(cl.sid, signalKind(event))); err != nil {
		ctl.sendError(cl, event, err)
	}
}
