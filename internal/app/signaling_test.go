package app

import (
	"encoding/json"
	"testing"

	"github.com/dkeye/roomgate/internal/domain"
	apperrors "github.com/dkeye/roomgate/internal/platform/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSignalingRelay_DeliversOnlyToTarget(t *testing.T) {
	reg := NewRegistry()
	_, connA := register(t, reg, "A", 1)
	_, connB := register(t, reg, "B", 2)
	_, connC := register(t, reg, "C", 3)
	join(t, reg, "A", domain.VoiceTopic(5))
	join(t, reg, "B", domain.VoiceTopic(5))
	join(t, reg, "C", domain.VoiceTopic(5))
	relay := NewSignalingRelay(reg)

	payload := json.RawMessage(`{"sdp":"v=0...","type":"offer"}`)
	res, err := relay.Relay(Envelope{Kind: domain.SignalOffer, Sender: "A", Target: "B", Payload: payload})
	require.NoError(t, err)
	assert.Equal(t, 1, res.SendTo)

	evs := connB.events(t)
	require.Len(t, evs, 1)
	assert.Equal(t, "signaling_offer", evs[0]["type"])
	assert.Equal(t, "A", evs[0]["senderConnectionId"])
	assert.Equal(t, map[string]any{"sdp": "v=0...", "type": "offer"}, evs[0]["payload"])
	assert.NotContains(t, evs[0], "channelId")

	assert.Zero(t, connA.count())
	assert.Zero(t, connC.count())
}

func TestSignalingRelay_PassesChannelAndKind(t *testing.T) {
	reg := NewRegistry()
	_, connB := register(t, reg, "B", 2)
	relay := NewSignalingRelay(reg)
	ch := int64(5)

	_, err := relay.Relay(Envelope{Kind: domain.SignalICECandidate, Sender: "A", Target: "B", ChannelID: &ch, Payload: json.RawMessage(`{"candidate":"x"}`)})
	require.NoError(t, err)
	_, err = relay.Relay(Envelope{Kind: domain.SignalAnswer, Sender: "A", Target: "B", Payload: json.RawMessage(`"raw"`)})
	require.NoError(t, err)

	evs := connB.events(t)
	require.Len(t, evs, 2)
	assert.Equal(t, "signaling_ice_candidate", evs[0]["type"])
	assert.EqualValues(t, 5, evs[0]["channelId"])
	assert.Equal(t, "signaling_answer", evs[1]["type"])
	assert.Equal(t, "raw", evs[1]["payload"])
}

func TestSignalingRelay_RoutingMiss(t *testing.T) {
	reg := NewRegistry()
	_, connA := register(t, reg, "A", 1)
	register(t, reg, "B", 2)
	reg.PurgeConnection("B")
	relay := NewSignalingRelay(reg)

	_, err := relay.Relay(Envelope{Kind: domain.SignalOffer, Sender: "A", Target: "B", Payload: json.RawMessage(`{}`)})
	assert.ErrorIs(t, err, apperrors.ErrRoutingMiss)
	assert.Zero(t, connA.count())
}

func TestSignalingRelay_Validation(t *testing.T) {
	relay := NewSignalingRelay(NewRegistry())

	_, err := relay.Relay(Envelope{Kind: domain.SignalOffer, Sender: "A", Payload: json.RawMessage(`{}`)})
	assert.Equal(t, apperrors.TypeValidation, apperrors.TypeOf(err))

	_, err = relay.Relay(Envelope{Kind: domain.SignalOffer, Sender: "A", Target: "B"})
	assert.Equal(t, apperrors.TypeValidation, apperrors.TypeOf(err))
}
