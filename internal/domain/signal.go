package domain

import "fmt"

// SignalKind is a WebRTC negotiation step relayed between two connections.
type SignalKind string

const (
	SignalOffer        SignalKind = "offer"
	SignalAnswer       SignalKind = "answer"
	SignalICECandidate SignalKind = "ice-candidate"
)

func ParseSignalKind(s string) (SignalKind, error) {
	switch k := SignalKind(s); k {
	case SignalOffer, SignalAnswer, SignalICECandidate:
		return k, nil
	default:
		return "", fmt.Errorf("unknown signal kind %q", s)
	}
}
