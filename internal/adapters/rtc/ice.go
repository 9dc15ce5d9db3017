// Package rtc builds the WebRTC configuration advertised to clients. The
// gateway never terminates media; peers negotiate directly through the
// signaling relay.
package rtc

import (
	"fmt"

	"github.com/dkeye/roomgate/internal/config"
	"github.com/pion/stun/v3"
	"github.com/pion/webrtc/v4"
)

// DefaultWebRTCConfig is used when no ICE servers are configured.
func DefaultWebRTCConfig() webrtc.Configuration {
	return webrtc.Configuration{
		ICEServers: []webrtc.ICEServer{
			{URLs: []string{"stun:stun.l.google.com:19302"}},
			{URLs: []string{"stun:stun1.l.google.com:19302"}},
		},
	}
}

// NewConfiguration validates the configured ICE servers. TURN entries must
// carry credentials.
func NewConfiguration(servers []config.ICEServer) (webrtc.Configuration, error) {
	if len(servers) == 0 {
		return DefaultWebRTCConfig(), nil
	}
	out := make([]webrtc.ICEServer, 0, len(servers))
	for i, s := range servers {
		if len(s.URLs) == 0 {
			return webrtc.Configuration{}, fmt.Errorf("ice_servers[%d]: urls is empty", i)
		}
		for _, raw := range s.URLs {
			u, err := stun.ParseURI(raw)
			if err != nil {
				return webrtc.Configuration{}, fmt.Errorf("ice_servers[%d]: %q: %w", i, raw, err)
			}
			if (u.Scheme == stun.SchemeTypeTURN || u.Scheme == stun.SchemeTypeTURNS) && (s.Username == "" || s.Credential == "") {
				return webrtc.Configuration{}, fmt.Errorf("ice_servers[%d]: turn server %q needs username and credential", i, raw)
			}
		}
		srv := webrtc.ICEServer{URLs: s.URLs, Username: s.Username}
		if s.Credential != "" {
			srv.Credential = s.Credential
			srv.CredentialType = webrtc.ICECredentialTypePassword
		}
		out = append(out, srv)
	}
	return webrtc.Configuration{ICEServers: out}, nil
}
