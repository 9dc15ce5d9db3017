package rtc

import (
	"testing"

	"github.com/dkeye/roomgate/internal/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewConfiguration(t *testing.T) {
	cfg, err := NewConfiguration(nil)
	require.NoError(t, err)
	assert.Len(t, cfg.ICEServers, 2)

	cfg, err = NewConfiguration([]config.ICEServer{
		{URLs: []string{"stun:stun.example.com:3478"}},
		{URLs: []string{"turn:turn.example.com:3478?transport=udp"}, Username: "u", Credential: "p"},
	})
	require.NoError(t, err)
	require.Len(t, cfg.ICEServers, 2)
	assert.Equal(t, "u", cfg.ICEServers[1].Username)
	assert.Equal(t, "p", cfg.ICEServers[1].Credential)
}

func TestNewConfiguration_Rejects(t *testing.T) {
	tests := []struct {
		name    string
		servers []config.ICEServer
	}{
		{"no urls", []config.ICEServer{{}}},
		{"bad scheme", []config.ICEServer{{URLs: []string{"http://example.com"}}}},
		{"turn without credentials", []config.ICEServer{{URLs: []string{"turn:turn.example.com:3478"}}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewConfiguration(tt.servers)
			assert.Error(t, err)
		})
	}
}
