package domain

import (
	"errors"
	"strconv"
)

var ErrChannelNotFound = errors.New("channel not found")

type (
	ServerID  int64
	ChannelID int64
)

func (id ServerID) String() string  { return strconv.FormatInt(int64(id), 10) }
func (id ChannelID) String() string { return strconv.FormatInt(int64(id), 10) }

type ChannelType string

const (
	ChannelText  ChannelType = "text"
	ChannelVoice ChannelType = "voice"
	ChannelVideo ChannelType = "video"
)

type Channel struct {
	ID       ChannelID   `json:"id"`
	Name     string      `json:"name"`
	Type     ChannelType `json:"type"`
	ServerID ServerID    `json:"serverId"`
}

// AcceptsChat reports whether persisted chat messages may be sent here.
// Voice and video channels never accept them.
func (c *Channel) AcceptsChat() bool { return c.Type == ChannelText }

// IsVoice reports whether the channel carries a voice topic.
func (c *Channel) IsVoice() bool { return c.Type == ChannelVoice || c.Type == ChannelVideo }
