package domain

import (
	"fmt"
	"strconv"
)

type TopicKind string

const (
	TopicServer  TopicKind = "server"
	TopicChannel TopicKind = "channel"
	TopicVoice   TopicKind = "voice"
)

func ParseTopicKind(s string) (TopicKind, error) {
	switch k := TopicKind(s); k {
	case TopicServer, TopicChannel, TopicVoice:
		return k, nil
	default:
		return "", fmt.Errorf("unknown topic kind %q", s)
	}
}

// Topic is a broadcast scope. Topics have no lifecycle of their own; the id
// refers to a server or channel owned by the persistence layer.
type Topic struct {
	Kind TopicKind `json:"kind"`
	ID   int64     `json:"topicId"`
}

func ServerTopic(id ServerID) Topic   { return Topic{Kind: TopicServer, ID: int64(id)} }
func ChannelTopic(id ChannelID) Topic { return Topic{Kind: TopicChannel, ID: int64(id)} }
func VoiceTopic(id ChannelID) Topic   { return Topic{Kind: TopicVoice, ID: int64(id)} }

func (t Topic) IsVoice() bool { return t.Kind == TopicVoice }

func (t Topic) String() string { return string(t.Kind) + ":" + strconv.FormatInt(t.ID, 10) }
