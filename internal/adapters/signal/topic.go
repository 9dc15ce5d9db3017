package signal

import (
	"context"

	"github.com/dkeye/roomgate/internal/domain"
	apperrors "github.com/dkeye/roomgate/internal/platform/errors"
)

type topicPayload struct {
	TopicID *int64 `json:"topicId"`
	Kind    string `json:"kind"`
}

func (p topicPayload) topic() (domain.Topic, error) {
	kind, err := domain.ParseTopicKind(p.Kind)
	if err != nil {
		return domain.Topic{}, apperrors.ValidationError("unknown topic kind")
	}
	if p.TopicID == nil || *p.TopicID <= 0 {
		return domain.Topic{}, apperrors.ValidationError("topicId is required")
	}
	return domain.Topic{Kind: kind, ID: *p.TopicID}, nil
}

// aliasPayload carries the id field of the topic-specific events.
type aliasPayload struct {
	ServerID  *int64 `json:"serverId"`
	ChannelID *int64 `json:"channelId"`
}

func aliasTopic(event string, p aliasPayload) (domain.Topic, error) {
	var kind domain.TopicKind
	var id *int64
	switch event {
	case evJoinServer, evLeaveServer:
		kind, id = domain.TopicServer, p.ServerID
	default:
		kind, id = domain.TopicChannel, p.ChannelID
	}
	if id == nil || *id <= 0 {
		if kind == domain.TopicServer {
			return domain.Topic{}, apperrors.ValidationError("serverId is required")
		}
		return domain.Topic{}, apperrors.ValidationError("channelId is required")
	}
	return domain.Topic{Kind: kind, ID: *id}, nil
}

func (ctl *SignalWSController) handleJoinTopic(ctx context.Context, cl *client, event string, data []byte) {
	var p topicPayload
	if !ctl.decode(cl, event, data, &p) {
		return
	}
	t, err := p.topic()
	if err == nil {
		err = ctl.Orch.JoinTopic(ctx, cl.sid, t)
	}
	if err != nil {
		ctl.sendError(cl, event, err)
	}
}

func (ctl *SignalWSController) handleLeaveTopic(cl *client, event string, data []byte) {
	var p topicPayload
	if !ctl.decode(cl, event, data, &p) {
		return
	}
	t, err := p.topic()
	if err != nil {
		ctl.sendError(cl, event, err)
		return
	}
	ctl.Orch.LeaveTopic(cl.sid, t)
}

func (ctl *SignalWSController) handleJoinAlias(ctx context.Context, cl *client, event string, data []byte) {
	var p aliasPayload
	if !ctl.decode(cl, event, data, &p) {
		return
	}
	t, err := aliasTopic(event, p)
	if err == nil {
		err = ctl.Orch.JoinTopic(ctx, cl.sid, t)
	}
	if err != nil {
		ctl.sendError(cl, event, err)
	}
}

func (ctl *SignalWSController) handleLeaveAlias(cl *client, event string, data []byte) {
	var p aliasPayload
	if !ctl.decode(cl, event, data, &p) {
		return
	}
	t, err := aliasTopic(event, p)
	if err != nil {
		ctl.sendError(cl, event, err)
		return
	}
	ctl.Orch.LeaveTopic(cl.sid, t)
}

type voicePayload struct {
	ChannelID *int64 `json:"channelId"`
}

func (p voicePayload) channel() (domain.ChannelID, error) {
	if p.ChannelID == nil || *p.ChannelID <= 0 {
		return 0, apperrors.ValidationError("channelId is required")
	}
	return domain.ChannelID(*p.ChannelID), nil
}

func (ctl *SignalWSController) handleJoinVoice(ctx context.Context, cl *client, event string, data []byte) {
	var p voicePayload
	if !ctl.decode(cl, event, data, &p) {
		return
	}
	id, err := p.channel()
	if err == nil {
		err = ctl.Orch.JoinVoice(ctx, cl.sid, id)
	}
	if err != nil {
		ctl.sendError(cl, event, err)
	}
}

func (ctl *SignalWSController) handleLeaveVoice(cl *client, event string, data []byte) {
	var p voicePayload
	if !ctl.decode(cl, event, data, &p) {
		return
	}
	id, err := p.channel()
	if err != nil {
		ctl.sendError(cl, event, err)
		return
	}
	ctl.Orch.LeaveVoice(cl.sid, id)
}
