package signal

import (
	"github.com/dkeye/roomgate/internal/core"
	"github.com/dkeye/roomgate/internal/domain"
)

func (ctl *SignalWSController) handlePing(cl *client) {
	ctl.sendJSON(cl, struct {
		Type string `json:"type"`
	}{
		Type: evPong,
	})
}

func (ctl *SignalWSController) handleWhoAmI(cl *client) {
	topics := ctl.Orch.Topics(cl.sid)
	if topics == nil {
		topics = []domain.Topic{}
	}
	ctl.sendJSON(cl, struct {
		Type         string         `json:"type"`
		ConnectionID core.ConnID    `json:"connectionId"`
		UserID       domain.UserID  `json:"userId"`
		Topics       []domain.Topic `json:"topics"`
	}{
		Type:         evWhoAmI,
		ConnectionID: cl.sid,
		UserID:       cl.userID,
		Topics:       topics,
	})
}

func (ctl *SignalWSController) handleListMembers(cl *client, event string, data []byte) {
	var p topicPayload
	if !ctl.decode(cl, event, data, &p) {
		return
	}
	t, err := p.topic()
	if err != nil {
		ctl.sendError(cl, event, err)
		return
	}
	ctl.sendJSON(cl, struct {
		Type    string           `json:"type"`
		TopicID int64            `json:"topicId"`
		Kind    domain.TopicKind `json:"kind"`
		Members []core.MemberDTO `json:"members"`
	}{
		Type:    evTopicMembers,
		TopicID: t.ID,
		Kind:    t.Kind,
		Members: ctl.Orch.ListMembers(t),
	})
}
