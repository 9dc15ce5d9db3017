package signal

import (
	"context"

	"github.com/dkeye/roomgate/internal/domain"
	apperrors "github.com/dkeye/roomgate/internal/platform/errors"
)

type sendMessagePayload struct {
	ChannelID *int64 `json:"channelId"`
	Content   string `json:"content"`
}

func (ctl *SignalWSController) handleSendMessage(ctx context.Context, cl *client, event string, data []byte) {
	var p sendMessagePayload
	if !ctl.decode(cl, event, data, &p) {
		return
	}
	if p.ChannelID == nil || *p.ChannelID <= 0 {
		ctl.sendError(cl, event, apperrors.ValidationError("channelId is required"))
		return
	}
	if err := ctl.Orch.SendMessage(ctx, cl.sid, domain.ChannelID(*p.ChannelID), p.Content); err != nil {
		ctl.sendError(cl, event, err)
	}
}
