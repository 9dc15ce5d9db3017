package orch

import (
	"context"

	"github.com/dkeye/roomgate/internal/core"
	"github.com/dkeye/roomgate/internal/domain"
)

// SendMessage persists content in channelID and fans it out. Slow recipients
// are handled by the policy after the broadcast completes.
func (o *Orchestrator) SendMessage(ctx context.Context, sid core.ConnID, channelID domain.ChannelID, content string) error {
	sess, err := o.session(sid)
	if err != nil {
		return err
	}
	_, res, err := o.Fanout.Send(ctx, sess, channelID, content)
	o.applyPolicy(res)
	return err
}
