package core

import "github.com/dkeye/roomgate/internal/domain"

// PublishResult reports delivery stats/backpressure to the orchestrator.
type PublishResult struct {
	SendTo  int
	Dropped []MemberSession
}

// Merge folds o into r.
func (r *PublishResult) Merge(o PublishResult) {
	r.SendTo += o.SendTo
	r.Dropped = append(r.Dropped, o.Dropped...)
}

// MemberDTO is a read-only roster entry (no transport fields).
type MemberDTO struct {
	ConnectionID ConnID        `json:"connectionId"`
	UserID       domain.UserID `json:"userId"`
}

// Publish sends f to every session in members except skip, isolating each
// recipient's failure from the rest.
func Publish(members []MemberSession, skip ConnID, f Frame) PublishResult {
	res := PublishResult{}
	for _, m := range members {
		if skip != "" && m.ID() == skip {
			continue
		}
		if err := m.Signal().TrySend(f); err != nil {
			res.Dropped = append(res.Dropped, m)
			continue
		}
		res.SendTo++
	}
	return res
}
