package app

import "github.com/dkeye/roomgate/internal/core"

type BackpressureAction int

const (
	NoAction BackpressureAction = iota
	KickMember
)

// Policy decides what happens to a recipient whose outbound queue refused a
// frame. Kicking keeps the ordering guarantee intact: a member that would
// have a gap in its channel stream is disconnected instead.
type Policy interface {
	OnBackPressure(member core.MemberSession) BackpressureAction
}

type SimplePolicy struct{}

func (SimplePolicy) OnBackPressure(core.MemberSession) BackpressureAction {
	return KickMember
}
