package app

import (
	"github.com/cockroachdb/errors"

	"github.com/dkeye/Relay/internal/core"
)

type BackpressureAction int

const (
	NoAction BackpressureAction = iota
	KickMember
	DropFrame
)

// Policy decides what happens to a session whose connection refused a frame.
type Policy interface {
	OnBackPressure(sid core.SessionID, err error) BackpressureAction
}

// SimplePolicy treats every failed send as a dead connection.
type SimplePolicy struct{}

func (SimplePolicy) OnBackPressure(core.SessionID, error) BackpressureAction {
	return KickMember
}

// TolerantPolicy keeps slow sessions and only kicks closed ones.
type TolerantPolicy struct{}

func (TolerantPolicy) OnBackPressure(_ core.SessionID, err error) BackpressureAction {
	if errors.Is(err, core.ErrBackpressure) {
		return DropFrame
	}
	return KickMember
}
