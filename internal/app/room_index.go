package app

import (
	"sort"

	"github.com/samber/lo"

	"github.com/dkeye/Relay/internal/core"
	"github.com/dkeye/Relay/internal/domain"
)

type RoomInfo struct {
	Token       domain.RoomToken `json:"roomToken"`
	MemberCount int              `json:"memberCount"`
}

// RoomIndex maps a room token to its member set. Rooms appear on first
// join and are dropped as soon as the last member leaves.
type RoomIndex struct {
	rooms map[domain.RoomToken]map[core.SessionID]struct{}
}

func NewRoomIndex() *RoomIndex {
	return &RoomIndex{rooms: make(map[domain.RoomToken]map[core.SessionID]struct{})}
}

// Join adds sid to the room. It returns false if sid was already a member.
func (ri *RoomIndex) Join(tok domain.RoomToken, sid core.SessionID) bool {
	members, ok := ri.rooms[tok]
	if !ok {
		members = make(map[core.SessionID]struct{})
		ri.rooms[tok] = members
	}
	if _, ok := members[sid]; ok {
		return false
	}
	members[sid] = struct{}{}
	return true
}

// Leave removes sid from the room. It returns false if sid was not a member.
func (ri *RoomIndex) Leave(tok domain.RoomToken, sid core.SessionID) bool {
	members, ok := ri.rooms[tok]
	if !ok {
		return false
	}
	if _, ok := members[sid]; !ok {
		return false
	}
	delete(members, sid)
	if len(members) == 0 {
		delete(ri.rooms, tok)
	}
	return true
}

// Members returns the sorted member IDs of the room.
func (ri *RoomIndex) Members(tok domain.RoomToken) []core.SessionID {
	out := lo.Keys(ri.rooms[tok])
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

func (ri *RoomIndex) Contains(tok domain.RoomToken, sid core.SessionID) bool {
	_, ok := ri.rooms[tok][sid]
	return ok
}

func (ri *RoomIndex) List() []RoomInfo {
	out := make([]RoomInfo, 0, len(ri.rooms))
	for tok, members := range ri.rooms {
		out = append(out, RoomInfo{Token: tok, MemberCount: len(members)})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Token < out[j].Token })
	return out
}

func (ri *RoomIndex) Len() int { return len(ri.rooms) }
