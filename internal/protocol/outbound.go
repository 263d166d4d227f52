package protocol

import (
	"github.com/dkeye/Relay/internal/core"
	"github.com/dkeye/Relay/internal/domain"
	"github.com/dkeye/Relay/internal/json"
)

type Welcome struct {
	Type      Kind           `json:"type"`
	SessionID core.SessionID `json:"sessionId"`
}

type Registered struct {
	Type        Kind             `json:"type"`
	SessionID   core.SessionID   `json:"sessionId"`
	AddressID   domain.AddressID `json:"addressId"`
	DisplayName string           `json:"displayName"`
}

type ErrorNotice struct {
	Type    Kind           `json:"type"`
	Code    core.ErrorCode `json:"code"`
	Message string         `json:"message"`
}

// UserInfo is one presence entry.
type UserInfo struct {
	SessionID   core.SessionID   `json:"sessionId"`
	DisplayName string           `json:"displayName"`
	AddressID   domain.AddressID `json:"addressId,omitempty"`
}

// UsersUpdate is a full presence snapshot. Seq grows with every presence
// change; a client keeps the snapshot with the highest Seq.
type UsersUpdate struct {
	Type  Kind       `json:"type"`
	Seq   uint64     `json:"seq"`
	Users []UserInfo `json:"users"`
}

type RoomJoined struct {
	Type      Kind             `json:"type"`
	RoomToken domain.RoomToken `json:"roomToken"`
	Members   []core.SessionID `json:"members"`
}

type RoomLeft struct {
	Type      Kind             `json:"type"`
	RoomToken domain.RoomToken `json:"roomToken"`
}

// MemberEvent is user-joined / user-left.
type MemberEvent struct {
	Type      Kind             `json:"type"`
	SessionID core.SessionID   `json:"sessionId"`
	RoomToken domain.RoomToken `json:"roomToken"`
}

type CallIDStatus struct {
	Type      Kind             `json:"type"`
	AddressID domain.AddressID `json:"addressId"`
	Exists    bool             `json:"exists"`
}

// Forward is a relayed Signal as seen by the receiver. From is always set.
type Forward struct {
	Type          Kind             `json:"type"`
	From          core.SessionID   `json:"from"`
	FromName      string           `json:"fromName,omitempty"`
	FromAddressID domain.AddressID `json:"fromAddressId,omitempty"`
	RoomToken     domain.RoomToken `json:"roomToken,omitempty"`
	Body          json.RawMessage  `json:"body,omitempty"`
}

type Pong struct {
	Type Kind `json:"type"`
}

func NewWelcome(sid core.SessionID) Welcome {
	return Welcome{Type: KindWelcome, SessionID: sid}
}

func NewRegistered(sid core.SessionID, id domain.Identity) Registered {
	return Registered{Type: KindRegistered, SessionID: sid, AddressID: id.AddressID, DisplayName: id.DisplayName}
}

func NewErrorNotice(err error) ErrorNotice {
	return ErrorNotice{Type: KindError, Code: core.Code(err), Message: err.Error()}
}

func NewUsersUpdate(users []UserInfo, seq uint64) UsersUpdate {
	if users == nil {
		users = []UserInfo{}
	}
	return UsersUpdate{Type: KindUsersUpdate, Seq: seq, Users: users}
}

func NewRoomJoined(tok domain.RoomToken, members []core.SessionID) RoomJoined {
	if members == nil {
		members = []core.SessionID{}
	}
	return RoomJoined{Type: KindRoomJoined, RoomToken: tok, Members: members}
}

func NewRoomLeft(tok domain.RoomToken) RoomLeft {
	return RoomLeft{Type: KindRoomLeft, RoomToken: tok}
}

func NewUserJoined(sid core.SessionID, tok domain.RoomToken) MemberEvent {
	return MemberEvent{Type: KindUserJoined, SessionID: sid, RoomToken: tok}
}

func NewUserLeft(sid core.SessionID, tok domain.RoomToken) MemberEvent {
	return MemberEvent{Type: KindUserLeft, SessionID: sid, RoomToken: tok}
}

func NewCallIDStatus(addr domain.AddressID, exists bool) CallIDStatus {
	return CallIDStatus{Type: KindCallIDStatus, AddressID: addr, Exists: exists}
}

// NewForward builds the receiver side of sig. call-user is delivered as
// call-request, everything else keeps its kind.
func NewForward(sig Signal, from UserInfo) Forward {
	kind := sig.Type
	if kind == KindCallUser {
		kind = KindCallRequest
	}
	return Forward{
		Type:          kind,
		From:          from.SessionID,
		FromName:      from.DisplayName,
		FromAddressID: from.AddressID,
		RoomToken:     sig.Target.RoomToken,
		Body:          sig.Body,
	}
}

func NewPong() Pong {
	return Pong{Type: KindPong}
}

// Encode serializes any outbound message into a frame.
func Encode(v any) (core.Frame, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	return core.Frame(b), nil
}
