package protocol

import (
	"github.com/cockroachdb/errors"

	"github.com/dkeye/Relay/internal/core"
	"github.com/dkeye/Relay/internal/domain"
	"github.com/dkeye/Relay/internal/json"
)

// Kind is the value of the "type" field of every frame.
type Kind string

// Client -> server.
const (
	KindRegister     Kind = "register"
	KindGetUsers     Kind = "get-users"
	KindJoinRoom     Kind = "join-room"
	KindLeaveRoom    Kind = "leave-room"
	KindCheckCallID  Kind = "check-call-id"
	KindCallUser     Kind = "call-user"
	KindCallAccepted Kind = "call-accepted"
	KindCallRejected Kind = "call-rejected"
	KindEndCall      Kind = "end-call"
	KindOffer        Kind = "offer"
	KindAnswer       Kind = "answer"
	KindICECandidate Kind = "ice-candidate"
	KindPing         Kind = "ping"
)

// Server -> client.
const (
	KindWelcome      Kind = "welcome"
	KindRegistered   Kind = "registered"
	KindError        Kind = "error"
	KindUsersUpdate  Kind = "users-update"
	KindRoomJoined   Kind = "room-joined"
	KindRoomLeft     Kind = "room-left"
	KindUserJoined   Kind = "user-joined"
	KindUserLeft     Kind = "user-left"
	KindCallIDStatus Kind = "call-id-status"
	KindCallRequest  Kind = "call-request"
	KindPong         Kind = "pong"
)

// IsSignal reports whether k is relayed to another session.
func (k Kind) IsSignal() bool {
	switch k {
	case KindCallUser, KindCallAccepted, KindCallRejected, KindEndCall,
		KindOffer, KindAnswer, KindICECandidate:
		return true
	}
	return false
}

// carriesBody reports whether k forwards an opaque negotiation body.
func (k Kind) carriesBody() bool {
	return k == KindOffer || k == KindAnswer || k == KindICECandidate
}

// Inbound is one validated client message. The concrete type is selected by Kind.
type Inbound interface {
	Kind() Kind
}

type Register struct {
	Identity  domain.Identity
	RoomToken domain.RoomToken
}

type GetUsers struct{}

type JoinRoom struct {
	RoomToken domain.RoomToken
}

type LeaveRoom struct {
	RoomToken domain.RoomToken
}

type CheckCallID struct {
	AddressID domain.AddressID
}

type Ping struct{}

// Target is where a Signal is addressed. Exactly one field is set.
type Target struct {
	SessionID core.SessionID
	AddressID domain.AddressID
	RoomToken domain.RoomToken
}

func (t Target) IsRoom() bool { return t.RoomToken != "" }

// Signal is any message relayed to another session: call lifecycle and
// peer negotiation. Body is forwarded untouched.
type Signal struct {
	Type   Kind
	Target Target
	Body   json.RawMessage
}

func (Register) Kind() Kind    { return KindRegister }
func (GetUsers) Kind() Kind    { return KindGetUsers }
func (JoinRoom) Kind() Kind    { return KindJoinRoom }
func (LeaveRoom) Kind() Kind   { return KindLeaveRoom }
func (CheckCallID) Kind() Kind { return KindCheckCallID }
func (Ping) Kind() Kind        { return KindPing }
func (s Signal) Kind() Kind    { return s.Type }

type wireMessage struct {
	Type            Kind            `json:"type"`
	DisplayName     string          `json:"displayName,omitempty"`
	AddressID       string          `json:"addressId,omitempty"`
	RoomToken       string          `json:"roomToken,omitempty"`
	TargetSessionID string          `json:"targetSessionId,omitempty"`
	TargetAddressID string          `json:"targetAddressId,omitempty"`
	To              string          `json:"to,omitempty"`
	Body            json.RawMessage `json:"body,omitempty"`
}

// Parse decodes and validates one client frame.
// Every returned error matches core.ErrBadPayload.
func Parse(data []byte) (Inbound, error) {
	var m wireMessage
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, errors.Mark(errors.Wrap(err, "decode frame"), core.ErrBadPayload)
	}
	in, err := m.inbound()
	if err != nil {
		return nil, errors.Mark(errors.Wrapf(err, "%s", m.Type), core.ErrBadPayload)
	}
	return in, nil
}

func (m wireMessage) inbound() (Inbound, error) {
	switch m.Type {
	case KindRegister:
		id, err := domain.NewIdentity(m.DisplayName, m.AddressID)
		if err != nil {
			return nil, err
		}
		reg := Register{Identity: id}
		if m.RoomToken != "" {
			if reg.RoomToken, err = domain.ParseRoomToken(m.RoomToken); err != nil {
				return nil, err
			}
		}
		return reg, nil
	case KindGetUsers:
		return GetUsers{}, nil
	case KindPing:
		return Ping{}, nil
	case KindJoinRoom, KindLeaveRoom:
		tok, err := domain.ParseRoomToken(m.RoomToken)
		if err != nil {
			return nil, err
		}
		if m.Type == KindJoinRoom {
			return JoinRoom{RoomToken: tok}, nil
		}
		return LeaveRoom{RoomToken: tok}, nil
	case KindCheckCallID:
		addr, err := domain.ParseAddressID(m.AddressID)
		if err != nil {
			return nil, err
		}
		return CheckCallID{AddressID: addr}, nil
	case "":
		return nil, errors.New("missing type")
	}

	if !m.Type.IsSignal() {
		return nil, errors.Newf("unsupported message type %q", m.Type)
	}
	target, err := m.target()
	if err != nil {
		return nil, err
	}
	if m.Type == KindCallUser && target.IsRoom() {
		return nil, errors.New("call-user must address a session or an address id")
	}
	sig := Signal{Type: m.Type, Target: target}
	if m.Type.carriesBody() {
		if len(m.Body) == 0 {
			return nil, errors.New("missing body")
		}
		sig.Body = m.Body
	}
	return sig, nil
}

func (m wireMessage) target() (Target, error) {
	sid := m.TargetSessionID
	if sid == "" {
		sid = m.To
	} else if m.To != "" && m.To != sid {
		return Target{}, errors.New("to and targetSessionId disagree")
	}

	var t Target
	set := 0
	if sid != "" {
		t.SessionID = core.SessionID(sid)
		set++
	}
	if m.TargetAddressID != "" {
		addr, err := domain.ParseAddressID(m.TargetAddressID)
		if err != nil {
			return Target{}, err
		}
		t.AddressID = addr
		set++
	}
	if m.RoomToken != "" {
		tok, err := domain.ParseRoomToken(m.RoomToken)
		if err != nil {
			return Target{}, err
		}
		t.RoomToken = tok
		set++
	}
	switch set {
	case 0:
		return Target{}, errors.New("missing target")
	case 1:
		return t, nil
	default:
		return Target{}, errors.New("more than one target")
	}
}
