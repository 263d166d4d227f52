package orch

import (
	"github.com/cockroachdb/errors"
	"github.com/rs/zerolog/log"

	"github.com/dkeye/Relay/internal/app"
	"github.com/dkeye/Relay/internal/core"
	"github.com/dkeye/Relay/internal/protocol"
)

type handlerFunc func(o *Orchestrator, sid core.SessionID, msg protocol.Inbound) error

var dispatch = map[protocol.Kind]handlerFunc{
	protocol.KindRegister:     handleRegister,
	protocol.KindGetUsers:     handleGetUsers,
	protocol.KindJoinRoom:     handleJoinRoom,
	protocol.KindLeaveRoom:    handleLeaveRoom,
	protocol.KindCheckCallID:  handleCheckCallID,
	protocol.KindPing:         handlePing,
	protocol.KindCallUser:     handleSignal,
	protocol.KindCallAccepted: handleSignal,
	protocol.KindCallRejected: handleSignal,
	protocol.KindEndCall:      handleSignal,
	protocol.KindOffer:        handleSignal,
	protocol.KindAnswer:       handleSignal,
	protocol.KindICECandidate: handleSignal,
}

// Dispatch routes one validated message. A returned error has already been
// reported to sid.
func (o *Orchestrator) Dispatch(sid core.SessionID, msg protocol.Inbound) error {
	o.Metrics.Message(string(msg.Kind()))
	h, ok := dispatch[msg.Kind()]
	if !ok {
		err := errors.Mark(errors.Newf("no handler for %q", msg.Kind()), core.ErrBadPayload)
		o.Reject(sid, err)
		return err
	}
	if err := h(o, sid, msg); err != nil {
		log.Info().Err(err).Str("module", "orch").Str("sid", string(sid)).
			Str("type", string(msg.Kind())).Msg("request rejected")
		o.Reject(sid, err)
		return err
	}
	return nil
}

func handleRegister(o *Orchestrator, sid core.SessionID, msg protocol.Inbound) error {
	m := msg.(protocol.Register)
	res, err := o.State.Register(sid, m.Identity, m.RoomToken)
	if err != nil {
		return err
	}
	defer o.observe()

	var out outbox
	if self, ok := o.State.Recipient(sid); ok {
		out.add(self, protocol.NewRegistered(sid, m.Identity))
		if res.Join != nil {
			out.add(self, protocol.NewRoomJoined(res.Join.Token, res.Join.Members))
		}
	}
	if res.Join != nil {
		out.broadcast(res.Join.Others, protocol.NewUserJoined(sid, res.Join.Token))
	}
	if o.Presence {
		out.broadcast(res.Audience, protocol.NewUsersUpdate(userInfos(res.Presence), res.PresenceSeq))
	}
	o.flush(&out)
	return nil
}

func handleGetUsers(o *Orchestrator, sid core.SessionID, _ protocol.Inbound) error {
	self, ok := o.State.Recipient(sid)
	if !ok {
		return nil
	}
	peers, seq := o.State.PresenceSnapshot()
	var out outbox
	out.add(self, protocol.NewUsersUpdate(userInfos(peers), seq))
	o.flush(&out)
	return nil
}

func handleJoinRoom(o *Orchestrator, sid core.SessionID, msg protocol.Inbound) error {
	m := msg.(protocol.JoinRoom)
	res, err := o.State.JoinRoom(sid, m.RoomToken)
	if err != nil {
		return err
	}
	defer o.observe()

	var out outbox
	if self, ok := o.State.Recipient(sid); ok {
		out.add(self, protocol.NewRoomJoined(res.Token, res.Members))
	}
	out.broadcast(res.Others, protocol.NewUserJoined(sid, res.Token))
	o.flush(&out)
	return nil
}

func handleLeaveRoom(o *Orchestrator, sid core.SessionID, msg protocol.Inbound) error {
	m := msg.(protocol.LeaveRoom)
	res := o.State.LeaveRoom(sid, m.RoomToken)
	if !res.Removed {
		return errors.Wrapf(core.ErrTargetUnreachable, "not a member of room %q", m.RoomToken)
	}
	defer o.observe()

	var out outbox
	if self, ok := o.State.Recipient(sid); ok {
		out.add(self, protocol.NewRoomLeft(res.Token))
	}
	out.broadcast(res.Remaining, protocol.NewUserLeft(sid, res.Token))
	o.flush(&out)
	return nil
}

func handleCheckCallID(o *Orchestrator, sid core.SessionID, msg protocol.Inbound) error {
	m := msg.(protocol.CheckCallID)
	self, ok := o.State.Recipient(sid)
	if !ok {
		return nil
	}
	var out outbox
	out.add(self, protocol.NewCallIDStatus(m.AddressID, o.State.AddressTaken(m.AddressID, sid)))
	o.flush(&out)
	return nil
}

func handlePing(o *Orchestrator, sid core.SessionID, _ protocol.Inbound) error {
	self, ok := o.State.Recipient(sid)
	if !ok {
		return nil
	}
	var out outbox
	out.add(self, protocol.NewPong())
	o.flush(&out)
	return nil
}

// handleSignal relays call lifecycle and negotiation messages. The target is
// resolved at dispatch time; the body is never inspected.
func handleSignal(o *Orchestrator, sid core.SessionID, msg protocol.Inbound) error {
	sig := msg.(protocol.Signal)

	var (
		from app.Peer
		to   []app.Recipient
		err  error
	)
	switch t := sig.Target; {
	case t.IsRoom():
		from, to, err = o.State.ResolveRoom(sid, t.RoomToken)
	case t.AddressID != "":
		var r app.Recipient
		from, r, err = o.State.ResolveAddress(sid, t.AddressID)
		to = []app.Recipient{r}
	default:
		var r app.Recipient
		from, r, err = o.State.ResolveSession(sid, t.SessionID)
		to = []app.Recipient{r}
	}
	if err != nil {
		return err
	}
	if sig.Type == protocol.KindCallUser && len(to) == 1 && to[0].ID == sid {
		return errors.Wrapf(core.ErrSelfTarget, "%s", sig.Type)
	}

	var out outbox
	out.broadcast(to, protocol.NewForward(sig, userInfo(from)))
	log.Debug().Str("module", "orch").Str("sid", string(sid)).Str("type", string(sig.Type)).
		Int("targets", len(to)).Msg("relayed")
	o.flush(&out)
	return nil
}
