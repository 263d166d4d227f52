package orch

import (
	"github.com/rs/zerolog/log"

	"github.com/dkeye/Relay/internal/app"
	"github.com/dkeye/Relay/internal/core"
	"github.com/dkeye/Relay/internal/metrics"
	"github.com/dkeye/Relay/internal/protocol"
)

// OnConnect registers a freshly opened connection and greets it with its id.
func (o *Orchestrator) OnConnect(sid core.SessionID, conn core.SignalConnection) {
	o.State.Connect(sid, conn)
	log.Info().Str("module", "orch").Str("sid", string(sid)).Msg("connected")

	var out outbox
	out.add(app.Recipient{ID: sid, Conn: conn}, protocol.NewWelcome(sid))
	o.flush(&out)
	o.observe()
}

// OnDisconnect runs the cleanup cascade for sid. It is safe to call more
// than once and before registration.
func (o *Orchestrator) OnDisconnect(sid core.SessionID) {
	if out, ok := o.cleanup(sid, metrics.ReasonClosed); ok {
		o.flush(out)
	}
}

// cleanup removes sid from every index and returns the notifications for
// the sessions that remain. Kicked sessions also get their transport closed.
func (o *Orchestrator) cleanup(sid core.SessionID, reason string) (*outbox, bool) {
	res, ok := o.State.Disconnect(sid)
	if !ok {
		return nil, false
	}
	if reason == metrics.ReasonKicked && res.Conn != nil {
		res.Conn.Close()
	}
	o.Metrics.Disconnect(reason)
	o.observe()
	log.Info().Str("module", "orch").Str("sid", string(sid)).Str("reason", reason).
		Str("address", string(res.Released)).Int("rooms", len(res.Rooms)).Msg("disconnected")

	out := &outbox{}
	for _, lr := range res.Rooms {
		out.broadcast(lr.Remaining, protocol.NewUserLeft(sid, lr.Token))
	}
	if o.Presence && res.Identified {
		out.broadcast(res.Audience, protocol.NewUsersUpdate(userInfos(res.Presence), res.PresenceSeq))
	}
	return out, true
}

func userInfos(peers []app.Peer) []protocol.UserInfo {
	out := make([]protocol.UserInfo, 0, len(peers))
	for _, p := range peers {
		out = append(out, userInfo(p))
	}
	return out
}

func userInfo(p app.Peer) protocol.UserInfo {
	return protocol.UserInfo{SessionID: p.SessionID, DisplayName: p.DisplayName, AddressID: p.AddressID}
}
