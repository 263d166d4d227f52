package orch

import (
	"github.com/rs/zerolog/log"

	"github.com/dkeye/Relay/internal/app"
	"github.com/dkeye/Relay/internal/core"
	"github.com/dkeye/Relay/internal/metrics"
	"github.com/dkeye/Relay/internal/protocol"
)

// Orchestrator reacts to transport events and routes signaling messages.
// It is safe for concurrent use; all shared state lives in app.State.
type Orchestrator struct {
	State   *app.State
	Policy  app.Policy
	Metrics *metrics.Metrics
	// Presence pushes users-update to every registered session on
	// registration and disconnect.
	Presence bool
}

// OnFrame handles one raw frame from sid. Frames of one session must be
// passed in arrival order.
func (o *Orchestrator) OnFrame(sid core.SessionID, data []byte) {
	msg, err := protocol.Parse(data)
	if err != nil {
		log.Warn().Err(err).Str("module", "orch").Str("sid", string(sid)).Msg("bad frame")
		o.Reject(sid, err)
		return
	}
	_ = o.Dispatch(sid, msg)
}

// Reject reports err to sid only.
func (o *Orchestrator) Reject(sid core.SessionID, err error) {
	o.Metrics.Error(string(core.Code(err)))
	to, ok := o.State.Recipient(sid)
	if !ok {
		return
	}
	var out outbox
	out.add(to, protocol.NewErrorNotice(err))
	o.flush(&out)
}

func (o *Orchestrator) policy() app.Policy {
	if o.Policy == nil {
		return app.SimplePolicy{}
	}
	return o.Policy
}

func (o *Orchestrator) observe() {
	if o.Metrics == nil {
		return
	}
	s := o.State.Stats()
	o.Metrics.SetState(s.Sessions, s.Registered, s.Rooms, s.Addresses)
}

type delivery struct {
	to    app.Recipient
	frame core.Frame
}

// outbox collects frames resolved under the state lock so they can be sent
// after it is released.
type outbox struct {
	items []delivery
}

func (b *outbox) add(to app.Recipient, msg any) {
	b.broadcast([]app.Recipient{to}, msg)
}

// broadcast encodes msg once for every recipient.
func (b *outbox) broadcast(to []app.Recipient, msg any) {
	if len(to) == 0 {
		return
	}
	frame, err := protocol.Encode(msg)
	if err != nil {
		log.Error().Err(err).Str("module", "orch").Msg("encode outbound")
		return
	}
	for _, r := range to {
		b.items = append(b.items, delivery{to: r, frame: frame})
	}
}

// flush sends everything without blocking. A target that refuses a frame
// is handled by the Policy; kicked targets go through the same cleanup as a
// transport disconnect, and their own notifications are flushed in turn.
func (o *Orchestrator) flush(out *outbox) {
	queue := []*outbox{out}
	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]

		var kicked []core.SessionID
		seen := make(map[core.SessionID]struct{})
		for _, d := range cur.items {
			if d.to.Conn == nil {
				continue
			}
			err := d.to.Conn.TrySend(d.frame)
			if err == nil {
				continue
			}
			o.Metrics.Drop()
			log.Warn().Err(err).Str("module", "orch").Str("dst_sid", string(d.to.ID)).Msg("send failed")
			if o.policy().OnBackPressure(d.to.ID, err) != app.KickMember {
				continue
			}
			if _, dup := seen[d.to.ID]; !dup {
				seen[d.to.ID] = struct{}{}
				kicked = append(kicked, d.to.ID)
			}
		}
		for _, sid := range kicked {
			if next, ok := o.cleanup(sid, metrics.ReasonKicked); ok {
				queue = append(queue, next)
			}
		}
	}
}
