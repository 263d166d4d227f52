package app

import (
	"sort"

	"github.com/samber/lo"

	"github.com/dkeye/Relay/internal/core"
	"github.com/dkeye/Relay/internal/domain"
)

// Session is one live endpoint connection. It is owned by the Registry;
// Directory and RoomIndex only hold its ID.
type Session struct {
	ID         core.SessionID
	Conn       core.SignalConnection
	Identity   domain.Identity
	Rooms      map[domain.RoomToken]struct{}
	registered bool
}

// Registered reports whether the session may signal. Room members are
// registered without an identity.
func (s *Session) Registered() bool { return s.registered }

// Identified reports whether the session registered a display name and so
// takes part in presence.
func (s *Session) Identified() bool { return s.registered && s.Identity.DisplayName != "" }

func (s *Session) Peer() Peer {
	return Peer{SessionID: s.ID, DisplayName: s.Identity.DisplayName, AddressID: s.Identity.AddressID}
}

func (s *Session) recipient() Recipient {
	return Recipient{ID: s.ID, Conn: s.Conn}
}

// Peer is an immutable presence entry.
type Peer struct {
	SessionID   core.SessionID   `json:"sessionId"`
	DisplayName string           `json:"displayName"`
	AddressID   domain.AddressID `json:"addressId,omitempty"`
}

// Recipient is a delivery target resolved under the state lock.
type Recipient struct {
	ID   core.SessionID
	Conn core.SignalConnection
}

// Registry tracks every connected session. It is not safe for concurrent
// use on its own; State serializes access.
type Registry struct {
	sessions map[core.SessionID]*Session
}

func NewRegistry() *Registry {
	return &Registry{sessions: make(map[core.SessionID]*Session)}
}

// Add creates an empty session. Adding an existing ID swaps its connection.
func (r *Registry) Add(sid core.SessionID, conn core.SignalConnection) *Session {
	if s, ok := r.sessions[sid]; ok {
		s.Conn = conn
		return s
	}
	s := &Session{ID: sid, Conn: conn, Rooms: make(map[domain.RoomToken]struct{})}
	r.sessions[sid] = s
	return s
}

func (r *Registry) Get(sid core.SessionID) (*Session, bool) {
	s, ok := r.sessions[sid]
	return s, ok
}

// SetIdentity overwrites the identity and marks the session registered.
func (r *Registry) SetIdentity(sid core.SessionID, id domain.Identity) bool {
	s, ok := r.sessions[sid]
	if !ok {
		return false
	}
	s.Identity = id
	s.registered = true
	return true
}

// MarkRegistered registers a session without an identity (room mode).
func (r *Registry) MarkRegistered(sid core.SessionID) {
	if s, ok := r.sessions[sid]; ok {
		s.registered = true
	}
}

// Remove deletes the session and returns its last state.
func (r *Registry) Remove(sid core.SessionID) (*Session, bool) {
	s, ok := r.sessions[sid]
	if !ok {
		return nil, false
	}
	delete(r.sessions, sid)
	return s, true
}

// Snapshot lists identified sessions ordered by display name then ID.
func (r *Registry) Snapshot() []Peer {
	out := lo.FilterMap(lo.Values(r.sessions), func(s *Session, _ int) (Peer, bool) {
		return s.Peer(), s.Identified()
	})
	sort.Slice(out, func(i, j int) bool {
		if out[i].DisplayName != out[j].DisplayName {
			return out[i].DisplayName < out[j].DisplayName
		}
		return out[i].SessionID < out[j].SessionID
	})
	return out
}

// Recipients returns every connected session, optionally skipping one.
func (r *Registry) Recipients(except core.SessionID) []Recipient {
	out := make([]Recipient, 0, len(r.sessions))
	for sid, s := range r.sessions {
		if sid == except {
			continue
		}
		out = append(out, s.recipient())
	}
	return out
}

func (r *Registry) Len() int { return len(r.sessions) }

func (r *Registry) IdentifiedLen() int {
	return lo.CountBy(lo.Values(r.sessions), func(s *Session) bool { return s.Identified() })
}
