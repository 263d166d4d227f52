package app

import (
	"sync"

	"github.com/cockroachdb/errors"
	"github.com/rs/zerolog/log"

	"github.com/dkeye/Relay/internal/core"
	"github.com/dkeye/Relay/internal/domain"
)

// State owns the registry, the directory and the room index. A single mutex
// guards all three so every method below is one atomic step: no caller can
// observe a session that is in one index but already gone from another.
//
// Methods return the recipients they resolved; sending happens outside the lock.
type State struct {
	mu        sync.Mutex
	registry  *Registry
	directory *Directory
	rooms     *RoomIndex

	// presenceSeq numbers presence snapshots so clients can drop stale ones.
	presenceSeq uint64
}

func NewState() *State {
	return &State{
		registry:  NewRegistry(),
		directory: NewDirectory(),
		rooms:     NewRoomIndex(),
	}
}

type RegisterResult struct {
	Peer Peer
	// Previous is the address released by this registration, if it changed.
	Previous domain.AddressID
	Join        *JoinResult
	Presence    []Peer
	PresenceSeq uint64
	// Audience holds every connected session, the registrant included.
	Audience []Recipient
}

type JoinResult struct {
	Token   domain.RoomToken
	Added   bool
	Members []core.SessionID
	// Others are the members that were already in the room.
	Others []Recipient
}

type LeaveResult struct {
	Token     domain.RoomToken
	Removed   bool
	Remaining []Recipient
}

type DisconnectResult struct {
	Peer     Peer
	Conn     core.SignalConnection
	Released domain.AddressID
	Rooms    []LeaveResult
	// Identified is set when the session was part of presence. Only then
	// are Presence, PresenceSeq and Audience filled.
	Identified  bool
	Presence    []Peer
	PresenceSeq uint64
	Audience    []Recipient
}

type Stats struct {
	Sessions int `json:"users"`
	// Registered counts identified sessions.
	Registered int `json:"registered"`
	Rooms      int `json:"rooms"`
	Addresses  int `json:"addresses"`
}

// Connect adds a new session in the Connected state.
func (st *State) Connect(sid core.SessionID, conn core.SignalConnection) {
	st.mu.Lock()
	defer st.mu.Unlock()
	st.registry.Add(sid, conn)
	log.Debug().Str("module", "app.state").Str("sid", string(sid)).Msg("session connected")
}

// Register attaches id to sid, claiming id.AddressID in the directory when set,
// and joins room when it is not empty.
func (st *State) Register(sid core.SessionID, id domain.Identity, room domain.RoomToken) (RegisterResult, error) {
	st.mu.Lock()
	defer st.mu.Unlock()

	sess, ok := st.registry.Get(sid)
	if !ok {
		return RegisterResult{}, errors.Wrapf(core.ErrNotRegistered, "register %s: unknown session", sid)
	}
	if id.AddressID != "" {
		if err := st.directory.Register(id.AddressID, sid); err != nil {
			return RegisterResult{}, err
		}
	}

	var res RegisterResult
	if prev := sess.Identity.AddressID; prev != "" && prev != id.AddressID {
		st.directory.Release(prev, sid)
		res.Previous = prev
	}
	st.registry.SetIdentity(sid, id)
	if room != "" {
		jr := st.joinLocked(sess, room)
		res.Join = &jr
	}

	res.Peer = sess.Peer()
	res.Presence, res.PresenceSeq = st.presenceLocked()
	res.Audience = st.registry.Recipients("")
	log.Info().Str("module", "app.state").Str("sid", string(sid)).
		Str("name", id.DisplayName).Str("address", string(id.AddressID)).Msg("session registered")
	return res, nil
}

// JoinRoom adds sid to the room. Joining a room registers the session.
func (st *State) JoinRoom(sid core.SessionID, tok domain.RoomToken) (JoinResult, error) {
	st.mu.Lock()
	defer st.mu.Unlock()

	sess, ok := st.registry.Get(sid)
	if !ok {
		return JoinResult{}, errors.Wrapf(core.ErrNotRegistered, "join %s: unknown session", sid)
	}
	st.registry.MarkRegistered(sid)
	return st.joinLocked(sess, tok), nil
}

func (st *State) joinLocked(sess *Session, tok domain.RoomToken) JoinResult {
	res := JoinResult{Token: tok}
	res.Added = st.rooms.Join(tok, sess.ID)
	sess.Rooms[tok] = struct{}{}
	res.Members = st.rooms.Members(tok)
	if res.Added {
		res.Others = st.recipientsLocked(res.Members, sess.ID)
		log.Info().Str("module", "app.state").Str("sid", string(sess.ID)).Str("room", string(tok)).Msg("joined room")
	}
	return res
}

// LeaveRoom removes sid from a single room.
func (st *State) LeaveRoom(sid core.SessionID, tok domain.RoomToken) LeaveResult {
	st.mu.Lock()
	defer st.mu.Unlock()

	sess, ok := st.registry.Get(sid)
	if !ok {
		return LeaveResult{Token: tok}
	}
	return st.leaveLocked(sess, tok)
}

func (st *State) leaveLocked(sess *Session, tok domain.RoomToken) LeaveResult {
	res := LeaveResult{Token: tok}
	delete(sess.Rooms, tok)
	if res.Removed = st.rooms.Leave(tok, sess.ID); res.Removed {
		res.Remaining = st.recipientsLocked(st.rooms.Members(tok), sess.ID)
		log.Info().Str("module", "app.state").Str("sid", string(sess.ID)).Str("room", string(tok)).Msg("left room")
	}
	return res
}

// Disconnect removes sid from every index in one step. The second call for
// the same sid returns false and changes nothing.
func (st *State) Disconnect(sid core.SessionID) (DisconnectResult, bool) {
	st.mu.Lock()
	defer st.mu.Unlock()

	sess, ok := st.registry.Get(sid)
	if !ok {
		return DisconnectResult{}, false
	}

	res := DisconnectResult{Peer: sess.Peer(), Conn: sess.Conn, Identified: sess.Identified()}
	if st.directory.Release(sess.Identity.AddressID, sid) {
		res.Released = sess.Identity.AddressID
	}
	for tok := range sess.Rooms {
		if lr := st.leaveLocked(sess, tok); lr.Removed {
			res.Rooms = append(res.Rooms, lr)
		}
	}
	st.registry.Remove(sid)

	if res.Identified {
		res.Presence, res.PresenceSeq = st.presenceLocked()
		res.Audience = st.registry.Recipients("")
	}
	log.Info().Str("module", "app.state").Str("sid", string(sid)).Int("rooms", len(res.Rooms)).Msg("session removed")
	return res, true
}

// ResolveSession returns the sender identity and a registered target.
func (st *State) ResolveSession(sender, target core.SessionID) (Peer, Recipient, error) {
	st.mu.Lock()
	defer st.mu.Unlock()

	from, err := st.senderLocked(sender)
	if err != nil {
		return Peer{}, Recipient{}, err
	}
	to, ok := st.registry.Get(target)
	if !ok || !to.Registered() {
		return Peer{}, Recipient{}, errors.Wrapf(core.ErrTargetUnreachable, "session %s", target)
	}
	return from, to.recipient(), nil
}

// ResolveAddress is ResolveSession through the directory.
func (st *State) ResolveAddress(sender core.SessionID, addr domain.AddressID) (Peer, Recipient, error) {
	st.mu.Lock()
	defer st.mu.Unlock()

	from, err := st.senderLocked(sender)
	if err != nil {
		return Peer{}, Recipient{}, err
	}
	target, err := st.directory.Resolve(addr)
	if err != nil {
		return Peer{}, Recipient{}, errors.Mark(err, core.ErrTargetUnreachable)
	}
	to, ok := st.registry.Get(target)
	if !ok || !to.Registered() {
		return Peer{}, Recipient{}, errors.Wrapf(core.ErrTargetUnreachable, "address %q", addr)
	}
	return from, to.recipient(), nil
}

// ResolveRoom returns every other member of a room the sender belongs to.
func (st *State) ResolveRoom(sender core.SessionID, tok domain.RoomToken) (Peer, []Recipient, error) {
	st.mu.Lock()
	defer st.mu.Unlock()

	from, err := st.senderLocked(sender)
	if err != nil {
		return Peer{}, nil, err
	}
	if !st.rooms.Contains(tok, sender) {
		return Peer{}, nil, errors.Wrapf(core.ErrTargetUnreachable, "not a member of room %q", tok)
	}
	return from, st.recipientsLocked(st.rooms.Members(tok), sender), nil
}

func (st *State) senderLocked(sid core.SessionID) (Peer, error) {
	sess, ok := st.registry.Get(sid)
	if !ok || !sess.Registered() {
		return Peer{}, errors.Wrapf(core.ErrNotRegistered, "session %s", sid)
	}
	return sess.Peer(), nil
}

func (st *State) recipientsLocked(ids []core.SessionID, except core.SessionID) []Recipient {
	out := make([]Recipient, 0, len(ids))
	for _, id := range ids {
		if id == except {
			continue
		}
		if s, ok := st.registry.Get(id); ok {
			out = append(out, s.recipient())
		}
	}
	return out
}

// AddressTaken answers an availability probe, ignoring the asker's own binding.
func (st *State) AddressTaken(addr domain.AddressID, asker core.SessionID) bool {
	st.mu.Lock()
	defer st.mu.Unlock()
	return st.directory.Exists(addr, asker)
}

func (st *State) Recipient(sid core.SessionID) (Recipient, bool) {
	st.mu.Lock()
	defer st.mu.Unlock()
	s, ok := st.registry.Get(sid)
	if !ok {
		return Recipient{}, false
	}
	return s.recipient(), true
}

// presenceLocked takes a snapshot after a presence change and numbers it.
func (st *State) presenceLocked() ([]Peer, uint64) {
	st.presenceSeq++
	return st.registry.Snapshot(), st.presenceSeq
}

func (st *State) Snapshot() []Peer {
	st.mu.Lock()
	defer st.mu.Unlock()
	return st.registry.Snapshot()
}

// PresenceSnapshot returns the current presence and the sequence number of
// the last change.
func (st *State) PresenceSnapshot() ([]Peer, uint64) {
	st.mu.Lock()
	defer st.mu.Unlock()
	return st.registry.Snapshot(), st.presenceSeq
}

func (st *State) Rooms() []RoomInfo {
	st.mu.Lock()
	defer st.mu.Unlock()
	return st.rooms.List()
}

func (st *State) Members(tok domain.RoomToken) []core.SessionID {
	st.mu.Lock()
	defer st.mu.Unlock()
	return st.rooms.Members(tok)
}

func (st *State) Stats() Stats {
	st.mu.Lock()
	defer st.mu.Unlock()
	return Stats{
		Sessions:   st.registry.Len(),
		Registered: st.registry.IdentifiedLen(),
		Rooms:      st.rooms.Len(),
		Addresses:  st.directory.Len(),
	}
}
