package app

import (
	"fmt"
	"testing"

	"github.com/sourcegraph/conc"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"

	"github.com/dkeye/Relay/internal/core"
	"github.com/dkeye/Relay/internal/domain"
)

type nopConn struct{}

func (nopConn) TrySend(core.Frame) error { return nil }
func (nopConn) Close()                   {}

type StateSuite struct {
	suite.Suite
	st *State
}

func (s *StateSuite) SetupTest() {
	s.st = NewState()
}

func (s *StateSuite) connect(ids ...core.SessionID) {
	for _, id := range ids {
		s.st.Connect(id, nopConn{})
	}
}

func (s *StateSuite) register(sid core.SessionID, addr string) RegisterResult {
	id, err := domain.NewIdentity(addr, addr)
	s.Require().NoError(err)
	res, err := s.st.Register(sid, id, "")
	s.Require().NoError(err)
	return res
}

func (s *StateSuite) TestDuplicateAddressRejected() {
	s.connect("a", "b")
	s.register("a", "alice")

	_, err := s.st.Register("b", domain.Identity{DisplayName: "x", AddressID: "alice"}, "")
	s.ErrorIs(err, core.ErrDuplicateAddress)

	_, to, err := s.st.ResolveAddress("a", "alice")
	s.Require().NoError(err)
	s.Equal(core.SessionID("a"), to.ID, "owner unchanged after rejected claim")
}

func (s *StateSuite) TestSameSessionReRegisters() {
	s.connect("a")
	s.register("a", "alice")
	res := s.register("a", "alice")
	s.Equal(domain.AddressID(""), res.Previous)

	res = s.register("a", "alice2")
	s.Equal(domain.AddressID("alice"), res.Previous)
	s.False(s.st.AddressTaken("alice", "zzz"), "old address released")
	s.True(s.st.AddressTaken("alice2", "zzz"))
	s.Equal(1, s.st.Stats().Addresses)
}

func (s *StateSuite) TestAddressTakenExcludesAsker() {
	s.connect("a", "b")
	s.register("a", "alice")
	s.False(s.st.AddressTaken("alice", "a"))
	s.True(s.st.AddressTaken("alice", "b"))
	s.False(s.st.AddressTaken("nobody", "b"))
}

func (s *StateSuite) TestDisconnectCascades() {
	s.connect("a", "b", "c")
	s.register("a", "alice")
	s.register("b", "bob")
	_, err := s.st.JoinRoom("a", "r1")
	s.Require().NoError(err)
	_, err = s.st.JoinRoom("b", "r1")
	s.Require().NoError(err)
	_, err = s.st.JoinRoom("a", "r2")
	s.Require().NoError(err)

	res, ok := s.st.Disconnect("a")
	s.Require().True(ok)
	s.Equal(domain.AddressID("alice"), res.Released)
	s.Len(res.Rooms, 2)
	for _, lr := range res.Rooms {
		switch lr.Token {
		case "r1":
			s.Require().Len(lr.Remaining, 1)
			s.Equal(core.SessionID("b"), lr.Remaining[0].ID)
		case "r2":
			s.Empty(lr.Remaining)
		}
	}
	s.True(res.Identified)
	s.Len(res.Presence, 1)
	s.Len(res.Audience, 2, "presence goes to every remaining session, registered or not")

	_, _, err = s.st.ResolveAddress("b", "alice")
	s.ErrorIs(err, core.ErrTargetUnreachable)
	_, _, err = s.st.ResolveSession("b", "a")
	s.ErrorIs(err, core.ErrTargetUnreachable)
	s.Equal([]core.SessionID{"b"}, s.st.Members("r1"))
	s.Empty(s.st.Members("r2"))
	s.Equal(Stats{Sessions: 2, Registered: 1, Rooms: 1, Addresses: 1}, s.st.Stats())

	_, ok = s.st.Disconnect("a")
	s.False(ok, "second disconnect is a no-op")
}

func (s *StateSuite) TestDisconnectBeforeRegister() {
	s.connect("a")
	res, ok := s.st.Disconnect("a")
	s.True(ok)
	s.False(res.Identified)
	s.Empty(res.Audience)
	s.Empty(res.Rooms)
	s.Equal(Stats{}, s.st.Stats())
}

func (s *StateSuite) TestUnregisteredSenderAndTarget() {
	s.connect("a", "b")
	_, _, err := s.st.ResolveSession("a", "b")
	s.ErrorIs(err, core.ErrNotRegistered)

	s.register("a", "alice")
	_, _, err = s.st.ResolveSession("a", "b")
	s.ErrorIs(err, core.ErrTargetUnreachable, "connected but unregistered target")
	_, _, err = s.st.ResolveAddress("a", "ghost")
	s.ErrorIs(err, core.ErrTargetUnreachable)
	s.Equal(core.CodeTargetUnreachable, core.Code(err))
}

func (s *StateSuite) TestJoinRoomRegistersAndNotifiesOthers() {
	s.connect("a", "b", "c")
	for i, id := range []core.SessionID{"a", "b", "c"} {
		res, err := s.st.JoinRoom(id, "r1")
		s.Require().NoError(err)
		s.True(res.Added)
		s.Len(res.Others, i)
		s.Len(res.Members, i+1)
	}
	again, err := s.st.JoinRoom("c", "r1")
	s.Require().NoError(err)
	s.False(again.Added)
	s.Empty(again.Others, "repeated join notifies nobody")

	from, to, err := s.st.ResolveRoom("c", "r1")
	s.Require().NoError(err)
	s.Equal(core.SessionID("c"), from.SessionID)
	s.ElementsMatch([]core.SessionID{"a", "b"}, []core.SessionID{to[0].ID, to[1].ID})

	_, _, err = s.st.ResolveRoom("c", "other")
	s.ErrorIs(err, core.ErrTargetUnreachable)
}

func (s *StateSuite) TestLeaveRoomDropsEmptyRoom() {
	s.connect("a", "b")
	_, _ = s.st.JoinRoom("a", "r1")
	_, _ = s.st.JoinRoom("b", "r1")

	lr := s.st.LeaveRoom("a", "r1")
	s.True(lr.Removed)
	s.Len(lr.Remaining, 1)
	s.False(s.st.LeaveRoom("a", "r1").Removed)

	s.st.LeaveRoom("b", "r1")
	s.Empty(s.st.Rooms())
}

func (s *StateSuite) TestSnapshotOnlyRegistered() {
	s.connect("b", "a", "c")
	s.register("b", "bob")
	s.register("a", "alice")
	peers := s.st.Snapshot()
	s.Require().Len(peers, 2)
	s.Equal("alice", peers[0].DisplayName)
	s.Equal("bob", peers[1].DisplayName)
}

func (s *StateSuite) TestRoomMemberStaysOutOfPresence() {
	s.connect("a", "r")
	s.register("a", "alice")
	_, err := s.st.JoinRoom("r", "r1")
	s.Require().NoError(err)

	peers := s.st.Snapshot()
	s.Require().Len(peers, 1)
	s.Equal(core.SessionID("a"), peers[0].SessionID)
	s.Equal(1, s.st.Stats().Registered)

	_, to, err := s.st.ResolveSession("a", "r")
	s.Require().NoError(err, "room members may still be signaled")
	s.Equal(core.SessionID("r"), to.ID)

	res, ok := s.st.Disconnect("r")
	s.Require().True(ok)
	s.False(res.Identified)
	s.Empty(res.Audience)
	s.Empty(res.Presence)
}

func (s *StateSuite) TestPresenceSeqGrowsOnChange() {
	s.connect("a", "b", "c")
	first := s.register("a", "alice")
	second := s.register("b", "bob")
	s.Less(first.PresenceSeq, second.PresenceSeq)

	res, _ := s.st.Disconnect("b")
	s.Less(second.PresenceSeq, res.PresenceSeq)

	quiet, _ := s.st.Disconnect("c")
	s.Zero(quiet.PresenceSeq, "unidentified session leaves presence untouched")

	peers, seq := s.st.PresenceSnapshot()
	s.Len(peers, 1)
	s.Equal(res.PresenceSeq, seq)
}

func TestState(t *testing.T) {
	suite.Run(t, new(StateSuite))
}

func TestConcurrentClaimsKeepAddressUnique(t *testing.T) {
	st := NewState()
	const n = 64
	for i := 0; i < n; i++ {
		st.Connect(core.SessionID(fmt.Sprintf("s%d", i)), nopConn{})
	}

	var wg conc.WaitGroup
	wins := make(chan core.SessionID, n)
	for i := 0; i < n; i++ {
		sid := core.SessionID(fmt.Sprintf("s%d", i))
		wg.Go(func() {
			_, err := st.Register(sid, domain.Identity{DisplayName: "x", AddressID: "hot"}, "")
			if err == nil {
				wins <- sid
				return
			}
			assert.ErrorIs(t, err, core.ErrDuplicateAddress)
		})
	}
	wg.Wait()
	close(wins)

	var winners []core.SessionID
	for sid := range wins {
		winners = append(winners, sid)
	}
	require.Len(t, winners, 1)
	assert.Equal(t, 1, st.Stats().Addresses)
}

func TestConcurrentDisconnectLeavesNoStaleRoutes(t *testing.T) {
	st := NewState()
	const n = 32
	var wg conc.WaitGroup
	for i := 0; i < n; i++ {
		sid := core.SessionID(fmt.Sprintf("s%d", i))
		addr := domain.AddressID(fmt.Sprintf("a%d", i))
		wg.Go(func() {
			st.Connect(sid, nopConn{})
			_, err := st.Register(sid, domain.Identity{DisplayName: string(addr), AddressID: addr}, "lobby")
			assert.NoError(t, err)
			st.Disconnect(sid)
		})
	}
	wg.Wait()

	assert.Equal(t, Stats{}, st.Stats())
	assert.Empty(t, st.Members("lobby"))
}
