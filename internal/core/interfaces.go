package core

//go:generate mockgen -source=interfaces.go -destination=mocks/mock_interfaces.go -package=mocks

// Frame is a raw encoded signaling message.
type Frame []byte

// SessionID identifies one live transport connection.
// It is assigned by the transport adapter and never reused.
type SessionID string

// SignalConnection abstracts for a system messaging transport
// Owned by the adapter; the adapter must Close() it.
type SignalConnection interface {
	// TrySend queues the frame without blocking.
	TrySend(Frame) error
	Close()
}
