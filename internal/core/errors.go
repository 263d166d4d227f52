package core

import "github.com/cockroachdb/errors"

// ErrorCode is the machine readable code carried by an "error" frame.
type ErrorCode string

const (
	CodeDuplicateAddress  ErrorCode = "duplicate_address"
	CodeTargetUnreachable ErrorCode = "target_unreachable"
	CodeSelfTarget        ErrorCode = "self_target"
	CodeNotRegistered     ErrorCode = "not_registered"
	CodeBadPayload        ErrorCode = "bad_payload"
	CodeRateLimited       ErrorCode = "rate_limited"
	CodeInternal          ErrorCode = "internal"
)

// Request errors. All of them are scoped to the session that caused them
// and never close the connection.
var (
	ErrDuplicateAddress  = errors.New("address already registered by another session")
	ErrTargetUnreachable = errors.New("target unreachable")
	ErrSelfTarget        = errors.New("cannot call your own session")
	ErrNotRegistered     = errors.New("session not registered")
	ErrBadPayload        = errors.New("bad payload")
	ErrRateLimited       = errors.New("rate limit exceeded")
)

// Transport errors returned by SignalConnection.TrySend.
var (
	ErrBackpressure = errors.New("backpressure")
	ErrConnClosed   = errors.New("connection closed")
)

var codes = []struct {
	err  error
	code ErrorCode
}{
	{ErrDuplicateAddress, CodeDuplicateAddress},
	{ErrTargetUnreachable, CodeTargetUnreachable},
	{ErrSelfTarget, CodeSelfTarget},
	{ErrNotRegistered, CodeNotRegistered},
	{ErrBadPayload, CodeBadPayload},
	{ErrRateLimited, CodeRateLimited},
}

// Code maps err to its wire code. Unknown errors map to CodeInternal.
func Code(err error) ErrorCode {
	for _, c := range codes {
		if errors.Is(err, c.err) {
			return c.code
		}
	}
	return CodeInternal
}
