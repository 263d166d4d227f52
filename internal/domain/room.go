package domain

import (
	"strings"
	"unicode/utf8"

	"github.com/cockroachdb/errors"
)

const MaxRoomTokenLen = 128

var (
	ErrRoomTokenEmpty   = errors.New("room token empty")
	ErrRoomTokenTooLong = errors.New("room token too long")
)

// RoomToken names a broadcast group. Rooms are created implicitly on first join.
type RoomToken string

func ParseRoomToken(raw string) (RoomToken, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "", ErrRoomTokenEmpty
	}
	if utf8.RuneCountInString(raw) > MaxRoomTokenLen {
		return "", ErrRoomTokenTooLong
	}
	return RoomToken(raw), nil
}
