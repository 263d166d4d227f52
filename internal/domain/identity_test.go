package domain

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewIdentity(t *testing.T) {
	id, err := NewIdentity("  Alice ", " alice ")
	require.NoError(t, err)
	assert.Equal(t, "Alice", id.DisplayName)
	assert.Equal(t, AddressID("alice"), id.AddressID)

	id, err = NewIdentity("", "bob")
	require.NoError(t, err)
	assert.Equal(t, "bob", id.DisplayName, "display name falls back to address id")

	id, err = NewIdentity("carol", "")
	require.NoError(t, err)
	assert.Empty(t, id.AddressID)

	_, err = NewIdentity(" ", "")
	assert.ErrorIs(t, err, ErrIdentityEmpty)

	_, err = NewIdentity(strings.Repeat("x", MaxDisplayNameLen+1), "")
	assert.ErrorIs(t, err, ErrDisplayNameTooLong)

	_, err = NewIdentity("x", strings.Repeat("y", MaxAddressIDLen+1))
	assert.ErrorIs(t, err, ErrAddressIDTooLong)
}

func TestParseRoomToken(t *testing.T) {
	tok, err := ParseRoomToken(" r1 ")
	require.NoError(t, err)
	assert.Equal(t, RoomToken("r1"), tok)

	_, err = ParseRoomToken("")
	assert.ErrorIs(t, err, ErrRoomTokenEmpty)

	_, err = ParseRoomToken(strings.Repeat("r", MaxRoomTokenLen+1))
	assert.ErrorIs(t, err, ErrRoomTokenTooLong)
}
