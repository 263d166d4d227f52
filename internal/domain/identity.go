// Package domain contains entity without logic, just meta-data
package domain

import (
	"strings"
	"unicode/utf8"

	"github.com/cockroachdb/errors"
)

const (
	MaxDisplayNameLen = 64
	MaxAddressIDLen   = 64
)

var (
	ErrDisplayNameTooLong = errors.New("display name too long")
	ErrAddressIDTooLong   = errors.New("address id too long")
	ErrIdentityEmpty      = errors.New("display name or address id required")
)

// AddressID is the unique, human-chosen identifier ("call id") a session
// can register under.
type AddressID string

// Identity is what a session announces about itself on register.
type Identity struct {
	DisplayName string    `json:"displayName"`
	AddressID   AddressID `json:"addressId,omitempty"`
}

// NewIdentity trims and validates the user supplied fields.
// A missing display name falls back to the address id.
func NewIdentity(displayName, addressID string) (Identity, error) {
	displayName = strings.TrimSpace(displayName)
	addressID = strings.TrimSpace(addressID)
	if displayName == "" && addressID == "" {
		return Identity{}, ErrIdentityEmpty
	}
	if utf8.RuneCountInString(displayName) > MaxDisplayNameLen {
		return Identity{}, ErrDisplayNameTooLong
	}
	if utf8.RuneCountInString(addressID) > MaxAddressIDLen {
		return Identity{}, ErrAddressIDTooLong
	}
	if displayName == "" {
		displayName = addressID
	}
	return Identity{DisplayName: displayName, AddressID: AddressID(addressID)}, nil
}

// ParseAddressID validates a bare address id, e.g. for availability probes.
func ParseAddressID(raw string) (AddressID, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "", ErrIdentityEmpty
	}
	if utf8.RuneCountInString(raw) > MaxAddressIDLen {
		return "", ErrAddressIDTooLong
	}
	return AddressID(raw), nil
}
