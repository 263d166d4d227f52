package app

import (
	"github.com/cockroachdb/errors"

	"github.com/dkeye/Relay/internal/core"
	"github.com/dkeye/Relay/internal/domain"
)

var ErrAddressNotFound = errors.New("address not found")

// Directory maps an address id to the session that currently owns it.
// Entries always point at a live session: State releases them on disconnect.
type Directory struct {
	owners map[domain.AddressID]core.SessionID
}

func NewDirectory() *Directory {
	return &Directory{owners: make(map[domain.AddressID]core.SessionID)}
}

// Register binds addr to sid. Binding an address already owned by another
// session fails with core.ErrDuplicateAddress; the owner may re-register.
func (d *Directory) Register(addr domain.AddressID, sid core.SessionID) error {
	if owner, ok := d.owners[addr]; ok && owner != sid {
		return errors.Wrapf(core.ErrDuplicateAddress, "register %q", addr)
	}
	d.owners[addr] = sid
	return nil
}

func (d *Directory) Resolve(addr domain.AddressID) (core.SessionID, error) {
	sid, ok := d.owners[addr]
	if !ok {
		return "", errors.Wrapf(ErrAddressNotFound, "resolve %q", addr)
	}
	return sid, nil
}

// Exists reports whether addr is bound to a session other than excluding.
func (d *Directory) Exists(addr domain.AddressID, excluding core.SessionID) bool {
	owner, ok := d.owners[addr]
	return ok && owner != excluding
}

// Release drops addr only if sid still owns it.
func (d *Directory) Release(addr domain.AddressID, sid core.SessionID) bool {
	if addr == "" {
		return false
	}
	if owner, ok := d.owners[addr]; !ok || owner != sid {
		return false
	}
	delete(d.owners, addr)
	return true
}

func (d *Directory) Len() int { return len(d.owners) }
