// Package domain contains entities without transport or lifecycle logic.
package domain

import (
	"errors"

	"github.com/google/uuid"
)

const MaxNameLen = 36

var (
	ErrNameEmpty   = errors.New("name empty")
	ErrNameTooLong = errors.New("name too long")
)

// User is a participant identity. UID is minted by the server on handshake,
// or resumed from a previous connection when the client presents one.
// Once the handshake completes, both fields stay fixed for the lifetime of
// the binding; a fresh connection establishes a fresh binding.
type User struct {
	UID  string
	Name string
}

func (u *User) SetName(name string) error {
	if len(name) == 0 {
		return ErrNameEmpty
	}
	if len(name) > MaxNameLen {
		return ErrNameTooLong
	}
	u.Name = name
	return nil
}

// MintUID assigns a fresh random UID unless one is already bound.
func (u *User) MintUID() string {
	if u.UID == "" {
		u.UID = uuid.NewString()
	}
	return u.UID
}

// ResumeUID binds a client-supplied UID unless one is already bound.
func (u *User) ResumeUID(uid string) string {
	if u.UID == "" {
		u.UID = uid
	}
	return u.UID
}

// Identified reports whether the handshake has completed for this user.
func (u *User) Identified() bool {
	return u.UID != ""
}
