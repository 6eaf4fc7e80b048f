package domain

import (
	"errors"
	"time"
)

type Role uint8

const (
	RoleCreator Role = 1
	RoleMember  Role = 2
)

// DeleteReason tells members why their session went away.
type DeleteReason uint8

const (
	DeleteReasonCreatorDecision DeleteReason = 1
	DeleteReasonUserLeft        DeleteReason = 2
	DeleteReasonExpired         DeleteReason = 3
)

var (
	ErrNotAMember         = errors.New("user is not a member of the session")
	ErrCreatorCannotLeave = errors.New("creator cannot leave own session")
)

// SessionMember pairs a user with its role in one session.
type SessionMember struct {
	User *User
	Role Role
}

// Session is an ephemeral room: exactly one creator, fixed at construction,
// plus zero or more members accrued via join. The member list is ordered,
// creator first.
type Session struct {
	ID      string
	Expires time.Time
	Members []*SessionMember
}

func NewSession(id string, creator *User, ttl time.Duration) *Session {
	return &Session{
		ID:      id,
		Expires: time.Now().Add(ttl),
		Members: []*SessionMember{{User: creator, Role: RoleCreator}},
	}
}

// Creator returns the creator's identity.
func (s *Session) Creator() *User {
	for _, m := range s.Members {
		if m.Role == RoleCreator {
			return m.User
		}
	}
	return nil
}

func (s *Session) HasUser(u *User) bool {
	for _, m := range s.Members {
		if m.User.UID == u.UID {
			return true
		}
	}
	return false
}

func (s *Session) AddUser(u *User) {
	s.Members = append(s.Members, &SessionMember{User: u, Role: RoleMember})
}

// RemoveUser drops u from the member list. The creator can never be removed
// this way; it must delete the session instead.
func (s *Session) RemoveUser(u *User) error {
	for i, m := range s.Members {
		if m.User.UID != u.UID {
			continue
		}
		if m.Role == RoleCreator {
			return ErrCreatorCannotLeave
		}
		s.Members = append(s.Members[:i], s.Members[i+1:]...)
		return nil
	}
	return ErrNotAMember
}

// RefreshExpiration pushes the expiration to now+ttl. Only the creator's
// liveness signal may trigger this; the deadline only ever moves forward.
func (s *Session) RefreshExpiration(ttl time.Duration) {
	if exp := time.Now().Add(ttl); exp.After(s.Expires) {
		s.Expires = exp
	}
}
