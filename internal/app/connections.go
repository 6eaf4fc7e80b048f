package app

import (
	"errors"
	"sync"

	"github.com/rs/zerolog/log"

	"github.com/songbooklive/songbook/internal/core"
	"github.com/songbooklive/songbook/internal/domain"
)

var errConnNotRegistered = errors.New("connection not registered")

// ConnectionRegistry maps live transport connections to the identity bound
// to each. The reverse lookup is what broadcast delivery runs on: a member
// with no live connection is simply skipped.
//
// Identity fields are written only by Bind, under the registry lock, and
// never again after a user is identified. Everything downstream can read
// UID and Name without further synchronization.
type ConnectionRegistry struct {
	mu    sync.RWMutex
	conns map[core.Conn]*domain.User
}

func NewConnectionRegistry() *ConnectionRegistry {
	return &ConnectionRegistry{conns: make(map[core.Conn]*domain.User)}
}

// Add registers conn with a fresh, not-yet-identified user. Idempotent:
// a conn already present keeps its user.
func (r *ConnectionRegistry) Add(conn core.Conn) *domain.User {
	r.mu.Lock()
	defer r.mu.Unlock()
	if u, ok := r.conns[conn]; ok {
		return u
	}
	u := &domain.User{}
	r.conns[conn] = u
	log.Debug().Str("module", "app.connections").Msg("connection registered")
	return u
}

// Remove unbinds conn. Unknown conns are a logged no-op, never an error.
// Session membership is untouched; it survives transient disconnection.
func (r *ConnectionRegistry) Remove(conn core.Conn) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.conns[conn]; !ok {
		log.Debug().Str("module", "app.connections").Msg("remove of unknown connection ignored")
		return
	}
	delete(r.conns, conn)
	log.Debug().Str("module", "app.connections").Msg("connection removed")
}

// Bind completes the handshake for conn's user: it sets the display name
// and mints a UID, or resumes the supplied one. The binding is sticky — a
// repeat handshake on an identified connection keeps the existing identity
// untouched, though it still requires a name.
func (r *ConnectionRegistry) Bind(conn core.Conn, name, uid string) (*domain.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	u, ok := r.conns[conn]
	if !ok {
		return nil, errConnNotRegistered
	}
	if name == "" {
		return nil, domain.ErrNameEmpty
	}
	if u.Identified() {
		return u, nil
	}
	if err := u.SetName(name); err != nil {
		return nil, err
	}
	if uid == "" {
		u.MintUID()
	} else {
		u.ResumeUID(uid)
	}
	log.Debug().Str("module", "app.connections").Str("user", u.Name).Msg("identity bound")
	return u, nil
}

// UserOf returns the identity bound to conn.
func (r *ConnectionRegistry) UserOf(conn core.Conn) (*domain.User, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	u, ok := r.conns[conn]
	return u, ok
}

// ConnOf finds the live connection of a user, if any. Absence is not an
// error; it means the member is currently offline.
func (r *ConnectionRegistry) ConnOf(user *domain.User) (core.Conn, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if user.UID == "" {
		return nil, false
	}
	for conn, u := range r.conns {
		if u.UID == user.UID {
			return conn, true
		}
	}
	return nil, false
}

func (r *ConnectionRegistry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.conns)
}
