package app

import (
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/songbooklive/songbook/internal/core"
	"github.com/songbooklive/songbook/internal/domain"
	"github.com/songbooklive/songbook/internal/protocol"
)

// ticketAttempts bounds collision retries when minting a session ticket.
const ticketAttempts = 100

var errTicketSpace = errors.New("ticket space exhausted")

// SessionRegistry is the authoritative in-memory store of active sessions.
// All mutations go through it, and every read of session state — including
// the encoding and fan-out of per-member views — happens under its mutex,
// so handlers on other connections' goroutines can never observe a torn
// member list or expiration. The cleaner's sweep serializes the same way.
type SessionRegistry struct {
	mu       sync.Mutex
	ttl      time.Duration
	sessions []*domain.Session
	conns    *ConnectionRegistry
}

func NewSessionRegistry(conns *ConnectionRegistry, ttl time.Duration) *SessionRegistry {
	return &SessionRegistry{ttl: ttl, conns: conns}
}

// Create opens a session with user as sole creator and pushes its details
// to conn. It fails while user belongs to any session, distinguishing
// own-session from membership elsewhere for diagnostics.
func (r *SessionRegistry) Create(user *domain.User, conn core.Conn) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if s := r.byCreatorLocked(user); s != nil {
		return core.NewError(core.CodeAlreadyHaveSession)
	}
	if s := r.findUserSessionLocked(user); s != nil {
		return core.NewError(core.CodeAlreadyMember)
	}

	id, err := r.newTicketLocked()
	if err != nil {
		return err
	}
	s := domain.NewSession(id, user, r.ttl)
	r.sessions = append(r.sessions, s)
	log.Debug().Str("module", "app.sessions").Str("session", s.ID).Str("user", user.Name).Msg("session created")
	r.sendDetailsLocked(conn, s, user)
	return nil
}

// Join adds user to the session identified by id and pushes updated details
// to every live member, the joiner included. The id is trimmed first; an
// empty id, a missing session, or existing membership anywhere all fail.
func (r *SessionRegistry) Join(user *domain.User, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	id = strings.TrimSpace(id)
	if id == "" {
		return core.NewError(core.CodeSessionIDRequired)
	}
	if s := r.findUserSessionLocked(user); s != nil {
		return core.NewError(core.CodeAlreadyHaveSession)
	}
	s := r.byIDLocked(id)
	if s == nil {
		return core.NewError(core.CodeSessionNotFound)
	}
	s.AddUser(user)
	log.Debug().Str("module", "app.sessions").Str("session", s.ID).Str("user", user.Name).Msg("user joined")
	r.fanOutDetailsLocked(s)
	return nil
}

// Leave removes user from its session, confirms to conn with a UserLeft
// notice, and pushes updated details to the remaining live members. The
// creator can never leave; it must delete the session instead.
func (r *SessionRegistry) Leave(user *domain.User, conn core.Conn) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	s := r.findUserSessionLocked(user)
	if s == nil {
		return core.NewError(core.CodeNoSession)
	}
	if err := s.RemoveUser(user); err != nil {
		switch {
		case errors.Is(err, domain.ErrCreatorCannotLeave):
			return core.NewError(core.CodeCannotLeaveAsCreator)
		case errors.Is(err, domain.ErrNotAMember):
			return core.NewError(core.CodeNotAMember)
		}
		return err
	}
	log.Debug().Str("module", "app.sessions").Str("session", s.ID).Str("user", user.Name).Msg("user left")

	if frame, err := protocol.EncodeSessionDeleted(domain.DeleteReasonUserLeft); err == nil {
		r.deliverLocked(conn, frame, user)
	}
	r.fanOutDetailsLocked(s)
	return nil
}

// DeleteByCreator removes user's session; only its creator may do so. Every
// live member, the caller included, gets the CreatorDecision notice.
func (r *SessionRegistry) DeleteByCreator(user *domain.User) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	s := r.findUserSessionLocked(user)
	if s == nil {
		return core.NewError(core.CodeNoSession)
	}
	if c := s.Creator(); c == nil || c.UID != user.UID {
		return core.NewError(core.CodeNotCreator)
	}
	r.deleteLocked(s.ID, domain.DeleteReasonCreatorDecision)
	return nil
}

// Spread pushes the payload to every other live member of user's session.
// Only the creator may spread. Delivery is best-effort and at-most-once:
// offline members are skipped, slow ones are dropped, nobody is retried.
func (r *SessionRegistry) Spread(user *domain.User, payload []byte) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	s := r.findUserSessionLocked(user)
	if s == nil {
		return core.NewError(core.CodeNoSession)
	}
	if c := s.Creator(); c == nil || c.UID != user.UID {
		return core.NewError(core.CodeNotCreator)
	}

	frame, err := protocol.EncodeCurrentVerse(payload)
	if err != nil {
		return err
	}
	for _, m := range s.Members {
		if m.User.UID == user.UID {
			continue
		}
		if conn, ok := r.conns.ConnOf(m.User); ok {
			r.deliverLocked(conn, frame, m.User)
		}
	}
	return nil
}

// SendDetailsTo pushes user's current session details to conn, reporting
// whether user had a session at all.
func (r *SessionRegistry) SendDetailsTo(conn core.Conn, user *domain.User) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	s := r.findUserSessionLocked(user)
	if s == nil {
		return false
	}
	r.sendDetailsLocked(conn, s, user)
	return true
}

// RefreshByCreator extends the expiration of the session user created, if
// any. Invoked only from the creator's liveness signal.
func (r *SessionRegistry) RefreshByCreator(user *domain.User) (string, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	s := r.byCreatorLocked(user)
	if s == nil {
		return "", false
	}
	s.RefreshExpiration(r.ttl)
	return s.ID, true
}

func (r *SessionRegistry) ByID(id string) (*domain.Session, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s := r.byIDLocked(id)
	return s, s != nil
}

func (r *SessionRegistry) ByCreator(user *domain.User) (*domain.Session, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s := r.byCreatorLocked(user)
	return s, s != nil
}

func (r *SessionRegistry) FindUserSession(user *domain.User) (*domain.Session, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s := r.findUserSessionLocked(user)
	return s, s != nil
}

// Delete removes the session and notifies every member with a live
// connection; offline members are skipped, nothing is queued.
func (r *SessionRegistry) Delete(id string, reason domain.DeleteReason) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.deleteLocked(id, reason)
}

// SweepExpired deletes every session whose deadline is at or before now,
// each with the Expired reason. Returns the number of sessions removed.
func (r *SessionRegistry) SweepExpired(now time.Time) int {
	r.mu.Lock()
	defer r.mu.Unlock()

	var expired []string
	for _, s := range r.sessions {
		if !s.Expires.After(now) {
			expired = append(expired, s.ID)
		}
	}
	for _, id := range expired {
		log.Info().Str("module", "app.sessions").Str("session", id).Msg("session expired")
		r.deleteLocked(id, domain.DeleteReasonExpired)
	}
	return len(expired)
}

func (r *SessionRegistry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.sessions)
}

func (r *SessionRegistry) deleteLocked(id string, reason domain.DeleteReason) bool {
	for i, s := range r.sessions {
		if s.ID != id {
			continue
		}
		r.notifyDeletedLocked(s, reason)
		r.sessions = append(r.sessions[:i], r.sessions[i+1:]...)
		log.Debug().Str("module", "app.sessions").Str("session", id).Uint8("reason", uint8(reason)).Msg("session deleted")
		return true
	}
	return false
}

func (r *SessionRegistry) notifyDeletedLocked(s *domain.Session, reason domain.DeleteReason) {
	frame, err := protocol.EncodeSessionDeleted(reason)
	if err != nil {
		log.Error().Err(err).Str("module", "app.sessions").Msg("encode session deleted")
		return
	}
	for _, m := range s.Members {
		if conn, ok := r.conns.ConnOf(m.User); ok {
			r.deliverLocked(conn, frame, m.User)
		}
	}
}

// fanOutDetailsLocked pushes each live member its own redacted session view.
func (r *SessionRegistry) fanOutDetailsLocked(s *domain.Session) {
	for _, m := range s.Members {
		if conn, ok := r.conns.ConnOf(m.User); ok {
			r.sendDetailsLocked(conn, s, m.User)
		}
	}
}

func (r *SessionRegistry) sendDetailsLocked(conn core.Conn, s *domain.Session, viewer *domain.User) {
	frame, err := protocol.EncodeSessionDetails(s, viewer)
	if err != nil {
		log.Error().Err(err).Str("module", "app.sessions").Msg("encode session details")
		return
	}
	r.deliverLocked(conn, frame, viewer)
}

func (r *SessionRegistry) deliverLocked(conn core.Conn, frame core.Frame, recipient *domain.User) {
	if err := conn.TrySend(frame); err != nil {
		log.Warn().Err(err).Str("module", "app.sessions").Str("user", recipient.Name).Msg("frame dropped")
	}
}

func (r *SessionRegistry) newTicketLocked() (string, error) {
	for i := 0; i < ticketAttempts; i++ {
		id := domain.NewTicket()
		if r.byIDLocked(id) == nil {
			return id, nil
		}
	}
	return "", errTicketSpace
}

func (r *SessionRegistry) byIDLocked(id string) *domain.Session {
	for _, s := range r.sessions {
		if s.ID == id {
			return s
		}
	}
	return nil
}

func (r *SessionRegistry) byCreatorLocked(user *domain.User) *domain.Session {
	for _, s := range r.sessions {
		if c := s.Creator(); c != nil && c.UID == user.UID {
			return s
		}
	}
	return nil
}

func (r *SessionRegistry) findUserSessionLocked(user *domain.User) *domain.Session {
	for _, s := range r.sessions {
		if s.HasUser(user) {
			return s
		}
	}
	return nil
}
