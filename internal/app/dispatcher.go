package app

import (
	"errors"

	"github.com/rs/zerolog/log"

	"github.com/songbooklive/songbook/internal/core"
	"github.com/songbooklive/songbook/internal/domain"
	"github.com/songbooklive/songbook/internal/protocol"
)

// Dispatcher turns decoded wire commands into registry calls and error
// responses. All session reads and fan-out happen inside the registries,
// under their locks; the dispatcher itself holds no session state. A frame
// that fails a precondition errors back to its sender only and mutates
// nothing.
type Dispatcher struct {
	Sessions *SessionRegistry
	Conns    *ConnectionRegistry
}

func NewDispatcher(sessions *SessionRegistry, conns *ConnectionRegistry) *Dispatcher {
	return &Dispatcher{Sessions: sessions, Conns: conns}
}

// HandleFrame processes one inbound binary frame from conn. Panics during
// handling are recovered here and surface as the generic error code.
func (d *Dispatcher) HandleFrame(conn core.Conn, frame core.Frame) {
	defer func() {
		if rec := recover(); rec != nil {
			log.Error().Str("module", "app.dispatcher").Any("panic", rec).Msg("recovered in frame handler")
			d.sendErrorCode(conn, core.CodeUnknown)
		}
	}()

	user, ok := d.Conns.UserOf(conn)
	if !ok {
		log.Warn().Str("module", "app.dispatcher").Msg("frame from unregistered connection")
		return
	}

	cmd, err := protocol.DecodeCommand(frame)
	if err != nil {
		log.Warn().Err(err).Str("module", "app.dispatcher").Msg("bad frame")
		d.sendErrorCode(conn, core.CodeInvalidCommand)
		return
	}

	if cmd.Type != protocol.CmdHello && !user.Identified() {
		log.Warn().Str("module", "app.dispatcher").Msg("command before handshake")
		d.sendErrorCode(conn, core.CodeInvalidCommand)
		return
	}

	switch cmd.Type {
	case protocol.CmdHello:
		d.handleHello(conn, cmd.Hello)
	case protocol.CmdSessionCreate:
		if err := d.Sessions.Create(user, conn); err != nil {
			d.sendError(conn, err)
		}
	case protocol.CmdSessionDelete:
		if err := d.Sessions.DeleteByCreator(user); err != nil {
			d.sendError(conn, err)
		}
	case protocol.CmdSessionJoin:
		if err := d.Sessions.Join(user, cmd.Join.ID); err != nil {
			d.sendError(conn, err)
		}
	case protocol.CmdSessionLeave:
		if err := d.Sessions.Leave(user, conn); err != nil {
			d.sendError(conn, err)
		}
	case protocol.CmdSessionGet:
		if !d.Sessions.SendDetailsTo(conn, user) {
			d.sendErrorCode(conn, core.CodeNoSession)
		}
	case protocol.CmdSpreadVerse:
		if err := d.Sessions.Spread(user, cmd.Verse.Payload); err != nil {
			d.sendError(conn, err)
		}
	}
}

// HandlePong is the creator's liveness signal: it refreshes the session
// expiration. Pongs from ordinary members change nothing.
func (d *Dispatcher) HandlePong(conn core.Conn) {
	user, ok := d.Conns.UserOf(conn)
	if !ok || !user.Identified() {
		return
	}
	if id, ok := d.Sessions.RefreshByCreator(user); ok {
		log.Debug().Str("module", "app.dispatcher").Str("session", id).Msg("expiration refreshed")
	}
}

// handleHello completes the identity handshake. A missing display name is
// fatal for the connection; an over-long one only errors, so the client
// can retry with a usable name on the same socket.
func (d *Dispatcher) handleHello(conn core.Conn, req *protocol.Hello) {
	user, err := d.Conns.Bind(conn, req.Name, req.UID)
	switch {
	case err == nil:
	case errors.Is(err, domain.ErrNameEmpty):
		log.Warn().Str("module", "app.dispatcher").Msg("hello without a name, closing")
		conn.Close()
		return
	case errors.Is(err, domain.ErrNameTooLong):
		log.Warn().Str("module", "app.dispatcher").Msg("hello with over-long name")
		d.sendErrorCode(conn, core.CodeInvalidCommand)
		return
	default:
		log.Error().Err(err).Str("module", "app.dispatcher").Msg("handshake failed")
		return
	}

	frame, err := protocol.EncodeHelloResponse(user.UID)
	if err != nil {
		d.sendErrorCode(conn, core.CodeUnknown)
		return
	}
	d.send(conn, frame)

	// A resumed identity may already sit in a session; push details
	// without waiting for an explicit request.
	if d.Sessions.SendDetailsTo(conn, user) {
		log.Debug().Str("module", "app.dispatcher").Str("user", user.Name).Msg("rebound to existing session")
	}
}

func (d *Dispatcher) sendError(conn core.Conn, err error) {
	var perr *core.ProtocolError
	if errors.As(err, &perr) {
		d.sendErrorCode(conn, perr.Code)
		return
	}
	log.Error().Err(err).Str("module", "app.dispatcher").Msg("internal error")
	d.sendErrorCode(conn, core.CodeUnknown)
}

func (d *Dispatcher) sendErrorCode(conn core.Conn, code core.ErrorCode) {
	frame, err := protocol.EncodeError(code)
	if err != nil {
		log.Error().Err(err).Str("module", "app.dispatcher").Msg("encode error message")
		return
	}
	d.send(conn, frame)
}

func (d *Dispatcher) send(conn core.Conn, frame core.Frame) {
	if err := conn.TrySend(frame); err != nil {
		log.Warn().Err(err).Str("module", "app.dispatcher").Msg("frame dropped")
	}
}
