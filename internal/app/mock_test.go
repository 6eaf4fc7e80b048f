package app

import (
	"sync"
	"testing"

	"github.com/fxamacker/cbor/v2"
	"github.com/stretchr/testify/require"

	"github.com/songbooklive/songbook/internal/core"
	"github.com/songbooklive/songbook/internal/domain"
	"github.com/songbooklive/songbook/internal/protocol"
)

type mockConn struct {
	mu      sync.Mutex
	frames  []core.Frame
	closed  bool
	sendErr error
}

func (m *mockConn) TrySend(f core.Frame) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.sendErr != nil {
		return m.sendErr
	}
	m.frames = append(m.frames, f)
	return nil
}

func (m *mockConn) Close() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
}

func (m *mockConn) received() []core.Frame {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]core.Frame(nil), m.frames...)
}

func (m *mockConn) reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.frames = nil
}

func (m *mockConn) isClosed() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.closed
}

// lastMessage decodes the most recently received outbound frame.
func lastMessage(t *testing.T, m *mockConn) (protocol.MsgType, cbor.RawMessage) {
	t.Helper()
	frames := m.received()
	require.NotEmpty(t, frames, "no frames received")
	typ, data, err := protocol.DecodeMessage(frames[len(frames)-1])
	require.NoError(t, err)
	return typ, data
}

func decodePayload[T any](t *testing.T, data cbor.RawMessage) T {
	t.Helper()
	var v T
	require.NoError(t, cbor.Unmarshal(data, &v))
	return v
}

// bindUser registers conn and completes identification, the way the
// dispatcher's handshake would.
func bindUser(t *testing.T, conns *ConnectionRegistry, conn core.Conn, name string) *domain.User {
	t.Helper()
	conns.Add(conn)
	u, err := conns.Bind(conn, name, "")
	require.NoError(t, err)
	return u
}

// otherTicket returns a well-formed ticket guaranteed to differ from id.
func otherTicket(id string) string {
	b := []byte(id)
	if b[0] == '9' {
		b[0] = '0'
	} else {
		b[0]++
	}
	return string(b)
}

func requireCode(t *testing.T, err error, code core.ErrorCode) {
	t.Helper()
	require.Error(t, err)
	perr, ok := err.(*core.ProtocolError)
	require.True(t, ok, "expected ProtocolError, got %T: %v", err, err)
	require.Equal(t, code, perr.Code)
}
