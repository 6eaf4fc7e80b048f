package app

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/songbooklive/songbook/internal/domain"
)

func TestConnectionRegistry_AddIsIdempotent(t *testing.T) {
	r := NewConnectionRegistry()
	conn := &mockConn{}

	u1 := r.Add(conn)
	u2 := r.Add(conn)

	assert.Same(t, u1, u2)
	assert.Equal(t, 1, r.Len())
}

func TestConnectionRegistry_RemoveUnknownIsNoop(t *testing.T) {
	r := NewConnectionRegistry()
	r.Remove(&mockConn{})
	assert.Equal(t, 0, r.Len())
}

func TestConnectionRegistry_Bind(t *testing.T) {
	r := NewConnectionRegistry()
	conn := &mockConn{}
	r.Add(conn)

	u, err := r.Bind(conn, "Ann", "")
	require.NoError(t, err)
	assert.Equal(t, "Ann", u.Name)
	assert.NotEmpty(t, u.UID)

	// the binding is sticky; a repeat handshake changes nothing
	again, err := r.Bind(conn, "Other", "some-uid")
	require.NoError(t, err)
	assert.Same(t, u, again)
	assert.Equal(t, "Ann", again.Name)
}

func TestConnectionRegistry_BindResumesUID(t *testing.T) {
	r := NewConnectionRegistry()
	conn := &mockConn{}
	r.Add(conn)

	u, err := r.Bind(conn, "Ann", "carried-over")
	require.NoError(t, err)
	assert.Equal(t, "carried-over", u.UID)
}

func TestConnectionRegistry_BindErrors(t *testing.T) {
	r := NewConnectionRegistry()
	conn := &mockConn{}
	r.Add(conn)

	_, err := r.Bind(conn, "", "")
	require.ErrorIs(t, err, domain.ErrNameEmpty)

	long := make([]byte, domain.MaxNameLen+1)
	for i := range long {
		long[i] = 'a'
	}
	_, err = r.Bind(conn, string(long), "")
	require.ErrorIs(t, err, domain.ErrNameTooLong)

	u, ok := r.UserOf(conn)
	require.True(t, ok)
	assert.False(t, u.Identified(), "a failed handshake leaves the user unbound")

	_, err = r.Bind(&mockConn{}, "Ann", "")
	require.Error(t, err)
}

func TestConnectionRegistry_ReverseLookup(t *testing.T) {
	r := NewConnectionRegistry()
	conn := &mockConn{}
	user := bindUser(t, r, conn, "Ann")

	got, ok := r.ConnOf(user)
	require.True(t, ok)
	assert.Same(t, conn, got.(*mockConn))

	r.Remove(conn)
	_, ok = r.ConnOf(user)
	assert.False(t, ok, "lookup after remove must miss, not error")
}

func TestConnectionRegistry_UnidentifiedUserNeverMatches(t *testing.T) {
	r := NewConnectionRegistry()
	r.Add(&mockConn{})

	// two unbound users both have an empty UID; neither may resolve
	_, ok := r.ConnOf(&domain.User{})
	assert.False(t, ok)
}

func TestConnectionRegistry_UserOf(t *testing.T) {
	r := NewConnectionRegistry()
	conn := &mockConn{}
	user := bindUser(t, r, conn, "Ann")

	got, ok := r.UserOf(conn)
	require.True(t, ok)
	assert.Same(t, user, got)

	_, ok = r.UserOf(&mockConn{})
	assert.False(t, ok)
}
