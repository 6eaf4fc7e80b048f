package protocol

import (
	"testing"
	"time"

	"github.com/fxamacker/cbor/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/songbooklive/songbook/internal/core"
	"github.com/songbooklive/songbook/internal/domain"
)

func TestDecodeCommand(t *testing.T) {
	tests := []struct {
		name    string
		typ     CmdType
		payload any
		check   func(t *testing.T, cmd *Command)
	}{
		{
			name:    "hello with uid",
			typ:     CmdHello,
			payload: Hello{Name: "Ann", UID: "u-1"},
			check: func(t *testing.T, cmd *Command) {
				require.NotNil(t, cmd.Hello)
				assert.Equal(t, "Ann", cmd.Hello.Name)
				assert.Equal(t, "u-1", cmd.Hello.UID)
			},
		},
		{
			name:    "hello without uid",
			typ:     CmdHello,
			payload: Hello{Name: "Ann"},
			check: func(t *testing.T, cmd *Command) {
				require.NotNil(t, cmd.Hello)
				assert.Empty(t, cmd.Hello.UID)
			},
		},
		{
			name:    "join",
			typ:     CmdSessionJoin,
			payload: SessionJoin{ID: "1234"},
			check: func(t *testing.T, cmd *Command) {
				require.NotNil(t, cmd.Join)
				assert.Equal(t, "1234", cmd.Join.ID)
			},
		},
		{
			name:    "spread verse",
			typ:     CmdSpreadVerse,
			payload: SpreadVerse{Payload: []byte("la la la")},
			check: func(t *testing.T, cmd *Command) {
				require.NotNil(t, cmd.Verse)
				assert.Equal(t, []byte("la la la"), cmd.Verse.Payload)
			},
		},
		{
			name: "create has no payload",
			typ:  CmdSessionCreate,
			check: func(t *testing.T, cmd *Command) {
				assert.Nil(t, cmd.Hello)
				assert.Nil(t, cmd.Join)
				assert.Nil(t, cmd.Verse)
			},
		},
		{name: "delete has no payload", typ: CmdSessionDelete},
		{name: "leave has no payload", typ: CmdSessionLeave},
		{name: "get has no payload", typ: CmdSessionGet},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			frame, err := EncodeCommand(tt.typ, tt.payload)
			require.NoError(t, err)

			cmd, err := DecodeCommand(frame)
			require.NoError(t, err)
			assert.Equal(t, tt.typ, cmd.Type)
			if tt.check != nil {
				tt.check(t, cmd)
			}
		})
	}
}

func TestDecodeCommand_Malformed(t *testing.T) {
	_, err := DecodeCommand(core.Frame("not cbor at all"))
	assert.Error(t, err)
}

func TestDecodeCommand_UnknownType(t *testing.T) {
	frame, err := EncodeCommand(CmdType(99), nil)
	require.NoError(t, err)

	_, err = DecodeCommand(frame)
	assert.ErrorContains(t, err, "unknown command type")
}

func TestEncodeSessionDetails_Redaction(t *testing.T) {
	ann := &domain.User{UID: "uid-ann", Name: "Ann"}
	ben := &domain.User{UID: "uid-ben", Name: "Ben"}
	s := domain.NewSession("1234", ann, time.Hour)
	s.AddUser(ben)

	decode := func(viewer *domain.User) SessionDetails {
		frame, err := EncodeSessionDetails(s, viewer)
		require.NoError(t, err)

		typ, data, err := DecodeMessage(frame)
		require.NoError(t, err)
		require.Equal(t, MsgSessionDetails, typ)

		var details SessionDetails
		require.NoError(t, cbor.Unmarshal(data, &details))
		return details
	}

	annView := decode(ann)
	require.Len(t, annView.Members, 2)
	assert.Equal(t, "uid-ann", annView.Members[0].User.UID)
	assert.Empty(t, annView.Members[1].User.UID, "Ann must not see Ben's uid")

	benView := decode(ben)
	require.Len(t, benView.Members, 2)
	assert.Empty(t, benView.Members[0].User.UID, "Ben must not see Ann's uid")
	assert.Equal(t, "uid-ben", benView.Members[1].User.UID)

	// names and roles are visible to everyone
	assert.Equal(t, "Ann", benView.Members[0].User.Name)
	assert.Equal(t, domain.RoleCreator, benView.Members[0].Role)
	assert.Equal(t, domain.RoleMember, benView.Members[1].Role)
}

func TestEncodeError(t *testing.T) {
	frame, err := EncodeError(core.CodeNoSession)
	require.NoError(t, err)

	typ, data, err := DecodeMessage(frame)
	require.NoError(t, err)
	assert.Equal(t, MsgError, typ)

	var msg ErrorMessage
	require.NoError(t, cbor.Unmarshal(data, &msg))
	assert.Equal(t, core.CodeNoSession, msg.Code)
	assert.NotEmpty(t, msg.Text)
}

func TestEncodeSessionDeleted(t *testing.T) {
	frame, err := EncodeSessionDeleted(domain.DeleteReasonExpired)
	require.NoError(t, err)

	typ, data, err := DecodeMessage(frame)
	require.NoError(t, err)
	assert.Equal(t, MsgSessionDeleted, typ)

	var msg SessionDeleted
	require.NoError(t, cbor.Unmarshal(data, &msg))
	assert.Equal(t, domain.DeleteReasonExpired, msg.Reason)
}
