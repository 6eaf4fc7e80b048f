// Package protocol implements the binary wire codec: CBOR envelopes with a
// numeric type tag and a type-specific payload.
package protocol

import (
	"fmt"

	"github.com/fxamacker/cbor/v2"

	"github.com/songbooklive/songbook/internal/core"
)

// CmdType tags an inbound command. The set is closed; the dispatcher
// switches over it exhaustively.
type CmdType uint8

const (
	CmdHello CmdType = iota + 1
	CmdSessionCreate
	CmdSessionDelete
	CmdSessionJoin
	CmdSessionLeave
	CmdSessionGet
	CmdSpreadVerse
)

// envelope is the outer frame shape, shared by commands and messages.
type envelope struct {
	Type uint8           `cbor:"t"`
	Data cbor.RawMessage `cbor:"d,omitempty"`
}

type Hello struct {
	Name string `cbor:"name"`
	UID  string `cbor:"uid,omitempty"`
}

type SessionJoin struct {
	ID string `cbor:"id"`
}

type SpreadVerse struct {
	Payload []byte `cbor:"payload"`
}

// Command is a decoded inbound frame. Exactly one payload field is set,
// matching Type; parameterless commands carry none.
type Command struct {
	Type  CmdType
	Hello *Hello
	Join  *SessionJoin
	Verse *SpreadVerse
}

// DecodeCommand parses an inbound frame. Any malformed or unrecognized
// frame is reported as an error; the caller maps it to the invalid-command
// wire code.
func DecodeCommand(frame core.Frame) (*Command, error) {
	var env envelope
	if err := cbor.Unmarshal(frame, &env); err != nil {
		return nil, fmt.Errorf("decode envelope: %w", err)
	}

	cmd := &Command{Type: CmdType(env.Type)}
	switch cmd.Type {
	case CmdHello:
		cmd.Hello = &Hello{}
		if err := cbor.Unmarshal(env.Data, cmd.Hello); err != nil {
			return nil, fmt.Errorf("decode hello: %w", err)
		}
	case CmdSessionJoin:
		cmd.Join = &SessionJoin{}
		if err := cbor.Unmarshal(env.Data, cmd.Join); err != nil {
			return nil, fmt.Errorf("decode session join: %w", err)
		}
	case CmdSpreadVerse:
		cmd.Verse = &SpreadVerse{}
		if err := cbor.Unmarshal(env.Data, cmd.Verse); err != nil {
			return nil, fmt.Errorf("decode spread verse: %w", err)
		}
	case CmdSessionCreate, CmdSessionDelete, CmdSessionLeave, CmdSessionGet:
		// no payload
	default:
		return nil, fmt.Errorf("unknown command type %d", env.Type)
	}
	return cmd, nil
}

// EncodeCommand builds an inbound-style frame. The server never sends
// commands; this exists for clients and tests.
func EncodeCommand(t CmdType, payload any) (core.Frame, error) {
	return encodeEnvelope(uint8(t), payload)
}

func encodeEnvelope(t uint8, payload any) (core.Frame, error) {
	env := envelope{Type: t}
	if payload != nil {
		data, err := cbor.Marshal(payload)
		if err != nil {
			return nil, fmt.Errorf("encode payload: %w", err)
		}
		env.Data = data
	}
	frame, err := cbor.Marshal(env)
	if err != nil {
		return nil, fmt.Errorf("encode envelope: %w", err)
	}
	return frame, nil
}
