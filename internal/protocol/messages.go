package protocol

import (
	"fmt"
	"time"

	"github.com/fxamacker/cbor/v2"

	"github.com/songbooklive/songbook/internal/core"
	"github.com/songbooklive/songbook/internal/domain"
)

// MsgType tags an outbound message.
type MsgType uint8

const (
	MsgHelloResponse MsgType = iota + 1
	MsgSessionDetails
	MsgSessionDeleted
	MsgError
	MsgCurrentVerse
)

type HelloResponse struct {
	UID string `cbor:"uid"`
}

type UserView struct {
	Name string `cbor:"name"`
	UID  string `cbor:"uid,omitempty"`
}

type MemberView struct {
	User UserView    `cbor:"user"`
	Role domain.Role `cbor:"role"`
}

type SessionDetails struct {
	ID      string       `cbor:"id"`
	Expires time.Time    `cbor:"expires"`
	Members []MemberView `cbor:"members"`
}

type SessionDeleted struct {
	Reason domain.DeleteReason `cbor:"reason"`
}

type ErrorMessage struct {
	Code core.ErrorCode `cbor:"code"`
	Text string         `cbor:"text,omitempty"`
}

type CurrentVerse struct {
	Payload []byte `cbor:"payload"`
}

func EncodeHelloResponse(uid string) (core.Frame, error) {
	return encodeEnvelope(uint8(MsgHelloResponse), HelloResponse{UID: uid})
}

// EncodeSessionDetails renders the session as seen by viewer: a member's uid
// is present only in the copy sent to that member themself. It reads live
// session state, so the caller must hold the lock guarding s.
func EncodeSessionDetails(s *domain.Session, viewer *domain.User) (core.Frame, error) {
	details := SessionDetails{
		ID:      s.ID,
		Expires: s.Expires,
		Members: make([]MemberView, 0, len(s.Members)),
	}
	for _, m := range s.Members {
		view := MemberView{User: UserView{Name: m.User.Name}, Role: m.Role}
		if m.User.UID == viewer.UID {
			view.User.UID = m.User.UID
		}
		details.Members = append(details.Members, view)
	}
	return encodeEnvelope(uint8(MsgSessionDetails), details)
}

func EncodeSessionDeleted(reason domain.DeleteReason) (core.Frame, error) {
	return encodeEnvelope(uint8(MsgSessionDeleted), SessionDeleted{Reason: reason})
}

func EncodeError(code core.ErrorCode) (core.Frame, error) {
	return encodeEnvelope(uint8(MsgError), ErrorMessage{Code: code, Text: code.String()})
}

func EncodeCurrentVerse(payload []byte) (core.Frame, error) {
	return encodeEnvelope(uint8(MsgCurrentVerse), CurrentVerse{Payload: payload})
}

// DecodeMessage splits an outbound frame into its type tag and raw payload.
// Used by clients and tests; the server itself only encodes.
func DecodeMessage(frame core.Frame) (MsgType, cbor.RawMessage, error) {
	var env envelope
	if err := cbor.Unmarshal(frame, &env); err != nil {
		return 0, nil, fmt.Errorf("decode envelope: %w", err)
	}
	return MsgType(env.Type), env.Data, nil
}
