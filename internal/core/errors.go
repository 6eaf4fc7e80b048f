package core

import "fmt"

// ErrorCode is the numeric error identifier carried on the wire.
type ErrorCode uint16

const (
	CodeUnknown        ErrorCode = 1
	CodeInvalidCommand ErrorCode = 2

	CodeSessionNotFound   ErrorCode = 100
	CodeSessionIDRequired ErrorCode = 101

	CodeNoSession            ErrorCode = 110
	CodeNotCreator           ErrorCode = 111
	CodeAlreadyHaveSession   ErrorCode = 112
	CodeAlreadyMember        ErrorCode = 113
	CodeNotAMember           ErrorCode = 120
	CodeCannotLeaveAsCreator ErrorCode = 131
)

func (c ErrorCode) String() string {
	switch c {
	case CodeUnknown:
		return "unknown error"
	case CodeInvalidCommand:
		return "unknown command"
	case CodeSessionNotFound:
		return "session with given id does not exist"
	case CodeSessionIDRequired:
		return "session id is not provided"
	case CodeNoSession:
		return "you have no session"
	case CodeNotCreator:
		return "you are not the creator of the session"
	case CodeAlreadyHaveSession:
		return "you have created another session already"
	case CodeAlreadyMember:
		return "you are a member of another session"
	case CodeNotAMember:
		return "you are not a member of the session"
	case CodeCannotLeaveAsCreator:
		return "you cannot leave a session you created"
	default:
		return fmt.Sprintf("error code %d", uint16(c))
	}
}

// ProtocolError is a precondition violation reported back to the sender.
// It never affects other connections.
type ProtocolError struct {
	Code ErrorCode
}

func (e *ProtocolError) Error() string {
	return e.Code.String()
}

func NewError(code ErrorCode) *ProtocolError {
	return &ProtocolError{Code: code}
}
