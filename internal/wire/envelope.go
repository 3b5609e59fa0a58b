package wire

import (
	"encoding/json"
	"errors"
	"fmt"
)

// ProtocolVersion is the wire protocol spoken by this package. Version 2.0.0
// length-prefixes every exchange including the handshake pair; 1.0.0 sent the
// handshake as a bare bounded read and is not accepted.
const ProtocolVersion = "2.0.0"

// Envelope type tags.
const (
	TypeAction        = "action"
	TypeMessage       = "message"
	TypeRequestResult = "request_result"
)

// Action names.
const (
	ActionEnd    = "end"
	ActionGetAll = "get_all"
)

// RequestGetAll tags a request_result carrying the full history.
const RequestGetAll = "get_all"

// Handshake rejection reasons.
const (
	ReasonUserOnline     = "UserOnline"
	ReasonInvalidVersion = "InvalidVersion"
)

var (
	// ErrCorruptEnvelope reports an envelope that decrypted but does not
	// parse. Distinct from secret.ErrDecrypt, which is an authentication
	// failure.
	ErrCorruptEnvelope = errors.New("wire: corrupt envelope")

	// ErrUnknownType reports a type or action tag outside the protocol's
	// closed set. Unknown tags are rejected, never ignored.
	ErrUnknownType = errors.New("wire: unknown envelope type")
)

// HandshakeRequest is the bootstrap request, sent encrypted under the server
// secret as the first frame of a connection.
type HandshakeRequest struct {
	Username string `json:"username"`
	Version  string `json:"version"`
}

// HandshakeReply is the bootstrap reply. Key carries the freshly minted
// session key on success; Reason carries the rejection code otherwise.
type HandshakeReply struct {
	Success bool   `json:"success"`
	Key     string `json:"key,omitempty"`
	Reason  string `json:"reason,omitempty"`
}

// Action is a control envelope: end the session or request the history.
type Action struct {
	Name string
}

// ChatMessage is one chat entry. Message is ciphertext under the room secret;
// the server stores and relays it without ever decrypting it. User is empty
// on the client-to-server leg and filled in by the server before storing and
// broadcasting.
type ChatMessage struct {
	User    string `json:"user,omitempty"`
	Message string `json:"message"`
	Time    string `json:"time"`
}

// RequestResult answers a prior request; for get_all it carries the full
// history in insertion order.
type RequestResult struct {
	RequestType string
	Records     []ChatMessage
}

// envelope is the raw wire shape shared by all three variants.
type envelope struct {
	Type          string        `json:"type"`
	Action        string        `json:"action,omitempty"`
	User          string        `json:"user,omitempty"`
	Message       string        `json:"message,omitempty"`
	Time          string        `json:"time,omitempty"`
	RequestType   string        `json:"request_type,omitempty"`
	RequestResult []ChatMessage `json:"request_result,omitempty"`
}

// EncodeAction marshals an action envelope.
func EncodeAction(name string) ([]byte, error) {
	switch name {
	case ActionEnd, ActionGetAll:
	default:
		return nil, fmt.Errorf("%w: action %q", ErrUnknownType, name)
	}
	return json.Marshal(envelope{Type: TypeAction, Action: name})
}

// EncodeMessage marshals a message envelope.
func EncodeMessage(m ChatMessage) ([]byte, error) {
	return json.Marshal(envelope{Type: TypeMessage, User: m.User, Message: m.Message, Time: m.Time})
}

// EncodeRequestResult marshals a request_result envelope.
func EncodeRequestResult(r RequestResult) ([]byte, error) {
	if r.RequestType != RequestGetAll {
		return nil, fmt.Errorf("%w: request_type %q", ErrUnknownType, r.RequestType)
	}
	records := r.Records
	if records == nil {
		records = []ChatMessage{}
	}
	return json.Marshal(envelope{Type: TypeRequestResult, RequestType: r.RequestType, RequestResult: records})
}

// DecodeEnvelope parses one decrypted envelope into its variant: Action,
// ChatMessage or RequestResult. Tags outside the closed set return
// ErrUnknownType; malformed JSON returns ErrCorruptEnvelope.
func DecodeEnvelope(data []byte) (any, error) {
	var e envelope
	if err := json.Unmarshal(data, &e); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCorruptEnvelope, err)
	}
	switch e.Type {
	case TypeAction:
		switch e.Action {
		case ActionEnd, ActionGetAll:
			return Action{Name: e.Action}, nil
		default:
			return nil, fmt.Errorf("%w: action %q", ErrUnknownType, e.Action)
		}
	case TypeMessage:
		return ChatMessage{User: e.User, Message: e.Message, Time: e.Time}, nil
	case TypeRequestResult:
		if e.RequestType != RequestGetAll {
			return nil, fmt.Errorf("%w: request_type %q", ErrUnknownType, e.RequestType)
		}
		return RequestResult{RequestType: e.RequestType, Records: e.RequestResult}, nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownType, e.Type)
	}
}
