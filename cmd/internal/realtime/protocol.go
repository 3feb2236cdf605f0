package realtime

import (
	"encoding/json"

	"twidder/cmd/internal/api"
	"twidder/cmd/internal/wall"
)

// Client-facing event names.
const (
	eventSignIn            = "signIn"
	eventSignOut           = "signOut"
	eventSignUp            = "signUp"
	eventChangePassword    = "changePassword"
	eventMessagesByToken   = "getUserMessagesByToken"
	eventMessagesByEmail   = "getUserMessagesByEmail"
	eventUserDataByToken   = "getUserDataByToken"
	eventUserDataByEmail   = "getUserDataByEmail"
	eventPostMessage       = "postMessage"
	eventServerPushMessage = "message"
)

// Exact protocol error strings; clients match on them.
const (
	errMisformatted = "Misformatted data!"
	errNoHandler    = "No handler specified!"
)

// Envelope is one client request: an event name, an opaque correlation id
// echoed back verbatim, and event-specific data.
type Envelope struct {
	Event string          `json:"event"`
	ID    json.RawMessage `json:"id,omitempty"`
	Data  json.RawMessage `json:"data,omitempty"`
}

// reply is the server's answer to one envelope. A protocol-level failure
// (bad data shape, unknown event) carries success=false and a message; an
// executed operation carries success=true and the operation's own result
// under data, whatever its outcome.
type reply struct {
	Success bool            `json:"success"`
	Event   string          `json:"event,omitempty"`
	ID      json.RawMessage `json:"id,omitempty"`
	Message string          `json:"message,omitempty"`
	Data    any             `json:"data,omitempty"`
}

// tokenParams covers the events whose data is a bare token.
type tokenParams struct {
	Token string `json:"token"`
}

// tokenEmailParams covers the by-email lookup events.
type tokenEmailParams struct {
	Token string `json:"token"`
	Email string `json:"email"`
}

// pushData is the unsolicited message frame sent to a recipient's
// connections when someone posts to their wall.
type pushData struct {
	Recipient string       `json:"recipient"`
	Messages  []wall.Entry `json:"messages"`
}

func marshalReply(rp reply) []byte {
	b, err := json.Marshal(rp)
	if err != nil {
		// reply contains only marshalable fields; this cannot fire for
		// frames we construct.
		return []byte(`{"success":false,"message":"Internal server error."}`)
	}
	return b
}

func operationReply(env Envelope, res api.Result) []byte {
	return marshalReply(reply{
		Success: true,
		Event:   env.Event,
		ID:      env.ID,
		Data:    res,
	})
}

func protocolError(msg string) []byte {
	return marshalReply(reply{Success: false, Message: msg})
}

func pushFrame(recipient, writer, content string) []byte {
	b, err := json.Marshal(struct {
		Event string   `json:"event"`
		Data  pushData `json:"data"`
	}{
		Event: eventServerPushMessage,
		Data: pushData{
			Recipient: recipient,
			Messages:  []wall.Entry{{Writer: writer, Content: content}},
		},
	})
	if err != nil {
		return nil
	}
	return b
}
