package ws

import "encoding/json"

// Message is the envelope of every frame in both directions.
type Message struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// client → server
type ClickPayload struct {
	Index int `json:"index"`
}

type NamePayload struct {
	Name string `json:"name"`
}

// server → client
type ReadyPayload struct {
	ClientID string `json:"client_id"`
	Address  string `json:"address"`
}

type AckPayload struct {
	Action   string `json:"action"`
	Accepted bool   `json:"accepted"`
}

type ErrorPayload struct {
	Action  string `json:"action,omitempty"`
	Message string `json:"message"`
}

func encode(typ string, payload any) ([]byte, error) {
	var raw json.RawMessage
	if payload != nil {
		b, err := json.Marshal(payload)
		if err != nil {
			return nil, err
		}
		raw = b
	}
	return json.Marshal(Message{Type: typ, Payload: raw})
}
