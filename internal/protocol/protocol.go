package protocol

import "encoding/json"

const Version = "1.0"

// Message types for the websocket stream.
const (
	TypeWelcome = "WELCOME"
	TypeStep    = "STEP"
)

// Event types recorded by the model.
const (
	EventInit        = "init"
	EventNewProposal = "new_proposal"
	EventFunded      = "funded"
	EventCompleted   = "completed"
	EventFailed      = "failed"
	EventExpired     = "expired"
	EventExit        = "exit"
	EventEntry       = "entry"
)

// BaseMessage lets us route unknown JSON messages by type.
type BaseMessage struct {
	Type            string `json:"type"`
	ProtocolVersion string `json:"protocol_version,omitempty"`
}

func DecodeBase(b []byte) (BaseMessage, error) {
	var m BaseMessage
	err := json.Unmarshal(b, &m)
	return m, err
}

// Event is one entry in the model's ordered event log.
type Event struct {
	Week    int    `json:"week"`
	Type    string `json:"type"`
	Message string `json:"message"`
}
