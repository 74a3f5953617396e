// Package wire defines the events, messages and frames exchanged with the rank service.
package wire

import (
	"encoding/json"
	"fmt"
)

// EventType is the category of an event delivered by the service.
type EventType string

const (
	EventSessionStatus   EventType = "SESSION_STATUS"
	EventServiceStatus   EventType = "SERVICE_STATUS"
	EventResponse        EventType = "RESPONSE"
	EventPartialResponse EventType = "PARTIAL_RESPONSE"
	EventAdmin           EventType = "ADMIN"
)

// Name is a message type name.
type Name string

const (
	SessionStarted        Name = "SessionStarted"
	SessionStartupFailure Name = "SessionStartupFailure"
	SessionConnectionUp   Name = "SessionConnectionUp"
	SessionConnectionDown Name = "SessionConnectionDown"
	SessionTerminated     Name = "SessionTerminated"

	ServiceOpened      Name = "ServiceOpened"
	ServiceOpenFailure Name = "ServiceOpenFailure"

	SlowConsumerWarning        Name = "SlowConsumerWarning"
	SlowConsumerWarningCleared Name = "SlowConsumerWarningCleared"

	ErrorInfo Name = "ErrorInfo"
	Report    Name = "Report"
)

// CorrelationID binds a submitted request to the messages answering it.
type CorrelationID uint64

func (c CorrelationID) String() string {
	return fmt.Sprintf("%d", uint64(c))
}

// Message is a single typed message inside an event.
type Message struct {
	Type           Name            `json:"messageType"`
	CorrelationIDs []CorrelationID `json:"correlationIds,omitempty"`
	Service        string          `json:"service,omitempty"`
	Elements       json.RawMessage `json:"elements,omitempty"`
}

// Event groups the messages the service delivered together.
type Event struct {
	Type     EventType `json:"eventType"`
	Messages []Message `json:"messages"`
}

// NewMessage builds a message whose elements are the JSON encoding of elements.
// A nil elements value produces a message without elements.
func NewMessage(name Name, elements any, ids ...CorrelationID) (Message, error) {
	msg := Message{Type: name, CorrelationIDs: ids}
	if elements == nil {
		return msg, nil
	}
	raw, err := json.Marshal(elements)
	if err != nil {
		return Message{}, fmt.Errorf("encoding %s elements: %w", name, err)
	}
	msg.Elements = raw
	return msg, nil
}

// CorrelationID returns the first correlation id of the message, if any.
func (m Message) CorrelationID() (CorrelationID, bool) {
	if len(m.CorrelationIDs) == 0 {
		return 0, false
	}
	return m.CorrelationIDs[0], true
}

// Root returns the root element of the message.
func (m Message) Root() (Element, error) {
	if len(m.Elements) == 0 {
		return Element{name: string(m.Type), value: map[string]any{}}, nil
	}
	return ParseElement(string(m.Type), m.Elements)
}

// Reason extracts a human readable description from status messages.
// Status payloads carry either {"reason":{"description":..}} or {"description":..}.
func (m Message) Reason() string {
	root, err := m.Root()
	if err != nil {
		return ""
	}
	if reason, err := root.GetElement("reason"); err == nil {
		if desc, err := reason.GetAsString("description"); err == nil {
			return desc
		}
	}
	if desc, err := root.GetAsString("description"); err == nil {
		return desc
	}
	return ""
}
