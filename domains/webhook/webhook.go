package webhook

import (
	"context"
	"encoding/json"
	"strings"
)

// EventType is the internal tagged classification of a provider event. All
// provider casing/naming quirks are normalized here and nowhere else.
type EventType int

const (
	EventUnknown EventType = iota
	EventConnectionUpdate
	EventGroupUpsert
	EventMessageUpsert
)

// Payload is the raw inbound webhook body from the provider.
type Payload struct {
	Event    string          `json:"event"`
	Instance string          `json:"instance"`
	Data     json.RawMessage `json:"data"`
}

// Type normalizes the provider event name. The provider has been observed
// emitting both SCREAMING_SNAKE and dotted lowercase forms for the same
// logical event. Anything unrecognized maps to EventUnknown and is ignored.
func (p Payload) Type() EventType {
	switch p.Event {
	case "CONNECTION_UPDATE", "connection.update":
		return EventConnectionUpdate
	case "GROUPS_UPSERT", "groups.upsert", "GROUP_UPDATE", "group.update":
		return EventGroupUpsert
	case "MESSAGES_UPSERT", "messages.upsert":
		return EventMessageUpsert
	default:
		return EventUnknown
	}
}

// ChatID extracts the chat identifier for worker sharding. Message events
// shard by their remoteJid so one conversation is processed in order;
// everything else shards by instance alone.
func (p Payload) ChatID() string {
	if p.Type() != EventMessageUpsert {
		return ""
	}
	var probe struct {
		Key struct {
			RemoteJID string `json:"remoteJid"`
		} `json:"key"`
	}
	if err := json.Unmarshal(p.Data, &probe); err != nil {
		return ""
	}
	return probe.Key.RemoteJID
}

// ConnectionData is the payload of a connection-state event.
type ConnectionData struct {
	State string `json:"state"`
}

// GroupData is one entry of a group-metadata event.
type GroupData struct {
	ID      string `json:"id"` // provider chat id (JID)
	Subject string `json:"subject"`
}

// DecodeGroupData normalizes the group-metadata payload, which arrives either
// as a single object or as a batch array.
func DecodeGroupData(raw json.RawMessage) []GroupData {
	var many []GroupData
	if err := json.Unmarshal(raw, &many); err == nil {
		return many
	}
	var one GroupData
	if err := json.Unmarshal(raw, &one); err == nil {
		return []GroupData{one}
	}
	return nil
}

// MessageKey identifies the chat and sender of a message event.
type MessageKey struct {
	RemoteJID   string `json:"remoteJid"`
	FromMe      bool   `json:"fromMe"`
	ID          string `json:"id"`
	Participant string `json:"participant"`
}

// MessageContent covers the known payload shapes carrying text. Anything
// else (stickers, reactions, polls) extracts to empty.
type MessageContent struct {
	Conversation        string `json:"conversation"`
	ExtendedTextMessage *struct {
		Text string `json:"text"`
	} `json:"extendedTextMessage"`
	ImageMessage *struct {
		Caption string `json:"caption"`
	} `json:"imageMessage"`
	VideoMessage *struct {
		Caption string `json:"caption"`
	} `json:"videoMessage"`
}

// MessageData is the payload of a message event.
type MessageData struct {
	Key              *MessageKey     `json:"key"`
	PushName         string          `json:"pushName"`
	Message          *MessageContent `json:"message"`
	MessageType      string          `json:"messageType"`
	MessageTimestamp int64           `json:"messageTimestamp"`
}

// RemoteJID returns the chat id, or empty when the key is absent.
func (d MessageData) RemoteJID() string {
	if d.Key == nil {
		return ""
	}
	return d.Key.RemoteJID
}

// FromMe reports whether the message was sent by the instance itself.
func (d MessageData) FromMe() bool {
	return d.Key != nil && d.Key.FromMe
}

// SenderJID returns the best-known sender identifier: the group participant,
// else the chat id, else "unknown".
func (d MessageData) SenderJID() string {
	if d.Key != nil {
		if d.Key.Participant != "" {
			return d.Key.Participant
		}
		if d.Key.RemoteJID != "" {
			return d.Key.RemoteJID
		}
	}
	return "unknown"
}

// IsGroupChat reports whether the chat id denotes a group conversation.
// Direct messages and the status broadcast pseudo-chat are never ingested.
func IsGroupChat(jid string) bool {
	return strings.HasSuffix(jid, "@g.us")
}

// IsStatusBroadcast reports whether the chat id is the broadcast pseudo-chat.
func IsStatusBroadcast(jid string) bool {
	return jid == "status@broadcast"
}

// ExtractContent pulls the plain-text body out of the known message shapes,
// dispatched on the provider's messageType discriminator.
func ExtractContent(d MessageData) string {
	if d.Message == nil {
		return ""
	}
	switch d.MessageType {
	case "conversation":
		return d.Message.Conversation
	case "extendedTextMessage":
		if d.Message.ExtendedTextMessage != nil {
			return d.Message.ExtendedTextMessage.Text
		}
	case "imageMessage":
		if d.Message.ImageMessage != nil {
			return d.Message.ImageMessage.Caption
		}
	case "videoMessage":
		if d.Message.VideoMessage != nil {
			return d.Message.VideoMessage.Caption
		}
	}
	return ""
}

// IWebhookUsecase processes inbound provider events after the HTTP response
// has been returned. Implementations must never let a failure escape; every
// error is terminal for that event and logged only.
type IWebhookUsecase interface {
	// ResolveSecrets returns the candidate shared secrets (env first, then DB
	// fallback); a request validating against any of them is accepted.
	ResolveSecrets(ctx context.Context) []string
	// ProcessEvent runs the full pipeline for one event.
	ProcessEvent(ctx context.Context, payload Payload)
	// LogPayload records the raw payload, best-effort.
	LogPayload(ctx context.Context, payload Payload)
}
