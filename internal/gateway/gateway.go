// Package gateway abstracts the chat platform. A thin out-of-process relay
// bridges the real chat service to the Kafka topics; message IDs are opaque
// correlation tokens generated here and echoed back on inbound events.
package gateway

import (
	"context"
	"encoding/json"
	"fmt"
)

// SignalAffirmative is the single recognized acknowledgement signal. The
// relay maps the designated emoji/button to this value.
const SignalAffirmative = "confirm"

// ChatGateway is the outbound surface the lifecycle depends on.
type ChatGateway interface {
	// PostToChannel posts content to a channel and returns the message ID.
	PostToChannel(ctx context.Context, channelID, content string) (string, error)

	// EditMessage rewrites a previously posted message.
	EditMessage(ctx context.Context, messageID, content string) error

	// SendDirect sends a direct message to a user and returns the message ID.
	SendDirect(ctx context.Context, userID, content string) (string, error)
}

// Inbound event types.
const (
	EventCommand       = "Command"
	EventAcknowledge   = "Acknowledge"
	EventStorageSelect = "StorageSelect"
)

// Event is the envelope for inbound gateway traffic.
type Event struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data"`
}

// CommandEvent is a slash-command invocation relayed from the chat platform.
// Option values arrive as strings keyed by option name.
type CommandEvent struct {
	Name       string            `json:"name"`
	ActorID    string            `json:"actor_id"`
	ActorRoles []string          `json:"actor_roles"`
	ChannelID  string            `json:"channel_id"`
	Args       map[string]string `json:"args,omitempty"`
}

// AcknowledgeEvent is an affirmative reaction on a dispatched notification.
type AcknowledgeEvent struct {
	MessageID  string   `json:"message_id"`
	ActorID    string   `json:"actor_id"`
	ActorRoles []string `json:"actor_roles"`
	Signal     string   `json:"signal"`
}

// StorageSelectEvent is a staff storage-location selection on a fulfillment
// notification. Location LocationSkip means no storage handoff is needed.
type StorageSelectEvent struct {
	MessageID  string   `json:"message_id"`
	ActorID    string   `json:"actor_id"`
	ActorRoles []string `json:"actor_roles"`
	Location   string   `json:"location"`
	AccessCode string   `json:"access_code"`
}

// LocationSkip is the sentinel storage selection for direct delivery.
const LocationSkip = "skip"

// DecodeEvent unwraps an inbound envelope into its typed payload.
func DecodeEvent(raw []byte) (string, any, error) {
	var env Event
	if err := json.Unmarshal(raw, &env); err != nil {
		return "", nil, fmt.Errorf("failed to decode gateway event: %w", err)
	}
	switch env.Type {
	case EventCommand:
		var ev CommandEvent
		if err := json.Unmarshal(env.Data, &ev); err != nil {
			return env.Type, nil, err
		}
		return env.Type, ev, nil
	case EventAcknowledge:
		var ev AcknowledgeEvent
		if err := json.Unmarshal(env.Data, &ev); err != nil {
			return env.Type, nil, err
		}
		return env.Type, ev, nil
	case EventStorageSelect:
		var ev StorageSelectEvent
		if err := json.Unmarshal(env.Data, &ev); err != nil {
			return env.Type, nil, err
		}
		return env.Type, ev, nil
	default:
		return env.Type, nil, fmt.Errorf("unknown gateway event type %q", env.Type)
	}
}
