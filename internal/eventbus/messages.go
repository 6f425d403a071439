// Package eventbus implements the subscription-based push channel:
// subscribers, fan-out of status/membership events, and liveness pings.
// The single-writer Run() select-loop, non-blocking per-client send that
// drops messages for a full buffer, and the read/write pump split are kept
// nearly structurally unchanged from the teacher's internal/ws/hub.go —
// only the payload and subscription-matching model changed.
package eventbus

import "time"

// InboundType discriminates a client->server push-channel frame.
type InboundType string

const (
	InboundSubscribe   InboundType = "subscribe"
	InboundUnsubscribe InboundType = "unsubscribe"
	InboundPing        InboundType = "ping"
)

// Inbound is a tagged-union client message. ServerID is optional for
// subscribe/unsubscribe: absent, it flips the "all" flag instead of
// modifying the per-subscriber set.
type Inbound struct {
	Type     InboundType `json:"type"`
	ServerID string      `json:"serverId,omitempty"`
}

// OutboundType discriminates a server->client push-channel frame.
type OutboundType string

const (
	OutboundServerStatus OutboundType = "server_status"
	OutboundServerUpdate OutboundType = "server_update"
	OutboundError        OutboundType = "error"
	OutboundPong         OutboundType = "pong"
)

// MembershipAction classifies a server_update event.
type MembershipAction string

const (
	MembershipCreated MembershipAction = "created"
	MembershipUpdated MembershipAction = "updated"
	MembershipDeleted MembershipAction = "deleted"
)

// Outbound is a tagged-union server message.
type Outbound struct {
	Type OutboundType `json:"type"`

	// server_status
	ServerID    string     `json:"serverId,omitempty"`
	Status      string     `json:"status,omitempty"`
	StartedAt   *time.Time `json:"startedAt,omitempty"`
	UpdateStage string     `json:"updateStage,omitempty"`

	// server_update
	Action MembershipAction `json:"action,omitempty"`

	// error
	Message string `json:"message,omitempty"`
	Code    string `json:"code,omitempty"`
}

func StatusEvent(serverID, status string, startedAt *time.Time, updateStage string) Outbound {
	return Outbound{
		Type:        OutboundServerStatus,
		ServerID:    serverID,
		Status:      status,
		StartedAt:   startedAt,
		UpdateStage: updateStage,
	}
}

func MembershipEvent(serverID string, action MembershipAction) Outbound {
	return Outbound{Type: OutboundServerUpdate, ServerID: serverID, Action: action}
}

func ErrorEvent(message, code string) Outbound {
	return Outbound{Type: OutboundError, Message: message, Code: code}
}

func PongEvent() Outbound {
	return Outbound{Type: OutboundPong}
}
