package audit

import "time"

// Event is an immutable, append-only record of a call-control command.
//
// Invariants:
// - Events are never updated or deleted.
// - account_code is required for tenancy isolation.
// - Audit capture is best-effort; never block a hangup or transfer on it.
//
// Storage (Postgres): table call_commands with an INSERT-only policy.

type Event struct {
	ID          string `json:"id" db:"id"`
	AccountCode string `json:"account_code" db:"account_code"`

	// Type is the command category.
	Type EventType `json:"type" db:"type"`

	// ActorUserID is the authenticated user that issued the command.
	ActorUserID string `json:"actor_user_id,omitempty" db:"actor_user_id"`
	ActorRole   string `json:"actor_role,omitempty" db:"actor_role"`

	// Channel is the provider channel the command targeted.
	Channel string `json:"channel" db:"channel"`
	// Destination is the transfer target extension; empty for hangups.
	Destination string `json:"destination,omitempty" db:"destination"`

	// Outcome records whether the switch accepted the command.
	Outcome Outcome `json:"outcome" db:"outcome"`
	// Message carries the provider error text on failure.
	Message string `json:"message,omitempty" db:"message"`

	CreatedAt time.Time `json:"created_at" db:"created_at"`
}

type EventType string

const (
	EventTypeHangup   EventType = "hangup"
	EventTypeTransfer EventType = "transfer"
)

type Outcome string

const (
	OutcomeAccepted Outcome = "accepted"
	OutcomeRejected Outcome = "rejected"
)
