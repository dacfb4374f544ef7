package livecalls

import "regexp"

// Leg represents one provider-tracked segment of an active call.
//
// Legs are ephemeral: they exist only for as long as the provider reports them
// and are never persisted. Identity is the Channel string; a channel that
// disappears and later reappears is a new leg.
//
// Multi-tenant invariant: AccountCode is required for any tenant-facing view.
type Leg struct {
	// Channel is the provider-assigned identifier for this leg. It encodes
	// the operating extension (see ParseExtension).
	Channel string `json:"channel"`

	CallerID    string `json:"caller_id"`
	Destination string `json:"destination"`

	State State `json:"state"`

	// DurationSeconds is the provider-reported elapsed time. It is monotonic
	// non-decreasing across polls while the leg persists.
	DurationSeconds int `json:"duration_seconds"`

	AccountCode string `json:"account_code"`

	// Extension is parsed from Channel.
	Extension string `json:"extension"`
}

// State is the domain call state. Raw provider states other than Ring/Up pass
// through unmapped so anomalies stay visible.
type State string

const (
	StateRinging State = "ringing"
	StateTalking State = "talking"
)

// MapState translates a raw provider state into the domain state.
func MapState(raw string) State {
	switch raw {
	case "Ring":
		return StateRinging
	case "Up":
		return StateTalking
	default:
		return State(raw)
	}
}

// channelPattern matches the fixed channel naming scheme used by the switch,
// e.g. "PJSIP/1001-00000abc". The first capture group is the extension.
var channelPattern = regexp.MustCompile(`^PJSIP/(\d+)-`)

// ParseExtension extracts the operating extension from a channel identifier.
// The second return is false when the channel does not follow the scheme;
// such legs are dropped by Reconcile.
func ParseExtension(channel string) (string, bool) {
	m := channelPattern.FindStringSubmatch(channel)
	if m == nil {
		return "", false
	}
	return m[1], true
}
