package httpapi

import (
	"time"

	"pbx-console/internal/livecalls"
	"pbx-console/internal/poller"
)

// legView is the wire shape of one call leg. Duration always comes from the
// local tracker so rows keep counting between polls.
type legView struct {
	Channel         string `json:"channel"`
	CallerID        string `json:"caller_id"`
	Destination     string `json:"destination,omitempty"`
	Extension       string `json:"extension"`
	DisplayName     string `json:"display_name,omitempty"`
	State           string `json:"state"`
	DurationSeconds int    `json:"duration_seconds"`
}

type duplicateView struct {
	Extension string   `json:"extension"`
	Count     int      `json:"count"`
	Channels  []string `json:"channels"`
}

type pollerView struct {
	Status      string `json:"status"`
	Retries     int    `json:"retries"`
	LastError   string `json:"last_error,omitempty"`
	LastSuccess string `json:"last_success,omitempty"`
	UpdatedAt   string `json:"updated_at,omitempty"`
}

func toLegViews(legs []livecalls.Leg, tracker *livecalls.DurationTracker, names map[string]string) []legView {
	out := make([]legView, 0, len(legs))
	for _, l := range legs {
		v := legView{
			Channel:         l.Channel,
			CallerID:        l.CallerID,
			Destination:     l.Destination,
			Extension:       l.Extension,
			State:           string(l.State),
			DurationSeconds: l.DurationSeconds,
		}
		if tracker != nil {
			if s, ok := tracker.Seconds(l.Channel); ok {
				v.DurationSeconds = s
			}
		}
		if names != nil {
			v.DisplayName = names[l.Extension]
		}
		out = append(out, v)
	}
	return out
}

func toDuplicateViews(groups []livecalls.DuplicateGroup) []duplicateView {
	out := make([]duplicateView, 0, len(groups))
	for _, g := range groups {
		channels := make([]string, 0, len(g.Legs))
		for _, l := range g.Legs {
			channels = append(channels, l.Channel)
		}
		out = append(out, duplicateView{Extension: g.Extension, Count: g.Count, Channels: channels})
	}
	return out
}

func toPollerView(s poller.Snapshot) pollerView {
	v := pollerView{
		Status:  string(s.Status),
		Retries: s.Retries,
	}
	if s.LastError != nil {
		v.LastError = s.LastError.Error()
	}
	if !s.LastSuccess.IsZero() {
		v.LastSuccess = s.LastSuccess.UTC().Format(time.RFC3339)
	}
	if !s.UpdatedAt.IsZero() {
		v.UpdatedAt = s.UpdatedAt.UTC().Format(time.RFC3339)
	}
	return v
}
