// Package alarm pushes operational alarms to an MQTT broker so monitoring
// can react without polling the dashboard API.
package alarm

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"sync"
	"time"
)

const duplicateTopicPrefix = "pbx/alarms/duplicate-extension"

// DuplicateAlarm is the wire payload for a duplicate-extension alarm.
type DuplicateAlarm struct {
	AccountCode string    `json:"account_code"`
	Extension   string    `json:"extension"`
	LegCount    int       `json:"leg_count"`
	RaisedAt    time.Time `json:"raised_at"`
}

// Notifier publishes duplicate-extension alarms, raising each condition once.
// A duplicate that persists across consecutive observations stays silent until
// it clears and reappears.
type Notifier struct {
	pub Publisher
	log *slog.Logger
	now func() time.Time

	mu     sync.Mutex
	active map[string]struct{} // accountCode + "/" + extension
}

func NewNotifier(pub Publisher, log *slog.Logger) *Notifier {
	if log == nil {
		log = slog.Default()
	}
	return &Notifier{
		pub:    pub,
		log:    log,
		now:    time.Now,
		active: make(map[string]struct{}),
	}
}

// Duplicate is one extension observed on more than one concurrent leg.
type Duplicate struct {
	Extension string
	LegCount  int
}

// ObserveDuplicates reconciles the currently observed duplicates for an
// account against the raised set, publishing alarms for new conditions and
// clearing ones that resolved. Publish failures are logged, not returned;
// alarms must never disturb the polling pipeline.
func (n *Notifier) ObserveDuplicates(ctx context.Context, accountCode string, dups []Duplicate) {
	if n.pub == nil {
		return
	}

	current := make(map[string]Duplicate, len(dups))
	for _, d := range dups {
		current[accountCode+"/"+d.Extension] = d
	}

	n.mu.Lock()
	var raise []Duplicate
	for key, d := range current {
		if _, ok := n.active[key]; !ok {
			n.active[key] = struct{}{}
			raise = append(raise, d)
		}
	}
	for key := range n.active {
		if strings.HasPrefix(key, accountCode+"/") {
			if _, ok := current[key]; !ok {
				delete(n.active, key)
			}
		}
	}
	n.mu.Unlock()

	sort.Slice(raise, func(i, j int) bool { return raise[i].Extension < raise[j].Extension })
	for _, d := range raise {
		payload, err := json.Marshal(DuplicateAlarm{
			AccountCode: accountCode,
			Extension:   d.Extension,
			LegCount:    d.LegCount,
			RaisedAt:    n.now().UTC(),
		})
		if err != nil {
			continue
		}
		topic := fmt.Sprintf("%s/%s", duplicateTopicPrefix, accountCode)
		if err := n.pub.Publish(ctx, topic, payload); err != nil {
			n.log.Warn("alarm publish failed", "topic", topic, "extension", d.Extension, "err", err)
		}
	}
}
