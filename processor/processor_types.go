package processor

import (
	"github.com/withObsrvr/asset-graph-indexer/pkg/event"
	"github.com/withObsrvr/asset-graph-indexer/pkg/store"
)

// ChangeSet is the committed result of one event: every entity written or
// deleted while applying it.
type ChangeSet struct {
	EventID  string         `json:"event_id"`
	Name     string         `json:"name"`
	Address  string         `json:"address"`
	Position event.Position `json:"position"`
	Outcome  string         `json:"outcome"`
	// SkipReason is set when the event was recorded but its domain writes
	// were discarded.
	SkipReason string         `json:"skip_reason,omitempty"`
	Changes    []store.Change `json:"changes"`
}

// Kinds returns the distinct entity kinds touched, in first-seen order.
func (cs ChangeSet) Kinds() []string {
	seen := make(map[string]bool, len(cs.Changes))
	var out []string
	for _, c := range cs.Changes {
		if !seen[c.Kind] {
			seen[c.Kind] = true
			out = append(out, c.Kind)
		}
	}
	return out
}
