package checkpoint

import (
	"time"

	"github.com/withObsrvr/asset-graph-indexer/pkg/event"
)

// Checkpoint is the saved stream position of a pipeline.
type Checkpoint struct {
	Version string `json:"version"`

	PipelineName string `json:"pipeline_name"`

	// ConfigHash detects configuration changes between runs.
	ConfigHash string `json:"config_hash"`

	// Position is the last event committed to the entity store.
	Position event.Position `json:"position"`

	SavedAt time.Time `json:"saved_at"`

	Statistics *Stats `json:"statistics,omitempty"`
}

// Stats are the counters of the run that wrote the checkpoint.
type Stats struct {
	Applied       uint64 `json:"applied"`
	Skipped       uint64 `json:"skipped"`
	UptimeSeconds int64  `json:"uptime_seconds"`
}

// CheckpointVersion is the current checkpoint format version.
const CheckpointVersion = "2.0"
