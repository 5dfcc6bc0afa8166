package entity

import (
	"github.com/ethereum/go-ethereum/common"
)

// Factory is a contract that deploys instances of one contract kind.
type Factory struct {
	ID             string         `json:"id"`
	Address        common.Address `json:"address"`
	Kind           string         `json:"kind"`
	InstancesCount int64          `json:"instancesCount"`
	FirstSeenAt    int64          `json:"firstSeenAt"`
	LastCreatedAt  int64          `json:"lastCreatedAt"`
}

func (f *Factory) EntityKind() string { return KindFactory }
func (f *Factory) EntityID() string   { return f.ID }

// DataSource records that events from Address are routed to the handlers of Kind.
type DataSource struct {
	ID         string          `json:"id"`
	Address    common.Address  `json:"address"`
	Kind       string          `json:"kind"`
	Factory    *common.Address `json:"factory,omitempty"`
	StartBlock uint64          `json:"startBlock"`
	Static     bool            `json:"static"`
}

func (d *DataSource) EntityKind() string { return KindDataSource }
func (d *DataSource) EntityID() string   { return d.ID }

// ProcessedEvent marks an event id as applied.
type ProcessedEvent struct {
	ID          string `json:"id"`
	BlockNumber uint64 `json:"blockNumber"`
	LogIndex    uint32 `json:"logIndex"`
	Outcome     string `json:"outcome"`
}

func (p *ProcessedEvent) EntityKind() string { return KindProcessedEvent }
func (p *ProcessedEvent) EntityID() string   { return p.ID }
