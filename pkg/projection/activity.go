package projection

import (
	"github.com/ethereum/go-ethereum/common"

	"github.com/withObsrvr/asset-graph-indexer/pkg/entity"
)

// recordActivity writes the audit entry of the current event and bumps the
// activity counter of every account it involves, the emitter included.
func recordActivity(c *Context, outcome string) error {
	involved := c.Event.Addresses()
	touched := make(map[common.Address]bool, len(involved)+1)
	bump := func(a common.Address) error {
		if touched[a] {
			return nil
		}
		touched[a] = true
		return c.markAccount(a, func(acct *entity.Account) {
			acct.ActivityEventsCount++
		})
	}
	for _, a := range involved {
		if err := bump(a); err != nil {
			return err
		}
	}
	if err := bump(c.Emitter()); err != nil {
		return err
	}

	params := c.Event.SortedParams()
	values := make([]entity.ActivityValue, len(params))
	for i, p := range params {
		values[i] = entity.ActivityValue{Name: p.Name, Value: p.Value}
	}
	if involved == nil {
		involved = []common.Address{}
	}
	return c.Save(&entity.ActivityLogEntry{
		ID:             c.Event.ID(),
		EventName:      c.Event.Name,
		Emitter:        c.Emitter(),
		ContractKind:   string(c.Kind),
		Sender:         c.Event.TransactionFrom,
		BlockNumber:    c.Event.BlockNumber,
		BlockTimestamp: c.Event.BlockTimestamp,
		TxHash:         c.Event.TransactionHash,
		LogIndex:       c.Event.LogIndex,
		Involved:       involved,
		Values:         values,
		Outcome:        outcome,
	})
}
