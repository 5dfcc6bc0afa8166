package manifest

import (
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/tidwall/gjson"

	"github.com/withObsrvr/asset-graph-indexer/pkg/event"
)

// Entry is one valid allocation.
type Entry struct {
	Recipient common.Address
	Amount    *big.Int
	Index     *big.Int
}

// Skipped describes an entry that was dropped.
type Skipped struct {
	Key    string
	Reason string
}

// Result holds the allocations of a manifest in document order.
type Result struct {
	Entries []Entry
	Skipped []Skipped
}

// Parse reads a manifest of the form {address: amount} or
// {address: {"amount": ..., "index": ...}}. The allocations may also be
// nested under a top-level "claims" or "recipients" object. Invalid entries
// are skipped one by one; only a document that is not a JSON object fails.
func Parse(doc []byte) (Result, error) {
	var res Result
	if !gjson.ValidBytes(doc) {
		return res, fmt.Errorf("manifest is not valid JSON")
	}
	root := gjson.ParseBytes(doc)
	if !root.IsObject() {
		return res, fmt.Errorf("manifest is not a JSON object")
	}
	for _, wrapper := range []string{"claims", "recipients"} {
		if nested := root.Get(wrapper); nested.IsObject() {
			root = nested
			break
		}
	}

	seen := make(map[common.Address]bool)
	root.ForEach(func(key, value gjson.Result) bool {
		entry, reason := parseEntry(key.String(), value)
		if reason == "" && seen[entry.Recipient] {
			reason = "duplicate recipient"
		}
		if reason != "" {
			res.Skipped = append(res.Skipped, Skipped{Key: key.String(), Reason: reason})
			return true
		}
		seen[entry.Recipient] = true
		res.Entries = append(res.Entries, entry)
		return true
	})
	return res, nil
}

func parseEntry(key string, value gjson.Result) (Entry, string) {
	if !common.IsHexAddress(key) {
		return Entry{}, "invalid recipient address"
	}
	entry := Entry{Recipient: common.HexToAddress(key)}
	if entry.Recipient == (common.Address{}) {
		return Entry{}, "zero recipient address"
	}

	amount := value
	if value.IsObject() {
		amount = value.Get("amount")
		if idx := value.Get("index"); idx.Exists() {
			i, err := event.ParseUint256(idx.String())
			if err != nil {
				return Entry{}, "invalid index"
			}
			entry.Index = i
		}
	}
	if amount.Type != gjson.String && amount.Type != gjson.Number {
		return Entry{}, "missing amount"
	}
	// Raw keeps integers beyond float64 precision intact.
	raw := amount.String()
	if amount.Type == gjson.Number {
		raw = amount.Raw
	}
	v, err := event.ParseUint256(raw)
	if err != nil {
		return Entry{}, "invalid amount"
	}
	if v.Sign() == 0 {
		return Entry{}, "zero amount"
	}
	entry.Amount = v
	return entry, ""
}
