// Package event defines the decoded contract event envelope consumed by the
// projection engine and the typed parameter helpers used to read it.
package event

import (
	"encoding/binary"
	"encoding/json"
	"fmt"
	"sort"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
)

// Event is one decoded log produced by the upstream ABI decoder.
type Event struct {
	Name            string                     `json:"name"`
	Address         common.Address             `json:"address"`
	BlockNumber     uint64                     `json:"blockNumber"`
	BlockTimestamp  int64                      `json:"blockTimestamp"`
	TransactionHash common.Hash                `json:"transactionHash"`
	LogIndex        uint32                     `json:"logIndex"`
	TransactionFrom common.Address             `json:"transactionFrom"`
	Params          map[string]json.RawMessage `json:"params"`
}

// Position orders events within the stream.
type Position struct {
	BlockNumber uint64 `json:"block_number"`
	LogIndex    uint32 `json:"log_index"`
}

// After reports whether p comes strictly after o in stream order.
func (p Position) After(o Position) bool {
	if p.BlockNumber != o.BlockNumber {
		return p.BlockNumber > o.BlockNumber
	}
	return p.LogIndex > o.LogIndex
}

func (p Position) IsZero() bool {
	return p.BlockNumber == 0 && p.LogIndex == 0
}

// Position returns the event's place in the stream.
func (e Event) Position() Position {
	return Position{BlockNumber: e.BlockNumber, LogIndex: e.LogIndex}
}

// ID returns the event identity: transaction hash followed by the big-endian log index.
func (e Event) ID() string {
	buf := make([]byte, common.HashLength+4)
	copy(buf, e.TransactionHash.Bytes())
	binary.BigEndian.PutUint32(buf[common.HashLength:], e.LogIndex)
	return hexutil.Encode(buf)
}

// Decode unmarshals the event params into v.
func (e Event) Decode(v interface{}) error {
	data, err := json.Marshal(e.Params)
	if err != nil {
		return fmt.Errorf("failed to re-encode params of %s: %w", e.Name, err)
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("failed to decode params of %s: %w", e.Name, err)
	}
	return nil
}

// Param is one named parameter rendered as a string.
type Param struct {
	Name  string `json:"name"`
	Value string `json:"value"`
}

// SortedParams returns every parameter ordered by name. String values are
// unquoted, everything else is rendered as compact JSON.
func (e Event) SortedParams() []Param {
	names := make([]string, 0, len(e.Params))
	for name := range e.Params {
		names = append(names, name)
	}
	sort.Strings(names)

	out := make([]Param, 0, len(names))
	for _, name := range names {
		out = append(out, Param{Name: name, Value: renderParam(e.Params[name])})
	}
	return out
}

// Addresses returns the distinct addresses found in the event params, in
// parameter name order. Arrays of addresses are included.
func (e Event) Addresses() []common.Address {
	seen := make(map[common.Address]bool)
	var out []common.Address
	add := func(a common.Address) {
		if a == (common.Address{}) || seen[a] {
			return
		}
		seen[a] = true
		out = append(out, a)
	}
	for _, p := range e.SortedParams() {
		raw := e.Params[p.Name]
		var single string
		if err := json.Unmarshal(raw, &single); err == nil {
			if isAddress(single) {
				add(common.HexToAddress(single))
			}
			continue
		}
		var many []string
		if err := json.Unmarshal(raw, &many); err == nil {
			for _, s := range many {
				if isAddress(s) {
					add(common.HexToAddress(s))
				}
			}
		}
	}
	return out
}

func isAddress(s string) bool {
	return len(s) == 2+2*common.AddressLength && common.IsHexAddress(s)
}

func renderParam(raw json.RawMessage) string {
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	return string(raw)
}
