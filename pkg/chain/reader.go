// Package chain answers static chain queries for the projection engine:
// whether an address holds code and the results of read-only view calls,
// both pinned to the block of the event being applied.
package chain

import (
	"context"
	"errors"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"

	"github.com/withObsrvr/asset-graph-indexer/pkg/metrics"
)

// ErrReverted is returned when a view call reverts or returns no data.
var ErrReverted = errors.New("view call reverted")

// Reader performs deterministic chain queries at a given block.
type Reader interface {
	IsContract(ctx context.Context, addr common.Address, block uint64) (bool, error)
	// Call invokes a zero-argument view method and returns its single output.
	Call(ctx context.Context, addr common.Address, method string, block uint64) (interface{}, error)
}

// Views reads view methods of one contract, substituting defaults when a
// call fails. Failures are logged and never returned.
type Views struct {
	ctx    context.Context
	reader Reader
	addr   common.Address
	block  uint64
	logger *zap.Logger
}

// NewViews binds reader to a contract at a block.
func NewViews(ctx context.Context, reader Reader, addr common.Address, block uint64, logger *zap.Logger) *Views {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Views{ctx: ctx, reader: reader, addr: addr, block: block, logger: logger}
}

func (v *Views) call(method string) (interface{}, bool) {
	if v.reader == nil {
		return nil, false
	}
	out, err := v.reader.Call(v.ctx, v.addr, method, v.block)
	if err != nil {
		metrics.Indexer().ObserveViewCall(method, "reverted")
		v.logger.Warn("view call failed, using default",
			zap.String("contract", v.addr.Hex()),
			zap.String("method", method),
			zap.Uint64("block", v.block),
			zap.Error(err))
		return nil, false
	}
	metrics.Indexer().ObserveViewCall(method, "ok")
	return out, true
}

func (v *Views) mismatch(method string, out interface{}) {
	v.logger.Warn("unexpected view call result type, using default",
		zap.String("contract", v.addr.Hex()),
		zap.String("method", method),
		zap.Any("result", out))
}

func (v *Views) String(method, def string) string {
	out, ok := v.call(method)
	if !ok {
		return def
	}
	s, ok := out.(string)
	if !ok {
		v.mismatch(method, out)
		return def
	}
	return s
}

func (v *Views) Uint8(method string, def uint8) uint8 {
	out, ok := v.call(method)
	if !ok {
		return def
	}
	switch n := out.(type) {
	case uint8:
		return n
	case *big.Int:
		if n.IsUint64() && n.Uint64() <= 255 {
			return uint8(n.Uint64())
		}
	}
	v.mismatch(method, out)
	return def
}

func (v *Views) Uint16(method string, def uint16) uint16 {
	out, ok := v.call(method)
	if !ok {
		return def
	}
	switch n := out.(type) {
	case uint16:
		return n
	case uint8:
		return uint16(n)
	case *big.Int:
		if n.IsUint64() && n.Uint64() <= 65535 {
			return uint16(n.Uint64())
		}
	}
	v.mismatch(method, out)
	return def
}

// Big returns 0 when the call fails.
func (v *Views) Big(method string) *big.Int {
	out, ok := v.call(method)
	if !ok {
		return new(big.Int)
	}
	switch n := out.(type) {
	case *big.Int:
		return new(big.Int).Set(n)
	case uint64:
		return new(big.Int).SetUint64(n)
	}
	v.mismatch(method, out)
	return new(big.Int)
}

// Address returns the zero address when the call fails.
func (v *Views) Address(method string) common.Address {
	out, ok := v.call(method)
	if !ok {
		return common.Address{}
	}
	a, ok := out.(common.Address)
	if !ok {
		v.mismatch(method, out)
		return common.Address{}
	}
	return a
}

func (v *Views) Bool(method string, def bool) bool {
	out, ok := v.call(method)
	if !ok {
		return def
	}
	b, ok := out.(bool)
	if !ok {
		v.mismatch(method, out)
		return def
	}
	return b
}
