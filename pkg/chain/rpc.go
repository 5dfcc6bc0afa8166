package chain

import (
	"context"
	"fmt"
	"math/big"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/ethclient"
	"golang.org/x/time/rate"
)

// viewABI declares the view methods read when seeding entities.
const viewABI = `[
	{"type":"function","name":"name","stateMutability":"view","inputs":[],"outputs":[{"type":"string"}]},
	{"type":"function","name":"symbol","stateMutability":"view","inputs":[],"outputs":[{"type":"string"}]},
	{"type":"function","name":"decimals","stateMutability":"view","inputs":[],"outputs":[{"type":"uint8"}]},
	{"type":"function","name":"totalSupply","stateMutability":"view","inputs":[],"outputs":[{"type":"uint256"}]},
	{"type":"function","name":"maturityDate","stateMutability":"view","inputs":[],"outputs":[{"type":"uint256"}]},
	{"type":"function","name":"faceValue","stateMutability":"view","inputs":[],"outputs":[{"type":"uint256"}]},
	{"type":"function","name":"underlyingAsset","stateMutability":"view","inputs":[],"outputs":[{"type":"address"}]},
	{"type":"function","name":"equityClass","stateMutability":"view","inputs":[],"outputs":[{"type":"string"}]},
	{"type":"function","name":"equityCategory","stateMutability":"view","inputs":[],"outputs":[{"type":"string"}]},
	{"type":"function","name":"fundClass","stateMutability":"view","inputs":[],"outputs":[{"type":"string"}]},
	{"type":"function","name":"fundCategory","stateMutability":"view","inputs":[],"outputs":[{"type":"string"}]},
	{"type":"function","name":"managementFeeBps","stateMutability":"view","inputs":[],"outputs":[{"type":"uint16"}]},
	{"type":"function","name":"collateral","stateMutability":"view","inputs":[],"outputs":[{"type":"uint256"}]}
]`

// EVMClient defines the subset of the Ethereum RPC used for static queries.
type EVMClient interface {
	CodeAt(ctx context.Context, account common.Address, blockNumber *big.Int) ([]byte, error)
	CallContract(ctx context.Context, call ethereum.CallMsg, blockNumber *big.Int) ([]byte, error)
}

// RPCReader answers queries against an Ethereum node.
type RPCReader struct {
	client  EVMClient
	abi     abi.ABI
	limiter *rate.Limiter
	timeout time.Duration
}

// RPCConfig configures an RPCReader.
type RPCConfig struct {
	URL               string
	RequestsPerSecond float64
	Burst             int
	Timeout           time.Duration
}

// DialRPC connects to the node at cfg.URL.
func DialRPC(cfg RPCConfig) (*RPCReader, error) {
	url := strings.TrimSpace(cfg.URL)
	if url == "" {
		return nil, fmt.Errorf("rpc url required")
	}
	client, err := ethclient.Dial(url)
	if err != nil {
		return nil, fmt.Errorf("failed to dial %s: %w", url, err)
	}
	return NewRPCReader(client, cfg)
}

// NewRPCReader wraps an existing client.
func NewRPCReader(client EVMClient, cfg RPCConfig) (*RPCReader, error) {
	parsed, err := abi.JSON(strings.NewReader(viewABI))
	if err != nil {
		return nil, fmt.Errorf("failed to parse view abi: %w", err)
	}
	r := &RPCReader{client: client, abi: parsed, timeout: cfg.Timeout}
	if r.timeout <= 0 {
		r.timeout = 10 * time.Second
	}
	if cfg.RequestsPerSecond > 0 {
		burst := cfg.Burst
		if burst <= 0 {
			burst = 1
		}
		r.limiter = rate.NewLimiter(rate.Limit(cfg.RequestsPerSecond), burst)
	}
	return r, nil
}

func (r *RPCReader) wait(ctx context.Context) error {
	if r.limiter == nil {
		return nil
	}
	return r.limiter.Wait(ctx)
}

func (r *RPCReader) IsContract(ctx context.Context, addr common.Address, block uint64) (bool, error) {
	if err := r.wait(ctx); err != nil {
		return false, err
	}
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	code, err := r.client.CodeAt(ctx, addr, new(big.Int).SetUint64(block))
	if err != nil {
		return false, fmt.Errorf("code at %s: %w", addr.Hex(), err)
	}
	return len(code) > 0, nil
}

func (r *RPCReader) Call(ctx context.Context, addr common.Address, method string, block uint64) (interface{}, error) {
	data, err := r.abi.Pack(method)
	if err != nil {
		return nil, fmt.Errorf("pack %s: %w", method, err)
	}
	if err := r.wait(ctx); err != nil {
		return nil, err
	}
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	out, err := r.client.CallContract(ctx, ethereum.CallMsg{To: &addr, Data: data}, new(big.Int).SetUint64(block))
	if err != nil {
		return nil, fmt.Errorf("%w: %s on %s: %v", ErrReverted, method, addr.Hex(), err)
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("%w: %s on %s returned no data", ErrReverted, method, addr.Hex())
	}
	values, err := r.abi.Unpack(method, out)
	if err != nil {
		return nil, fmt.Errorf("unpack %s: %w", method, err)
	}
	if len(values) != 1 {
		return nil, fmt.Errorf("unpack %s: expected 1 output, got %d", method, len(values))
	}
	return values[0], nil
}
