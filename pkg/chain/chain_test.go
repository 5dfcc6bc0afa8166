package chain

import (
	"context"
	"errors"
	"math/big"
	"strings"
	"testing"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeClient struct {
	code       map[common.Address][]byte
	outputs    map[string][]byte
	lastBlock  *big.Int
	callErr    error
	codeCalled int
}

func (f *fakeClient) CodeAt(_ context.Context, account common.Address, blockNumber *big.Int) ([]byte, error) {
	f.codeCalled++
	f.lastBlock = blockNumber
	return f.code[account], nil
}

func (f *fakeClient) CallContract(_ context.Context, call ethereum.CallMsg, blockNumber *big.Int) ([]byte, error) {
	f.lastBlock = blockNumber
	if f.callErr != nil {
		return nil, f.callErr
	}
	return f.outputs[common.Bytes2Hex(call.Data[:4])], nil
}

func encode(t *testing.T, method string, value interface{}) (string, []byte) {
	t.Helper()
	parsed, err := abi.JSON(strings.NewReader(viewABI))
	require.NoError(t, err)
	m := parsed.Methods[method]
	out, err := m.Outputs.Pack(value)
	require.NoError(t, err)
	return common.Bytes2Hex(m.ID), out
}

func TestRPCReaderCall(t *testing.T) {
	token := common.HexToAddress("0x100")
	client := &fakeClient{code: map[common.Address][]byte{token: {0x60}}, outputs: map[string][]byte{}}

	for method, value := range map[string]interface{}{
		"decimals":        uint8(6),
		"symbol":          "BND",
		"faceValue":       big.NewInt(1000),
		"underlyingAsset": common.HexToAddress("0x200"),
	} {
		sel, out := encode(t, method, value)
		client.outputs[sel] = out
	}

	r, err := NewRPCReader(client, RPCConfig{RequestsPerSecond: 1000})
	require.NoError(t, err)
	ctx := context.Background()

	isContract, err := r.IsContract(ctx, token, 42)
	require.NoError(t, err)
	assert.True(t, isContract)
	assert.Equal(t, int64(42), client.lastBlock.Int64(), "queries are pinned to the event block")

	eoa, err := r.IsContract(ctx, common.HexToAddress("0x999"), 42)
	require.NoError(t, err)
	assert.False(t, eoa)

	views := NewViews(ctx, r, token, 42, nil)
	assert.Equal(t, uint8(6), views.Uint8("decimals", 18))
	assert.Equal(t, "BND", views.String("symbol", ""))
	assert.Equal(t, int64(1000), views.Big("faceValue").Int64())
	assert.Equal(t, common.HexToAddress("0x200"), views.Address("underlyingAsset"))

	// No output registered: the call returns empty data and reverts.
	assert.Equal(t, "", views.String("name", ""))
	assert.Equal(t, uint16(0), views.Uint16("managementFeeBps", 0))
}

func TestRPCReaderCallError(t *testing.T) {
	client := &fakeClient{callErr: errors.New("execution reverted")}
	r, err := NewRPCReader(client, RPCConfig{})
	require.NoError(t, err)

	_, err = r.Call(context.Background(), common.HexToAddress("0x1"), "decimals", 1)
	assert.ErrorIs(t, err, ErrReverted)

	_, err = r.Call(context.Background(), common.HexToAddress("0x1"), "notAMethod", 1)
	assert.Error(t, err)
}

func TestViewsDefaults(t *testing.T) {
	addr := common.HexToAddress("0x1")
	static := NewStaticReader().SetValue(addr, "decimals", "not a number")
	views := NewViews(context.Background(), static, addr, 1, nil)

	assert.Equal(t, uint8(18), views.Uint8("decimals", 18), "type mismatch falls back")
	assert.Equal(t, "fallback", views.String("name", "fallback"))
	assert.Equal(t, 0, views.Big("maturityDate").Sign())
	assert.Equal(t, common.Address{}, views.Address("underlyingAsset"))
	assert.True(t, views.Bool("paused", true))

	nilViews := NewViews(context.Background(), nil, addr, 1, nil)
	assert.Equal(t, uint8(18), nilViews.Uint8("decimals", 18))
}

func TestStaticReader(t *testing.T) {
	addr := common.HexToAddress("0x1")
	s := NewStaticReader().SetContract(addr).SetValue(common.HexToAddress("0x2"), "symbol", "EQ")
	ctx := context.Background()

	ok, _ := s.IsContract(ctx, addr, 0)
	assert.True(t, ok)
	ok, _ = s.IsContract(ctx, common.HexToAddress("0x2"), 0)
	assert.True(t, ok, "setting a value marks the address as a contract")
	ok, _ = s.IsContract(ctx, common.HexToAddress("0x3"), 0)
	assert.False(t, ok)

	v, err := s.Call(ctx, common.HexToAddress("0x2"), "symbol", 0)
	require.NoError(t, err)
	assert.Equal(t, "EQ", v)

	_, err = s.Call(ctx, addr, "symbol", 0)
	assert.ErrorIs(t, err, ErrReverted)
}
