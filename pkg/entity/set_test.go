package entity

import (
	"encoding/json"
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	addrA = common.HexToAddress("0xa")
	addrB = common.HexToAddress("0xb")
	addrC = common.HexToAddress("0xc")
)

func TestAddressSetGrantRevoke(t *testing.T) {
	var s AddressSet

	assert.True(t, s.Add(addrA))
	assert.True(t, s.Add(addrB))
	assert.False(t, s.Add(addrA), "duplicate grant must be a no-op")
	assert.True(t, s.Add(addrC))
	assert.Equal(t, AddressSet{addrA, addrB, addrC}, s)

	assert.True(t, s.Remove(addrB))
	assert.Equal(t, AddressSet{addrA, addrC}, s, "remaining members keep their order")
	assert.False(t, s.Remove(addrB), "revoking a non-member is a no-op")
	assert.Equal(t, 2, s.Len())
	assert.False(t, s.Contains(addrB))
}

func TestAddressSetRemoveDoesNotAliasCopies(t *testing.T) {
	s := AddressSet{addrA, addrB, addrC}
	snapshot := s
	s.Remove(addrA)
	assert.Equal(t, AddressSet{addrA, addrB, addrC}, snapshot)
	assert.Equal(t, AddressSet{addrB, addrC}, s)
}

func TestAddressSetJSON(t *testing.T) {
	s := AddressSet{addrA}
	data, err := json.Marshal(s)
	require.NoError(t, err)

	var back AddressSet
	require.NoError(t, json.Unmarshal(data, &back))
	assert.Equal(t, s, back)
}

func TestKeys(t *testing.T) {
	pair := PairID(addrA, addrB)
	assert.Len(t, pair, 2+80)
	assert.Equal(t, AddressID(addrA), pair[:42], "children share the parent's key as prefix")

	parsed, ok := AddressFromID(pair)
	require.True(t, ok)
	assert.Equal(t, addrA, parsed)

	assert.Len(t, IndexBytes(big.NewInt(7)), 32)
	assert.Equal(t, []byte{0, 0, 1, 0}, Uint32Bytes(256))
}

func TestIntHelpers(t *testing.T) {
	assert.Equal(t, int64(5), AddInt(nil, big.NewInt(5)).Int64())
	assert.Equal(t, int64(-5), SubInt(nil, big.NewInt(5)).Int64())
	assert.Equal(t, 0, IntOrZero(nil).Sign())
}
