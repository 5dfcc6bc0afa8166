package api

import (
	"context"
	"encoding/json"
	"math/big"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/withObsrvr/asset-graph-indexer/pkg/entity"
	"github.com/withObsrvr/asset-graph-indexer/pkg/event"
	"github.com/withObsrvr/asset-graph-indexer/pkg/store"
)

var (
	bondAddr   = common.HexToAddress("0x00000000000000000000000000000000000000b1")
	equityAddr = common.HexToAddress("0x00000000000000000000000000000000000000e1")
	alice      = common.HexToAddress("0x000000000000000000000000000000000000A11C")
	bob        = common.HexToAddress("0x0000000000000000000000000000000000000B0B")
)

func seed(t *testing.T) *store.Memory {
	t.Helper()
	mem := store.NewMemory()
	var changes []store.Change
	put := func(rec entity.Record) {
		body, err := json.Marshal(rec)
		require.NoError(t, err)
		changes = append(changes, store.Change{Op: store.OpPut, Kind: rec.EntityKind(), ID: rec.EntityID(), Body: body})
	}
	put(&entity.Asset{ID: entity.AddressID(bondAddr), Address: bondAddr, Type: entity.AssetBond, Symbol: "BND", Decimals: 18, TotalSupplyExact: big.NewInt(300)})
	put(&entity.Asset{ID: entity.AddressID(equityAddr), Address: equityAddr, Type: entity.AssetEquity, Symbol: "EQT", Decimals: 0, TotalSupplyExact: big.NewInt(50)})

	for _, b := range []struct {
		asset, holder common.Address
		value         int64
	}{
		{bondAddr, alice, 100},
		{bondAddr, bob, 200},
		{equityAddr, alice, 50},
	} {
		bal := entity.NewBalance(b.asset, b.holder, false)
		bal.ValueExact = big.NewInt(b.value)
		put(bal)
	}
	require.NoError(t, mem.Commit(context.Background(), changes))
	return mem
}

func newTestServer(t *testing.T) *Server {
	return New(Config{
		Reader:       seed(t),
		Position:     func() event.Position { return event.Position{BlockNumber: 42, LogIndex: 3} },
		DefaultLimit: 10,
		MaxLimit:     2,
	})
}

func get(t *testing.T, s *Server, path string) (*httptest.ResponseRecorder, map[string]interface{}) {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, path, nil)
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)
	var body map[string]interface{}
	if rec.Body.Len() > 0 {
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body), rec.Body.String())
	}
	return rec, body
}

func TestHealth(t *testing.T) {
	rec, body := get(t, newTestServer(t), "/healthz")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ok", body["status"])
	pos := body["position"].(map[string]interface{})
	assert.EqualValues(t, 42, pos["block_number"])
	assert.EqualValues(t, 3, pos["log_index"])
}

func TestGetEntity(t *testing.T) {
	s := newTestServer(t)

	rec, body := get(t, s, "/entities/asset/"+bondAddr.Hex())
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "BND", body["symbol"])
	assert.Equal(t, "bond", body["type"])

	rec, _ = get(t, s, "/entities/asset/0x00000000000000000000000000000000000000ff")
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec, body = get(t, s, "/entities/widget/0x01")
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Contains(t, body["error"], "unknown entity kind")
}

func TestListEntities(t *testing.T) {
	s := newTestServer(t)

	tests := []struct {
		name  string
		path  string
		count int
	}{
		{"all within max limit", "/entities/asset", 2},
		{"equality filter", "/entities/asset?type=equity", 1},
		{"case insensitive", "/entities/asset?symbol=bnd", 1},
		{"not equal", "/entities/asset?type__ne=bond", 1},
		{"numeric gte", "/entities/balance?valueExact__gte=100", 2},
		{"numeric lt", "/entities/balance?valueExact__lt=100", 1},
		{"missing field", "/entities/asset?bond.maturityDate__gt=0", 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec, body := get(t, s, tt.path)
			require.Equal(t, http.StatusOK, rec.Code)
			assert.EqualValues(t, tt.count, body["count"])
			assert.Len(t, body["items"], tt.count)
		})
	}
}

func TestListEntitiesPaging(t *testing.T) {
	s := newTestServer(t)

	rec, body := get(t, s, "/entities/balance?limit=2")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.EqualValues(t, 2, body["count"])
	next, ok := body["next"].(string)
	require.True(t, ok, "expected a next cursor")

	_, body = get(t, s, "/entities/balance?limit=2&after="+next)
	assert.EqualValues(t, 1, body["count"])
	assert.Nil(t, body["next"])
}

func TestListEntitiesBadQuery(t *testing.T) {
	s := newTestServer(t)

	rec, _ := get(t, s, "/entities/balance?limit=zero")
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec, _ = get(t, s, "/entities/balance?valueExact__gte=lots")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestAssetBalances(t *testing.T) {
	rec, body := get(t, newTestServer(t), "/assets/"+bondAddr.Hex()+"/balances")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.EqualValues(t, 2, body["count"])
	for _, item := range body["items"].([]interface{}) {
		assert.Equal(t, entity.AddressID(bondAddr), item.(map[string]interface{})["asset"])
	}
}

func TestAccountBalances(t *testing.T) {
	s := newTestServer(t)

	rec, body := get(t, s, "/accounts/"+alice.Hex()+"/balances")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.EqualValues(t, 2, body["count"])

	rec, _ = get(t, s, "/accounts/nobody/balances")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}
