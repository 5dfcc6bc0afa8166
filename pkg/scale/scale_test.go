package scale

import (
	"encoding/json"
	"math/big"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestToDecimals(t *testing.T) {
	tests := []struct {
		name     string
		exact    string
		decimals uint8
		want     string
	}{
		{"whole units", "1000000000000000000", 18, "1"},
		{"fraction", "1500000", 6, "1.5"},
		{"zero decimals", "42", 0, "42"},
		{"smallest unit", "1", 18, "0.000000000000000001"},
		{"zero", "0", 18, "0"},
		{"negative", "-250", 2, "-2.5"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			exact, ok := new(big.Int).SetString(tt.exact, 10)
			require.True(t, ok)
			assert.Equal(t, tt.want, ToDecimals(exact, tt.decimals).String())
		})
	}
}

func TestRoundTrip(t *testing.T) {
	values := []string{"0", "1", "999999999999999999999999", "123456789012345678901234567890"}
	for _, decimals := range []uint8{0, 2, 6, 18, 36} {
		for _, v := range values {
			exact, _ := new(big.Int).SetString(v, 10)
			back, err := FromDecimals(ToDecimals(exact, decimals), decimals)
			require.NoError(t, err)
			assert.Equal(t, 0, exact.Cmp(back), "decimals=%d value=%s", decimals, v)
		}
	}
}

func TestFromDecimalsRejectsExtraPrecision(t *testing.T) {
	_, err := FromDecimals(MustParseDecimal("1.234"), 2)
	assert.Error(t, err)

	v, err := FromDecimals(MustParseDecimal("1.23"), 2)
	require.NoError(t, err)
	assert.Equal(t, int64(123), v.Int64())
}

func TestToDecimalsNil(t *testing.T) {
	assert.True(t, ToDecimals(nil, 18).IsZero())
}

func TestDecimalArithmetic(t *testing.T) {
	a := MustParseDecimal("1.25")
	b := MustParseDecimal("0.75")

	assert.Equal(t, "2", a.Add(b).String())
	assert.Equal(t, "0.5", a.Sub(b).String())
	assert.Equal(t, "0.9375", a.Mul(b).String())
	assert.Equal(t, "-1.25", a.Neg().String())
	assert.Equal(t, 1, a.Cmp(b))
	assert.True(t, Zero.IsZero())
	assert.Equal(t, "0", Zero.String())
}

func TestDecimalJSON(t *testing.T) {
	type doc struct {
		Value Decimal `json:"value"`
	}
	data, err := json.Marshal(doc{Value: MustParseDecimal("10.01")})
	require.NoError(t, err)
	assert.JSONEq(t, `{"value":"10.01"}`, string(data))

	var out doc
	require.NoError(t, json.Unmarshal(data, &out))
	assert.Equal(t, "10.01", out.Value.String())

	require.NoError(t, json.Unmarshal([]byte(`{"value":3.5}`), &out))
	assert.Equal(t, "3.5", out.Value.String())
}

func TestPercent(t *testing.T) {
	assert.Equal(t, 0.0, Percent(big.NewInt(5), big.NewInt(0)))
	assert.Equal(t, 50.0, Percent(big.NewInt(5), big.NewInt(10)))
	assert.Equal(t, 200.0, Percent(big.NewInt(20), big.NewInt(10)))
}

func TestParseDecimalInvalid(t *testing.T) {
	for _, s := range []string{"", "abc", "1/3", "1e5"} {
		_, err := ParseDecimal(s)
		assert.Error(t, err, s)
	}
}
