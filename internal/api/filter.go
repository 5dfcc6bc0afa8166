package api

import (
	"fmt"
	"math/big"
	"strings"

	"github.com/tidwall/gjson"
)

type op int

const (
	opEq op = iota
	opNe
	opGte
	opLte
	opGt
	opLt
)

var opSuffixes = []struct {
	suffix string
	op     op
}{
	{"__ne", opNe},
	{"__gte", opGte},
	{"__lte", opLte},
	{"__gt", opGt},
	{"__lt", opLt},
}

// filter matches one field of an entity body. Field names are gjson paths,
// so nested values are reachable as bond.maturityDate.
type filter struct {
	field string
	op    op
	value string
}

type query struct {
	prefix  string
	after   string
	limit   int
	filters []filter
}

func parseFilter(key, value string) (filter, error) {
	f := filter{field: key, op: opEq, value: value}
	for _, s := range opSuffixes {
		if strings.HasSuffix(key, s.suffix) {
			f.field = strings.TrimSuffix(key, s.suffix)
			f.op = s.op
			break
		}
	}
	if f.field == "" {
		return f, fmt.Errorf("empty filter field in %q", key)
	}
	if f.op != opEq && f.op != opNe {
		if _, ok := new(big.Rat).SetString(value); !ok {
			return f, fmt.Errorf("filter %s needs a number, got %q", key, value)
		}
	}
	return f, nil
}

func (q query) match(body []byte) bool {
	for _, f := range q.filters {
		if !f.match(gjson.GetBytes(body, f.field)) {
			return false
		}
	}
	return true
}

func (f filter) match(res gjson.Result) bool {
	switch f.op {
	case opEq:
		return res.Exists() && strings.EqualFold(res.String(), f.value)
	case opNe:
		return !res.Exists() || !strings.EqualFold(res.String(), f.value)
	}
	if !res.Exists() {
		return false
	}
	// Decimals encode as strings and big integers keep their raw digits.
	got, ok := new(big.Rat).SetString(res.String())
	if !ok {
		return false
	}
	want, _ := new(big.Rat).SetString(f.value)
	cmp := got.Cmp(want)
	switch f.op {
	case opGte:
		return cmp >= 0
	case opLte:
		return cmp <= 0
	case opGt:
		return cmp > 0
	default:
		return cmp < 0
	}
}
