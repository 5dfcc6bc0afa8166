// Package entity holds the projected entity graph: the persisted record
// shapes and the deterministic keys they are stored under.
package entity

import (
	"encoding/binary"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
)

// Record is implemented by every persisted entity.
type Record interface {
	EntityKind() string
	EntityID() string
}

// ID concatenates the given byte parts and hex encodes the result.
func ID(parts ...[]byte) string {
	size := 0
	for _, p := range parts {
		size += len(p)
	}
	buf := make([]byte, 0, size)
	for _, p := range parts {
		buf = append(buf, p...)
	}
	return hexutil.Encode(buf)
}

// AddressID is the key of an address-identified entity.
func AddressID(a common.Address) string {
	return ID(a.Bytes())
}

// PairID is the key of an entity owned by two addresses, such as a balance.
func PairID(a, b common.Address) string {
	return ID(a.Bytes(), b.Bytes())
}

// IndexBytes renders an index as a 32 byte big-endian word.
func IndexBytes(i *big.Int) []byte {
	return common.BigToHash(i).Bytes()
}

// Uint32Bytes renders n as 4 big-endian bytes.
func Uint32Bytes(n uint32) []byte {
	var b [4]byte
	binary.BigEndian.PutUint32(b[:], n)
	return b[:]
}

// ChildPrefix returns the key prefix shared by every child of parentID.
func ChildPrefix(parentID string) string {
	return strings.ToLower(parentID)
}

// AddressFromID parses the leading address of an entity key.
func AddressFromID(id string) (common.Address, bool) {
	raw, err := hexutil.Decode(id)
	if err != nil || len(raw) < common.AddressLength {
		return common.Address{}, false
	}
	return common.BytesToAddress(raw[:common.AddressLength]), true
}

// AddInt returns a+b, treating nil as zero.
func AddInt(a, b *big.Int) *big.Int {
	return new(big.Int).Add(IntOrZero(a), IntOrZero(b))
}

// SubInt returns a-b, treating nil as zero.
func SubInt(a, b *big.Int) *big.Int {
	return new(big.Int).Sub(IntOrZero(a), IntOrZero(b))
}

// IntOrZero returns v, or a new zero when v is nil.
func IntOrZero(v *big.Int) *big.Int {
	if v == nil {
		return new(big.Int)
	}
	return v
}
