package entity

import "github.com/ethereum/go-ethereum/common"

// AddressSet is an insertion-ordered set of addresses. Role memberships and
// vault signers are small, so linear scans are fine.
type AddressSet []common.Address

// Add appends a if it is not already present and reports whether it was added.
func (s *AddressSet) Add(a common.Address) bool {
	if s.Contains(a) {
		return false
	}
	*s = append(*s, a)
	return true
}

// Remove deletes a while keeping the order of the remaining members.
func (s *AddressSet) Remove(a common.Address) bool {
	for i, m := range *s {
		if m == a {
			*s = append((*s)[:i:i], (*s)[i+1:]...)
			return true
		}
	}
	return false
}

func (s AddressSet) Contains(a common.Address) bool {
	for _, m := range s {
		if m == a {
			return true
		}
	}
	return false
}

func (s AddressSet) Len() int {
	return len(s)
}
