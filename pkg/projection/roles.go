package projection

import (
	"github.com/ethereum/go-ethereum/common"

	"github.com/withObsrvr/asset-graph-indexer/pkg/entity"
	"github.com/withObsrvr/asset-graph-indexer/pkg/event"
)

// assetRoleSet returns the membership set of role on a, or nil for roles the
// graph does not track.
func assetRoleSet(a *entity.Asset, role common.Hash) *entity.AddressSet {
	switch role {
	case event.DefaultAdminRole:
		return &a.Admins
	case event.SupplyManagementRole:
		return &a.SupplyManagers
	case event.UserManagementRole:
		return &a.UserManagers
	}
	return nil
}

func vaultRoleSet(v *entity.Vault, role common.Hash) *entity.AddressSet {
	switch role {
	case event.DefaultAdminRole:
		return &v.Admins
	case event.SignerRole:
		return &v.Signers
	}
	return nil
}

// Grant adds account to set. Granting twice is a no-op.
func Grant(set *entity.AddressSet, account common.Address) bool {
	return set.Add(account)
}

// Revoke removes account from set, keeping the order of the others.
func Revoke(set *entity.AddressSet, account common.Address) bool {
	return set.Remove(account)
}
