package entity

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common"

	"github.com/withObsrvr/asset-graph-indexer/pkg/scale"
)

type AirdropType string

const (
	AirdropStandard AirdropType = "standard"
	AirdropPush     AirdropType = "push"
	AirdropVesting  AirdropType = "vesting"
)

// Airdrop is a token distribution contract.
type Airdrop struct {
	ID                  string         `json:"id"`
	Address             common.Address `json:"address"`
	Type                AirdropType    `json:"type"`
	Token               common.Address `json:"token"`
	Owner               common.Address `json:"owner"`
	Factory             common.Address `json:"factory"`
	MerkleRoot          common.Hash    `json:"merkleRoot"`
	DistributionCid     string         `json:"distributionCid"`
	StartTime           int64          `json:"startTime"`
	EndTime             int64          `json:"endTime"`
	Decimals            uint8          `json:"decimals"`
	TotalClaims         int64          `json:"totalClaims"`
	TotalClaimedExact   *big.Int       `json:"totalClaimedExact"`
	TotalClaimed        scale.Decimal  `json:"totalClaimed"`
	TotalRecipients     int64          `json:"totalRecipients"`
	TotalAllocatedExact *big.Int       `json:"totalAllocatedExact"`
	TotalAllocated      scale.Decimal  `json:"totalAllocated"`
	AllocationsCount    int64          `json:"allocationsCount"`
	WithdrawnExact      *big.Int       `json:"withdrawnExact"`
	Withdrawn           scale.Decimal  `json:"withdrawn"`
	ManifestLoaded      bool           `json:"manifestLoaded"`
	DeployedAt          int64          `json:"deployedAt"`
}

func (a *Airdrop) EntityKind() string { return KindAirdrop }
func (a *Airdrop) EntityID() string   { return a.ID }

// AirdropRecipient aggregates one recipient's allocation and claims.
type AirdropRecipient struct {
	ID                    string         `json:"id"`
	Airdrop               common.Address `json:"airdrop"`
	Recipient             common.Address `json:"recipient"`
	AllocatedAmountExact  *big.Int       `json:"allocatedAmountExact"`
	AllocatedAmount       scale.Decimal  `json:"allocatedAmount"`
	AllocationIndex       *big.Int       `json:"allocationIndex,omitempty"`
	ClaimedAmountExact    *big.Int       `json:"claimedAmountExact"`
	ClaimedAmount         scale.Decimal  `json:"claimedAmount"`
	ClaimsCount           int64          `json:"claimsCount"`
	FirstClaimedTimestamp *int64         `json:"firstClaimedTimestamp,omitempty"`
	LastClaimedTimestamp  int64          `json:"lastClaimedTimestamp"`
}

func (r *AirdropRecipient) EntityKind() string { return KindAirdropRecipient }
func (r *AirdropRecipient) EntityID() string   { return r.ID }

// NewAirdropRecipient returns a recipient with nothing allocated or claimed.
func NewAirdropRecipient(airdrop, recipient common.Address) *AirdropRecipient {
	return &AirdropRecipient{
		ID:                   PairID(airdrop, recipient),
		Airdrop:              airdrop,
		Recipient:            recipient,
		AllocatedAmountExact: new(big.Int),
		ClaimedAmountExact:   new(big.Int),
	}
}

// AirdropClaimIndex records that a merkle index has been claimed.
type AirdropClaimIndex struct {
	ID          string         `json:"id"`
	Airdrop     common.Address `json:"airdrop"`
	Recipient   common.Address `json:"recipient"`
	Index       *big.Int       `json:"index"`
	AmountExact *big.Int       `json:"amountExact"`
	Amount      scale.Decimal  `json:"amount"`
	ClaimedAt   int64          `json:"claimedAt"`
	TxHash      common.Hash    `json:"txHash"`
}

func (c *AirdropClaimIndex) EntityKind() string { return KindAirdropClaimIndex }
func (c *AirdropClaimIndex) EntityID() string   { return c.ID }

// AirdropClaimIndexID is the key of a claimed index.
func AirdropClaimIndexID(airdrop common.Address, index *big.Int) string {
	return ID(airdrop.Bytes(), IndexBytes(index))
}

// LinearVestingStrategy describes how a vesting airdrop releases tokens.
type LinearVestingStrategy struct {
	ID              string         `json:"id"`
	Airdrop         common.Address `json:"airdrop"`
	VestingDuration int64          `json:"vestingDuration"`
	CliffDuration   int64          `json:"cliffDuration"`
	ClaimPeriodEnd  int64          `json:"claimPeriodEnd"`

	InitializedCount  int64    `json:"initializedCount"`
	TotalVestedExact  *big.Int `json:"totalVestedExact"`
	TotalClaimedExact *big.Int `json:"totalClaimedExact"`
}

func (s *LinearVestingStrategy) EntityKind() string { return KindLinearVestingStrategy }
func (s *LinearVestingStrategy) EntityID() string   { return s.ID }

// UserVestingData is one claimant's vesting position.
type UserVestingData struct {
	ID                   string         `json:"id"`
	Airdrop              common.Address `json:"airdrop"`
	User                 common.Address `json:"user"`
	AllocatedAmountExact *big.Int       `json:"allocatedAmountExact"`
	AllocatedAmount      scale.Decimal  `json:"allocatedAmount"`
	ClaimedAmountExact   *big.Int       `json:"claimedAmountExact"`
	ClaimedAmount        scale.Decimal  `json:"claimedAmount"`
	Index                *big.Int       `json:"index"`
	VestingStart         int64          `json:"vestingStart"`
	LastClaimedAt        int64          `json:"lastClaimedAt"`
	Initialized          bool           `json:"initialized"`
}

func (u *UserVestingData) EntityKind() string { return KindUserVestingData }
func (u *UserVestingData) EntityID() string   { return u.ID }
