package entity

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common"

	"github.com/withObsrvr/asset-graph-indexer/pkg/scale"
)

// FixedYieldSchedule pays a fixed rate on a bond over numbered periods.
type FixedYieldSchedule struct {
	ID                     string         `json:"id"`
	Address                common.Address `json:"address"`
	Token                  common.Address `json:"token"`
	UnderlyingAsset        common.Address `json:"underlyingAsset"`
	StartDate              int64          `json:"startDate"`
	EndDate                int64          `json:"endDate"`
	Rate                   *big.Int       `json:"rate"`
	Interval               int64          `json:"interval"`
	PeriodsCount           uint32         `json:"periodsCount"`
	TotalClaimedExact      *big.Int       `json:"totalClaimedExact"`
	TotalClaimed           scale.Decimal  `json:"totalClaimed"`
	UnclaimedYieldExact    *big.Int       `json:"unclaimedYieldExact"`
	UnclaimedYield         scale.Decimal  `json:"unclaimedYield"`
	UnderlyingBalanceExact *big.Int       `json:"underlyingBalanceExact"`
	UnderlyingBalance      scale.Decimal  `json:"underlyingBalance"`
	ClaimsCount            int64          `json:"claimsCount"`
	CreatedAt              int64          `json:"createdAt"`
}

func (s *FixedYieldSchedule) EntityKind() string { return KindFixedYieldSchedule }
func (s *FixedYieldSchedule) EntityID() string   { return s.ID }

// YieldPeriod is one payout window of a schedule. Index starts at 1.
type YieldPeriod struct {
	ID                string         `json:"id"`
	Schedule          common.Address `json:"schedule"`
	Index             uint32         `json:"index"`
	StartDate         int64          `json:"startDate"`
	EndDate           int64          `json:"endDate"`
	TotalClaimedExact *big.Int       `json:"totalClaimedExact"`
	TotalClaimed      scale.Decimal  `json:"totalClaimed"`
}

func (p *YieldPeriod) EntityKind() string { return KindYieldPeriod }
func (p *YieldPeriod) EntityID() string   { return p.ID }

// YieldPeriodID is the key of period index of a schedule.
func YieldPeriodID(schedule common.Address, index uint32) string {
	return ID(schedule.Bytes(), Uint32Bytes(index))
}
