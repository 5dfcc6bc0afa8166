package entity

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common"

	"github.com/withObsrvr/asset-graph-indexer/pkg/scale"
)

// Snapshots are append-only. They are written once per triggering event
// and never updated.

type AssetStatsData struct {
	ID               string         `json:"id"`
	Asset            common.Address `json:"asset"`
	AssetType        AssetType      `json:"assetType"`
	EventName        string         `json:"eventName"`
	BlockNumber      uint64         `json:"blockNumber"`
	Timestamp        int64          `json:"timestamp"`
	TotalSupplyExact *big.Int       `json:"totalSupplyExact"`
	TotalSupply      scale.Decimal  `json:"totalSupply"`
	Minted           scale.Decimal  `json:"minted"`
	Burned           scale.Decimal  `json:"burned"`
	Transferred      scale.Decimal  `json:"transferred"`
	HoldersCount     int64          `json:"holdersCount"`
	Concentration    float64        `json:"concentration"`
	CollateralRatio  *float64       `json:"collateralRatio,omitempty"`
	FreeCollateral   *scale.Decimal `json:"freeCollateral,omitempty"`
	Paused           bool           `json:"paused"`
}

func (s *AssetStatsData) EntityKind() string { return KindAssetStatsData }
func (s *AssetStatsData) EntityID() string   { return s.ID }

type PortfolioStatsData struct {
	ID           string         `json:"id"`
	Account      common.Address `json:"account"`
	Asset        common.Address `json:"asset"`
	AssetType    AssetType      `json:"assetType"`
	BlockNumber  uint64         `json:"blockNumber"`
	Timestamp    int64          `json:"timestamp"`
	BalanceExact *big.Int       `json:"balanceExact"`
	Balance      scale.Decimal  `json:"balance"`
	TotalBalance scale.Decimal  `json:"totalBalance"`
}

func (s *PortfolioStatsData) EntityKind() string { return KindPortfolioStatsData }
func (s *PortfolioStatsData) EntityID() string   { return s.ID }

// AssetActivityData captures the counters of an asset after one counted event.
type AssetActivityData struct {
	ID                 string         `json:"id"`
	Asset              common.Address `json:"asset"`
	AssetType          AssetType      `json:"assetType"`
	EventName          string         `json:"eventName"`
	BlockNumber        uint64         `json:"blockNumber"`
	Timestamp          int64          `json:"timestamp"`
	AmountExact        *big.Int       `json:"amountExact"`
	TransferEventCount int64          `json:"transferEventCount"`
	MintEventCount     int64          `json:"mintEventCount"`
	BurnEventCount     int64          `json:"burnEventCount"`
	ClawbackEventCount int64          `json:"clawbackEventCount"`
	FrozenEventCount   int64          `json:"frozenEventCount"`
}

func (s *AssetActivityData) EntityKind() string { return KindAssetActivityData }
func (s *AssetActivityData) EntityID() string   { return s.ID }

type AirdropStatsData struct {
	ID              string         `json:"id"`
	Airdrop         common.Address `json:"airdrop"`
	EventName       string         `json:"eventName"`
	BlockNumber     uint64         `json:"blockNumber"`
	Timestamp       int64          `json:"timestamp"`
	ClaimsCount     int64          `json:"claimsCount"`
	ClaimedAmount   scale.Decimal  `json:"claimedAmount"`
	TotalClaims     int64          `json:"totalClaims"`
	TotalClaimed    scale.Decimal  `json:"totalClaimed"`
	TotalRecipients int64          `json:"totalRecipients"`
}

func (s *AirdropStatsData) EntityKind() string { return KindAirdropStatsData }
func (s *AirdropStatsData) EntityID() string   { return s.ID }

type VestingStatsData struct {
	ID                  string         `json:"id"`
	Airdrop             common.Address `json:"airdrop"`
	EventName           string         `json:"eventName"`
	BlockNumber         uint64         `json:"blockNumber"`
	Timestamp           int64          `json:"timestamp"`
	InitializedCount    int64          `json:"initializedCount"`
	ClaimedAmount       scale.Decimal  `json:"claimedAmount"`
	TotalVested         scale.Decimal  `json:"totalVested"`
	TotalVestingClaimed scale.Decimal  `json:"totalVestingClaimed"`
}

func (s *VestingStatsData) EntityKind() string { return KindVestingStatsData }
func (s *VestingStatsData) EntityID() string   { return s.ID }

// ActivityLogEntry is the generic audit record written for every watched event.
type ActivityLogEntry struct {
	ID             string           `json:"id"`
	EventName      string           `json:"eventName"`
	Emitter        common.Address   `json:"emitter"`
	ContractKind   string           `json:"contractKind"`
	Sender         common.Address   `json:"sender"`
	BlockNumber    uint64           `json:"blockNumber"`
	BlockTimestamp int64            `json:"blockTimestamp"`
	TxHash         common.Hash      `json:"txHash"`
	LogIndex       uint32           `json:"logIndex"`
	Involved       []common.Address `json:"involved"`
	Values         []ActivityValue  `json:"values"`
	Outcome        string           `json:"outcome"`
}

func (e *ActivityLogEntry) EntityKind() string { return KindActivityLogEntry }
func (e *ActivityLogEntry) EntityID() string   { return e.ID }

type ActivityValue struct {
	Name  string `json:"name"`
	Value string `json:"value"`
}
