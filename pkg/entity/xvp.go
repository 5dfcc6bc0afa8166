package entity

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common"

	"github.com/withObsrvr/asset-graph-indexer/pkg/scale"
)

// XvPSettlement is an atomic multi-party exchange of assets.
type XvPSettlement struct {
	ID             string         `json:"id"`
	Address        common.Address `json:"address"`
	Creator        common.Address `json:"creator"`
	Factory        common.Address `json:"factory"`
	CutoffDate     int64          `json:"cutoffDate"`
	AutoExecute    bool           `json:"autoExecute"`
	FlowsCount     int64          `json:"flowsCount"`
	Participants   AddressSet     `json:"participants"`
	ApprovalsCount int64          `json:"approvalsCount"`
	Claimed        bool           `json:"claimed"`
	Cancelled      bool           `json:"cancelled"`
	CreatedAt      int64          `json:"createdAt"`
	ClosedAt       int64          `json:"closedAt,omitempty"`
}

func (s *XvPSettlement) EntityKind() string { return KindXvPSettlement }
func (s *XvPSettlement) EntityID() string   { return s.ID }

// XvPFlow moves Amount of Asset from From to To on settlement.
type XvPFlow struct {
	ID          string         `json:"id"`
	Settlement  common.Address `json:"settlement"`
	Index       uint32         `json:"index"`
	Asset       common.Address `json:"asset"`
	From        common.Address `json:"from"`
	To          common.Address `json:"to"`
	AmountExact *big.Int       `json:"amountExact"`
	Amount      scale.Decimal  `json:"amount"`
}

func (f *XvPFlow) EntityKind() string { return KindXvPFlow }
func (f *XvPFlow) EntityID() string   { return f.ID }

// XvPApproval is one participant's consent.
type XvPApproval struct {
	ID         string         `json:"id"`
	Settlement common.Address `json:"settlement"`
	Account    common.Address `json:"account"`
	Approved   bool           `json:"approved"`
	Timestamp  int64          `json:"timestamp"`
}

func (a *XvPApproval) EntityKind() string { return KindXvPApproval }
func (a *XvPApproval) EntityID() string   { return a.ID }

// Action is a pending manual step that an operator can execute.
type Action struct {
	ID         string          `json:"id"`
	Name       string          `json:"name"`
	Target     common.Address  `json:"target"`
	ActiveAt   int64           `json:"activeAt"`
	Executed   bool            `json:"executed"`
	ExecutedAt int64           `json:"executedAt,omitempty"`
	ExecutedBy *common.Address `json:"executedBy,omitempty"`
}

func (a *Action) EntityKind() string { return KindAction }
func (a *Action) EntityID() string   { return a.ID }

// ActionExecuteXvPSettlement is the action name that claims a settlement.
const ActionExecuteXvPSettlement = "ExecuteXvPSettlement"

// ActionID is the key of the named action on target.
func ActionID(target common.Address, name string) string {
	return ID(target.Bytes(), []byte(name))
}
