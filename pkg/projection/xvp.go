package projection

import (
	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"

	"github.com/withObsrvr/asset-graph-indexer/pkg/entity"
	"github.com/withObsrvr/asset-graph-indexer/pkg/event"
	"github.com/withObsrvr/asset-graph-indexer/pkg/scale"
)

func registerXvP(r *Router) {
	Handle(r, event.XvPSettlementCreated, onXvPSettlementCreated, event.KindXvPFactory)
	Handle(r, event.XvPSettlementApproved, onXvPApproved, event.KindXvPSettlement)
	Handle(r, event.XvPSettlementApprovalRevoked, onXvPApprovalRevoked, event.KindXvPSettlement)
	Handle(r, event.XvPSettlementClaimed, onXvPClaimed, event.KindXvPSettlement)
	Handle(r, event.XvPSettlementCancelled, onXvPCancelled, event.KindXvPSettlement)
}

type xvpFlowParams struct {
	Asset  common.Address `json:"asset"`
	From   common.Address `json:"from"`
	To     common.Address `json:"to"`
	Amount event.Uint256  `json:"amount"`
}

type xvpCreatedParams struct {
	Settlement  common.Address  `json:"settlement"`
	Creator     common.Address  `json:"creator"`
	Flows       []xvpFlowParams `json:"flows"`
	CutoffDate  event.Uint256   `json:"cutoffDate"`
	AutoExecute event.Bool      `json:"autoExecute"`
}

func xvpFlowID(settlement common.Address, index uint32) string {
	return entity.ID(settlement.Bytes(), entity.Uint32Bytes(index))
}

func xvpApprovalID(settlement, account common.Address) string {
	return entity.PairID(settlement, account)
}

func onXvPSettlementCreated(c *Context, p xvpCreatedParams) error {
	if p.Settlement == zeroAddress {
		return Skip(Malformed, "settlement creation without address")
	}
	if len(p.Flows) == 0 {
		return Skip(Malformed, "settlement %s has no flows", p.Settlement.Hex())
	}
	if _, exists, err := load[entity.XvPSettlement](c, entity.AddressID(p.Settlement)); err != nil {
		return err
	} else if exists {
		return Skip(Malformed, "settlement %s is already indexed", p.Settlement.Hex())
	}

	s := &entity.XvPSettlement{
		ID:          entity.AddressID(p.Settlement),
		Address:     p.Settlement,
		Creator:     p.Creator,
		Factory:     c.Emitter(),
		CutoffDate:  p.CutoffDate.Int64(),
		AutoExecute: bool(p.AutoExecute),
		FlowsCount:  int64(len(p.Flows)),
		CreatedAt:   c.Timestamp(),
	}
	for i, f := range p.Flows {
		decimals, err := c.decimalsOf(f.Asset)
		if err != nil {
			return err
		}
		for _, a := range []common.Address{f.From, f.To} {
			if _, err := c.FetchAccount(a); err != nil {
				return err
			}
		}
		amount := f.Amount.Big()
		index := uint32(i)
		if err := c.Save(&entity.XvPFlow{
			ID:          xvpFlowID(p.Settlement, index),
			Settlement:  p.Settlement,
			Index:       index,
			Asset:       f.Asset,
			From:        f.From,
			To:          f.To,
			AmountExact: amount,
			Amount:      scale.ToDecimals(amount, decimals),
		}); err != nil {
			return err
		}
		if s.Participants.Add(f.From) {
			if err := c.Save(&entity.XvPApproval{
				ID:         xvpApprovalID(p.Settlement, f.From),
				Settlement: p.Settlement,
				Account:    f.From,
			}); err != nil {
				return err
			}
		}
	}
	if err := c.Save(s); err != nil {
		return err
	}

	if err := c.markAccount(p.Settlement, func(a *entity.Account) {
		a.Settlement = entity.AddressRef(p.Settlement)
	}); err != nil {
		return err
	}
	if p.Creator != zeroAddress {
		if _, err := c.FetchAccount(p.Creator); err != nil {
			return err
		}
	}
	if err := c.recordFactoryInstance(p.Settlement); err != nil {
		return err
	}
	return c.Subscribe(p.Settlement, event.KindXvPSettlement)
}

func (c *Context) requireSettlement() (*entity.XvPSettlement, error) {
	s, ok, err := load[entity.XvPSettlement](c, entity.AddressID(c.Emitter()))
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, Skip(MissingReference, "settlement %s is not indexed", c.Emitter().Hex())
	}
	return s, nil
}

// requireOpenSettlement rejects approval changes once a settlement was
// claimed or cancelled.
func (c *Context) requireOpenSettlement() (*entity.XvPSettlement, error) {
	s, err := c.requireSettlement()
	if err != nil {
		return nil, err
	}
	if s.Claimed || s.Cancelled {
		return nil, Skip(Malformed, "settlement %s is already closed", s.Address.Hex())
	}
	return s, nil
}

type xvpSenderParams struct {
	Sender common.Address `json:"sender"`
}

func (c *Context) participantApproval(s *entity.XvPSettlement, sender common.Address) (*entity.XvPApproval, error) {
	if !s.Participants.Contains(sender) {
		return nil, Skip(Malformed, "%s is not a participant of settlement %s", sender.Hex(), s.Address.Hex())
	}
	ap, ok, err := load[entity.XvPApproval](c, xvpApprovalID(s.Address, sender))
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, Skip(NotFound, "approval of %s in settlement %s", sender.Hex(), s.Address.Hex())
	}
	return ap, nil
}

// onXvPApproved marks the participant and, once everyone has approved a
// settlement that does not execute itself, writes the pending action.
func onXvPApproved(c *Context, p xvpSenderParams) error {
	s, err := c.requireOpenSettlement()
	if err != nil {
		return err
	}
	ap, err := c.participantApproval(s, p.Sender)
	if err != nil {
		return err
	}
	if ap.Approved {
		c.logger.Debug("settlement already approved by participant", zap.String("sender", p.Sender.Hex()))
		return nil
	}
	ap.Approved = true
	ap.Timestamp = c.Timestamp()
	if err := c.Save(ap); err != nil {
		return err
	}
	s.ApprovalsCount++
	if err := c.Save(s); err != nil {
		return err
	}
	if s.AutoExecute || s.ApprovalsCount < int64(s.Participants.Len()) {
		return nil
	}
	id := entity.ActionID(s.Address, entity.ActionExecuteXvPSettlement)
	if act, ok, err := load[entity.Action](c, id); err != nil {
		return err
	} else if ok && act.Executed {
		c.logger.Debug("settlement action already executed", zap.String("settlement", s.Address.Hex()))
		return nil
	}
	return c.Save(&entity.Action{
		ID:       id,
		Name:     entity.ActionExecuteXvPSettlement,
		Target:   s.Address,
		ActiveAt: c.Timestamp(),
	})
}

func onXvPApprovalRevoked(c *Context, p xvpSenderParams) error {
	s, err := c.requireOpenSettlement()
	if err != nil {
		return err
	}
	ap, err := c.participantApproval(s, p.Sender)
	if err != nil {
		return err
	}
	if !ap.Approved {
		c.logger.Debug("settlement approval already clear", zap.String("sender", p.Sender.Hex()))
		return nil
	}
	ap.Approved = false
	ap.Timestamp = c.Timestamp()
	if err := c.Save(ap); err != nil {
		return err
	}
	s.ApprovalsCount--
	if err := c.Save(s); err != nil {
		return err
	}
	return c.withdrawAction(s)
}

func (c *Context) withdrawAction(s *entity.XvPSettlement) error {
	act, ok, err := load[entity.Action](c, entity.ActionID(s.Address, entity.ActionExecuteXvPSettlement))
	if err != nil {
		return err
	}
	if ok && !act.Executed {
		c.Delete(act)
	}
	return nil
}

func onXvPClaimed(c *Context, p xvpSenderParams) error {
	s, err := c.requireSettlement()
	if err != nil {
		return err
	}
	if s.Claimed {
		return nil
	}
	s.Claimed = true
	s.ClosedAt = c.Timestamp()
	if err := c.Save(s); err != nil {
		return err
	}
	act, ok, err := load[entity.Action](c, entity.ActionID(s.Address, entity.ActionExecuteXvPSettlement))
	if err != nil || !ok {
		return err
	}
	act.Executed = true
	act.ExecutedAt = c.Timestamp()
	act.ExecutedBy = entity.AddressRef(p.Sender)
	return c.Save(act)
}

func onXvPCancelled(c *Context, p xvpSenderParams) error {
	s, err := c.requireSettlement()
	if err != nil {
		return err
	}
	if s.Cancelled {
		return nil
	}
	s.Cancelled = true
	s.ClosedAt = c.Timestamp()
	if err := c.Save(s); err != nil {
		return err
	}
	return c.withdrawAction(s)
}
