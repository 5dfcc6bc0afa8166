package projection

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"

	"github.com/withObsrvr/asset-graph-indexer/pkg/entity"
	"github.com/withObsrvr/asset-graph-indexer/pkg/event"
	"github.com/withObsrvr/asset-graph-indexer/pkg/scale"
)

// maxYieldPeriods bounds the periods materialized for one schedule.
const maxYieldPeriods = 10000

func registerYield(r *Router) {
	Handle(r, event.FixedYieldCreated, onFixedYieldCreated, event.KindFixedYieldFactory)
	Handle(r, event.YieldClaimed, onYieldClaimed, event.KindFixedYield)
	Handle(r, event.UnderlyingAssetTopUp, func(c *Context, p underlyingParams) error {
		return moveScheduleReserve(c, p.Amount.Big())
	}, event.KindFixedYield)
	Handle(r, event.UnderlyingAssetWithdrawn, func(c *Context, p underlyingParams) error {
		return moveScheduleReserve(c, new(big.Int).Neg(p.Amount.Big()))
	}, event.KindFixedYield)
}

// YieldPeriodBounds returns the start and end of each 1-based period of a
// schedule. The last period is cut at end.
func YieldPeriodBounds(start, end, interval int64) ([][2]int64, error) {
	if interval <= 0 || end <= start {
		return nil, Skip(Malformed, "invalid yield schedule window [%d, %d) every %d", start, end, interval)
	}
	n := (end - start + interval - 1) / interval
	if n > maxYieldPeriods {
		return nil, Skip(Malformed, "yield schedule has %d periods, limit is %d", n, maxYieldPeriods)
	}
	out := make([][2]int64, 0, n)
	for i := int64(0); i < n; i++ {
		from := start + i*interval
		to := from + interval
		if to > end {
			to = end
		}
		out = append(out, [2]int64{from, to})
	}
	return out, nil
}

type fixedYieldCreatedParams struct {
	Schedule        common.Address `json:"schedule"`
	Token           common.Address `json:"token"`
	UnderlyingAsset common.Address `json:"underlyingAsset"`
	StartDate       event.Uint256  `json:"startDate"`
	EndDate         event.Uint256  `json:"endDate"`
	Rate            event.Uint256  `json:"rate"`
	Interval        event.Uint256  `json:"interval"`
	Creator         common.Address `json:"creator"`
}

func onFixedYieldCreated(c *Context, p fixedYieldCreatedParams) error {
	if p.Schedule == zeroAddress {
		return Skip(Malformed, "fixed yield schedule without address")
	}
	if _, exists, err := load[entity.FixedYieldSchedule](c, entity.AddressID(p.Schedule)); err != nil {
		return err
	} else if exists {
		return Skip(Malformed, "yield schedule %s is already indexed", p.Schedule.Hex())
	}
	bounds, err := YieldPeriodBounds(p.StartDate.Int64(), p.EndDate.Int64(), p.Interval.Int64())
	if err != nil {
		return err
	}

	s := &entity.FixedYieldSchedule{
		ID:                     entity.AddressID(p.Schedule),
		Address:                p.Schedule,
		Token:                  p.Token,
		UnderlyingAsset:        p.UnderlyingAsset,
		StartDate:              p.StartDate.Int64(),
		EndDate:                p.EndDate.Int64(),
		Rate:                   p.Rate.Big(),
		Interval:               p.Interval.Int64(),
		PeriodsCount:           uint32(len(bounds)),
		TotalClaimedExact:      new(big.Int),
		UnclaimedYieldExact:    new(big.Int),
		UnderlyingBalanceExact: new(big.Int),
		CreatedAt:              c.Timestamp(),
	}
	if err := c.Save(s); err != nil {
		return err
	}
	for i, b := range bounds {
		index := uint32(i + 1)
		if err := c.Save(&entity.YieldPeriod{
			ID:                entity.YieldPeriodID(p.Schedule, index),
			Schedule:          p.Schedule,
			Index:             index,
			StartDate:         b[0],
			EndDate:           b[1],
			TotalClaimedExact: new(big.Int),
		}); err != nil {
			return err
		}
	}

	asset, ok, err := load[entity.Asset](c, entity.AddressID(p.Token))
	if err != nil {
		return err
	}
	if ok && asset.Bond != nil {
		asset.Bond.YieldSchedule = entity.AddressRef(p.Schedule)
		if err := c.Save(asset); err != nil {
			return err
		}
	} else {
		c.logger.Debug("yield schedule for unindexed bond", zap.String("token", p.Token.Hex()))
	}

	if p.Creator != zeroAddress {
		if _, err := c.FetchAccount(p.Creator); err != nil {
			return err
		}
	}
	if err := c.recordFactoryInstance(p.Schedule); err != nil {
		return err
	}
	return c.Subscribe(p.Schedule, event.KindFixedYield)
}

func (c *Context) requireSchedule() (*entity.FixedYieldSchedule, error) {
	s, ok, err := load[entity.FixedYieldSchedule](c, entity.AddressID(c.Emitter()))
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, Skip(MissingReference, "yield schedule %s is not indexed", c.Emitter().Hex())
	}
	return s, nil
}

type yieldClaimedParams struct {
	Holder         common.Address `json:"holder"`
	TotalAmount    event.Uint256  `json:"totalAmount"`
	FromPeriod     event.Uint256  `json:"fromPeriod"`
	ToPeriod       event.Uint256  `json:"toPeriod"`
	PeriodAmounts  event.Uint256s `json:"periodAmounts"`
	UnclaimedYield event.Uint256  `json:"unclaimedYield"`
}

func onYieldClaimed(c *Context, p yieldClaimedParams) error {
	s, err := c.requireSchedule()
	if err != nil {
		return err
	}
	from, to := p.FromPeriod.Uint64(), p.ToPeriod.Uint64()
	switch {
	case from < 1:
		return Skip(Malformed, "yield periods start at 1, got %d", from)
	case to < from:
		return Skip(Malformed, "yield claim range %d..%d is reversed", from, to)
	case to > uint64(s.PeriodsCount):
		return Skip(Malformed, "yield claim up to period %d of %d", to, s.PeriodsCount)
	case uint64(len(p.PeriodAmounts)) != to-from+1:
		return Skip(Malformed, "yield claim of %d periods carries %d amounts", to-from+1, len(p.PeriodAmounts))
	}
	total := p.TotalAmount.Big()
	if sum := p.PeriodAmounts.Sum(); sum.Cmp(total) != 0 {
		c.logger.Warn("period amounts do not add up to the claimed total",
			zap.String("sum", sum.String()), zap.String("total", total.String()))
	}

	decimals, err := c.decimalsOf(s.UnderlyingAsset)
	if err != nil {
		return err
	}
	for i, amount := range p.PeriodAmounts.Bigs() {
		index := uint32(from) + uint32(i)
		period, ok, err := load[entity.YieldPeriod](c, entity.YieldPeriodID(s.Address, index))
		if err != nil {
			return err
		}
		if !ok {
			return Skip(NotFound, "yield period %d of %s", index, s.Address.Hex())
		}
		period.TotalClaimedExact = entity.AddInt(period.TotalClaimedExact, amount)
		period.TotalClaimed = scale.ToDecimals(period.TotalClaimedExact, decimals)
		if err := c.Save(period); err != nil {
			return err
		}
	}

	if _, err := c.FetchAccount(p.Holder); err != nil {
		return err
	}
	s.ClaimsCount++
	s.TotalClaimedExact = entity.AddInt(s.TotalClaimedExact, total)
	s.TotalClaimed = scale.ToDecimals(s.TotalClaimedExact, decimals)
	s.UnclaimedYieldExact = p.UnclaimedYield.Big()
	s.UnclaimedYield = scale.ToDecimals(s.UnclaimedYieldExact, decimals)
	s.UnderlyingBalanceExact = entity.SubInt(s.UnderlyingBalanceExact, total)
	s.UnderlyingBalance = scale.ToDecimals(s.UnderlyingBalanceExact, decimals)
	return c.Save(s)
}

func moveScheduleReserve(c *Context, delta *big.Int) error {
	s, err := c.requireSchedule()
	if err != nil {
		return err
	}
	decimals, err := c.decimalsOf(s.UnderlyingAsset)
	if err != nil {
		return err
	}
	s.UnderlyingBalanceExact = entity.AddInt(s.UnderlyingBalanceExact, delta)
	s.UnderlyingBalance = scale.ToDecimals(s.UnderlyingBalanceExact, decimals)
	return c.Save(s)
}
