package projection

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"

	"github.com/withObsrvr/asset-graph-indexer/pkg/entity"
	"github.com/withObsrvr/asset-graph-indexer/pkg/event"
	"github.com/withObsrvr/asset-graph-indexer/pkg/manifest"
	"github.com/withObsrvr/asset-graph-indexer/pkg/scale"
)

var airdropKinds = []event.ContractKind{event.KindStandardAirdrop, event.KindPushAirdrop, event.KindVestingAirdrop}

func registerAirdrops(r *Router) {
	Handle(r, event.StandardAirdropDeployed, airdropDeployer(entity.AirdropStandard, event.KindStandardAirdrop), event.KindAirdropFactory)
	Handle(r, event.PushAirdropDeployed, airdropDeployer(entity.AirdropPush, event.KindPushAirdrop), event.KindAirdropFactory)
	Handle(r, event.VestingAirdropDeployed, airdropDeployer(entity.AirdropVesting, event.KindVestingAirdrop), event.KindAirdropFactory)

	Handle(r, event.Claimed, onClaimed, airdropKinds...)
	Handle(r, event.BatchClaimed, onBatchClaimed, airdropKinds...)
	Handle(r, event.TokensWithdrawn, onTokensWithdrawn, airdropKinds...)
	Handle(r, event.TokensDistributed, onTokensDistributed, event.KindPushAirdrop)
	Handle(r, event.BatchDistributed, onBatchDistributed, event.KindPushAirdrop)
	Handle(r, event.VestingInitialized, onVestingInitialized, event.KindVestingAirdrop)
}

type airdropDeployedParams struct {
	Airdrop         common.Address `json:"airdrop"`
	Token           common.Address `json:"token"`
	Owner           common.Address `json:"owner"`
	MerkleRoot      common.Hash    `json:"merkleRoot"`
	StartTime       event.Uint256  `json:"startTime"`
	EndTime         event.Uint256  `json:"endTime"`
	DistributionCid string         `json:"distributionCid"`

	VestingDuration event.Uint256 `json:"vestingDuration"`
	CliffDuration   event.Uint256 `json:"cliffDuration"`
	ClaimPeriodEnd  event.Uint256 `json:"claimPeriodEnd"`
}

func airdropDeployer(t entity.AirdropType, kind event.ContractKind) func(*Context, airdropDeployedParams) error {
	return func(c *Context, p airdropDeployedParams) error {
		if p.Airdrop == zeroAddress {
			return Skip(Malformed, "airdrop deployment without address")
		}
		if _, exists, err := load[entity.Airdrop](c, entity.AddressID(p.Airdrop)); err != nil {
			return err
		} else if exists {
			return Skip(Malformed, "airdrop %s is already indexed", p.Airdrop.Hex())
		}
		decimals, err := c.decimalsOf(p.Token)
		if err != nil {
			return err
		}

		a := &entity.Airdrop{
			ID:                  entity.AddressID(p.Airdrop),
			Address:             p.Airdrop,
			Type:                t,
			Token:               p.Token,
			Owner:               p.Owner,
			Factory:             c.Emitter(),
			MerkleRoot:          p.MerkleRoot,
			DistributionCid:     p.DistributionCid,
			StartTime:           p.StartTime.Int64(),
			EndTime:             p.EndTime.Int64(),
			Decimals:            decimals,
			TotalClaimedExact:   new(big.Int),
			TotalAllocatedExact: new(big.Int),
			WithdrawnExact:      new(big.Int),
			DeployedAt:          c.Timestamp(),
		}
		if t == entity.AirdropVesting {
			if err := c.Save(&entity.LinearVestingStrategy{
				ID:                entity.AddressID(p.Airdrop),
				Airdrop:           p.Airdrop,
				VestingDuration:   p.VestingDuration.Int64(),
				CliffDuration:     p.CliffDuration.Int64(),
				ClaimPeriodEnd:    p.ClaimPeriodEnd.Int64(),
				TotalVestedExact:  new(big.Int),
				TotalClaimedExact: new(big.Int),
			}); err != nil {
				return err
			}
		}
		if err := c.loadManifest(a); err != nil {
			return err
		}
		if err := c.Save(a); err != nil {
			return err
		}

		if err := c.markAccount(p.Airdrop, func(acct *entity.Account) {
			acct.Airdrop = entity.AddressRef(p.Airdrop)
		}); err != nil {
			return err
		}
		if p.Owner != zeroAddress {
			if _, err := c.FetchAccount(p.Owner); err != nil {
				return err
			}
		}
		if err := c.recordFactoryInstance(p.Airdrop); err != nil {
			return err
		}
		return c.Subscribe(p.Airdrop, kind)
	}
}

// loadManifest materializes the allocations listed in the airdrop's
// distribution document. A document that cannot be fetched or parsed means
// no manifest; malformed entries are skipped one by one.
func (c *Context) loadManifest(a *entity.Airdrop) error {
	fetcher := c.engine.manifests
	if a.DistributionCid == "" || fetcher == nil {
		return nil
	}
	log := c.logger.With(zap.String("airdrop", a.Address.Hex()), zap.String("uri", a.DistributionCid))
	doc, err := fetcher.Fetch(c.ctx, a.DistributionCid)
	if err != nil {
		log.Warn("manifest unavailable", zap.Error(err))
		return nil
	}
	res, err := manifest.Parse(doc)
	if err != nil {
		log.Warn("manifest rejected", zap.Error(err))
		return nil
	}
	for _, s := range res.Skipped {
		log.Warn("skipping manifest entry", zap.String("key", s.Key), zap.String("reason", s.Reason))
	}

	for _, e := range res.Entries {
		if _, err := c.FetchAccount(e.Recipient); err != nil {
			return err
		}
		rec := entity.NewAirdropRecipient(a.Address, e.Recipient)
		rec.AllocatedAmountExact = e.Amount
		rec.AllocatedAmount = scale.ToDecimals(e.Amount, a.Decimals)
		rec.AllocationIndex = e.Index
		if err := c.Save(rec); err != nil {
			return err
		}
		a.TotalAllocatedExact = entity.AddInt(a.TotalAllocatedExact, e.Amount)
		a.AllocationsCount++
	}
	a.TotalAllocated = scale.ToDecimals(a.TotalAllocatedExact, a.Decimals)
	a.ManifestLoaded = true
	log.Info("loaded airdrop manifest", zap.Int("entries", len(res.Entries)), zap.Int("skipped", len(res.Skipped)))
	return nil
}

func (c *Context) requireAirdrop() (*entity.Airdrop, error) {
	a, ok, err := load[entity.Airdrop](c, entity.AddressID(c.Emitter()))
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, Skip(MissingReference, "airdrop %s is not indexed", c.Emitter().Hex())
	}
	return a, nil
}

// claim is one indexed payout of an airdrop.
type claim struct {
	recipient common.Address
	index     *big.Int
	amount    *big.Int
}

type claimedParams struct {
	Claimant common.Address `json:"claimant"`
	Amount   event.Uint256  `json:"amount"`
	Index    event.Uint256  `json:"index"`
}

func onClaimed(c *Context, p claimedParams) error {
	return c.applyClaims([]claim{{recipient: p.Claimant, index: p.Index.Big(), amount: p.Amount.Big()}})
}

type batchClaimedParams struct {
	Claimant    common.Address `json:"claimant"`
	TotalAmount event.Uint256  `json:"totalAmount"`
	Indices     event.Uint256s `json:"indices"`
	Amounts     event.Uint256s `json:"amounts"`
}

// onBatchClaimed requires one amount per claimed index.
func onBatchClaimed(c *Context, p batchClaimedParams) error {
	if len(p.Indices) == 0 || len(p.Amounts) != len(p.Indices) {
		return Skip(Malformed, "batch claim has %d indices and %d amounts", len(p.Indices), len(p.Amounts))
	}
	if sum := p.Amounts.Sum(); sum.Cmp(p.TotalAmount.Big()) != 0 {
		c.logger.Warn("batch amounts do not add up to the claimed total",
			zap.String("sum", sum.String()), zap.String("total", p.TotalAmount.String()))
	}
	claims := make([]claim, len(p.Indices))
	for i := range p.Indices {
		claims[i] = claim{recipient: p.Claimant, index: p.Indices[i].Big(), amount: p.Amounts[i].Big()}
	}
	return c.applyClaims(claims)
}

type distributedParams struct {
	Recipient common.Address `json:"recipient"`
	Amount    event.Uint256  `json:"amount"`
	Index     event.Uint256  `json:"index"`
}

func onTokensDistributed(c *Context, p distributedParams) error {
	return c.applyClaims([]claim{{recipient: p.Recipient, index: p.Index.Big(), amount: p.Amount.Big()}})
}

type batchDistributedParams struct {
	Recipients []common.Address `json:"recipients"`
	Amounts    event.Uint256s   `json:"amounts"`
	Indices    event.Uint256s   `json:"indices"`
}

func onBatchDistributed(c *Context, p batchDistributedParams) error {
	n := len(p.Recipients)
	if n == 0 || len(p.Amounts) != n || len(p.Indices) != n {
		return Skip(Malformed, "batch distribution has %d recipients, %d amounts and %d indices",
			n, len(p.Amounts), len(p.Indices))
	}
	claims := make([]claim, n)
	for i := range p.Recipients {
		claims[i] = claim{recipient: p.Recipients[i], index: p.Indices[i].Big(), amount: p.Amounts[i].Big()}
	}
	return c.applyClaims(claims)
}

// applyClaims records every claim of one event and snapshots the airdrop.
// A claim index seen before skips the whole event.
func (c *Context) applyClaims(claims []claim) error {
	a, err := c.requireAirdrop()
	if err != nil {
		return err
	}
	eventTotal := new(big.Int)
	for _, cl := range claims {
		if err := c.recordClaim(a, cl); err != nil {
			return err
		}
		eventTotal.Add(eventTotal, cl.amount)
	}
	a.TotalClaimed = scale.ToDecimals(a.TotalClaimedExact, a.Decimals)
	if err := c.Save(a); err != nil {
		return err
	}
	if err := c.Save(&entity.AirdropStatsData{
		ID:              c.SnapshotID(entity.KindAirdropStatsData),
		Airdrop:         a.Address,
		EventName:       c.Event.Name,
		BlockNumber:     c.Event.BlockNumber,
		Timestamp:       c.Timestamp(),
		ClaimsCount:     int64(len(claims)),
		ClaimedAmount:   scale.ToDecimals(eventTotal, a.Decimals),
		TotalClaims:     a.TotalClaims,
		TotalClaimed:    a.TotalClaimed,
		TotalRecipients: a.TotalRecipients,
	}); err != nil {
		return err
	}
	if a.Type != entity.AirdropVesting {
		return nil
	}
	return c.vestingClaimed(a, claims, eventTotal)
}

func (c *Context) recordClaim(a *entity.Airdrop, cl claim) error {
	indexID := entity.AirdropClaimIndexID(a.Address, cl.index)
	if _, seen, err := load[entity.AirdropClaimIndex](c, indexID); err != nil {
		return err
	} else if seen {
		return Skip(Inconsistent, "claim index %s of %s is already recorded", cl.index, a.Address.Hex())
	}
	if _, err := c.FetchAccount(cl.recipient); err != nil {
		return err
	}

	rec, ok, err := load[entity.AirdropRecipient](c, entity.PairID(a.Address, cl.recipient))
	if err != nil {
		return err
	}
	if !ok {
		rec = entity.NewAirdropRecipient(a.Address, cl.recipient)
	}
	if rec.FirstClaimedTimestamp == nil {
		ts := c.Timestamp()
		rec.FirstClaimedTimestamp = &ts
		a.TotalRecipients++
	}
	rec.ClaimedAmountExact = entity.AddInt(rec.ClaimedAmountExact, cl.amount)
	rec.ClaimedAmount = scale.ToDecimals(rec.ClaimedAmountExact, a.Decimals)
	rec.ClaimsCount++
	rec.LastClaimedTimestamp = c.Timestamp()
	if err := c.Save(rec); err != nil {
		return err
	}

	a.TotalClaims++
	a.TotalClaimedExact = entity.AddInt(a.TotalClaimedExact, cl.amount)
	return c.Save(&entity.AirdropClaimIndex{
		ID:          indexID,
		Airdrop:     a.Address,
		Recipient:   cl.recipient,
		Index:       cl.index,
		AmountExact: cl.amount,
		Amount:      scale.ToDecimals(cl.amount, a.Decimals),
		ClaimedAt:   c.Timestamp(),
		TxHash:      c.Event.TransactionHash,
	})
}

func (c *Context) vestingStrategy(a *entity.Airdrop) (*entity.LinearVestingStrategy, error) {
	s, ok, err := load[entity.LinearVestingStrategy](c, a.ID)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, Skip(Inconsistent, "vesting airdrop %s has no strategy", a.Address.Hex())
	}
	return s, nil
}

func (c *Context) vestingClaimed(a *entity.Airdrop, claims []claim, total *big.Int) error {
	s, err := c.vestingStrategy(a)
	if err != nil {
		return err
	}
	for _, cl := range claims {
		u, ok, err := load[entity.UserVestingData](c, entity.PairID(a.Address, cl.recipient))
		if err != nil {
			return err
		}
		if !ok {
			c.logger.Debug("vesting claim before initialization", zap.String("claimant", cl.recipient.Hex()))
			continue
		}
		u.ClaimedAmountExact = entity.AddInt(u.ClaimedAmountExact, cl.amount)
		u.ClaimedAmount = scale.ToDecimals(u.ClaimedAmountExact, a.Decimals)
		u.LastClaimedAt = c.Timestamp()
		if err := c.Save(u); err != nil {
			return err
		}
	}
	s.TotalClaimedExact = entity.AddInt(s.TotalClaimedExact, total)
	if err := c.Save(s); err != nil {
		return err
	}
	return c.vestingSnapshot(a, s, total)
}

type vestingInitializedParams struct {
	Claimant        common.Address `json:"claimant"`
	AllocatedAmount event.Uint256  `json:"allocatedAmount"`
	Index           event.Uint256  `json:"index"`
}

func onVestingInitialized(c *Context, p vestingInitializedParams) error {
	a, err := c.requireAirdrop()
	if err != nil {
		return err
	}
	s, err := c.vestingStrategy(a)
	if err != nil {
		return err
	}
	id := entity.PairID(a.Address, p.Claimant)
	if _, exists, err := load[entity.UserVestingData](c, id); err != nil {
		return err
	} else if exists {
		return Skip(Malformed, "vesting of %s is already initialized", p.Claimant.Hex())
	}
	if _, err := c.FetchAccount(p.Claimant); err != nil {
		return err
	}
	allocated := p.AllocatedAmount.Big()
	if err := c.Save(&entity.UserVestingData{
		ID:                   id,
		Airdrop:              a.Address,
		User:                 p.Claimant,
		AllocatedAmountExact: allocated,
		AllocatedAmount:      scale.ToDecimals(allocated, a.Decimals),
		ClaimedAmountExact:   new(big.Int),
		Index:                p.Index.Big(),
		VestingStart:         c.Timestamp(),
		Initialized:          true,
	}); err != nil {
		return err
	}
	s.InitializedCount++
	s.TotalVestedExact = entity.AddInt(s.TotalVestedExact, allocated)
	if err := c.Save(s); err != nil {
		return err
	}
	return c.vestingSnapshot(a, s, new(big.Int))
}

func (c *Context) vestingSnapshot(a *entity.Airdrop, s *entity.LinearVestingStrategy, claimed *big.Int) error {
	return c.Save(&entity.VestingStatsData{
		ID:                  c.SnapshotID(entity.KindVestingStatsData),
		Airdrop:             a.Address,
		EventName:           c.Event.Name,
		BlockNumber:         c.Event.BlockNumber,
		Timestamp:           c.Timestamp(),
		InitializedCount:    s.InitializedCount,
		ClaimedAmount:       scale.ToDecimals(claimed, a.Decimals),
		TotalVested:         scale.ToDecimals(s.TotalVestedExact, a.Decimals),
		TotalVestingClaimed: scale.ToDecimals(s.TotalClaimedExact, a.Decimals),
	})
}

type withdrawnParams struct {
	To     common.Address `json:"to"`
	Amount event.Uint256  `json:"amount"`
}

func onTokensWithdrawn(c *Context, p withdrawnParams) error {
	a, err := c.requireAirdrop()
	if err != nil {
		return err
	}
	a.WithdrawnExact = entity.AddInt(a.WithdrawnExact, p.Amount.Big())
	a.Withdrawn = scale.ToDecimals(a.WithdrawnExact, a.Decimals)
	return c.Save(a)
}
