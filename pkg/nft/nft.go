/*
Package nft implements the MintGate NFT contract. Creators register
collectibles under a gate id with a fixed supply and a royalty fraction,
anyone claims tokens from that supply, and owners approve a market to sell
them.

The market's transfer leg of a sale lands in nft_transfer_payout: the
contract checks the recorded approval, splits the sale balance between the
collectible's creator (the royalty cut) and the current owner, and only then
moves ownership. The split is returned to the market, which performs the
actual transfers.
*/
package nft

import (
	"encoding/json"
	"fmt"
	"sort"

	"github.com/maexx393/mintgate/pkg/core/interop"
	"github.com/maexx393/mintgate/pkg/gate"
	"go.uber.org/zap"
)

// Contract is the NFT contract.
type Contract struct {
	md *interop.ContractMD
}

// New creates the NFT contract with its method table.
func New() *Contract {
	c := &Contract{md: interop.NewContractMD()}
	c.md.AddMethod("init", interop.MethodMD{Func: c.init, Init: true})
	c.md.AddMethod("create_collectible", interop.MethodMD{Func: c.createCollectible})
	c.md.AddMethod("claim_token", interop.MethodMD{Func: c.claimToken})
	c.md.AddMethod("get_collectible", interop.MethodMD{Func: c.getCollectible})
	c.md.AddMethod("nft_token", interop.MethodMD{Func: c.nftToken})
	c.md.AddMethod("nft_total_supply", interop.MethodMD{Func: c.nftTotalSupply})
	c.md.AddMethod("get_tokens_by_owner", interop.MethodMD{Func: c.getTokensByOwner})
	c.md.AddMethod("nft_approve", interop.MethodMD{Func: c.nftApprove})
	c.md.AddMethod("nft_revoke", interop.MethodMD{Func: c.nftRevoke})
	c.md.AddMethod("nft_revoke_all", interop.MethodMD{Func: c.nftRevokeAll})
	c.md.AddMethod("nft_transfer", interop.MethodMD{Func: c.nftTransfer})
	c.md.AddMethod("nft_transfer_payout", interop.MethodMD{Func: c.nftTransferPayout})
	return c
}

// Invoke implements the core.Contract interface.
func (c *Contract) Invoke(ic *interop.Context, method string, params json.RawMessage) (json.RawMessage, error) {
	return c.md.Dispatch(ic, method, params)
}

// init stores the optional default market account approvals are relayed to
// when nft_approve is called without an explicit one.
func (c *Contract) init(ic *interop.Context, params json.RawMessage) json.RawMessage {
	if len(params) == 0 {
		return nil
	}
	args := struct {
		MarketID *gate.AccountID `json:"market_id"`
	}{}
	interop.ParseParams(params, &args)
	if args.MarketID != nil {
		ic.StoragePut(keyMarketID, []byte(*args.MarketID))
	}
	return nil
}

func (c *Contract) createCollectible(ic *interop.Context, params json.RawMessage) json.RawMessage {
	args := struct {
		GateID     gate.GateID `json:"gate_id"`
		Supply     gate.U64    `json:"supply"`
		RoyaltyNum uint32      `json:"royalty_num"`
		RoyaltyDen uint32      `json:"royalty_den"`
		GateURL    *string     `json:"gate_url"`
	}{}
	interop.ParseParams(params, &args)
	if err := args.GateID.Validate(); err != nil {
		panic(err.Error())
	}
	royalty := gate.NewFraction(args.RoyaltyNum, args.RoyaltyDen)

	v := newVault(ic)
	if _, ok := v.getCollectible(args.GateID); ok {
		panic(fmt.Sprintf("Gate ID `%s` already exists", args.GateID))
	}
	coll := &Collectible{
		GateID:        args.GateID,
		CreatorID:     ic.PredecessorID(),
		CurrentSupply: args.Supply,
		MintedTokens:  []gate.TokenID{},
		Royalty:       royalty,
	}
	if args.GateURL != nil {
		coll.GateURL = *args.GateURL
	}
	v.putCollectible(coll)

	ic.Log.Info("collectible created",
		zap.String("gate", string(coll.GateID)),
		zap.String("creator", string(coll.CreatorID)),
		zap.Stringer("royalty", coll.Royalty),
		zap.String("supply", coll.CurrentSupply.String()))
	return nil
}

// claimToken mints the next token of the gate to the caller while the supply
// lasts and returns the token id.
func (c *Contract) claimToken(ic *interop.Context, params json.RawMessage) json.RawMessage {
	args := struct {
		GateID gate.GateID `json:"gate_id"`
	}{}
	interop.ParseParams(params, &args)

	v := newVault(ic)
	coll, ok := v.getCollectible(args.GateID)
	if !ok {
		panic(fmt.Sprintf("Gate ID `%s` was not found", args.GateID))
	}
	if coll.CurrentSupply == 0 {
		panic(fmt.Sprintf("Tokens for gate `%s` are sold out", args.GateID))
	}

	now := ic.BlockTimestamp()
	t := &Token{
		TokenID:    v.nextTokenID(),
		GateID:     coll.GateID,
		OwnerID:    ic.PredecessorID(),
		CreatedAt:  now,
		ModifiedAt: now,
		Approvals:  map[gate.AccountID]TokenApproval{},
	}
	coll.CurrentSupply--
	coll.MintedTokens = append(coll.MintedTokens, t.TokenID)
	v.putCollectible(coll)
	v.putToken(t)
	v.indexOwner(t.OwnerID, t.TokenID)

	ic.Log.Info("token claimed",
		zap.Stringer("token", t.TokenID),
		zap.String("gate", string(t.GateID)),
		zap.String("owner", string(t.OwnerID)))
	return marshal(t.TokenID)
}

func (c *Contract) getCollectible(ic *interop.Context, params json.RawMessage) json.RawMessage {
	args := struct {
		GateID gate.GateID `json:"gate_id"`
	}{}
	interop.ParseParams(params, &args)
	coll, ok := newVault(ic).getCollectible(args.GateID)
	if !ok {
		return marshal(nil)
	}
	return marshal(coll)
}

func (c *Contract) nftToken(ic *interop.Context, params json.RawMessage) json.RawMessage {
	args := struct {
		TokenID gate.TokenID `json:"token_id"`
	}{}
	interop.ParseParams(params, &args)
	t, ok := newVault(ic).getToken(args.TokenID)
	if !ok {
		return marshal(nil)
	}
	return marshal(t)
}

func (c *Contract) nftTotalSupply(ic *interop.Context, _ json.RawMessage) json.RawMessage {
	return marshal(newVault(ic).totalSupply())
}

func (c *Contract) getTokensByOwner(ic *interop.Context, params json.RawMessage) json.RawMessage {
	args := struct {
		OwnerID gate.AccountID `json:"owner_id"`
	}{}
	interop.ParseParams(params, &args)
	return marshal(newVault(ic).tokensByOwner(args.OwnerID))
}

// onApproveArgs is the envelope relayed to the market when an approval is
// granted.
type onApproveArgs struct {
	TokenID    gate.TokenID   `json:"token_id"`
	OwnerID    gate.AccountID `json:"owner_id"`
	ApprovalID gate.U64       `json:"approval_id"`
	Msg        string         `json:"msg"`
}

// onRevokeArgs is the envelope relayed to the market when an approval is
// withdrawn.
type onRevokeArgs struct {
	TokenID gate.TokenID `json:"token_id"`
}

// nftApprove grants the account the right to transfer the token for at least
// the minimum price carried in msg and relays the approval to it, enriched
// with the collectible's gate and creator. Without an explicit account the
// market configured at init is approved.
func (c *Contract) nftApprove(ic *interop.Context, params json.RawMessage) json.RawMessage {
	args := struct {
		TokenID   gate.TokenID    `json:"token_id"`
		AccountID *gate.AccountID `json:"account_id"`
		Msg       string          `json:"msg"`
	}{}
	interop.ParseParams(params, &args)

	msg, err := gate.ParseApproveMsg(args.Msg)
	if err != nil {
		panic(fmt.Sprintf("Could not find min_price in msg: %v", err))
	}

	v := newVault(ic)
	t := v.mustToken(args.TokenID)
	requireOwner(ic, t)

	receiver := approvalReceiver(ic, args.AccountID)
	t.ApprovalCounter++
	t.Approvals[receiver] = TokenApproval{ApprovalID: t.ApprovalCounter, MinPrice: msg.MinPrice}
	v.putToken(t)

	coll, ok := v.getCollectible(t.GateID)
	if !ok {
		panic(fmt.Sprintf("inconsistent token state: gate `%s` of token `%s` is not stored", t.GateID, t.TokenID))
	}
	relayed := gate.ApproveMsg{MinPrice: msg.MinPrice, GateID: &coll.GateID, CreatorID: &coll.CreatorID}
	ic.Call(receiver, "nft_on_approve", onApproveArgs{
		TokenID:    t.TokenID,
		OwnerID:    t.OwnerID,
		ApprovalID: t.ApprovalCounter,
		Msg:        string(marshal(relayed)),
	}, gate.U128{}, ic.PrepaidGas()/2)

	ic.Log.Info("approval granted",
		zap.Stringer("token", t.TokenID),
		zap.String("approved", string(receiver)),
		zap.String("min_price", msg.MinPrice.String()))
	return nil
}

// nftRevoke withdraws the account's approval and relays the revocation to
// it.
func (c *Contract) nftRevoke(ic *interop.Context, params json.RawMessage) json.RawMessage {
	args := struct {
		TokenID   gate.TokenID   `json:"token_id"`
		AccountID gate.AccountID `json:"account_id"`
	}{}
	interop.ParseParams(params, &args)

	v := newVault(ic)
	t := v.mustToken(args.TokenID)
	requireOwner(ic, t)
	if _, ok := t.Approvals[args.AccountID]; !ok {
		panic(fmt.Sprintf("Account `%s` is not approved for token `%s`", args.AccountID, t.TokenID))
	}
	delete(t.Approvals, args.AccountID)
	v.putToken(t)

	ic.Call(args.AccountID, "nft_on_revoke", onRevokeArgs{TokenID: t.TokenID},
		gate.U128{}, ic.PrepaidGas()/2)
	return nil
}

// nftRevokeAll withdraws every approval of the token, relaying the
// revocation to each holder.
func (c *Contract) nftRevokeAll(ic *interop.Context, params json.RawMessage) json.RawMessage {
	args := struct {
		TokenID gate.TokenID `json:"token_id"`
	}{}
	interop.ParseParams(params, &args)

	v := newVault(ic)
	t := v.mustToken(args.TokenID)
	requireOwner(ic, t)
	if len(t.Approvals) == 0 {
		return nil
	}

	holders := make([]gate.AccountID, 0, len(t.Approvals))
	for id := range t.Approvals {
		holders = append(holders, id)
	}
	sort.Slice(holders, func(i, j int) bool { return holders[i] < holders[j] })

	t.Approvals = map[gate.AccountID]TokenApproval{}
	v.putToken(t)

	gas := ic.PrepaidGas() / interop.Gas(2*len(holders))
	for _, id := range holders {
		ic.Call(id, "nft_on_revoke", onRevokeArgs{TokenID: t.TokenID}, gate.U128{}, gas)
	}
	return nil
}

func (c *Contract) nftTransfer(ic *interop.Context, params json.RawMessage) json.RawMessage {
	args := struct {
		ReceiverID        gate.AccountID `json:"receiver_id"`
		TokenID           gate.TokenID   `json:"token_id"`
		EnforceApprovalID *gate.U64      `json:"enforce_approval_id"`
		Memo              *string        `json:"memo"`
	}{}
	interop.ParseParams(params, &args)

	v := newVault(ic)
	t := v.mustToken(args.TokenID)
	authorizeSender(ic, t, args.EnforceApprovalID)
	v.transferOwnership(t, args.ReceiverID, ic.BlockTimestamp())

	ic.Log.Info("token transferred",
		zap.Stringer("token", t.TokenID),
		zap.String("from", string(t.SenderID)),
		zap.String("to", string(t.OwnerID)))
	return nil
}

// nftTransferPayout is the market's transfer leg of a sale. The royalty
// split of the sale balance is computed against the owner selling the token,
// before ownership changes hands.
func (c *Contract) nftTransferPayout(ic *interop.Context, params json.RawMessage) json.RawMessage {
	args := struct {
		ReceiverID gate.AccountID `json:"receiver_id"`
		TokenID    gate.TokenID   `json:"token_id"`
		ApprovalID *gate.U64      `json:"approval_id"`
		Memo       *string        `json:"memo"`
		Balance    *gate.U128     `json:"balance"`
	}{}
	interop.ParseParams(params, &args)

	v := newVault(ic)
	t := v.mustToken(args.TokenID)
	authorizeSender(ic, t, args.ApprovalID)

	var payout gate.Payout
	if args.Balance != nil {
		payout = computePayout(v, t, *args.Balance)
	}
	v.transferOwnership(t, args.ReceiverID, ic.BlockTimestamp())

	ic.Log.Info("token sold",
		zap.Stringer("token", t.TokenID),
		zap.String("from", string(t.SenderID)),
		zap.String("to", string(t.OwnerID)))
	if args.Balance == nil {
		return nil
	}
	return marshal(payout)
}

// computePayout splits the sale balance between the collectible's creator
// and the token's owner. The owner selling their own creation gets a single
// merged entry.
func computePayout(v vault, t *Token, balance gate.U128) gate.Payout {
	coll, ok := v.getCollectible(t.GateID)
	if !ok {
		panic(fmt.Sprintf("inconsistent token state: gate `%s` of token `%s` is not stored", t.GateID, t.TokenID))
	}
	var payout gate.Payout
	if t.OwnerID == coll.CreatorID {
		payout.Set(t.OwnerID, balance)
		return payout
	}
	royalty := coll.Royalty.Mult(balance)
	// The fraction is at most 1, the cut cannot exceed the balance.
	rest, _ := balance.Sub(royalty)
	payout.Set(coll.CreatorID, royalty)
	payout.Set(t.OwnerID, rest)
	return payout
}

// requireOwner faults unless the call comes from the token's owner.
func requireOwner(ic *interop.Context, t *Token) {
	if ic.PredecessorID() != t.OwnerID {
		panic(fmt.Sprintf("Account `%s` does not own token `%s`", ic.PredecessorID(), t.TokenID))
	}
}

// authorizeSender checks that the predecessor may transfer the token: the
// owner always may, anyone else needs a recorded approval matching the
// enforced approval id when one is given.
func authorizeSender(ic *interop.Context, t *Token, enforce *gate.U64) {
	sender := ic.PredecessorID()
	if sender == t.OwnerID {
		return
	}
	a, ok := t.Approvals[sender]
	if !ok {
		panic("Sender not approved")
	}
	if enforce != nil && *enforce != a.ApprovalID {
		panic("The approval_id is different")
	}
}

// approvalReceiver resolves the account notified about approval changes: the
// explicit one when given, otherwise the market configured at init.
func approvalReceiver(ic *interop.Context, explicit *gate.AccountID) gate.AccountID {
	if explicit != nil {
		return *explicit
	}
	if data := ic.StorageGet(keyMarketID); data != nil {
		return gate.AccountID(data)
	}
	panic("No market account to approve for")
}

func marshal(v any) json.RawMessage {
	data, err := json.Marshal(v)
	if err != nil {
		panic(fmt.Sprintf("failed to encode result: %v", err))
	}
	return data
}
