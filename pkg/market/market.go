/*
Package market implements the MintGate marketplace contract.

The market accepts listings from any NFT contract implementing the approval
protocol: nft_on_approve / nft_on_revoke / batch_on_approve calls coming from
an NFT contract create and destroy listings, with the predecessor account
adopted as the authoritative NFT contract id. The market does not verify
ownership itself; a contract injecting listings for tokens it cannot
transfer only produces buys that fail at settlement time.

A buy is a two-phase asynchronous chain. buy_token validates the deposit,
removes the listing and schedules nft_transfer_payout on the NFT contract
chained to the private make_payouts callback. Removing the listing before
the call is the commit point: once the chain crosses the receipt boundary
other invocations run in between, and the token must not be sellable twice.
If the transfer fails after that, the deposit stays on the market account
and recovery is out of band, because the market alone cannot tell a failed
transfer from a transfer that failed only to report.
*/
package market

import (
	"encoding/json"
	"fmt"

	"github.com/maexx393/mintgate/pkg/core/interop"
	"github.com/maexx393/mintgate/pkg/gate"
	"go.uber.org/zap"
)

// GasForRoyalties is the fixed gas reservation for the make_payouts
// callback of a buy. The outbound nft_transfer_payout call itself gets a
// third of the buy's prepaid gas. Both values are observable on the receipts
// a buy schedules and are part of the contract interface.
const GasForRoyalties interop.Gas = 120_000_000_000_000

// Contract is the marketplace contract.
type Contract struct {
	md *interop.ContractMD
}

// New creates a marketplace contract ready for registration on a shard.
func New() *Contract {
	c := &Contract{md: interop.NewContractMD()}
	c.md.AddMethod("init", interop.MethodMD{Func: c.init, Init: true})
	c.md.AddMethod("get_tokens_for_sale", interop.MethodMD{Func: c.getTokensForSale})
	c.md.AddMethod("get_tokens_by_owner_id", interop.MethodMD{Func: c.getTokensByOwnerID})
	c.md.AddMethod("get_tokens_by_gate_id", interop.MethodMD{Func: c.getTokensByGateID})
	c.md.AddMethod("get_tokens_by_creator_id", interop.MethodMD{Func: c.getTokensByCreatorID})
	c.md.AddMethod("buy_token", interop.MethodMD{Func: c.buyToken, Payable: true})
	c.md.AddMethod("nft_on_approve", interop.MethodMD{Func: c.nftOnApprove})
	c.md.AddMethod("nft_on_revoke", interop.MethodMD{Func: c.nftOnRevoke})
	c.md.AddMethod("batch_on_approve", interop.MethodMD{Func: c.batchOnApprove})
	c.md.AddMethod("make_payouts", interop.MethodMD{Func: c.makePayouts, Private: true})
	return c
}

// Invoke implements the core.Contract interface.
func (c *Contract) Invoke(ic *interop.Context, method string, params json.RawMessage) (json.RawMessage, error) {
	return c.md.Dispatch(ic, method, params)
}

func (c *Contract) init(_ *interop.Context, _ json.RawMessage) json.RawMessage {
	return nil
}

func (c *Contract) getTokensForSale(ic *interop.Context, _ json.RawMessage) json.RawMessage {
	return marshal(newBook(ic).all())
}

func (c *Contract) getTokensByOwnerID(ic *interop.Context, params json.RawMessage) json.RawMessage {
	args := struct {
		OwnerID gate.AccountID `json:"owner_id"`
	}{}
	interop.ParseParams(params, &args)
	return marshal(newBook(ic).byOwner(args.OwnerID))
}

func (c *Contract) getTokensByGateID(ic *interop.Context, params json.RawMessage) json.RawMessage {
	args := struct {
		GateID gate.GateID `json:"gate_id"`
	}{}
	interop.ParseParams(params, &args)
	return marshal(newBook(ic).byGate(args.GateID))
}

func (c *Contract) getTokensByCreatorID(ic *interop.Context, params json.RawMessage) json.RawMessage {
	args := struct {
		CreatorID gate.AccountID `json:"creator_id"`
	}{}
	interop.ParseParams(params, &args)
	return marshal(newBook(ic).byCreator(args.CreatorID))
}

// nftOnApprove lists a token for sale. It is invoked by an NFT contract
// after its owner approved the market to transfer the token; the msg string
// relays the sale conditions.
func (c *Contract) nftOnApprove(ic *interop.Context, params json.RawMessage) json.RawMessage {
	args := struct {
		TokenID    gate.TokenID   `json:"token_id"`
		OwnerID    gate.AccountID `json:"owner_id"`
		ApprovalID gate.U64       `json:"approval_id"`
		Msg        string         `json:"msg"`
	}{}
	interop.ParseParams(params, &args)

	msg, err := gate.ParseApproveMsg(args.Msg)
	if err != nil {
		panic(fmt.Sprintf("Could not find min_price in msg: %v", err))
	}
	addToken(ic, args.TokenID, args.OwnerID, args.ApprovalID, msg)
	return nil
}

// nftOnRevoke delists a token. Only the NFT contract that listed it can
// revoke it, since the predecessor account is part of the listing key.
func (c *Contract) nftOnRevoke(ic *interop.Context, params json.RawMessage) json.RawMessage {
	args := struct {
		TokenID gate.TokenID `json:"token_id"`
	}{}
	interop.ParseParams(params, &args)

	key := gate.TokenKey{NFTContractID: ic.PredecessorID(), TokenID: args.TokenID}
	b := newBook(ic)
	token, ok := b.get(key)
	if !ok {
		panicTokenKeyNotFound(key)
	}
	if token.NFTContractID != key.NFTContractID {
		panic(fmt.Sprintf("inconsistent market state: listing `%s` records NFT contract `%s`", key, token.NFTContractID))
	}
	b.remove(token)
	return nil
}

// batchEntry is one element of the batch_on_approve payload: a two-element
// JSON array pairing a token id with its approve message.
type batchEntry struct {
	TokenID gate.TokenID
	Msg     gate.ApproveMsg
}

// UnmarshalJSON implements the json.Unmarshaler interface.
func (e *batchEntry) UnmarshalJSON(data []byte) error {
	var pair []json.RawMessage
	if err := json.Unmarshal(data, &pair); err != nil {
		return err
	}
	if len(pair) != 2 {
		return fmt.Errorf("expected a [token_id, approve_msg] pair, got %d elements", len(pair))
	}
	if err := json.Unmarshal(pair[0], &e.TokenID); err != nil {
		return err
	}
	return json.Unmarshal(pair[1], &e.Msg)
}

// batchOnApprove lists several tokens of one owner at once. Batched
// approvals carry no per-token approval handle, so approval_id is zero for
// all of them.
func (c *Contract) batchOnApprove(ic *interop.Context, params json.RawMessage) json.RawMessage {
	args := struct {
		Tokens  []batchEntry   `json:"tokens"`
		OwnerID gate.AccountID `json:"owner_id"`
	}{}
	interop.ParseParams(params, &args)

	for _, e := range args.Tokens {
		addToken(ic, e.TokenID, args.OwnerID, 0, e.Msg)
	}
	return nil
}

// addToken builds a listing out of an approval notification and inserts it
// into the book. The predecessor is trusted to be the authoritative NFT
// contract for the token, see the package comment on this trust boundary.
func addToken(ic *interop.Context, tokenID gate.TokenID, ownerID gate.AccountID, approvalID gate.U64, msg gate.ApproveMsg) {
	newBook(ic).insert(&gate.TokenForSale{
		NFTContractID: ic.PredecessorID(),
		TokenID:       tokenID,
		OwnerID:       ownerID,
		ApprovalID:    approvalID,
		MinPrice:      msg.MinPrice,
		GateID:        msg.GateID,
		CreatorID:     msg.CreatorID,
	})
}

// transferPayoutArgs is the wire form of the nft_transfer_payout call issued
// for a buy. ApprovalID and Memo are always absent: the NFT contract
// identifies the market's approval by the caller account itself.
type transferPayoutArgs struct {
	ReceiverID gate.AccountID `json:"receiver_id"`
	TokenID    gate.TokenID   `json:"token_id"`
	ApprovalID *gate.U64      `json:"approval_id,omitempty"`
	Memo       *string        `json:"memo,omitempty"`
	Balance    *gate.U128     `json:"balance,omitempty"`
}

// buyToken sells the listed token to the predecessor. The attached deposit
// must cover the listing's minimum price and is forwarded in full to the
// royalty split the NFT contract computes.
func (c *Contract) buyToken(ic *interop.Context, params json.RawMessage) json.RawMessage {
	args := struct {
		NFTContractID gate.AccountID `json:"nft_contract_id"`
		TokenID       gate.TokenID   `json:"token_id"`
	}{}
	interop.ParseParams(params, &args)

	key := gate.TokenKey{NFTContractID: args.NFTContractID, TokenID: args.TokenID}
	b := newBook(ic)
	token, ok := b.get(key)
	if !ok {
		panicTokenKeyNotFound(key)
	}
	buyer := ic.PredecessorID()
	if buyer == token.OwnerID {
		panic("Buyer cannot buy own token")
	}
	deposit := ic.Deposit()
	if deposit.Cmp(token.MinPrice) < 0 {
		panic("Not enough deposit to cover token minimum price")
	}

	// Commit point: the listing goes away before the transfer call crosses
	// the receipt boundary, so no other invocation can buy it twice. A
	// fault up to here reverts the removal together with the deposit.
	b.remove(token)

	ic.Log.Info("buy committed",
		zap.Stringer("key", key),
		zap.String("buyer", string(buyer)),
		zap.String("deposit", deposit.String()))

	idx := ic.Call(args.NFTContractID, "nft_transfer_payout", transferPayoutArgs{
		ReceiverID: buyer,
		TokenID:    args.TokenID,
		Balance:    &deposit,
	}, gate.U128{}, ic.PrepaidGas()/3)
	ic.Then(idx, "make_payouts", nil, gate.U128{}, GasForRoyalties)
	return nil
}

// makePayouts distributes a buy's deposit according to the royalty split
// returned by the NFT contract. It runs as the second step of the buy chain
// and must only ever be called by the market itself.
func (c *Contract) makePayouts(ic *interop.Context, _ json.RawMessage) json.RawMessage {
	res := ic.PromiseResult(0)
	switch res.State {
	case interop.Failed:
		// The listing is gone and the transfer did not happen. No refund
		// is attempted: whether the buyer may be made whole depends on the
		// NFT contract's state, which the market cannot observe from here.
		// The deposit stays on the market account for out-of-band recovery.
		ic.Log.Warn("nft_transfer_payout failed, market retains the deposit",
			zap.String("market", string(ic.CurrentID())))
		return nil
	case interop.Successful:
		var payout gate.Payout
		if err := json.Unmarshal(res.Value, &payout); err != nil {
			panic(fmt.Sprintf("malformed payout from NFT contract: %v", err))
		}
		for _, entry := range payout {
			ic.Transfer(entry.ReceiverID, entry.Amount)
		}
		ic.Log.Info("payouts distributed", zap.Int("receivers", len(payout)))
		return nil
	default:
		panic("make_payouts invoked with an unresolved dependency")
	}
}

func marshal(v any) json.RawMessage {
	data, err := json.Marshal(v)
	if err != nil {
		panic(fmt.Sprintf("failed to encode result: %v", err))
	}
	return data
}
