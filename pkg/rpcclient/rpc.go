package rpcclient

import (
	"github.com/maexx393/mintgate/pkg/gate"
	"github.com/maexx393/mintgate/pkg/services/rpcsrv"
)

// GetTokensForSale returns every active listing of the market.
func (c *Client) GetTokensForSale() ([]gate.TokenForSale, error) {
	var resp []gate.TokenForSale
	if err := c.performRequest("get_tokens_for_sale", nil, &resp); err != nil {
		return nil, err
	}
	return resp, nil
}

// GetTokensByOwnerID returns the market listings owned by the given account.
func (c *Client) GetTokensByOwnerID(owner gate.AccountID) ([]gate.TokenForSale, error) {
	var resp []gate.TokenForSale
	if err := c.performRequest("get_tokens_by_owner_id", rpcsrv.TokensParams{OwnerID: owner}, &resp); err != nil {
		return nil, err
	}
	return resp, nil
}

// GetTokensByGateID returns the market listings minted from the given gate.
func (c *Client) GetTokensByGateID(gateID gate.GateID) ([]gate.TokenForSale, error) {
	var resp []gate.TokenForSale
	if err := c.performRequest("get_tokens_by_gate_id", rpcsrv.TokensParams{GateID: gateID}, &resp); err != nil {
		return nil, err
	}
	return resp, nil
}

// GetTokensByCreatorID returns the market listings created by the given
// account.
func (c *Client) GetTokensByCreatorID(creator gate.AccountID) ([]gate.TokenForSale, error) {
	var resp []gate.TokenForSale
	if err := c.performRequest("get_tokens_by_creator_id", rpcsrv.TokensParams{CreatorID: creator}, &resp); err != nil {
		return nil, err
	}
	return resp, nil
}

// GetBalance returns the native balance of the given account.
func (c *Client) GetBalance(account gate.AccountID) (gate.U128, error) {
	var resp rpcsrv.BalanceResult
	if err := c.performRequest("get_balance", rpcsrv.BalanceParams{AccountID: account}, &resp); err != nil {
		return gate.U128{}, err
	}
	return resp.Balance, nil
}

// Call submits an external call to the shard and returns the receipts of
// the whole execution it produced.
func (c *Client) Call(params rpcsrv.CallParams) (*rpcsrv.CallResult, error) {
	var resp rpcsrv.CallResult
	if err := c.performRequest("call", params, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}
