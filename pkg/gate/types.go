/*
Package gate provides the domain types shared by the MintGate contracts and
the host runtime: account and token identifiers, 64/128-bit JSON integers,
royalty fractions and the payloads exchanged between the NFT and the Market
contracts. All wire types use JSON with snake_case field names; integer
amounts travel as decimal strings.
*/
package gate

import (
	"encoding/json"
	"errors"
	"fmt"
)

const (
	minAccountIDLen = 2
	maxAccountIDLen = 64
)

// AccountID is a human-readable account identifier on the platform, used
// both for user accounts and for accounts holding a contract.
type AccountID string

// Validate checks that the id is 2 to 64 characters of lowercase letters,
// digits, '.', '_' or '-'.
func (a AccountID) Validate() error {
	if len(a) < minAccountIDLen || len(a) > maxAccountIDLen {
		return fmt.Errorf("account id must be %d to %d characters, got %d", minAccountIDLen, maxAccountIDLen, len(a))
	}
	for i := 0; i < len(a); i++ {
		c := a[i]
		if ('a' <= c && c <= 'z') || ('0' <= c && c <= '9') || c == '.' || c == '_' || c == '-' {
			continue
		}
		return fmt.Errorf("account id %q contains invalid character %q", string(a), string(c))
	}
	return nil
}

// GateID identifies a collectible family on an NFT contract. Every token
// minted from the same collectible shares its GateID.
type GateID string

// Validate checks that the id is not empty.
func (g GateID) Validate() error {
	if len(g) == 0 {
		return errors.New("gate id must not be empty")
	}
	return nil
}

// TokenKey identifies a token across all NFT contracts tracked by the
// market: the NFT contract account paired with the token id within it.
type TokenKey struct {
	NFTContractID AccountID
	TokenID       TokenID
}

// String returns the canonical "<contract>:<id>" form. A valid AccountID
// cannot contain ':', so the form is unambiguous.
func (k TokenKey) String() string {
	return string(k.NFTContractID) + ":" + k.TokenID.String()
}

// Bytes returns the canonical form for use as a storage key.
func (k TokenKey) Bytes() []byte {
	return []byte(k.String())
}

// ApproveMsg is the payload an NFT contract relays inside its on-approve
// notification. MinPrice is mandatory. GateID and CreatorID are filled by
// NFT contracts that track collectibles, enabling the market's by-gate and
// by-creator indices.
type ApproveMsg struct {
	MinPrice  U128       `json:"min_price"`
	GateID    *GateID    `json:"gate_id,omitempty"`
	CreatorID *AccountID `json:"creator_id,omitempty"`
}

// UnmarshalJSON implements the json.Unmarshaler interface. A missing
// min_price field is an error even when the JSON itself is valid.
func (m *ApproveMsg) UnmarshalJSON(data []byte) error {
	aux := struct {
		MinPrice  *U128      `json:"min_price"`
		GateID    *GateID    `json:"gate_id"`
		CreatorID *AccountID `json:"creator_id"`
	}{}
	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}
	if aux.MinPrice == nil {
		return errors.New("missing required field `min_price`")
	}
	*m = ApproveMsg{MinPrice: *aux.MinPrice, GateID: aux.GateID, CreatorID: aux.CreatorID}
	return nil
}

// ParseApproveMsg decodes the msg string of an approve notification.
func ParseApproveMsg(msg string) (ApproveMsg, error) {
	var m ApproveMsg
	if err := json.Unmarshal([]byte(msg), &m); err != nil {
		return ApproveMsg{}, err
	}
	return m, nil
}

// TokenForSale is a single market listing: the token key, the owner who
// approved the sale, the approval id to quote back to the NFT contract and
// the minimum price. GateID and CreatorID are present when the listing NFT
// contract supplied them.
type TokenForSale struct {
	NFTContractID AccountID  `json:"nft_contract_id"`
	TokenID       TokenID    `json:"token_id"`
	OwnerID       AccountID  `json:"owner_id"`
	ApprovalID    U64        `json:"approval_id"`
	MinPrice      U128       `json:"min_price"`
	GateID        *GateID    `json:"gate_id,omitempty"`
	CreatorID     *AccountID `json:"creator_id,omitempty"`
}

// Key returns the TokenKey the listing is stored under.
func (t *TokenForSale) Key() TokenKey {
	return TokenKey{NFTContractID: t.NFTContractID, TokenID: t.TokenID}
}
