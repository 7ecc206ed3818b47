package nft

import (
	"crypto/sha256"
	"encoding/binary"
	"encoding/json"
	"fmt"

	"github.com/maexx393/mintgate/pkg/core/interop"
	"github.com/maexx393/mintgate/pkg/gate"
)

// Storage layout of the contract namespace. Collectibles are keyed by gate
// id, tokens by their big-endian id. The by-owner index is a per-owner
// sub-map under a hashed owner prefix, members are token ids with a one-byte
// marker value.
var (
	prefixCollectibles = []byte{0x10}
	prefixTokens       = []byte{0x11}
	prefixByOwner      = []byte{0x12}
)

// Singleton keys.
var (
	keyTokenSeq = []byte{0x20}
	keyMarketID = []byte{0x21}
)

var memberMarker = []byte{1}

// Collectible groups the tokens that can be claimed under one gate: who
// created it, how many copies remain and the creator's royalty on resales.
type Collectible struct {
	GateID        gate.GateID    `json:"gate_id"`
	CreatorID     gate.AccountID `json:"creator_id"`
	CurrentSupply gate.U64       `json:"current_supply"`
	GateURL       string         `json:"gate_url"`
	MintedTokens  []gate.TokenID `json:"minted_tokens"`
	Royalty       gate.Fraction  `json:"royalty"`
}

// Token is one claimed copy of a collectible.
type Token struct {
	TokenID gate.TokenID   `json:"token_id"`
	GateID  gate.GateID    `json:"gate_id"`
	OwnerID gate.AccountID `json:"owner_id"`
	// CreatedAt is the claim time in nanoseconds and never changes.
	CreatedAt uint64 `json:"created_at"`
	// ModifiedAt tracks the last transfer.
	ModifiedAt uint64 `json:"modified_at"`
	// SenderID is the previous owner, empty until the first transfer.
	SenderID gate.AccountID `json:"sender_id"`
	// Approvals lists the accounts allowed to transfer the token on the
	// owner's behalf. Any transfer clears it.
	Approvals map[gate.AccountID]TokenApproval `json:"approvals"`
	// ApprovalCounter assigns approval ids and only ever grows.
	ApprovalCounter gate.U64 `json:"approval_counter"`
}

// TokenApproval is a grant that lets one account transfer the token if it is
// paid at least the minimum price.
type TokenApproval struct {
	ApprovalID gate.U64  `json:"approval_id"`
	MinPrice   gate.U128 `json:"min_price"`
}

func makeKey(prefix, rest []byte) []byte {
	k := make([]byte, 0, len(prefix)+len(rest))
	k = append(k, prefix...)
	return append(k, rest...)
}

func setPrefix(prefix, parent []byte) []byte {
	h := sha256.Sum256(parent)
	return makeKey(prefix, h[:])
}

func memberKey(prefix, parent, member []byte) []byte {
	return makeKey(setPrefix(prefix, parent), member)
}

func tokenIDBytes(id gate.TokenID) []byte {
	b := make([]byte, 8)
	binary.BigEndian.PutUint64(b, uint64(id))
	return b
}

// vault is the collectible and token store of the NFT contract. It keeps the
// by-owner index in step with the tokens it writes.
type vault struct {
	ic *interop.Context
}

func newVault(ic *interop.Context) vault {
	return vault{ic: ic}
}

func (v vault) getCollectible(id gate.GateID) (*Collectible, bool) {
	data := v.ic.StorageGet(makeKey(prefixCollectibles, []byte(id)))
	if data == nil {
		return nil, false
	}
	coll := new(Collectible)
	if err := json.Unmarshal(data, coll); err != nil {
		panic(fmt.Sprintf("failed to decode collectible `%s`: %v", id, err))
	}
	return coll, true
}

func (v vault) putCollectible(c *Collectible) {
	data, err := json.Marshal(c)
	if err != nil {
		panic(fmt.Sprintf("failed to encode collectible `%s`: %v", c.GateID, err))
	}
	v.ic.StoragePut(makeKey(prefixCollectibles, []byte(c.GateID)), data)
}

func (v vault) getToken(id gate.TokenID) (*Token, bool) {
	data := v.ic.StorageGet(makeKey(prefixTokens, tokenIDBytes(id)))
	if data == nil {
		return nil, false
	}
	t := new(Token)
	if err := json.Unmarshal(data, t); err != nil {
		panic(fmt.Sprintf("failed to decode token `%s`: %v", id, err))
	}
	return t, true
}

// mustToken returns the token or aborts the invocation with the not-found
// fault every token entry point shares.
func (v vault) mustToken(id gate.TokenID) *Token {
	t, ok := v.getToken(id)
	if !ok {
		panic(fmt.Sprintf("Token ID `%s` was not found", id))
	}
	return t
}

func (v vault) putToken(t *Token) {
	data, err := json.Marshal(t)
	if err != nil {
		panic(fmt.Sprintf("failed to encode token `%s`: %v", t.TokenID, err))
	}
	v.ic.StoragePut(makeKey(prefixTokens, tokenIDBytes(t.TokenID)), data)
}

// nextTokenID allocates the next sequential token id. Ids are unique across
// gates.
func (v vault) nextTokenID() gate.TokenID {
	var next uint64
	if data := v.ic.StorageGet(keyTokenSeq); data != nil {
		next = binary.BigEndian.Uint64(data)
	}
	buf := make([]byte, 8)
	binary.BigEndian.PutUint64(buf, next+1)
	v.ic.StoragePut(keyTokenSeq, buf)
	return gate.TokenID(next)
}

// totalSupply returns the number of tokens claimed so far.
func (v vault) totalSupply() gate.U64 {
	if data := v.ic.StorageGet(keyTokenSeq); data != nil {
		return gate.U64(binary.BigEndian.Uint64(data))
	}
	return 0
}

func (v vault) indexOwner(owner gate.AccountID, id gate.TokenID) {
	v.ic.StoragePut(memberKey(prefixByOwner, []byte(owner), tokenIDBytes(id)), memberMarker)
}

func (v vault) unindexOwner(owner gate.AccountID, id gate.TokenID) {
	k := memberKey(prefixByOwner, []byte(owner), tokenIDBytes(id))
	if v.ic.StorageGet(k) == nil {
		panic(fmt.Sprintf("Token ID `%s` was not found", id))
	}
	v.ic.StorageDelete(k)
}

// tokensByOwner materializes the owner's tokens in ascending id order. A
// member without a token entry is fatal.
func (v vault) tokensByOwner(owner gate.AccountID) []Token {
	sub := setPrefix(prefixByOwner, []byte(owner))
	var members [][]byte
	v.ic.StorageSeek(sub, func(k, _ []byte) bool {
		member := make([]byte, len(k)-len(sub))
		copy(member, k[len(sub):])
		members = append(members, member)
		return true
	})
	res := []Token{}
	for _, member := range members {
		id := gate.TokenID(binary.BigEndian.Uint64(member))
		t, ok := v.getToken(id)
		if !ok {
			panic(fmt.Sprintf("inconsistent token state: token `%s` indexed but not stored", id))
		}
		res = append(res, *t)
	}
	return res
}

// transferOwnership moves the token to the receiver, records the previous
// owner as the sender, clears the approvals and maintains the by-owner
// index. The approval counter is kept, ids stay unique over the token's
// lifetime.
func (v vault) transferOwnership(t *Token, receiver gate.AccountID, now uint64) {
	v.unindexOwner(t.OwnerID, t.TokenID)
	v.indexOwner(receiver, t.TokenID)
	t.SenderID = t.OwnerID
	t.OwnerID = receiver
	t.ModifiedAt = now
	t.Approvals = map[gate.AccountID]TokenApproval{}
	v.putToken(t)
}
