package market

import (
	"crypto/sha256"
	"encoding/binary"
	"encoding/json"
	"fmt"

	"github.com/maexx393/mintgate/pkg/core/interop"
	"github.com/maexx393/mintgate/pkg/gate"
)

// Storage layout of the market contract within its host namespace. The
// primary map holds the listings keyed by their canonical TokenKey form. The
// four secondary maps hold per-parent sets of member keys; each parent gets
// its own sub-map prefix derived by hashing the parent key, so an account id
// playing several roles (owner and creator, say) can never produce
// overlapping sets.
var (
	prefixTokensForSale = []byte{0x10}
	prefixByNFTContract = []byte{0x11}
	prefixByGate        = []byte{0x12}
	prefixByOwner       = []byte{0x13}
	prefixByCreator     = []byte{0x14}
)

// memberMarker is the value stored under index set members, the key itself
// carries all the information.
var memberMarker = []byte{1}

func panicTokenKeyNotFound(key gate.TokenKey) {
	panic(fmt.Sprintf("Token Key `%s` was not found", key))
}

func makeKey(prefix, rest []byte) []byte {
	k := make([]byte, 0, len(prefix)+len(rest))
	return append(append(k, prefix...), rest...)
}

// listingKey is the primary map key of a listing.
func listingKey(key gate.TokenKey) []byte {
	return makeKey(prefixTokensForSale, key.Bytes())
}

// setPrefix is the storage prefix of one parent's member set within the
// given index.
func setPrefix(prefix, parent []byte) []byte {
	h := sha256.Sum256(parent)
	return makeKey(prefix, h[:])
}

func memberKey(prefix, parent, member []byte) []byte {
	return makeKey(setPrefix(prefix, parent), member)
}

// tokenIDBytes is the member form of a token id in the by-NFT-contract
// index, big-endian so iteration follows numeric order.
func tokenIDBytes(id gate.TokenID) []byte {
	b := make([]byte, 8)
	binary.BigEndian.PutUint64(b, uint64(id))
	return b
}

// book is the multi-index listing state of the market, bound to the storage
// of the executing receipt. All mutations of a single entry point land in
// one receipt layer, so the primary map and the indices move in lock-step:
// either the whole update persists or none of it does.
type book struct {
	ic *interop.Context
}

func newBook(ic *interop.Context) book {
	return book{ic: ic}
}

// get returns the listing stored under the key, if any.
func (b book) get(key gate.TokenKey) (*gate.TokenForSale, bool) {
	data := b.ic.StorageGet(listingKey(key))
	if data == nil {
		return nil, false
	}
	t := new(gate.TokenForSale)
	if err := json.Unmarshal(data, t); err != nil {
		panic(fmt.Sprintf("failed to decode listing `%s`: %v", key, err))
	}
	return t, true
}

// insert writes the listing and adds it to every index implied by its
// fields. Inserting over an existing key replaces the listing together with
// its index footprint, so a re-listed token is only discoverable through the
// dimensions of the latest approval.
func (b book) insert(t *gate.TokenForSale) {
	key := t.Key()
	if old, ok := b.get(key); ok {
		b.dropIndexed(old)
	}
	data, err := json.Marshal(t)
	if err != nil {
		panic(fmt.Sprintf("failed to encode listing `%s`: %v", key, err))
	}
	b.ic.StoragePut(listingKey(key), data)
	b.ic.StoragePut(memberKey(prefixByNFTContract, []byte(t.NFTContractID), tokenIDBytes(t.TokenID)), memberMarker)
	b.ic.StoragePut(memberKey(prefixByOwner, []byte(t.OwnerID), key.Bytes()), memberMarker)
	if t.GateID != nil {
		b.ic.StoragePut(memberKey(prefixByGate, []byte(*t.GateID), key.Bytes()), memberMarker)
	}
	if t.CreatorID != nil {
		b.ic.StoragePut(memberKey(prefixByCreator, []byte(*t.CreatorID), key.Bytes()), memberMarker)
	}
}

// remove deletes the listing and every index entry implied by its fields.
func (b book) remove(t *gate.TokenForSale) {
	b.ic.StorageDelete(listingKey(t.Key()))
	b.dropIndexed(t)
}

// dropIndexed removes the listing's entries from every index implied by its
// fields, leaving the primary map alone.
func (b book) dropIndexed(t *gate.TokenForSale) {
	key := t.Key()
	b.dropMember(prefixByNFTContract, []byte(t.NFTContractID), tokenIDBytes(t.TokenID), key)
	b.dropMember(prefixByOwner, []byte(t.OwnerID), key.Bytes(), key)
	if t.GateID != nil {
		b.dropMember(prefixByGate, []byte(*t.GateID), key.Bytes(), key)
	}
	if t.CreatorID != nil {
		b.dropMember(prefixByCreator, []byte(*t.CreatorID), key.Bytes(), key)
	}
}

// dropMember removes one member from the parent's set in the given index.
// The member must be there: a listing is inserted into its indices in the
// same receipt that writes it, so its absence means the book drifted.
func (b book) dropMember(prefix, parent, member []byte, key gate.TokenKey) {
	k := memberKey(prefix, parent, member)
	if b.ic.StorageGet(k) == nil {
		panicTokenKeyNotFound(key)
	}
	b.ic.StorageDelete(k)
}

// all returns every active listing in primary map order.
func (b book) all() []gate.TokenForSale {
	res := []gate.TokenForSale{}
	b.ic.StorageSeek(prefixTokensForSale, func(k, v []byte) bool {
		var t gate.TokenForSale
		if err := json.Unmarshal(v, &t); err != nil {
			panic(fmt.Sprintf("failed to decode listing `%s`: %v", k[len(prefixTokensForSale):], err))
		}
		res = append(res, t)
		return true
	})
	return res
}

func (b book) byOwner(id gate.AccountID) []gate.TokenForSale {
	return b.selectBy(prefixByOwner, []byte(id))
}

func (b book) byGate(id gate.GateID) []gate.TokenForSale {
	return b.selectBy(prefixByGate, []byte(id))
}

func (b book) byCreator(id gate.AccountID) []gate.TokenForSale {
	return b.selectBy(prefixByCreator, []byte(id))
}

// selectBy materializes the listings referenced by the parent's set in the
// given index, in set order. A member without a primary entry is fatal, the
// query must not paper over a broken index.
func (b book) selectBy(prefix, parent []byte) []gate.TokenForSale {
	sub := setPrefix(prefix, parent)
	var members [][]byte
	b.ic.StorageSeek(sub, func(k, v []byte) bool {
		member := make([]byte, len(k)-len(sub))
		copy(member, k[len(sub):])
		members = append(members, member)
		return true
	})
	res := []gate.TokenForSale{}
	for _, member := range members {
		data := b.ic.StorageGet(makeKey(prefixTokensForSale, member))
		if data == nil {
			panic(fmt.Sprintf("inconsistent market state: token `%s` indexed but not stored", member))
		}
		var t gate.TokenForSale
		if err := json.Unmarshal(data, &t); err != nil {
			panic(fmt.Sprintf("failed to decode listing `%s`: %v", member, err))
		}
		res = append(res, t)
	}
	return res
}
