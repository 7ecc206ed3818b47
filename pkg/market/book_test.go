package market

import (
	"math/rand"
	"testing"

	"github.com/maexx393/mintgate/pkg/core/interop"
	"github.com/maexx393/mintgate/pkg/core/storage"
	"github.com/maexx393/mintgate/pkg/gate"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

func newTestBook(t *testing.T) book {
	dao := storage.NewMemCachedStore(storage.NewMemoryStore())
	ic := interop.NewContext(dao, []byte{byte(storage.STStorage), 1, 0, 0, 0}, interop.Env{
		CurrentID:  "market.mintgate",
		PrepaidGas: interop.MaxPrepaidGas,
	}, nil, zaptest.NewLogger(t))
	return newBook(ic)
}

// checkIndexes rebuilds the member-key set implied by the primary map and
// requires the stored indices to match it exactly: one member per listing
// and dimension, nothing dangling, nothing missing.
func checkIndexes(t *testing.T, b book) {
	t.Helper()
	expected := map[string]bool{}
	for _, l := range b.all() {
		key := l.Key()
		expected[string(memberKey(prefixByNFTContract, []byte(l.NFTContractID), tokenIDBytes(l.TokenID)))] = true
		expected[string(memberKey(prefixByOwner, []byte(l.OwnerID), key.Bytes()))] = true
		if l.GateID != nil {
			expected[string(memberKey(prefixByGate, []byte(*l.GateID), key.Bytes()))] = true
		}
		if l.CreatorID != nil {
			expected[string(memberKey(prefixByCreator, []byte(*l.CreatorID), key.Bytes()))] = true
		}
	}
	actual := map[string]bool{}
	for _, prefix := range [][]byte{prefixByNFTContract, prefixByGate, prefixByOwner, prefixByCreator} {
		b.ic.StorageSeek(prefix, func(k, v []byte) bool {
			actual[string(k)] = true
			return true
		})
	}
	require.Equal(t, expected, actual)
}

func TestBookGet(t *testing.T) {
	b := newTestBook(t)
	_, ok := b.get(gate.TokenKey{NFTContractID: "nft-a.mintgate", TokenID: 1})
	require.False(t, ok)

	tk := &gate.TokenForSale{
		NFTContractID: "nft-a.mintgate",
		TokenID:       1,
		OwnerID:       "alice",
		ApprovalID:    3,
		MinPrice:      gate.NewU128(10),
	}
	b.insert(tk)
	got, ok := b.get(tk.Key())
	require.True(t, ok)
	require.Equal(t, tk, got)
}

func TestBookEmptyQueries(t *testing.T) {
	b := newTestBook(t)
	require.NotNil(t, b.all())
	require.Empty(t, b.all())
	require.NotNil(t, b.byOwner("alice"))
	require.Empty(t, b.byGate("G1"))
	require.Empty(t, b.byCreator("carol"))
}

// TestBookIndexConsistency drives the book with a deterministic stream of
// inserts, overwrites and removals against an in-memory model and checks the
// index footprint after every step.
func TestBookIndexConsistency(t *testing.T) {
	b := newTestBook(t)
	r := rand.New(rand.NewSource(42))

	contracts := []gate.AccountID{"nft-a.mintgate", "nft-b.mintgate"}
	owners := []gate.AccountID{"alice", "bob", "carol"}
	gates := []gate.GateID{"", "G1", "G2"}
	creators := []gate.AccountID{"", "carol", "dan"}

	live := map[string]*gate.TokenForSale{}
	var keys []gate.TokenKey

	randToken := func() *gate.TokenForSale {
		tk := &gate.TokenForSale{
			NFTContractID: contracts[r.Intn(len(contracts))],
			TokenID:       gate.TokenID(r.Intn(8)),
			OwnerID:       owners[r.Intn(len(owners))],
			ApprovalID:    gate.U64(r.Intn(100)),
			MinPrice:      gate.NewU128(uint64(r.Intn(10_000))),
		}
		if g := gates[r.Intn(len(gates))]; g != "" {
			tk.GateID = &g
		}
		if c := creators[r.Intn(len(creators))]; c != "" {
			tk.CreatorID = &c
		}
		return tk
	}

	for i := 0; i < 200; i++ {
		if len(keys) > 0 && r.Intn(3) == 0 {
			j := r.Intn(len(keys))
			k := keys[j]
			b.remove(live[k.String()])
			delete(live, k.String())
			keys = append(keys[:j], keys[j+1:]...)
		} else {
			tk := randToken()
			b.insert(tk)
			if _, ok := live[tk.Key().String()]; !ok {
				keys = append(keys, tk.Key())
			}
			live[tk.Key().String()] = tk
		}
		checkIndexes(t, b)
	}

	all := b.all()
	require.Len(t, all, len(live))
	for i := range all {
		require.Equal(t, *live[all[i].Key().String()], all[i])
	}
}

// Overwriting a listing replaces its whole index footprint, including the
// dimensions the previous approval had and the new one does not.
func TestBookOverwriteReplacesFootprint(t *testing.T) {
	b := newTestBook(t)
	g := gate.GateID("G1")
	c := gate.AccountID("carol")
	b.insert(&gate.TokenForSale{
		NFTContractID: "nft-a.mintgate", TokenID: 7, OwnerID: "alice",
		ApprovalID: 1, MinPrice: gate.NewU128(1000), GateID: &g, CreatorID: &c,
	})
	b.insert(&gate.TokenForSale{
		NFTContractID: "nft-a.mintgate", TokenID: 7, OwnerID: "bob",
		ApprovalID: 2, MinPrice: gate.NewU128(2000),
	})

	require.Empty(t, b.byGate("G1"))
	require.Empty(t, b.byCreator("carol"))
	require.Empty(t, b.byOwner("alice"))
	require.Len(t, b.byOwner("bob"), 1)
	require.Len(t, b.all(), 1)
	checkIndexes(t, b)
}

func TestBookMissingMemberPanics(t *testing.T) {
	b := newTestBook(t)
	g := gate.GateID("G1")
	tk := &gate.TokenForSale{
		NFTContractID: "nft-a.mintgate", TokenID: 1, OwnerID: "alice",
		MinPrice: gate.NewU128(10), GateID: &g,
	}
	b.insert(tk)
	b.ic.StorageDelete(memberKey(prefixByGate, []byte(g), tk.Key().Bytes()))

	require.PanicsWithValue(t, "Token Key `nft-a.mintgate:1` was not found",
		func() { b.remove(tk) })
}

func TestBookDanglingMemberPanics(t *testing.T) {
	b := newTestBook(t)
	tk := &gate.TokenForSale{
		NFTContractID: "nft-a.mintgate", TokenID: 1, OwnerID: "alice",
		MinPrice: gate.NewU128(10),
	}
	b.insert(tk)
	b.ic.StorageDelete(listingKey(tk.Key()))

	require.PanicsWithValue(t, "inconsistent market state: token `nft-a.mintgate:1` indexed but not stored",
		func() { b.byOwner("alice") })
}

func TestBookCorruptListingPanics(t *testing.T) {
	b := newTestBook(t)
	k := gate.TokenKey{NFTContractID: "nft-a.mintgate", TokenID: 1}
	b.ic.StoragePut(listingKey(k), []byte("not json"))

	require.Panics(t, func() { b.get(k) })
}
