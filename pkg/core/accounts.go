package core

import (
	"fmt"

	"github.com/maexx393/mintgate/pkg/core/storage"
	"github.com/maexx393/mintgate/pkg/gate"
)

func balanceKey(id gate.AccountID) []byte {
	return storage.AppendPrefix(storage.STBalance, []byte(id))
}

// getBalance reads the balance record of an account from the given layer.
// Accounts without a record hold nothing.
func getBalance(dao *storage.MemCachedStore, id gate.AccountID) (gate.U128, bool) {
	data, err := dao.Get(balanceKey(id))
	if err != nil {
		return gate.U128{}, false
	}
	b, err := gate.U128FromBytes(data)
	if err != nil {
		return gate.U128{}, false
	}
	return b, true
}

// debit takes the amount from the account's balance inside the given layer.
func debit(dao *storage.MemCachedStore, id gate.AccountID, amount gate.U128) error {
	b, _ := getBalance(dao, id)
	rest, under := b.Sub(amount)
	if under {
		return fmt.Errorf("Account `%s` does not have enough balance", id)
	}
	return dao.Put(balanceKey(id), rest.Bytes())
}

// credit adds the amount to the account's balance inside the given layer,
// creating the balance record for first-time receivers.
func credit(dao *storage.MemCachedStore, id gate.AccountID, amount gate.U128) error {
	b, _ := getBalance(dao, id)
	sum, overflow := b.Add(amount)
	if overflow {
		return fmt.Errorf("Account `%s` balance overflow", id)
	}
	return dao.Put(balanceKey(id), sum.Bytes())
}
