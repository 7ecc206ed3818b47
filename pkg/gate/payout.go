package gate

import (
	"bytes"
	"errors"
	"fmt"

	json "github.com/nspcc-dev/go-ordered-json"
)

// PayoutEntry is a single receiver/amount pair of a Payout.
type PayoutEntry struct {
	ReceiverID AccountID
	Amount     U128
}

// Payout lists the accounts to be paid after a sale and the amount each of
// them receives. On the wire it is a JSON object mapping account ids to
// amounts; member order is preserved on both encode and decode, so the
// market issues transfers in exactly the order the NFT contract produced.
type Payout []PayoutEntry

// Set records the amount for a receiver. An earlier entry with the same
// receiver is overwritten in place, keeping its position.
func (p *Payout) Set(receiver AccountID, amount U128) {
	for i := range *p {
		if (*p)[i].ReceiverID == receiver {
			(*p)[i].Amount = amount
			return
		}
	}
	*p = append(*p, PayoutEntry{ReceiverID: receiver, Amount: amount})
}

// MarshalJSON implements the json.Marshaler interface.
func (p Payout) MarshalJSON() ([]byte, error) {
	obj := make(json.OrderedObject, 0, len(p))
	for i := range p {
		obj = append(obj, json.Member{Key: string(p[i].ReceiverID), Value: p[i].Amount})
	}
	return json.Marshal(obj)
}

// UnmarshalJSON implements the json.Unmarshaler interface.
func (p *Payout) UnmarshalJSON(data []byte) error {
	d := json.NewDecoder(bytes.NewReader(data))
	d.UseOrderedObject()

	var v interface{}
	if err := d.Decode(&v); err != nil {
		return err
	}
	obj, ok := v.(json.OrderedObject)
	if !ok {
		return errors.New("payout must be a JSON object")
	}

	res := make(Payout, 0, len(obj))
	for i := range obj {
		s, ok := obj[i].Value.(string)
		if !ok {
			return fmt.Errorf("payout amount for %q must be a decimal string", obj[i].Key)
		}
		amount, err := ParseU128(s)
		if err != nil {
			return fmt.Errorf("payout amount for %q: %w", obj[i].Key, err)
		}
		res.Set(AccountID(obj[i].Key), amount)
	}
	*p = res
	return nil
}
