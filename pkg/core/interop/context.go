/*
Package interop provides everything a contract sees from the host runtime:
the execution environment of the receipt being processed (accounts, attached
deposit, prepaid gas), storage access namespaced to the executing contract
and the promise machinery used for asynchronous cross-contract calls.
*/
package interop

import (
	"encoding/json"
	"fmt"

	"github.com/maexx393/mintgate/pkg/core/storage"
	"github.com/maexx393/mintgate/pkg/gate"
	"go.uber.org/zap"
)

// Gas is an amount of prepaid execution resource attached to a call.
type Gas uint64

// MaxPrepaidGas is the gas budget attached to an external call. Everything
// a contract reserves for its outbound calls comes out of this budget.
const MaxPrepaidGas Gas = 300_000_000_000_000

// PromiseState is the resolution state of a promise as seen by a chained
// callback.
type PromiseState byte

// Possible promise states.
const (
	// NotReady means the dependency has not resolved yet. Callbacks run
	// strictly after their dependencies, so observing it is a host bug.
	NotReady PromiseState = iota
	// Successful carries the value returned by the resolved call.
	Successful
	// Failed means the dependency faulted.
	Failed
)

// String implements the Stringer interface.
func (s PromiseState) String() string {
	switch s {
	case NotReady:
		return "NotReady"
	case Successful:
		return "Successful"
	case Failed:
		return "Failed"
	default:
		return fmt.Sprintf("Unknown(%d)", byte(s))
	}
}

// PromiseResult is the outcome of a resolved dependency delivered to a
// chained callback.
type PromiseResult struct {
	State PromiseState
	// Value is the JSON value returned by the call, set when State is
	// Successful.
	Value json.RawMessage
}

// PendingCall is an outbound call or transfer scheduled by the executing
// method. The host turns it into a receipt after the method returns
// successfully; a faulted method schedules nothing.
type PendingCall struct {
	ReceiverID gate.AccountID
	// Method is empty for a pure value transfer.
	Method      string
	Params      json.RawMessage
	Deposit     gate.U128
	GasAttached Gas
	// DependsOn is the index of the promise this call is chained to,
	// or -1 for an independent call.
	DependsOn int
}

// Env is the immutable execution environment of one receipt.
type Env struct {
	// CurrentID is the account the executing contract is deployed at.
	CurrentID gate.AccountID
	// PredecessorID is the account that issued this call.
	PredecessorID gate.AccountID
	// SignerID is the account that signed the transaction this receipt
	// descends from.
	SignerID gate.AccountID
	// Deposit is the native amount attached to the call.
	Deposit gate.U128
	// PrepaidGas is the gas budget attached to the call.
	PrepaidGas Gas
	// Timestamp is the shard time of the executing batch in nanoseconds.
	Timestamp uint64
}

// Context represents the context in which a contract method executes. One
// Context serves exactly one receipt.
type Context struct {
	// Log is the contract-facing logger.
	Log *zap.Logger

	env     Env
	dao     *storage.MemCachedStore
	prefix  []byte
	results []PromiseResult
	pending []PendingCall
	gasLeft Gas
}

// NewContext returns a new contract execution context. The dao is the
// receipt's isolated storage layer, prefix is the executing contract's
// storage namespace and results carries the resolved dependencies for
// chained callbacks.
func NewContext(dao *storage.MemCachedStore, prefix []byte, env Env, results []PromiseResult, log *zap.Logger) *Context {
	return &Context{
		Log:     log,
		env:     env,
		dao:     dao,
		prefix:  prefix,
		results: results,
		gasLeft: env.PrepaidGas,
	}
}

// CurrentID returns the account id of the executing contract.
func (ic *Context) CurrentID() gate.AccountID { return ic.env.CurrentID }

// PredecessorID returns the account that called the executing contract.
func (ic *Context) PredecessorID() gate.AccountID { return ic.env.PredecessorID }

// SignerID returns the account that signed the transaction this receipt
// descends from.
func (ic *Context) SignerID() gate.AccountID { return ic.env.SignerID }

// Deposit returns the native amount attached to the call.
func (ic *Context) Deposit() gate.U128 { return ic.env.Deposit }

// PrepaidGas returns the gas budget attached to the call.
func (ic *Context) PrepaidGas() Gas { return ic.env.PrepaidGas }

// BlockTimestamp returns the shard time in nanoseconds since the epoch.
func (ic *Context) BlockTimestamp() uint64 { return ic.env.Timestamp }

// StorageGet returns the value stored under the key in the contract's
// namespace, or nil when the key is not set.
func (ic *Context) StorageGet(key []byte) []byte {
	v, err := ic.dao.Get(ic.makeKey(key))
	if err != nil {
		return nil
	}
	return v
}

// StoragePut stores the value under the key in the contract's namespace.
func (ic *Context) StoragePut(key, value []byte) {
	_ = ic.dao.Put(ic.makeKey(key), value)
}

// StorageDelete removes the key from the contract's namespace.
func (ic *Context) StorageDelete(key []byte) {
	_ = ic.dao.Delete(ic.makeKey(key))
}

// StorageSeek visits contract storage pairs with the given key prefix in
// ascending key order until f returns false. Keys are emitted with the
// contract namespace stripped and are only valid until the next call to f.
func (ic *Context) StorageSeek(prefix []byte, f func(k, v []byte) bool) {
	ns := len(ic.prefix)
	ic.dao.Seek(ic.makeKey(prefix), func(k, v []byte) bool {
		return f(k[ns:], v)
	})
}

// Call schedules a call of the method on the receiver contract with the
// given deposit and gas attached and returns the index of the created
// promise. Params must marshal to JSON. The gas is reserved from the
// remaining prepaid budget right away; the call itself is dispatched by the
// host only after the current method returns successfully.
func (ic *Context) Call(receiver gate.AccountID, method string, params any, deposit gate.U128, gas Gas) int {
	ic.reserveGas(gas)
	ic.pending = append(ic.pending, PendingCall{
		ReceiverID:  receiver,
		Method:      method,
		Params:      mustMarshal(params),
		Deposit:     deposit,
		GasAttached: gas,
		DependsOn:   -1,
	})
	return len(ic.pending) - 1
}

// Then schedules a callback to the current contract account executed after
// the promise idx resolves, with the outcome exposed to the callback
// through PromiseResult(0).
func (ic *Context) Then(idx int, method string, params any, deposit gate.U128, gas Gas) int {
	if idx < 0 || idx >= len(ic.pending) {
		panic(fmt.Sprintf("promise index %d out of bounds", idx))
	}
	ic.reserveGas(gas)
	ic.pending = append(ic.pending, PendingCall{
		ReceiverID:  ic.env.CurrentID,
		Method:      method,
		Params:      mustMarshal(params),
		Deposit:     deposit,
		GasAttached: gas,
		DependsOn:   idx,
	})
	return len(ic.pending) - 1
}

// Transfer schedules a pure transfer of the amount to the receiver.
func (ic *Context) Transfer(receiver gate.AccountID, amount gate.U128) {
	ic.pending = append(ic.pending, PendingCall{
		ReceiverID: receiver,
		Deposit:    amount,
		DependsOn:  -1,
	})
}

// PromiseResultCount returns the number of dependencies whose outcomes are
// available to the executing method. It is zero everywhere except inside
// chained callbacks.
func (ic *Context) PromiseResultCount() int {
	return len(ic.results)
}

// PromiseResult returns the outcome of the i-th dependency of the executing
// callback.
func (ic *Context) PromiseResult(i int) PromiseResult {
	if i < 0 || i >= len(ic.results) {
		panic(fmt.Sprintf("promise result %d is not available", i))
	}
	return ic.results[i]
}

// PendingCalls returns the outbound calls scheduled during this execution
// in creation order. It is used by the host after the method returns.
func (ic *Context) PendingCalls() []PendingCall {
	return ic.pending
}

// reserveGas debits the gas attached to an outbound call from what remains
// of the prepaid budget.
func (ic *Context) reserveGas(gas Gas) {
	if gas > ic.gasLeft {
		panic("Exceeded the prepaid gas")
	}
	ic.gasLeft -= gas
}

func (ic *Context) makeKey(key []byte) []byte {
	k := make([]byte, len(ic.prefix)+len(key))
	copy(k, ic.prefix)
	copy(k[len(ic.prefix):], key)
	return k
}

func mustMarshal(params any) json.RawMessage {
	if params == nil {
		return nil
	}
	data, err := json.Marshal(params)
	if err != nil {
		panic(fmt.Sprintf("broken call params: %v", err))
	}
	return data
}
