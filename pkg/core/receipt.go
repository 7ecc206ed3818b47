package core

import (
	"encoding/json"

	"github.com/maexx393/mintgate/pkg/core/interop"
	"github.com/maexx393/mintgate/pkg/gate"
)

// Receipt is a single scheduled invocation or pure transfer together with
// its outcome once executed. Receipts are created for external calls and by
// the promise API of executing contracts.
type Receipt struct {
	// ID is the receipt's index within the execution it belongs to.
	ID int
	// PredecessorID is the account on whose behalf the receipt runs: the
	// external sender, or the contract that scheduled the call.
	PredecessorID gate.AccountID
	// SignerID is the account that started the whole execution.
	SignerID gate.AccountID
	// ReceiverID is the called account.
	ReceiverID gate.AccountID
	// Method is empty for pure transfers.
	Method string
	// Params is the JSON arguments envelope.
	Params json.RawMessage
	// Deposit is the attached native amount, moved from the predecessor
	// to the receiver when the receipt executes.
	Deposit gate.U128
	// PrepaidGas is the gas budget of this receipt.
	PrepaidGas interop.Gas
	// DependsOn is the ID of the receipt whose outcome this one consumes,
	// -1 when independent.
	DependsOn int

	// State is NotReady until executed, then Successful or Failed.
	State interop.PromiseState
	// ReturnValue is the method's result when State is Successful.
	ReturnValue json.RawMessage
	// FaultMessage carries the fault when State is Failed.
	FaultMessage string
}

// result converts the receipt's outcome into the form delivered to chained
// callbacks.
func (r *Receipt) result() interop.PromiseResult {
	return interop.PromiseResult{State: r.State, Value: r.ReturnValue}
}

// Execution is the result of one external call: every receipt the call
// transitively scheduled, in execution order.
type Execution struct {
	Receipts []*Receipt
}

// Root returns the receipt of the external call itself.
func (e *Execution) Root() *Receipt {
	return e.Receipts[0]
}
