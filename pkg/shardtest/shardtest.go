/*
Package shardtest contains a framework for automated contract testing.
It can be used to implement unit-tests for contracts in Go using regular Go
conventions.

Usually it's used like this:
  - an Executor with a fresh in-memory shard is created with NewExecutor
  - test accounts are funded with NewAccount
  - contracts are registered and initialized with DeployContract, which
    returns a ContractInvoker for them
  - Invoke/InvokeFail/View perform test invocations; WithSigner, WithDeposit
    and WithGas derive invokers for other callers

Invoke checks the root call only; executions are returned so tests can
assert on the receipts a call scheduled (chained callbacks, transfers).
*/
package shardtest

import (
	"encoding/json"
	"testing"

	"github.com/maexx393/mintgate/pkg/core"
	"github.com/maexx393/mintgate/pkg/core/interop"
	"github.com/maexx393/mintgate/pkg/core/storage"
	"github.com/maexx393/mintgate/pkg/gate"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

// Executor is a wrapper over a test shard.
type Executor struct {
	Shard *core.Shard
}

// NewExecutor creates a new executor instance with an in-memory shard.
func NewExecutor(t testing.TB) *Executor {
	s, err := core.NewShard(storage.NewMemoryStore(), zaptest.NewLogger(t))
	require.NoError(t, err)
	return &Executor{Shard: s}
}

// NewAccount creates and funds a new account.
func (e *Executor) NewAccount(t testing.TB, id gate.AccountID, balance gate.U128) gate.AccountID {
	require.NoError(t, e.Shard.CreateAccount(id, balance))
	return id
}

// DeployContract registers the contract at the account and runs its init
// method with the given args (nil for none). The returned invoker signs
// calls with the contract account itself, use WithSigner for clients.
func (e *Executor) DeployContract(t testing.TB, id gate.AccountID, c core.Contract, initArgs any) *ContractInvoker {
	require.NoError(t, e.Shard.RegisterContract(id, c))
	exec, err := e.Shard.Call(id, id, "init", initArgs, gate.U128{}, 0)
	require.NoError(t, err)
	require.Equalf(t, interop.Successful, exec.Root().State,
		"init of `%s` faulted: %s", id, exec.Root().FaultMessage)
	return e.NewInvoker(id, id)
}

// NewInvoker creates an invoker for the contract acting on behalf of the
// signer.
func (e *Executor) NewInvoker(contract, signer gate.AccountID) *ContractInvoker {
	return &ContractInvoker{Executor: e, Contract: contract, Signer: signer}
}

// ContractInvoker invokes a specific contract with the attached deposit and
// gas on behalf of a signer.
type ContractInvoker struct {
	*Executor
	Contract gate.AccountID
	Signer   gate.AccountID
	Deposit  gate.U128
	Gas      interop.Gas
}

// WithSigner returns an invoker for the same contract acting on behalf of
// another account.
func (c *ContractInvoker) WithSigner(signer gate.AccountID) *ContractInvoker {
	nc := *c
	nc.Signer = signer
	return &nc
}

// WithDeposit returns an invoker attaching the deposit to its calls.
func (c *ContractInvoker) WithDeposit(deposit gate.U128) *ContractInvoker {
	nc := *c
	nc.Deposit = deposit
	return &nc
}

// WithGas returns an invoker with an explicit prepaid gas budget.
func (c *ContractInvoker) WithGas(gas interop.Gas) *ContractInvoker {
	nc := *c
	nc.Gas = gas
	return &nc
}

// Invoke invokes the method with the JSON args envelope, checks that the
// root call succeeded and returned the expected result (compared as JSON,
// nil means no return value) and returns the execution for receipt-level
// assertions.
func (c *ContractInvoker) Invoke(t testing.TB, expected any, method string, args any) *core.Execution {
	exec, err := c.Shard.Call(c.Signer, c.Contract, method, args, c.Deposit, c.Gas)
	require.NoError(t, err)
	root := exec.Root()
	require.Equalf(t, interop.Successful, root.State,
		"%s.%s faulted: %s", c.Contract, method, root.FaultMessage)
	if expected == nil {
		require.Empty(t, root.ReturnValue)
	} else {
		want, err := json.Marshal(expected)
		require.NoError(t, err)
		require.JSONEq(t, string(want), string(root.ReturnValue))
	}
	return exec
}

// InvokeFail invokes the method and checks that the root call faulted with
// a message containing the given substring.
func (c *ContractInvoker) InvokeFail(t testing.TB, message string, method string, args any) *core.Execution {
	exec, err := c.Shard.Call(c.Signer, c.Contract, method, args, c.Deposit, c.Gas)
	require.NoError(t, err)
	root := exec.Root()
	require.Equalf(t, interop.Failed, root.State,
		"%s.%s succeeded, expected fault `%s`", c.Contract, method, message)
	require.Contains(t, root.FaultMessage, message)
	return exec
}

// View performs a read-only call and decodes the JSON result into out when
// out is not nil.
func (c *ContractInvoker) View(t testing.TB, method string, args, out any) {
	res, err := c.Shard.View(c.Contract, method, args)
	require.NoError(t, err)
	if out != nil {
		require.NoError(t, json.Unmarshal(res, out))
	}
}

// ViewFail checks that a read-only call fails with a message containing the
// given substring.
func (c *ContractInvoker) ViewFail(t testing.TB, message string, method string, args any) {
	_, err := c.Shard.View(c.Contract, method, args)
	require.Error(t, err)
	require.Contains(t, err.Error(), message)
}
