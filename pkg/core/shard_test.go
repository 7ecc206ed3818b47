package core

import (
	"encoding/json"
	"testing"

	"github.com/maexx393/mintgate/pkg/core/interop"
	"github.com/maexx393/mintgate/pkg/core/storage"
	"github.com/maexx393/mintgate/pkg/gate"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

// testContract adapts a plain function to the Contract interface so tests
// can wire behavior inline.
type testContract struct {
	invoke func(ic *interop.Context, method string, params json.RawMessage) (json.RawMessage, error)
}

func (c *testContract) Invoke(ic *interop.Context, method string, params json.RawMessage) (json.RawMessage, error) {
	return c.invoke(ic, method, params)
}

func newTestShard(t *testing.T) *Shard {
	s, err := NewShard(storage.NewMemoryStore(), zaptest.NewLogger(t))
	require.NoError(t, err)
	return s
}

func TestShardAccounts(t *testing.T) {
	s := newTestShard(t)

	require.NoError(t, s.CreateAccount("alice", gate.NewU128(100)))
	require.True(t, s.HasAccount("alice"))
	require.False(t, s.HasAccount("bob"))
	require.Equal(t, "100", s.BalanceOf("alice").String())
	require.Equal(t, "0", s.BalanceOf("bob").String())

	require.Error(t, s.CreateAccount("alice", gate.NewU128(1)))
	require.Error(t, s.CreateAccount("UPPER", gate.U128{}))
	require.Error(t, s.CreateAccount("a", gate.U128{}))

	// A pure transfer creates the receiver's balance record.
	exec, err := s.Call("alice", "bob", "", nil, gate.NewU128(30), 0)
	require.NoError(t, err)
	require.Equal(t, interop.Successful, exec.Root().State)
	require.Equal(t, "70", s.BalanceOf("alice").String())
	require.Equal(t, "30", s.BalanceOf("bob").String())
	require.True(t, s.HasAccount("bob"))

	// Overdraft faults the receipt and moves nothing.
	exec, err = s.Call("alice", "bob", "", nil, gate.NewU128(1000), 0)
	require.NoError(t, err)
	require.Equal(t, interop.Failed, exec.Root().State)
	require.Equal(t, "Account `alice` does not have enough balance", exec.Root().FaultMessage)
	require.Equal(t, "70", s.BalanceOf("alice").String())

	_, err = s.Call("ghost", "bob", "", nil, gate.NewU128(1), 0)
	require.Error(t, err)
}

func TestShardFaultRevertsReceipt(t *testing.T) {
	s := newTestShard(t)
	require.NoError(t, s.CreateAccount("alice", gate.NewU128(100)))

	ctr := &testContract{invoke: func(ic *interop.Context, method string, params json.RawMessage) (json.RawMessage, error) {
		switch method {
		case "boom":
			ic.StoragePut([]byte("marker"), []byte{1})
			panic("boom")
		case "read_marker":
			if ic.StorageGet([]byte("marker")) != nil {
				return json.RawMessage("true"), nil
			}
			return json.RawMessage("false"), nil
		}
		return nil, nil
	}}
	require.NoError(t, s.RegisterContract("ctr", ctr))

	exec, err := s.Call("alice", "ctr", "boom", nil, gate.NewU128(25), 0)
	require.NoError(t, err)
	require.Equal(t, interop.Failed, exec.Root().State)
	require.Equal(t, "boom", exec.Root().FaultMessage)

	// Neither the deposit movement nor the storage write survive.
	require.Equal(t, "100", s.BalanceOf("alice").String())
	require.Equal(t, "0", s.BalanceOf("ctr").String())
	res, err := s.View("ctr", "read_marker", nil)
	require.NoError(t, err)
	require.Equal(t, "false", string(res))
}

func TestShardPromiseChain(t *testing.T) {
	s := newTestShard(t)
	require.NoError(t, s.CreateAccount("alice", gate.NewU128(10)))

	caller := &testContract{invoke: func(ic *interop.Context, method string, params json.RawMessage) (json.RawMessage, error) {
		switch method {
		case "ping":
			idx := ic.Call("bbb", "pong", map[string]string{"from": "aaa"}, gate.U128{}, ic.PrepaidGas()/3)
			ic.Then(idx, "fin", nil, gate.U128{}, ic.PrepaidGas()/3)
			return nil, nil
		case "fin":
			res := ic.PromiseResult(0)
			return json.Marshal(map[string]any{
				"state": res.State.String(),
				"value": res.Value,
			})
		}
		return nil, nil
	}}
	callee := &testContract{invoke: func(ic *interop.Context, method string, params json.RawMessage) (json.RawMessage, error) {
		// Extra call scheduled by the dependency must not run before
		// the chained callback.
		ic.Call("aaa", "late", nil, gate.U128{}, ic.PrepaidGas()/3)
		return json.RawMessage(`"pong"`), nil
	}}
	require.NoError(t, s.RegisterContract("aaa", caller))
	require.NoError(t, s.RegisterContract("bbb", callee))

	exec, err := s.Call("alice", "aaa", "ping", nil, gate.U128{}, 0)
	require.NoError(t, err)

	var methods []string
	for i, r := range exec.Receipts {
		methods = append(methods, r.Method)
		require.Equal(t, interop.Successful, r.State)
		require.Equal(t, i, r.ID)
	}
	require.Equal(t, []string{"ping", "pong", "fin", "late"}, methods)

	pong := exec.Receipts[1]
	require.Equal(t, gate.AccountID("aaa"), pong.PredecessorID)
	require.Equal(t, gate.AccountID("alice"), pong.SignerID)
	require.Equal(t, interop.MaxPrepaidGas/3, pong.PrepaidGas)

	fin := exec.Receipts[2]
	require.Equal(t, 1, fin.DependsOn)
	require.JSONEq(t, `{"state":"Successful","value":"pong"}`, string(fin.ReturnValue))
}

func TestShardCallbackSeesFailure(t *testing.T) {
	s := newTestShard(t)
	require.NoError(t, s.CreateAccount("alice", gate.NewU128(10)))

	caller := &testContract{invoke: func(ic *interop.Context, method string, params json.RawMessage) (json.RawMessage, error) {
		switch method {
		case "ping":
			idx := ic.Call("bbb", "fail", nil, gate.U128{}, ic.PrepaidGas()/3)
			ic.Then(idx, "fin", nil, gate.U128{}, ic.PrepaidGas()/3)
			return nil, nil
		case "fin":
			res := ic.PromiseResult(0)
			return json.Marshal(res.State.String())
		}
		return nil, nil
	}}
	callee := &testContract{invoke: func(ic *interop.Context, method string, params json.RawMessage) (json.RawMessage, error) {
		panic("no luck")
	}}
	require.NoError(t, s.RegisterContract("aaa", caller))
	require.NoError(t, s.RegisterContract("bbb", callee))

	exec, err := s.Call("alice", "aaa", "ping", nil, gate.U128{}, 0)
	require.NoError(t, err)
	require.Len(t, exec.Receipts, 3)

	require.Equal(t, interop.Failed, exec.Receipts[1].State)
	require.Equal(t, "no luck", exec.Receipts[1].FaultMessage)
	// The chained callback still runs and observes the failure.
	require.Equal(t, interop.Successful, exec.Receipts[2].State)
	require.JSONEq(t, `"Failed"`, string(exec.Receipts[2].ReturnValue))
}

func TestShardGasBudget(t *testing.T) {
	s := newTestShard(t)
	require.NoError(t, s.CreateAccount("alice", gate.NewU128(10)))

	ctr := &testContract{invoke: func(ic *interop.Context, method string, params json.RawMessage) (json.RawMessage, error) {
		ic.Call("bbb", "x", nil, gate.U128{}, ic.PrepaidGas())
		ic.Call("bbb", "y", nil, gate.U128{}, 1)
		return nil, nil
	}}
	require.NoError(t, s.RegisterContract("aaa", ctr))

	exec, err := s.Call("alice", "aaa", "hog", nil, gate.U128{}, 50)
	require.NoError(t, err)
	require.Equal(t, interop.Failed, exec.Root().State)
	require.Equal(t, "Exceeded the prepaid gas", exec.Root().FaultMessage)
	// The faulted receipt schedules nothing.
	require.Len(t, exec.Receipts, 1)
}

func TestShardCallUnknownContract(t *testing.T) {
	s := newTestShard(t)
	require.NoError(t, s.CreateAccount("alice", gate.NewU128(10)))

	exec, err := s.Call("alice", "nobody", "hello", nil, gate.U128{}, 0)
	require.NoError(t, err)
	require.Equal(t, interop.Failed, exec.Root().State)
	require.Equal(t, "Contract `nobody` is not deployed", exec.Root().FaultMessage)
}

func TestShardView(t *testing.T) {
	s := newTestShard(t)
	require.NoError(t, s.CreateAccount("alice", gate.NewU128(10)))

	ctr := &testContract{invoke: func(ic *interop.Context, method string, params json.RawMessage) (json.RawMessage, error) {
		switch method {
		case "put":
			ic.StoragePut([]byte("k"), []byte("v"))
			return nil, nil
		case "get":
			return json.Marshal(string(ic.StorageGet([]byte("k"))))
		case "call_out":
			ic.Call("bbb", "x", nil, gate.U128{}, 1)
			return nil, nil
		case "panic":
			panic("view fault")
		}
		return nil, nil
	}}
	require.NoError(t, s.RegisterContract("aaa", ctr))

	// Writes made through View are discarded.
	_, err := s.View("aaa", "put", nil)
	require.NoError(t, err)
	res, err := s.View("aaa", "get", nil)
	require.NoError(t, err)
	require.JSONEq(t, `""`, string(res))

	// Committed writes are visible.
	_, err = s.Call("alice", "aaa", "put", nil, gate.U128{}, 0)
	require.NoError(t, err)
	res, err = s.View("aaa", "get", nil)
	require.NoError(t, err)
	require.JSONEq(t, `"v"`, string(res))

	_, err = s.View("aaa", "call_out", nil)
	require.Error(t, err)
	_, err = s.View("aaa", "panic", nil)
	require.EqualError(t, err, "view fault")
	_, err = s.View("nobody", "get", nil)
	require.Error(t, err)
}

func TestShardStateSurvivesRestart(t *testing.T) {
	st := storage.NewMemoryStore()
	log := zaptest.NewLogger(t)

	ctr := &testContract{invoke: func(ic *interop.Context, method string, params json.RawMessage) (json.RawMessage, error) {
		switch method {
		case "put":
			ic.StoragePut([]byte("k"), []byte("v"))
			return nil, nil
		case "get":
			return json.Marshal(string(ic.StorageGet([]byte("k"))))
		}
		return nil, nil
	}}

	s1, err := NewShard(st, log)
	require.NoError(t, err)
	require.NoError(t, s1.CreateAccount("alice", gate.NewU128(10)))
	require.NoError(t, s1.RegisterContract("ctr", ctr))
	_, err = s1.Call("alice", "ctr", "put", nil, gate.U128{}, 0)
	require.NoError(t, err)
	require.NoError(t, s1.Close())

	s2, err := NewShard(st, log)
	require.NoError(t, err)
	require.NoError(t, s2.RegisterContract("ctr", ctr))
	require.Equal(t, "10", s2.BalanceOf("alice").String())
	res, err := s2.View("ctr", "get", nil)
	require.NoError(t, err)
	require.JSONEq(t, `"v"`, string(res))
}

func TestShardVersionCheck(t *testing.T) {
	st := storage.NewMemoryStore()
	log := zaptest.NewLogger(t)

	_, err := NewShard(st, log)
	require.NoError(t, err)

	require.NoError(t, st.Put(storage.SYSVersion.Bytes(), []byte("9.9.9")))
	_, err = NewShard(st, log)
	require.ErrorContains(t, err, "storage version mismatch")
}
