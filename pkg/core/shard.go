/*
Package core implements the embedded single-shard host runtime the MintGate
contracts execute on: accounts with native balances, contract registration
with persistent storage namespaces, and the receipt machinery delivering
external calls, promise-chained cross-contract calls and value transfers.

Every receipt executes on its own MemCachedStore layer over the shard state.
A successful receipt persists its layer; a faulted one (panic or error from
the contract) discards it, which also reverts the receipt's deposit
movement. Receipts run strictly in creation order, so a callback chained to
a promise always observes its dependency resolved.
*/
package core

import (
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/maexx393/mintgate/pkg/core/interop"
	"github.com/maexx393/mintgate/pkg/core/storage"
	"github.com/maexx393/mintgate/pkg/gate"
	"go.uber.org/zap"
)

// version of the shard storage scheme.
const version = "0.1.0"

// Contract is a native Go contract deployable on the shard. Invoke routes
// one method call; it may return an error or panic to abort the receipt,
// both revert the receipt's storage layer and deposit.
type Contract interface {
	Invoke(ic *interop.Context, method string, params json.RawMessage) (json.RawMessage, error)
}

type contractEntry struct {
	contract Contract
	// prefix is the contract's storage namespace, STStorage plus the
	// little-endian int32 contract id.
	prefix []byte
}

// Shard is a deterministic single-threaded host runtime. External calls are
// serialized; each one runs its whole receipt cascade to completion and
// flushes the accumulated state to the backing store.
type Shard struct {
	lock sync.Mutex

	store storage.Store
	dao   *storage.MemCachedStore
	log   *zap.Logger

	contracts map[gate.AccountID]*contractEntry
}

// NewShard creates a shard over the given backing store.
func NewShard(st storage.Store, log *zap.Logger) (*Shard, error) {
	if log == nil {
		return nil, errors.New("empty logger")
	}
	s := &Shard{
		store:     st,
		dao:       storage.NewMemCachedStore(st),
		log:       log,
		contracts: make(map[gate.AccountID]*contractEntry),
	}
	if err := s.init(); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *Shard) init() error {
	ver, err := s.store.Get(storage.SYSVersion.Bytes())
	if err != nil {
		s.log.Info("no storage version found! creating genesis state")
		return s.store.Put(storage.SYSVersion.Bytes(), []byte(version))
	}
	if string(ver) != version {
		return fmt.Errorf("storage version mismatch (expected=%s, actual=%s)", version, ver)
	}
	return nil
}

// Close flushes the pending state and leaves the backing store to its
// owner.
func (s *Shard) Close() error {
	s.lock.Lock()
	defer s.lock.Unlock()
	_, err := s.dao.Persist()
	return err
}

// RegisterContract deploys the contract object at the given account and
// allocates a persistent storage namespace for it on first registration.
// The account gets an empty balance record when it has none, so it can send
// and receive deposits.
func (s *Shard) RegisterContract(id gate.AccountID, c Contract) error {
	s.lock.Lock()
	defer s.lock.Unlock()

	if err := id.Validate(); err != nil {
		return fmt.Errorf("invalid contract account: %w", err)
	}
	if _, ok := s.contracts[id]; ok {
		return fmt.Errorf("contract `%s` is already registered", id)
	}
	cid, err := s.contractID(id)
	if err != nil {
		return err
	}
	prefix := make([]byte, 5)
	prefix[0] = byte(storage.STStorage)
	binary.LittleEndian.PutUint32(prefix[1:], uint32(cid))
	s.contracts[id] = &contractEntry{contract: c, prefix: prefix}

	if _, ok := getBalance(s.dao, id); !ok {
		if err := credit(s.dao, id, gate.U128{}); err != nil {
			return err
		}
	}
	if _, err := s.dao.Persist(); err != nil {
		return err
	}
	s.log.Info("contract registered",
		zap.String("account", string(id)),
		zap.Int32("id", cid))
	return nil
}

// contractID returns the persisted storage id of the contract account,
// allocating the next free one on first registration.
func (s *Shard) contractID(id gate.AccountID) (int32, error) {
	key := storage.AppendPrefix(storage.STContractID, []byte(id))
	if data, err := s.dao.Get(key); err == nil {
		return int32(binary.LittleEndian.Uint32(data)), nil
	}
	var next uint32
	seqKey := storage.SYSContractSeq.Bytes()
	if data, err := s.dao.Get(seqKey); err == nil {
		next = binary.LittleEndian.Uint32(data)
	}
	buf := make([]byte, 4)
	binary.LittleEndian.PutUint32(buf, next+1)
	if err := s.dao.Put(seqKey, buf); err != nil {
		return 0, err
	}
	buf = make([]byte, 4)
	binary.LittleEndian.PutUint32(buf, next)
	if err := s.dao.Put(key, buf); err != nil {
		return 0, err
	}
	return int32(next), nil
}

// CreateAccount registers a new account holding the given balance.
func (s *Shard) CreateAccount(id gate.AccountID, balance gate.U128) error {
	s.lock.Lock()
	defer s.lock.Unlock()

	if err := id.Validate(); err != nil {
		return fmt.Errorf("invalid account id: %w", err)
	}
	if _, ok := getBalance(s.dao, id); ok {
		return fmt.Errorf("account `%s` already exists", id)
	}
	if err := credit(s.dao, id, balance); err != nil {
		return err
	}
	_, err := s.dao.Persist()
	return err
}

// HasAccount checks for an account balance record.
func (s *Shard) HasAccount(id gate.AccountID) bool {
	s.lock.Lock()
	defer s.lock.Unlock()
	_, ok := getBalance(s.dao, id)
	return ok
}

// BalanceOf returns the account's native balance, zero for unknown
// accounts.
func (s *Shard) BalanceOf(id gate.AccountID) gate.U128 {
	s.lock.Lock()
	defer s.lock.Unlock()
	b, _ := getBalance(s.dao, id)
	return b
}

// Call submits an external call from the sender account and runs the whole
// receipt cascade it produces. Gas zero attaches the MaxPrepaidGas budget.
// The returned Execution lists every receipt in execution order; the error
// is non-nil only for malformed submissions, contract faults are reported
// through the receipt states.
func (s *Shard) Call(sender, receiver gate.AccountID, method string, params any, deposit gate.U128, gas interop.Gas) (*Execution, error) {
	s.lock.Lock()
	defer s.lock.Unlock()

	data, err := marshalParams(params)
	if err != nil {
		return nil, fmt.Errorf("invalid call params: %w", err)
	}
	if _, ok := getBalance(s.dao, sender); !ok {
		return nil, fmt.Errorf("unknown sender account `%s`", sender)
	}
	if gas == 0 {
		gas = interop.MaxPrepaidGas
	}
	externalCalls.Inc()

	exec := &Execution{}
	timestamp := uint64(time.Now().UnixNano())
	queue := []*Receipt{{
		PredecessorID: sender,
		SignerID:      sender,
		ReceiverID:    receiver,
		Method:        method,
		Params:        data,
		Deposit:       deposit,
		PrepaidGas:    gas,
		DependsOn:     -1,
	}}
	// Receipt ids are assigned in creation order; with a FIFO queue the
	// execution order is the same, so ids double as Receipts indices.
	nextID := 1
	for len(queue) > 0 {
		r := queue[0]
		queue = queue[1:]
		exec.Receipts = append(exec.Receipts, r)
		created := s.execReceipt(r, exec, timestamp, nextID)
		nextID += len(created)
		queue = append(queue, created...)
	}
	if _, err := s.dao.Persist(); err != nil {
		return nil, fmt.Errorf("failed to persist shard state: %w", err)
	}
	return exec, nil
}

// execReceipt runs one receipt on its own storage layer and returns the
// receipts it scheduled, with ids assigned from base up. The layer is
// persisted into the shard dao on success and dropped on fault.
func (s *Shard) execReceipt(r *Receipt, exec *Execution, timestamp uint64, base int) []*Receipt {
	layer := storage.NewMemCachedStore(s.dao)

	var results []interop.PromiseResult
	if r.DependsOn >= 0 {
		results = append(results, exec.Receipts[r.DependsOn].result())
	}

	receiptsExecuted.Inc()
	ret, pending, err := s.runReceipt(layer, r, results, timestamp)
	if err != nil {
		receiptsFailed.Inc()
		r.State = interop.Failed
		r.FaultMessage = err.Error()
		s.log.Debug("receipt faulted",
			zap.Int("id", r.ID),
			zap.String("receiver", string(r.ReceiverID)),
			zap.String("method", r.Method),
			zap.String("fault", r.FaultMessage))
		return nil
	}
	if _, err := layer.Persist(); err != nil {
		// The layer sits on an in-memory dao, its Persist cannot fail.
		panic(fmt.Errorf("failed to persist receipt layer: %w", err))
	}
	r.State = interop.Successful
	r.ReturnValue = ret

	next := make([]*Receipt, 0, len(pending))
	for i, p := range pending {
		nr := &Receipt{
			ID:            base + i,
			PredecessorID: r.ReceiverID,
			SignerID:      r.SignerID,
			ReceiverID:    p.ReceiverID,
			Method:        p.Method,
			Params:        p.Params,
			Deposit:       p.Deposit,
			PrepaidGas:    p.GasAttached,
			DependsOn:     -1,
		}
		if p.DependsOn >= 0 {
			// Promise indices are local to the parent receipt;
			// rebase them onto execution receipt ids.
			nr.DependsOn = base + p.DependsOn
		}
		next = append(next, nr)
	}
	return next
}

// runReceipt moves the deposit and invokes the receiver contract,
// converting panics into errors.
func (s *Shard) runReceipt(layer *storage.MemCachedStore, r *Receipt, results []interop.PromiseResult, timestamp uint64) (ret json.RawMessage, pending []interop.PendingCall, err error) {
	defer func() {
		if p := recover(); p != nil {
			ret, pending, err = nil, nil, faultError(p)
		}
	}()

	if !r.Deposit.IsZero() {
		if err := debit(layer, r.PredecessorID, r.Deposit); err != nil {
			return nil, nil, err
		}
		if err := credit(layer, r.ReceiverID, r.Deposit); err != nil {
			return nil, nil, err
		}
	}
	if r.Method == "" {
		return nil, nil, nil
	}
	entry, ok := s.contracts[r.ReceiverID]
	if !ok {
		return nil, nil, fmt.Errorf("Contract `%s` is not deployed", r.ReceiverID)
	}
	ic := interop.NewContext(layer, entry.prefix, interop.Env{
		CurrentID:     r.ReceiverID,
		PredecessorID: r.PredecessorID,
		SignerID:      r.SignerID,
		Deposit:       r.Deposit,
		PrepaidGas:    r.PrepaidGas,
		Timestamp:     timestamp,
	}, results, s.log)
	ret, err = entry.contract.Invoke(ic, r.Method, r.Params)
	if err != nil {
		return nil, nil, err
	}
	return ret, ic.PendingCalls(), nil
}

// View runs a read-only method against the current state. State changes are
// discarded and scheduling calls is reported as an error. View invocations
// carry no deposit and no predecessor.
func (s *Shard) View(receiver gate.AccountID, method string, params any) (res json.RawMessage, err error) {
	s.lock.Lock()
	defer s.lock.Unlock()

	data, err := marshalParams(params)
	if err != nil {
		return nil, fmt.Errorf("invalid call params: %w", err)
	}
	entry, ok := s.contracts[receiver]
	if !ok {
		return nil, fmt.Errorf("contract `%s` is not deployed", receiver)
	}

	defer func() {
		if p := recover(); p != nil {
			res, err = nil, faultError(p)
		}
	}()
	layer := storage.NewMemCachedStore(s.dao)
	ic := interop.NewContext(layer, entry.prefix, interop.Env{
		CurrentID:  receiver,
		PrepaidGas: interop.MaxPrepaidGas,
		Timestamp:  uint64(time.Now().UnixNano()),
	}, nil, s.log)
	res, err = entry.contract.Invoke(ic, method, data)
	if err != nil {
		return nil, err
	}
	if len(ic.PendingCalls()) > 0 {
		return nil, fmt.Errorf("method `%s` is not a view method: it schedules calls", method)
	}
	return res, nil
}

func marshalParams(params any) (json.RawMessage, error) {
	if params == nil {
		return nil, nil
	}
	return json.Marshal(params)
}

func faultError(p any) error {
	switch v := p.(type) {
	case error:
		return v
	case string:
		return errors.New(v)
	default:
		return fmt.Errorf("%v", v)
	}
}
