package interop

import (
	"encoding/json"
	"errors"
	"fmt"
)

// initKey is the storage key (within the contract's namespace) of the
// initialization flag maintained by Dispatch. Contracts must not reuse it
// for their own data.
var initKey = []byte{0x01}

// Method is a contract entry point. It runs inside a single receipt;
// panicking aborts the receipt and reverts its storage layer.
type Method func(ic *Context, params json.RawMessage) json.RawMessage

// MethodMD is a contract method descriptor: the entry point itself plus the
// dispatch rules the host enforces before running it.
type MethodMD struct {
	Func Method
	// Payable methods accept an attached deposit.
	Payable bool
	// Private methods only accept calls from the contract's own account.
	Private bool
	// Init marks the one-time initializer.
	Init bool
}

// ContractMD is a contract method table used to route incoming invocations.
type ContractMD struct {
	methods map[string]MethodMD
}

// NewContractMD returns a new empty method table.
func NewContractMD() *ContractMD {
	return &ContractMD{methods: make(map[string]MethodMD)}
}

// AddMethod registers the named entry point in the table.
func (md *ContractMD) AddMethod(name string, m MethodMD) {
	md.methods[name] = m
}

// Dispatch routes an invocation through the method table enforcing the
// platform call rules: the predecessor check for private callbacks, the
// deposit gate for non-payable methods and one-time initialization. Rule
// violations are returned as errors carrying the user-visible message; the
// method body itself signals faults by panicking.
func (md *ContractMD) Dispatch(ic *Context, method string, params json.RawMessage) (json.RawMessage, error) {
	m, ok := md.methods[method]
	if !ok {
		return nil, fmt.Errorf("Method `%s` not found", method)
	}
	if m.Private && ic.PredecessorID() != ic.CurrentID() {
		return nil, fmt.Errorf("Method `%s` is private", method)
	}
	if !m.Payable && !ic.Deposit().IsZero() {
		return nil, fmt.Errorf("Method `%s` doesn't accept deposit", method)
	}
	initialized := ic.StorageGet(initKey) != nil
	if m.Init {
		if initialized {
			return nil, errors.New("Already initialized")
		}
		ic.StoragePut(initKey, []byte{1})
	} else if !initialized {
		return nil, errors.New("The contract is not initialized")
	}
	return m.Func(ic, params), nil
}

// ParseParams decodes the JSON params envelope into args, faulting the
// invocation on malformed input.
func ParseParams(params json.RawMessage, args any) {
	if err := json.Unmarshal(params, args); err != nil {
		panic("Failed to deserialize input from JSON.")
	}
}
