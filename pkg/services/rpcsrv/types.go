package rpcsrv

import (
	"encoding/json"

	"github.com/maexx393/mintgate/pkg/core/interop"
	"github.com/maexx393/mintgate/pkg/gate"
)

// JSONRPCVersion is the only JSON-RPC protocol version supported.
const JSONRPCVersion = "2.0"

// Request is a standard JSON-RPC 2.0 request over HTTP:
// http://www.jsonrpc.org/specification#request_object.
type Request struct {
	JSONRPC   string          `json:"jsonrpc"`
	Method    string          `json:"method"`
	RawParams json.RawMessage `json:"params,omitempty"`
	RawID     json.RawMessage `json:"id,omitempty"`
}

// Header is a generic JSON-RPC 2.0 response header (ID and JSON-RPC version).
type Header struct {
	ID      json.RawMessage `json:"id"`
	JSONRPC string          `json:"jsonrpc"`
}

// Response is a standard raw JSON-RPC 2.0 response:
// http://www.jsonrpc.org/specification#response_object.
type Response struct {
	Header
	Error  *Error          `json:"error,omitempty"`
	Result json.RawMessage `json:"result,omitempty"`
}

// TokensParams is the argument set of the token query methods: the single
// dimension the tokens are selected by. The market contract picks the field
// matching the invoked method and ignores the rest.
type TokensParams struct {
	OwnerID   gate.AccountID `json:"owner_id,omitempty"`
	GateID    gate.GateID    `json:"gate_id,omitempty"`
	CreatorID gate.AccountID `json:"creator_id,omitempty"`
}

// BalanceParams is the argument set of the get_balance method.
type BalanceParams struct {
	AccountID gate.AccountID `json:"account_id"`
}

// BalanceResult is the result of the get_balance method.
type BalanceResult struct {
	AccountID gate.AccountID `json:"account_id"`
	Balance   gate.U128      `json:"balance"`
}

// CallParams is the argument set of the call method: an external call
// submitted to the shard on behalf of the sender account. Zero gas attaches
// the maximum prepaid budget.
type CallParams struct {
	SenderID   gate.AccountID  `json:"sender_id"`
	ReceiverID gate.AccountID  `json:"receiver_id"`
	Method     string          `json:"method"`
	Params     json.RawMessage `json:"params,omitempty"`
	Deposit    gate.U128       `json:"deposit"`
	Gas        interop.Gas     `json:"gas,omitempty"`
}

// ReceiptResult describes one executed receipt of a call submission.
type ReceiptResult struct {
	ID            int             `json:"id"`
	PredecessorID gate.AccountID  `json:"predecessor_id"`
	ReceiverID    gate.AccountID  `json:"receiver_id"`
	Method        string          `json:"method,omitempty"`
	Deposit       gate.U128       `json:"deposit"`
	State         string          `json:"state"`
	ReturnValue   json.RawMessage `json:"return_value,omitempty"`
	FaultMessage  string          `json:"fault_message,omitempty"`
}

// CallResult is the result of the call method: every receipt of the
// execution in the order the shard ran them, the submitted call first.
type CallResult struct {
	Receipts []ReceiptResult `json:"receipts"`
}
