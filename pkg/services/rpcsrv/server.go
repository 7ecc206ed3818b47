/*
Package rpcsrv implements the JSON-RPC 2.0 server of the mintgate node.

The server exposes the market query surface (token listings by owner, gate
and creator), account balances and external call submission over HTTP POST.
Query methods are forwarded to the market contract as view calls, so their
results match what the contract itself returns.
*/
package rpcsrv

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"strings"

	"github.com/maexx393/mintgate/pkg/config"
	"github.com/maexx393/mintgate/pkg/core"
	"github.com/maexx393/mintgate/pkg/gate"
	"go.uber.org/atomic"
	"go.uber.org/zap"
)

// Server represents the JSON-RPC 2.0 server.
type Server struct {
	*http.Server
	shard   *core.Shard
	config  config.RPC
	market  gate.AccountID
	log     *zap.Logger
	started *atomic.Bool
	errChan chan<- error
}

var rpcHandlers = map[string]func(*Server, json.RawMessage) (interface{}, *Error){
	"call":                     (*Server).call,
	"get_balance":              (*Server).getBalance,
	"get_tokens_by_creator_id": (*Server).getTokensByCreatorID,
	"get_tokens_by_gate_id":    (*Server).getTokensByGateID,
	"get_tokens_by_owner_id":   (*Server).getTokensByOwnerID,
	"get_tokens_for_sale":      (*Server).getTokensForSale,
}

// New creates a new Server serving the given shard. Token queries are
// forwarded to the market contract account as view calls. The server
// reports its runtime errors via errChan.
func New(shard *core.Shard, conf config.RPC, market gate.AccountID, log *zap.Logger, errChan chan<- error) Server {
	return Server{
		Server: &http.Server{
			Addr: conf.Address,
		},
		shard:   shard,
		config:  conf,
		market:  market,
		log:     log,
		started: atomic.NewBool(false),
		errChan: errChan,
	}
}

// Name returns service name.
func (s *Server) Name() string {
	return "rpc"
}

// Start creates a new JSON-RPC server listening on the configured address.
// It returns its errors via errChan passed to New(). The Server only starts
// once, subsequent calls to Start are no-op.
func (s *Server) Start() {
	if !s.config.Enabled {
		s.log.Info("RPC server is not enabled")
		return
	}
	if !s.started.CAS(false, true) {
		s.log.Info("RPC server already started")
		return
	}
	s.Handler = http.HandlerFunc(s.handleHTTPRequest)
	s.log.Info("starting rpc-server", zap.String("endpoint", s.Addr))

	ln, err := net.Listen("tcp", s.Addr)
	if err != nil {
		s.errChan <- err
		return
	}
	s.Addr = ln.Addr().String() // set Addr to the actual address
	go func() {
		err = s.Serve(ln)
		if !errors.Is(err, http.ErrServerClosed) {
			s.log.Error("failed to start RPC server", zap.Error(err))
			s.errChan <- err
		}
	}()
}

// Shutdown stops the RPC server if it's running. It can only be called once,
// subsequent calls to Shutdown on the same instance are no-op. The instance
// that was stopped can not be started again by calling Start (use a new
// instance if needed).
func (s *Server) Shutdown() {
	if !s.started.CAS(true, false) {
		return
	}
	s.log.Info("shutting down RPC server", zap.String("endpoint", s.Addr))
	err := s.Server.Shutdown(context.Background())
	if err != nil {
		s.log.Warn("error during RPC (http) server shutdown", zap.Error(err))
	}
}

func (s *Server) handleHTTPRequest(w http.ResponseWriter, httpRequest *http.Request) {
	req := &Request{}

	if httpRequest.Method == "OPTIONS" && s.config.EnableCORSWorkaround { // Preflight CORS.
		setCORSOriginHeaders(w.Header())
		w.Header().Set("Access-Control-Allow-Methods", "POST")
		w.Header().Set("Access-Control-Max-Age", "21600") // 6 hours.
		return
	}

	if httpRequest.Method != "POST" {
		s.writeHTTPErrorResponse(
			req,
			w,
			NewInvalidParamsError(fmt.Sprintf("invalid method '%s', please retry with 'POST'", httpRequest.Method)),
		)
		return
	}

	err := json.NewDecoder(httpRequest.Body).Decode(req)
	if err != nil {
		s.writeHTTPErrorResponse(req, w, NewParseError(err.Error()))
		return
	}

	resp := s.handleRequest(req)
	s.writeHTTPServerResponse(req, w, resp)
}

func (s *Server) handleRequest(req *Request) Response {
	var res interface{}
	var resErr *Error
	if req.JSONRPC != JSONRPCVersion {
		return s.packResponse(req, nil, NewInvalidParamsError(fmt.Sprintf("problem parsing JSON: invalid version, expected 2.0 got '%s'", req.JSONRPC)))
	}

	req.Method = escapeForLog(req.Method) // No valid method name will be changed by it.
	s.log.Debug("processing rpc request",
		zap.String("method", req.Method),
		zap.String("params", string(req.RawParams)))

	resErr = NewMethodNotFoundError(fmt.Sprintf("method %q not supported", req.Method))
	handler, ok := rpcHandlers[req.Method]
	if ok {
		res, resErr = handler(s, req.RawParams)
	}
	return s.packResponse(req, res, resErr)
}

func (s *Server) getTokensForSale(_ json.RawMessage) (interface{}, *Error) {
	return s.marketView("get_tokens_for_sale", nil)
}

func (s *Server) getTokensByOwnerID(raw json.RawMessage) (interface{}, *Error) {
	return s.marketView("get_tokens_by_owner_id", raw)
}

func (s *Server) getTokensByGateID(raw json.RawMessage) (interface{}, *Error) {
	return s.marketView("get_tokens_by_gate_id", raw)
}

func (s *Server) getTokensByCreatorID(raw json.RawMessage) (interface{}, *Error) {
	return s.marketView("get_tokens_by_creator_id", raw)
}

// marketView forwards a query to the market contract as a view call.
func (s *Server) marketView(method string, raw json.RawMessage) (interface{}, *Error) {
	res, err := s.shard.View(s.market, method, rawToAny(raw))
	if err != nil {
		return nil, NewRPCError("view call failed", err.Error())
	}
	return res, nil
}

func (s *Server) getBalance(raw json.RawMessage) (interface{}, *Error) {
	var p BalanceParams
	if err := json.Unmarshal(raw, &p); err != nil {
		return nil, NewInvalidParamsError(err.Error())
	}
	if !s.shard.HasAccount(p.AccountID) {
		return nil, NewInvalidParamsError(fmt.Sprintf("account `%s` is not known", p.AccountID))
	}
	return BalanceResult{
		AccountID: p.AccountID,
		Balance:   s.shard.BalanceOf(p.AccountID),
	}, nil
}

func (s *Server) call(raw json.RawMessage) (interface{}, *Error) {
	var p CallParams
	if err := json.Unmarshal(raw, &p); err != nil {
		return nil, NewInvalidParamsError(err.Error())
	}
	if p.SenderID == "" || p.ReceiverID == "" {
		return nil, NewInvalidParamsError("sender_id and receiver_id are required")
	}
	exec, err := s.shard.Call(p.SenderID, p.ReceiverID, p.Method, rawToAny(p.Params), p.Deposit, p.Gas)
	if err != nil {
		return nil, NewRPCError("call submission failed", err.Error())
	}
	res := CallResult{Receipts: make([]ReceiptResult, len(exec.Receipts))}
	for i, r := range exec.Receipts {
		res.Receipts[i] = ReceiptResult{
			ID:            r.ID,
			PredecessorID: r.PredecessorID,
			ReceiverID:    r.ReceiverID,
			Method:        r.Method,
			Deposit:       r.Deposit,
			State:         r.State.String(),
			ReturnValue:   r.ReturnValue,
			FaultMessage:  r.FaultMessage,
		}
	}
	return res, nil
}

// rawToAny converts a raw params payload into the form the shard expects,
// mapping an absent payload to nil.
func rawToAny(raw json.RawMessage) any {
	if len(raw) == 0 {
		return nil
	}
	return raw
}

func (s *Server) packResponse(r *Request, result interface{}, respErr *Error) Response {
	resp := Response{
		Header: Header{
			JSONRPC: r.JSONRPC,
			ID:      r.RawID,
		},
	}
	if respErr != nil {
		resp.Error = respErr
		return resp
	}
	data, err := json.Marshal(result)
	if err != nil {
		resp.Error = NewInternalServerError(fmt.Sprintf("failed to marshal result: %s", err))
		return resp
	}
	resp.Result = data
	return resp
}

// logRequestError is a request error logger.
func (s *Server) logRequestError(r *Request, jsonErr *Error) {
	logFields := []zap.Field{
		zap.Int64("code", jsonErr.Code),
	}
	if len(jsonErr.Data) != 0 {
		logFields = append(logFields, zap.String("cause", jsonErr.Data))
	}
	if r.Method != "" {
		logFields = append(logFields, zap.String("method", r.Method))
	}

	logText := "Error encountered with rpc request"
	switch jsonErr.Code {
	case InternalServerErrorCode:
		s.log.Error(logText, logFields...)
	default:
		s.log.Info(logText, logFields...)
	}
}

// writeHTTPErrorResponse writes an error response to the ResponseWriter.
func (s *Server) writeHTTPErrorResponse(r *Request, w http.ResponseWriter, jsonErr *Error) {
	resp := s.packResponse(r, nil, jsonErr)
	s.writeHTTPServerResponse(r, w, resp)
}

func setCORSOriginHeaders(h http.Header) {
	h.Set("Access-Control-Allow-Origin", "*")
	h.Set("Access-Control-Allow-Headers", "Content-Type, Access-Control-Allow-Headers, Authorization, X-Requested-With")
}

func (s *Server) writeHTTPServerResponse(r *Request, w http.ResponseWriter, resp Response) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	if s.config.EnableCORSWorkaround {
		setCORSOriginHeaders(w.Header())
	}
	if resp.Error != nil {
		s.logRequestError(r, resp.Error)
		w.WriteHeader(getHTTPCodeForError(resp.Error))
	}

	encoder := json.NewEncoder(w)
	err := encoder.Encode(resp)
	if err != nil {
		s.log.Error("Error encountered while encoding response",
			zap.String("err", err.Error()),
			zap.String("method", r.Method))
	}
}

// getHTTPCodeForError maps the JSON-RPC error code to an HTTP status.
func getHTTPCodeForError(jsonErr *Error) int {
	if jsonErr.HTTPCode != 0 {
		return jsonErr.HTTPCode
	}
	return http.StatusUnprocessableEntity
}

func escapeForLog(in string) string {
	return strings.Map(func(c rune) rune {
		if !strconv.IsGraphic(c) {
			return -1
		}
		return c
	}, in)
}
