package main

import (
	"bytes"
	"errors"
	"io"
	"strings"
	"testing"

	"github.com/maexx393/mintgate/cli/app"
	"github.com/maexx393/mintgate/pkg/config"
	"github.com/maexx393/mintgate/pkg/gate"
	"github.com/maexx393/mintgate/pkg/market"
	"github.com/maexx393/mintgate/pkg/nft"
	"github.com/maexx393/mintgate/pkg/services/rpcsrv"
	"github.com/maexx393/mintgate/pkg/shardtest"
	"github.com/stretchr/testify/require"
	"github.com/urfave/cli"
	"go.uber.org/zap/zaptest"
)

const (
	marketAcc = gate.AccountID("market.mintgate")
	nftAcc    = gate.AccountID("nft.mintgate")
)

// executor represents context for a test instance.
// It can be safely used in multiple tests, but not in parallel.
type executor struct {
	// CLI is a cli application to test.
	CLI *cli.App
	// RPC is an RPC server to query (can be empty).
	RPC *rpcsrv.Server
	// Out contains command output.
	Out *bytes.Buffer
	// Err contains command errors.
	Err *bytes.Buffer
}

// newTestNode starts an RPC server over a shard with both contracts deployed
// and one active listing: token 0 of gate G1, created by carol, owned and
// listed by alice for 1000.
func newTestNode(t *testing.T) *rpcsrv.Server {
	e := shardtest.NewExecutor(t)
	e.NewAccount(t, "alice", gate.NewU128(1_000_000))
	e.NewAccount(t, "bob", gate.NewU128(1_000_000))
	e.NewAccount(t, "carol", gate.NewU128(1_000_000))

	e.DeployContract(t, marketAcc, market.New(), nil)
	n := e.DeployContract(t, nftAcc, nft.New(), map[string]any{"market_id": marketAcc})

	n.WithSigner("carol").Invoke(t, nil, "create_collectible", map[string]any{
		"gate_id":     "G1",
		"supply":      gate.U64(10),
		"royalty_num": uint32(1),
		"royalty_den": uint32(10),
	})
	n.WithSigner("alice").Invoke(t, gate.U64(0), "claim_token", map[string]any{"gate_id": "G1"})
	n.WithSigner("alice").Invoke(t, nil, "nft_approve", map[string]any{
		"token_id": gate.U64(0),
		"msg":      `{"min_price": "1000"}`,
	})

	conf := config.RPC{BasicService: config.BasicService{Enabled: true, Address: "127.0.0.1:0"}}
	errChan := make(chan error, 1)
	srv := rpcsrv.New(e.Shard, conf, marketAcc, zaptest.NewLogger(t), errChan)
	srv.Start()
	select {
	case err := <-errChan:
		t.Fatalf("failed to start RPC server: %s", err)
	default:
	}
	return &srv
}

func newExecutor(t *testing.T, needNode bool) *executor {
	e := &executor{
		CLI: app.New(),
		Out: bytes.NewBuffer(nil),
		Err: bytes.NewBuffer(nil),
	}
	e.CLI.Writer = e.Out
	e.CLI.ErrWriter = e.Err
	if needNode {
		e.RPC = newTestNode(t)
	}
	t.Cleanup(func() {
		e.Close(t)
	})
	return e
}

func (e *executor) Close(_ *testing.T) {
	if e.RPC != nil {
		e.RPC.Shutdown()
	}
}

// endpoint returns the URL of the test node's RPC server.
func (e *executor) endpoint() string {
	return "http://" + e.RPC.Addr
}

func (e *executor) getNextLine(t *testing.T) string {
	line, err := e.Out.ReadString('\n')
	require.NoError(t, err)
	return strings.TrimSuffix(line, "\n")
}

func (e *executor) checkNextLine(t *testing.T, expected string) {
	line := e.getNextLine(t)
	e.checkLine(t, line, expected)
}

func (e *executor) checkLine(t *testing.T, line, expected string) {
	require.Regexp(t, expected, line)
}

func (e *executor) checkEOF(t *testing.T) {
	_, err := e.Out.ReadString('\n')
	require.True(t, errors.Is(err, io.EOF))
}

func setExitFunc() <-chan int {
	ch := make(chan int, 1)
	cli.OsExiter = func(code int) {
		ch <- code
	}
	return ch
}

func checkExit(t *testing.T, ch <-chan int, code int) {
	select {
	case c := <-ch:
		require.Equal(t, code, c)
	default:
		if code != 0 {
			require.Fail(t, "no exit was called")
		}
	}
}

// RunWithError runs the command and checks that it exits with error.
func (e *executor) RunWithError(t *testing.T, args ...string) {
	ch := setExitFunc()
	require.Error(t, e.run(args...))
	checkExit(t, ch, 1)
}

// Run runs the command and checks that there were no errors.
func (e *executor) Run(t *testing.T, args ...string) {
	ch := setExitFunc()
	require.NoError(t, e.run(args...))
	checkExit(t, ch, 0)
}

func (e *executor) run(args ...string) error {
	e.Out.Reset()
	e.Err.Reset()
	return e.CLI.Run(args)
}
