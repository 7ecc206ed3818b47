// Package query implements read-only CLI commands served over RPC.
package query

import (
	"bytes"
	"fmt"
	"text/tabwriter"

	"github.com/maexx393/mintgate/cli/options"
	"github.com/maexx393/mintgate/pkg/gate"
	"github.com/urfave/cli"
)

// NewCommands returns 'query' command.
func NewCommands() []cli.Command {
	tokensFlags := append([]cli.Flag{
		cli.StringFlag{
			Name:  "owner",
			Usage: "List listings of tokens owned by the given account",
		},
		cli.StringFlag{
			Name:  "gate",
			Usage: "List listings of tokens claimed from the given gate",
		},
		cli.StringFlag{
			Name:  "creator",
			Usage: "List listings of tokens made by the given creator",
		},
	}, options.RPC...)
	return []cli.Command{{
		Name:  "query",
		Usage: "Query marketplace data from a node",
		Subcommands: []cli.Command{
			{
				Name:      "balance",
				Usage:     "Query an account balance",
				ArgsUsage: "<account>",
				Action:    queryBalance,
				Flags:     options.RPC,
			},
			{
				Name:   "tokens",
				Usage:  "List tokens currently for sale",
				Action: queryTokens,
				Flags:  tokensFlags,
			},
		},
	}}
}

func queryBalance(ctx *cli.Context) error {
	args := ctx.Args()
	if len(args) == 0 {
		return cli.NewExitError("Account id is missing", 1)
	}
	account := gate.AccountID(args[0])
	if err := account.Validate(); err != nil {
		return cli.NewExitError(fmt.Sprintf("Invalid account id: %s", args[0]), 1)
	}

	gctx, cancel := options.GetTimeoutContext(ctx)
	defer cancel()

	c, exitErr := options.GetRPCClient(gctx, ctx)
	if exitErr != nil {
		return exitErr
	}
	defer c.Close()

	balance, err := c.GetBalance(account)
	if err != nil {
		return cli.NewExitError(err, 1)
	}

	fmt.Fprintln(ctx.App.Writer, balance.String())
	return nil
}

func queryTokens(ctx *cli.Context) error {
	var (
		owner   = ctx.String("owner")
		gateID  = ctx.String("gate")
		creator = ctx.String("creator")
	)
	var dimensions int
	for _, v := range []string{owner, gateID, creator} {
		if len(v) > 0 {
			dimensions++
		}
	}
	if dimensions > 1 {
		return cli.NewExitError("only one of --owner, --gate and --creator is accepted", 1)
	}

	gctx, cancel := options.GetTimeoutContext(ctx)
	defer cancel()

	c, exitErr := options.GetRPCClient(gctx, ctx)
	if exitErr != nil {
		return exitErr
	}
	defer c.Close()

	var (
		tokens []gate.TokenForSale
		err    error
	)
	switch {
	case len(owner) > 0:
		tokens, err = c.GetTokensByOwnerID(gate.AccountID(owner))
	case len(gateID) > 0:
		tokens, err = c.GetTokensByGateID(gate.GateID(gateID))
	case len(creator) > 0:
		tokens, err = c.GetTokensByCreatorID(gate.AccountID(creator))
	default:
		tokens, err = c.GetTokensForSale()
	}
	if err != nil {
		return cli.NewExitError(err, 1)
	}

	dumpTokens(ctx, tokens)
	return nil
}

func dumpTokens(ctx *cli.Context, tokens []gate.TokenForSale) {
	buf := bytes.NewBuffer(nil)

	// Ignore the errors below because `Write` to buffer doesn't return error.
	tw := tabwriter.NewWriter(buf, 0, 4, 4, '\t', 0)
	_, _ = tw.Write([]byte("TOKEN\tOWNER\tMIN PRICE\tAPPROVAL\tGATE\tCREATOR\n"))
	for i := range tokens {
		t := &tokens[i]
		gid := "-"
		if t.GateID != nil {
			gid = string(*t.GateID)
		}
		creator := "-"
		if t.CreatorID != nil {
			creator = string(*t.CreatorID)
		}
		_, _ = tw.Write([]byte(fmt.Sprintf("%s\t%s\t%s\t%s\t%s\t%s\n",
			t.Key(), t.OwnerID, t.MinPrice, t.ApprovalID, gid, creator)))
	}
	_ = tw.Flush()
	fmt.Fprint(ctx.App.Writer, buf.String())
}
