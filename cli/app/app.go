// Package app contains the CLI application factory.
package app

import (
	"fmt"
	"os"
	"runtime"

	"github.com/maexx393/mintgate/cli/query"
	"github.com/maexx393/mintgate/cli/server"
	"github.com/maexx393/mintgate/pkg/config"
	"github.com/urfave/cli"
)

func versionPrinter(c *cli.Context) {
	_, _ = fmt.Fprintf(c.App.Writer, "MintGate\nVersion: %s\nGoVersion: %s\n",
		config.Version,
		runtime.Version(),
	)
}

// New creates a MintGate instance of [cli.App] with all commands included.
func New() *cli.App {
	cli.VersionPrinter = versionPrinter
	ctl := cli.NewApp()
	ctl.Name = "mintgate"
	ctl.Version = config.Version
	ctl.Usage = "MintGate NFT marketplace node"
	ctl.ErrWriter = os.Stdout

	ctl.Commands = append(ctl.Commands, server.NewCommands()...)
	ctl.Commands = append(ctl.Commands, query.NewCommands()...)

	return ctl
}
