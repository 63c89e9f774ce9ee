package main

import (
	"fmt"
	"os"

	"github.com/urfave/cli"
)

// Version is set at build time.
var Version = "dev"

func newApp() *cli.App {
	ctl := cli.NewApp()
	ctl.Name = "streamctl"
	ctl.Version = Version
	ctl.Usage = "Inspect, claim and launch streamed token payments"
	ctl.ErrWriter = os.Stdout
	ctl.Flags = globalFlags
	ctl.Commands = []cli.Command{
		{
			Name:      "show",
			Usage:     "show the history and balances of a stream",
			ArgsUsage: "<stream id | coin id>",
			Action:    show,
		},
		{
			Name:      "claim",
			Usage:     "claim the vested amount of a stream",
			ArgsUsage: "<stream id>",
			Flags:     []cli.Flag{feeFlag},
			Action:    claim,
		},
		{
			Name:      "clawback",
			Usage:     "end a stream, returning the unvested amount to the clawback party",
			ArgsUsage: "<stream id>",
			Flags:     []cli.Flag{feeFlag},
			Action:    clawback,
		},
		{
			Name:      "discover",
			Usage:     "list the streams paying an address",
			ArgsUsage: "<address>",
			Action:    discover,
		},
		{
			Name:   "launch",
			Usage:  "derive the puzzle of a new stream and optionally ask the wallet to fund it",
			Flags:  launchFlags,
			Action: launch,
		},
	}
	return ctl
}

func main() {
	ctl := newApp()
	if err := ctl.Run(os.Args); err != nil {
		fmt.Fprintln(ctl.ErrWriter, err)
		os.Exit(1)
	}
}
