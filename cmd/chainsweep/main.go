package main

import (
	"context"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/urfave/cli/v2"
)

var (
	// Version information (set via ldflags during build)
	version = "dev"
	commit  = "unknown"
	date    = "unknown"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newApp(os.Stdout, os.Stderr).RunContext(ctx, os.Args); err != nil {
		log.Fatal(err)
	}
}

func newApp(stdout, stderr io.Writer) *cli.App {
	return &cli.App{
		Name:      "chainsweep",
		Usage:     "Find tokens an address may have lost track of",
		ArgsUsage: "ADDRESS API_KEY",
		Description: `Fetches the ERC-20 transfer history of ADDRESS from an Etherscan-compatible
explorer and prints, per token contract, the raw received-minus-sent balance.
Contracts whose net balance is zero or negative are flagged as possibly lost.

Amounts are raw token units; decimals, burns and swaps are not accounted for.

Example:
  chainsweep 0x5bd808Ab85C124f99080da5F864EDcB39950edE5 YOUR_API_KEY
  chainsweep --jq '.tokens[] | select(.possibly_lost) | .symbol' 0x5bd8... YOUR_API_KEY`,
		Version:   fmt.Sprintf("%s (commit: %s, built: %s)", version, commit, date),
		Writer:    stdout,
		ErrWriter: stderr,
		Flags:     sweepFlags(),
		Action:    sweepAction,
		Commands: []*cli.Command{
			subscribeCommand(),
			versionCommand(),
		},
	}
}
