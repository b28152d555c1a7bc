package main

import (
	"fmt"

	"github.com/urfave/cli/v2"
)

func versionCommand() *cli.Command {
	return &cli.Command{
		Name:  "version",
		Usage: "Show version information",
		Action: func(c *cli.Context) error {
			w := c.App.Writer
			fmt.Fprintf(w, "chainsweep CLI\n")
			fmt.Fprintf(w, "  Version: %s\n", version)
			fmt.Fprintf(w, "  Commit:  %s\n", commit)
			fmt.Fprintf(w, "  Built:   %s\n", date)
			return nil
		},
	}
}
