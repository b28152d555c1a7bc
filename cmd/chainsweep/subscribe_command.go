package main

import (
	"encoding/json"
	"fmt"
	"io"
	"time"

	natspkg "github.com/brojonat/chainsweep/service/nats"
	"github.com/nats-io/nats.go"
	"github.com/urfave/cli/v2"
)

// subscribeCommand streams sweep reports published by other chainsweep runs.
func subscribeCommand() *cli.Command {
	return &cli.Command{
		Name:      "subscribe",
		Usage:     "Stream sweep reports published to NATS",
		ArgsUsage: "[ADDRESS]",
		Description: `Subscribe to sweep reports published with --nats-url.

Reports are published to the subject: {prefix}.{lowercased address}
Without ADDRESS, reports for every address are shown. Core NATS does not
retain messages, so only reports published while subscribed are received.

Example:
  chainsweep subscribe --nats-url nats://localhost:4222 0x5bd808ab85c124f99080da5f864edcb39950ede5`,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "nats-url",
				Usage:   "NATS server URL",
				EnvVars: []string{"NATS_URL"},
				Value:   "nats://localhost:4222",
			},
			&cli.StringFlag{
				Name:    "subject-prefix",
				Usage:   "Subject prefix reports are published under",
				EnvVars: []string{"NATS_SUBJECT_PREFIX"},
				Value:   "sweeps",
			},
			&cli.IntFlag{
				Name:    "count",
				Aliases: []string{"n"},
				Usage:   "Exit after receiving this many reports (0 = run until interrupted)",
			},
			&cli.BoolFlag{
				Name:    "json",
				Aliases: []string{"j"},
				Usage:   "Output raw JSON events",
			},
		},
		Action: func(c *cli.Context) error {
			if c.NArg() > 1 {
				return fmt.Errorf("at most one address may be given")
			}

			subject := c.String("subject-prefix") + ".*"
			if c.NArg() == 1 {
				subject = natspkg.Subject(c.String("subject-prefix"), c.Args().Get(0))
			}

			return streamReports(c, c.String("nats-url"), subject, c.Int("count"), c.Bool("json"))
		},
	}
}

func streamReports(c *cli.Context, natsURL, subject string, limit int, jsonOutput bool) error {
	nc, err := nats.Connect(natsURL, nats.Name("chainsweep-subscriber"))
	if err != nil {
		return fmt.Errorf("failed to connect to NATS: %w", err)
	}
	defer nc.Close()

	msgChan := make(chan *nats.Msg, 10)
	sub, err := nc.ChanSubscribe(subject, msgChan)
	if err != nil {
		return fmt.Errorf("failed to subscribe to %s: %w", subject, err)
	}
	defer sub.Unsubscribe()

	w := c.App.Writer
	if !jsonOutput {
		fmt.Fprintf(w, "📡 Subscribing to: %s\n", subject)
		fmt.Fprintf(w, "   NATS: %s\n", natsURL)
		fmt.Fprintf(w, "\nWaiting for sweep reports... (Ctrl-C to exit)\n\n")
	}

	count := 0
	for {
		select {
		case msg := <-msgChan:
			var event natspkg.SweepEvent
			if err := json.Unmarshal(msg.Data, &event); err != nil || event.Report == nil {
				fmt.Fprintf(c.App.ErrWriter, "Error parsing event on %s: %v\n", msg.Subject, err)
				continue
			}

			count++
			if jsonOutput {
				fmt.Fprintln(w, string(msg.Data))
			} else {
				printSweepEvent(w, count, &event)
			}

			if limit > 0 && count >= limit {
				return nil
			}
		case <-c.Context.Done():
			if !jsonOutput {
				fmt.Fprintf(w, "\n\nReceived %d report(s)\n", count)
			}
			return nil
		}
	}
}

func printSweepEvent(w io.Writer, n int, event *natspkg.SweepEvent) {
	fmt.Fprintf(w, "─────────────────────────────────────────────────────\n")
	fmt.Fprintf(w, "Report #%d\n", n)
	fmt.Fprintf(w, "─────────────────────────────────────────────────────\n")
	fmt.Fprintf(w, "Address:       %s\n", event.Address)
	fmt.Fprintf(w, "Transfers:     %d\n", event.TransferCount)
	fmt.Fprintf(w, "Tokens:        %d\n", len(event.Tokens))
	fmt.Fprintf(w, "Possibly lost: %d\n", event.PossiblyLostCount)
	for _, token := range event.Tokens {
		if token.PossiblyLost {
			fmt.Fprintf(w, "  - %s (%s): balance %s\n", token.Name, token.Symbol, token.Net)
		}
	}
	fmt.Fprintf(w, "Published:     %s\n\n", event.PublishedAt.Format(time.RFC3339))
}
