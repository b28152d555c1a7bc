// Package sweep aggregates an address's token transfer history per contract
// and flags contracts whose net raw balance is not positive.
package sweep

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/brojonat/chainsweep/client"
	"github.com/brojonat/chainsweep/service/metrics"
)

// TransferFetcher is the explorer operation a sweep needs.
// This allows tests to run sweeps without hitting a real explorer.
type TransferFetcher interface {
	TokenTransfers(ctx context.Context, address string) ([]client.TransferEvent, error)
}

// Result is the outcome of one sweep.
type Result struct {
	Address       string
	TransferCount int
	Ledger        *Ledger
}

// Sweeper runs the fetch and aggregate steps for one address.
type Sweeper struct {
	fetcher TransferFetcher
	metrics *metrics.Metrics
	logger  *slog.Logger
}

// NewSweeper creates a Sweeper. If m is nil, no metrics are recorded.
func NewSweeper(fetcher TransferFetcher, m *metrics.Metrics, logger *slog.Logger) *Sweeper {
	if logger == nil {
		logger = slog.New(slog.NewJSONHandler(io.Discard, nil))
	}
	return &Sweeper{
		fetcher: fetcher,
		metrics: m,
		logger:  logger,
	}
}

// Run fetches the transfer history of address and aggregates it. Progress
// lines are written to progress, which may be nil.
func (s *Sweeper) Run(ctx context.Context, address string, progress io.Writer) (res *Result, err error) {
	if progress == nil {
		progress = io.Discard
	}

	start := time.Now()
	defer func() {
		if s.metrics != nil {
			s.metrics.RecordSweepDuration(err, time.Since(start).Seconds())
		}
	}()

	fmt.Fprintf(progress, "[•] Scanning address: %s\n", address)

	events, err := s.fetcher.TokenTransfers(ctx, address)
	if err != nil {
		s.logger.ErrorContext(ctx, "failed to fetch token transfers",
			"address", address,
			"error", err,
		)
		return nil, fmt.Errorf("failed to fetch token transfers: %w", err)
	}

	fmt.Fprintf(progress, "[✓] Found %d token transfers.\n", len(events))

	ledger, err := Aggregate(address, events)
	if err != nil {
		s.logger.ErrorContext(ctx, "failed to aggregate token transfers",
			"address", address,
			"error", err,
		)
		return nil, fmt.Errorf("failed to aggregate token transfers: %w", err)
	}

	lost := ledger.PossiblyLostCount()
	if s.metrics != nil {
		s.metrics.RecordSweepResult(address, ledger.Len(), lost)
	}

	s.logger.InfoContext(ctx, "sweep complete",
		"address", address,
		"transfers", len(events),
		"tokens", ledger.Len(),
		"possibly_lost", lost,
		"duration", time.Since(start),
	)

	return &Result{
		Address:       address,
		TransferCount: len(events),
		Ledger:        ledger,
	}, nil
}
