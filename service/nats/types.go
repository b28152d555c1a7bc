package nats

import (
	"time"

	"github.com/brojonat/chainsweep/service/sweep"
)

// SweepEvent is the message published after a sweep completes.
// The report fields are inlined at the top level of the JSON payload.
type SweepEvent struct {
	*sweep.Report

	PublishedAt time.Time `json:"published_at"`
}

// FromReport wraps a sweep report for publishing.
func FromReport(report *sweep.Report) *SweepEvent {
	return &SweepEvent{
		Report:      report,
		PublishedAt: time.Now().UTC(),
	}
}
