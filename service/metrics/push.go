package metrics

import (
	"context"
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/push"
)

// JobName is the Pushgateway job under which sweep metrics are grouped.
const JobName = "chainsweep"

// Push sends everything gathered by g to the Pushgateway at url, replacing any
// metrics previously pushed for the same job and target grouping. The
// grouping label is "target" because collectors already use "address".
func Push(ctx context.Context, url, address string, g prometheus.Gatherer) error {
	pusher := push.New(url, JobName).Gatherer(g)
	if address != "" {
		pusher = pusher.Grouping("target", address)
	}
	if err := pusher.PushContext(ctx); err != nil {
		return fmt.Errorf("failed to push metrics to %s: %w", url, err)
	}
	return nil
}
