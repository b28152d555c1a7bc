package nats

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"
	"unicode"

	"github.com/brojonat/chainsweep/service/metrics"
	"github.com/nats-io/nats.go"
)

// Publisher defines the interface for publishing sweep reports to NATS.
type Publisher interface {
	// PublishReport publishes one sweep event to the subject
	// "{prefix}.{lowercased address}".
	PublishReport(ctx context.Context, event *SweepEvent) error

	// Close closes the connection to NATS.
	Close() error
}

// CorePublisher publishes sweep events with core NATS. Messages are not
// retained by the server; only currently connected subscribers receive them.
type CorePublisher struct {
	nc      *nats.Conn
	prefix  string
	metrics *metrics.Metrics
	logger  *slog.Logger
}

var _ Publisher = (*CorePublisher)(nil)

// flushTimeout bounds how long a publish waits for the server to acknowledge
// the flush when the caller's context has no deadline.
const flushTimeout = 10 * time.Second

// NewPublisher connects to NATS. If m is nil, no metrics are recorded.
func NewPublisher(natsURL, subjectPrefix string, m *metrics.Metrics, logger *slog.Logger) (*CorePublisher, error) {
	nc, err := nats.Connect(natsURL,
		nats.Name("chainsweep-publisher"),
		nats.Timeout(10*time.Second),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to NATS: %w", err)
	}

	logger.Info("NATS publisher initialized",
		"url", natsURL,
		"subject_prefix", subjectPrefix,
	)

	return &CorePublisher{
		nc:      nc,
		prefix:  subjectPrefix,
		metrics: m,
		logger:  logger,
	}, nil
}

// Subject returns the subject a report for address is published to.
// The address must pass ValidateSubjectToken.
func Subject(prefix, address string) string {
	return fmt.Sprintf("%s.%s", prefix, strings.ToLower(address))
}

// ValidateSubjectToken reports whether token can be used as a single subject
// token. Separators, wildcards and whitespace would change which subscribers
// receive the message.
func ValidateSubjectToken(token string) error {
	if token == "" {
		return fmt.Errorf("subject token is empty")
	}
	for _, r := range token {
		if r == '.' || r == '*' || r == '>' || unicode.IsSpace(r) {
			return fmt.Errorf("subject token %q contains invalid character %q", token, r)
		}
	}
	return nil
}

// PublishReport publishes a sweep event and waits until the server has
// received it.
func (p *CorePublisher) PublishReport(ctx context.Context, event *SweepEvent) (err error) {
	if err := ValidateSubjectToken(event.Address); err != nil {
		return err
	}
	subject := Subject(p.prefix, event.Address)

	start := time.Now()
	defer func() {
		if p.metrics != nil {
			status := "success"
			if err != nil {
				status = "error"
			}
			p.metrics.RecordNATSPublish(subject, status, time.Since(start).Seconds())
		}
	}()

	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal sweep event: %w", err)
	}

	if err := p.nc.Publish(subject, data); err != nil {
		return fmt.Errorf("failed to publish sweep event: %w", err)
	}

	if _, ok := ctx.Deadline(); !ok {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, flushTimeout)
		defer cancel()
	}
	if err := p.nc.FlushWithContext(ctx); err != nil {
		return fmt.Errorf("failed to flush sweep event: %w", err)
	}

	p.logger.Debug("published sweep event",
		"subject", subject,
		"tokens", len(event.Tokens),
		"possibly_lost", event.PossiblyLostCount,
	)

	return nil
}

// Close closes the connection to NATS.
func (p *CorePublisher) Close() error {
	if p.nc != nil {
		p.nc.Close()
		p.logger.Info("NATS publisher closed")
	}
	return nil
}
