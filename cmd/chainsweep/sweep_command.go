package main

import (
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/brojonat/chainsweep/client"
	"github.com/brojonat/chainsweep/service/config"
	"github.com/brojonat/chainsweep/service/metrics"
	natspkg "github.com/brojonat/chainsweep/service/nats"
	"github.com/brojonat/chainsweep/service/sweep"
	"github.com/itchyny/gojq"
	"github.com/lmittmann/tint"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/urfave/cli/v2"
)

// newPublisher is swapped out in tests.
var newPublisher = func(url, prefix string, m *metrics.Metrics, logger *slog.Logger) (natspkg.Publisher, error) {
	return natspkg.NewPublisher(url, prefix, m, logger)
}

func sweepFlags() []cli.Flag {
	return []cli.Flag{
		&cli.BoolFlag{
			Name:    "json",
			Aliases: []string{"j"},
			Usage:   "Output the report as JSON",
		},
		&cli.StringFlag{
			Name:  "jq",
			Usage: "jq expression applied to the JSON report (implies --json)",
		},
		&cli.StringFlag{
			Name:  "explorer-url",
			Usage: "Etherscan-compatible API endpoint (env: EXPLORER_API_URL)",
		},
		&cli.DurationFlag{
			Name:  "timeout",
			Usage: "HTTP request timeout, 0 for none (env: REQUEST_TIMEOUT)",
		},
		&cli.StringFlag{
			Name:  "log-level",
			Usage: "debug, info, warn or error (env: LOG_LEVEL)",
		},
		&cli.StringFlag{
			Name:  "log-format",
			Usage: "json or text (env: LOG_FORMAT)",
		},
		&cli.StringFlag{
			Name:  "nats-url",
			Usage: "Publish the report to this NATS server (env: NATS_URL)",
		},
		&cli.StringFlag{
			Name:  "nats-subject-prefix",
			Usage: "Subject prefix for published reports (env: NATS_SUBJECT_PREFIX)",
		},
		&cli.StringFlag{
			Name:  "pushgateway-url",
			Usage: "Push run metrics to this Prometheus Pushgateway (env: PUSHGATEWAY_URL)",
		},
	}
}

func sweepAction(c *cli.Context) error {
	if c.NArg() != 2 {
		return fmt.Errorf("expected ADDRESS and API_KEY arguments, got %d argument(s)", c.NArg())
	}

	address := c.Args().Get(0)
	apiKey := c.Args().Get(1)
	jqExpr := c.String("jq")
	jsonOutput := c.Bool("json") || jqExpr != ""
	ctx := c.Context

	cfg, err := loadConfig(c)
	if err != nil {
		return err
	}

	logger, err := newLogger(c.App.ErrWriter, cfg)
	if err != nil {
		return err
	}

	// Compile the jq expression before doing any network work
	var code *gojq.Code
	if jqExpr != "" {
		query, err := gojq.Parse(jqExpr)
		if err != nil {
			return fmt.Errorf("failed to parse jq filter %q: %w", jqExpr, err)
		}
		code, err = gojq.Compile(query)
		if err != nil {
			return fmt.Errorf("failed to compile jq filter %q: %w", jqExpr, err)
		}
	}

	// The address becomes a subject token, so reject it before fetching anything
	if cfg.NATSURL != "" {
		if err := natspkg.ValidateSubjectToken(address); err != nil {
			return fmt.Errorf("cannot publish sweep for %q: %w", address, err)
		}
	}

	registry := prometheus.NewRegistry()
	m := metrics.NewMetrics(registry)

	httpClient := &http.Client{
		Timeout:   cfg.RequestTimeout,
		Transport: metrics.InstrumentedTransport(m, nil),
	}
	explorer := client.NewClient(cfg.ExplorerURL, apiKey, httpClient, m, logger)

	var progress io.Writer
	if !jsonOutput {
		progress = c.App.Writer
	}

	res, err := sweep.NewSweeper(explorer, m, logger).Run(ctx, address, progress)
	if err != nil {
		return err
	}

	var report *sweep.Report
	if jsonOutput || cfg.NATSURL != "" {
		report = sweep.BuildReport(res.Ledger, res.TransferCount, time.Now())
	}

	switch {
	case code != nil:
		if err := writeJQ(c.App.Writer, code, report); err != nil {
			return err
		}
	case jsonOutput:
		data, err := json.MarshalIndent(report, "", "  ")
		if err != nil {
			return fmt.Errorf("failed to marshal report: %w", err)
		}
		fmt.Fprintln(c.App.Writer, string(data))
	default:
		if err := sweep.WriteText(c.App.Writer, res.Ledger); err != nil {
			return fmt.Errorf("failed to write report: %w", err)
		}
	}

	if cfg.NATSURL != "" {
		publisher, err := newPublisher(cfg.NATSURL, cfg.NATSSubjectPrefix, m, logger)
		if err != nil {
			logger.Error("failed to create NATS publisher", "error", err)
			return err
		}
		defer publisher.Close()

		if err := publisher.PublishReport(ctx, natspkg.FromReport(report)); err != nil {
			logger.Error("failed to publish report", "address", address, "error", err)
			return err
		}
	}

	if cfg.PushgatewayURL != "" {
		if err := metrics.Push(ctx, cfg.PushgatewayURL, address, registry); err != nil {
			logger.Error("failed to push metrics", "error", err)
			return err
		}
	}

	return nil
}

// loadConfig reads the environment and applies any flags set on the command line.
func loadConfig(c *cli.Context) (*config.Config, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}

	if c.IsSet("explorer-url") {
		cfg.ExplorerURL = c.String("explorer-url")
	}
	if c.IsSet("timeout") {
		cfg.RequestTimeout = c.Duration("timeout")
	}
	if c.IsSet("log-level") {
		cfg.LogLevel = c.String("log-level")
	}
	if c.IsSet("log-format") {
		cfg.LogFormat = c.String("log-format")
	}
	if c.IsSet("nats-url") {
		cfg.NATSURL = c.String("nats-url")
	}
	if c.IsSet("nats-subject-prefix") {
		cfg.NATSSubjectPrefix = c.String("nats-subject-prefix")
	}
	if c.IsSet("pushgateway-url") {
		cfg.PushgatewayURL = c.String("pushgateway-url")
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// newLogger builds the stderr logger. Text output uses tint for readable
// console lines; JSON output matches what log shippers expect.
func newLogger(w io.Writer, cfg *config.Config) (*slog.Logger, error) {
	level, err := config.ParseLogLevel(cfg.LogLevel)
	if err != nil {
		return nil, err
	}

	if cfg.LogFormat == "text" {
		return slog.New(tint.NewHandler(w, &tint.Options{
			Level:      level,
			TimeFormat: time.Kitchen,
		})), nil
	}
	return slog.New(slog.NewJSONHandler(w, &slog.HandlerOptions{
		Level: level,
	})), nil
}

// writeJQ runs code against the JSON form of report and prints each result.
func writeJQ(w io.Writer, code *gojq.Code, report *sweep.Report) error {
	// gojq only understands plain JSON values, so round-trip the report
	data, err := json.Marshal(report)
	if err != nil {
		return fmt.Errorf("failed to marshal report: %w", err)
	}
	var input interface{}
	if err := json.Unmarshal(data, &input); err != nil {
		return fmt.Errorf("failed to decode report: %w", err)
	}

	iter := code.Run(input)
	for {
		v, ok := iter.Next()
		if !ok {
			return nil
		}
		if err, isErr := v.(error); isErr {
			return fmt.Errorf("jq filter error: %w", err)
		}
		out, err := json.MarshalIndent(v, "", "  ")
		if err != nil {
			return fmt.Errorf("failed to marshal jq result: %w", err)
		}
		fmt.Fprintln(w, string(out))
	}
}
